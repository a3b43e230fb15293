package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"metersquare/internal/config"
	"metersquare/internal/infra"
	"metersquare/internal/model"
	"metersquare/internal/repository"
	"metersquare/internal/service"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// errViolations makes verify-ledger exit non-zero without printing usage.
var errViolations = errors.New("ledger verification failed")

func openDB() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, db, nil
}

func migrateCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := infra.RunMigrations(cfg.DatabaseURL, verbose); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every applied migration")
	return cmd
}

func verifyLedgerCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "verify-ledger",
		Short: "Recompute stock counters from the movement history and report mismatches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, err := openDB()
			if err != nil {
				return err
			}
			svc := service.NewLedgerService(service.StockRepositories{
				Categories:  repository.NewCategoryRepository(db),
				Items:       repository.NewItemRepository(db),
				Movements:   repository.NewMovementRepository(db),
				Maintenance: repository.NewMaintenanceRepository(db),
			}, repository.NewProjectRepository(db), nil)

			report, err := svc.Verify(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "checked %d categories\n", report.CheckedCategories)
				for _, v := range report.Violations {
					scope := ""
					if v.ProjectID != nil {
						scope = " project=" + *v.ProjectID
					}
					fmt.Fprintf(out, "%-22s %s%s: %s\n", v.Check, v.CategoryCode, scope, v.Detail)
				}
			}
			if len(report.Violations) > 0 {
				return fmt.Errorf("%w: %d violation(s)", errViolations, len(report.Violations))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func seedUserCmd() *cobra.Command {
	var username, name, email, role, password string
	cmd := &cobra.Command{
		Use:   "seed-user",
		Short: "Create or replace a user account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := model.ParseRole(role)
			if err != nil {
				return err
			}
			if password == "" {
				password = os.Getenv("SEED_PASSWORD")
			}
			cfg, db, err := openDB()
			if err != nil {
				return err
			}
			var emailPtr *string
			if email != "" {
				emailPtr = &email
			}
			if name == "" {
				name = username
			}
			svc := service.NewAuthService(repository.NewUserRepository(db), cfg)
			u, err := svc.SeedUser(cmd.Context(), username, name, emailPtr, r, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s (%s) saved with id %s\n", u.Username, u.Role, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "login name")
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to username)")
	cmd.Flags().StringVar(&email, "email", "", "notification address")
	cmd.Flags().StringVarP(&role, "role", "r", string(model.RoleSiteEngineer), "one of admin, site_engineer, project_manager, production_manager, store_keeper")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (or SEED_PASSWORD)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the bcrypt hash for a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := service.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
}
