// Command assetctl runs administrative tasks against the metersquare
// database: migrations, ledger verification and account seeding.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load .env file, but don't overwrite system environment variables
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using process environment")
	}

	rootCmd := &cobra.Command{
		Use:          "assetctl",
		Short:        "MeterSquare asset inventory administration",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(migrateCmd(), verifyLedgerCmd(), seedUserCmd(), hashPasswordCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
