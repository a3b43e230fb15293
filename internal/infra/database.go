package infra

import (
	"errors"
	"fmt"
	"time"

	"metersquare/migrations"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "github.com/golang-migrate/migrate/v4/database/postgres" // register postgres driver
)

// NewDatabase establishes a GORM connection backed by pgx. The schema is
// owned by the SQL migrations in migrations/; GORM never alters it.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// migrateLogger adapts zerolog to migrate.Logger.
type migrateLogger struct{ verbose bool }

func (l migrateLogger) Printf(format string, v ...any) {
	log.Info().Msgf("db migration: "+format, v...)
}

func (l migrateLogger) Verbose() bool { return l.verbose }

// RunMigrations applies every pending embedded migration. No pending
// migration is not an error.
func RunMigrations(dsn string, verbose bool) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("migrations init: %w", err)
	}
	defer m.Close()
	m.Log = migrateLogger{verbose: verbose}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("db migration: no change needed")
			return nil
		}
		return fmt.Errorf("migrations up: %w", err)
	}
	version, dirty, _ := m.Version()
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("db migration: applied")
	return nil
}
