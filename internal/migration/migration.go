// Package migration creates the auction schema on startup so a fresh node is
// usable out of the box. Postgres goes through versioned migrations; other
// drivers (sqlite in tests, mysql) fall back to schema sync from the models.
package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	attendancedomain "github.com/smallbiznis/gavel/internal/attendance/domain"
	auctiondomain "github.com/smallbiznis/gavel/internal/auction/domain"
	ledgerdomain "github.com/smallbiznis/gavel/internal/bidledger/domain"
	"github.com/smallbiznis/gavel/internal/clock"
	highbiddomain "github.com/smallbiznis/gavel/internal/highbid/domain"
	identitydomain "github.com/smallbiznis/gavel/internal/identity/domain"
	ownershipdomain "github.com/smallbiznis/gavel/internal/ownership/domain"
	"github.com/smallbiznis/gavel/internal/stats"
)

//go:embed sql/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "sql"

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	return nil
}

// SyncSchema creates the tables from the model definitions. Used for
// non-postgres drivers and by tests against in-memory sqlite.
func SyncSchema(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&auctiondomain.Auction{},
		&auctiondomain.Item{},
		&identitydomain.Bidder{},
		&highbiddomain.HighBid{},
		&ledgerdomain.Bid{},
		&attendancedomain.Record{},
		&ownershipdomain.Record{},
		&clock.TimeOffset{},
		&stats.BidCompletionStat{},
	)
}
