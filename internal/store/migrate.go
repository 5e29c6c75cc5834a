package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/mohammad-safakhou/claimcheck/migrations"
)

// Migrate applies Postgres migrations. An empty dir uses the embedded files;
// otherwise dir is a source URL such as file://migrations/postgres.
func Migrate(dir, dsn, direction string, steps int) error {
	if dsn == "" {
		return errors.New("migrate: postgres dsn is required")
	}
	var (
		m   *migrate.Migrate
		err error
	)
	if dir == "" {
		src, srcErr := iofs.New(migrations.Postgres, "postgres")
		if srcErr != nil {
			return fmt.Errorf("migrate: embedded source: %w", srcErr)
		}
		m, err = migrate.NewWithSourceInstance("iofs", src, dsn)
	} else {
		m, err = migrate.New(dir, dsn)
	}
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer m.Close()

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	default:
		return fmt.Errorf("unknown direction: %s", direction)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
