// Command migrator applies the schema and notify-trigger migrations against
// the database the service is configured for. The database itself is owned by
// the external ingestion pipeline; this tool only exists for local and test
// environments where nothing else provisions the tables.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/DevByZero/flowlens-api/internal/config"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	migrationsPath := flag.String("migrations-path", "migrations", "directory with migration files")
	migrationsTable := flag.String("migrations-table", "schema_migrations", "table tracking applied versions")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	m, err := migrate.New(
		"file://"+*migrationsPath,
		fmt.Sprintf("%s&x-migrations-table=%s", cfg.Postgres.ConnString(), *migrationsTable),
	)
	if err != nil {
		log.Fatalf("failed to init migrator: %v", err)
	}
	defer m.Close()

	switch cmd := flag.Arg(0); cmd {
	case "down":
		if err := run(m.Down); err != nil {
			log.Fatalf("failed to roll back: %v", err)
		}

		fmt.Println("migrations rolled back")
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied yet")
			return
		}
		if err != nil {
			log.Fatalf("failed to read version: %v", err)
		}

		fmt.Printf("version %d (dirty: %t)\n", version, dirty)
	case "", "up":
		if err := run(m.Up); err != nil {
			log.Fatalf("failed to migrate: %v", err)
		}

		fmt.Println("migrations applied")
	default:
		log.Fatalf("unknown command %q, want up, down or version", cmd)
	}
}

// run executes one migration direction, treating an already-current database
// as success.
func run(direction func() error) error {
	if err := direction(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("database is already up to date")
			return nil
		}

		return err
	}

	return nil
}
