// Command migrate applies the SQL migrations of the booking schema.
//
//	migrate up            apply every pending migration, reference data included
//	migrate schema        apply the schema migrations only
//	migrate down          roll back one step
//	migrate to <version>  move to an exact version
//	migrate version       print the current version
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"ms-booking/internal/config"
	"ms-booking/internal/database"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/logger"
)

func main() {
	log := logger.NewLogger("migrate")
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	if len(os.Args) < 2 {
		log.Fatal("MIGRATE", "usage: migrate up|schema|down|to <version>|version")
	}

	bunDB, err := database.OpenPostgres(context.Background(), cfg.Database)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to database: %v", err))
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
		MigrationsDir: cfg.Database.MigrationsDir,
		SeedData:      os.Args[1] == "up",
	}, log)
	defer runner.Close()

	switch os.Args[1] {
	case "up", "schema":
		err = runner.RunMigrations()
	case "down":
		err = runner.MigrateDown()
	case "to":
		if len(os.Args) < 3 {
			log.Fatal("MIGRATE", "usage: migrate to <version>")
		}
		var version uint64
		version, err = strconv.ParseUint(os.Args[2], 10, 32)
		if err == nil {
			err = runner.MigrateTo(uint(version))
		}
	case "version":
		version, dirty, verr := runner.Version()
		if verr != nil {
			log.Fatal("MIGRATE", fmt.Sprintf("Failed to read version: %v", verr))
		}
		log.Info("MIGRATE", fmt.Sprintf("version %d (dirty: %t)", version, dirty))
		return
	default:
		log.Fatal("MIGRATE", fmt.Sprintf("unknown command %q", os.Args[1]))
	}

	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	log.Info("MIGRATE", "Done")
}
