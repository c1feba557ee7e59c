package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/vncsmyrnk/timedpolls/internal/adapters/repository/sqldb"
	"github.com/vncsmyrnk/timedpolls/internal/app"
	"github.com/vncsmyrnk/timedpolls/internal/config"
)

func main() {
	configFile := flag.String("config", os.Getenv("POLLS_CONFIG"), "Optional YAML config file")
	down := flag.Bool("down", false, "Run the down migration instead")
	list := flag.Bool("list", false, "List the embedded migrations")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Storage.Type == config.StorageFile {
		log.Fatal("the file backend has no migrations")
	}
	logger := app.NewLogger(cfg.LogLevel)

	if *list {
		sqlCfg, err := app.SQLConfig(cfg.Storage, logger)
		if err != nil {
			log.Fatal(err)
		}
		names, err := sqldb.MigrationNames(sqlCfg.Dialect)
		if err != nil {
			log.Fatal(err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, sqlCfg, err := app.OpenSQL(ctx, cfg.Storage, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if flag.NArg() == 0 {
		if *down {
			log.Fatal("a migration name is required with -down")
		}
		if err := sqldb.Migrate(ctx, db, sqlCfg.Dialect); err != nil {
			log.Fatal(err)
		}
		fmt.Println("All migrations executed successfully.")
		return
	}

	name, err := sqldb.ApplyMigration(ctx, db, sqlCfg.Dialect, flag.Arg(0), *down)
	if err != nil {
		log.Fatalf("Failed to execute migration: %v", err)
	}
	fmt.Printf("Migration file %s executed successfully.\n", name)
}
