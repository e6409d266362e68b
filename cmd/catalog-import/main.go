// Command catalog-import loads a regulatory catalog YAML file into the
// reference graph.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"regtrack/internal/catalog"
	"regtrack/internal/database"
	"regtrack/internal/logger"
)

func main() {
	_ = godotenv.Load()

	dsn := flag.String("dsn", os.Getenv("DB_DSN"), "Postgres DSN (default $DB_DSN)")
	dryRun := flag.Bool("dry-run", false, "validate the file without writing")
	level := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] catalog.yaml\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	lg, err := logger.New(*level, "console", "regtrack-catalog-import")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(lg, flag.Arg(0), *dsn, *dryRun); err != nil {
		lg.Error("catalog import failed", zap.Error(err))
		_ = lg.Sync()
		os.Exit(1)
	}
}

func run(lg *zap.Logger, path, dsn string, dryRun bool) error {
	f, err := catalog.LoadFile(path)
	if err != nil {
		return err
	}
	if dryRun {
		lg.Info("catalog is valid", zap.String("path", path), zap.Int("regulations", len(f.Regulations)))
		return nil
	}
	if dsn == "" {
		return fmt.Errorf("no database: set DB_DSN or pass -dsn")
	}

	db, err := database.Open(database.Options{DSN: dsn, MaxAttempts: 3, Logger: lg})
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	sum, err := catalog.NewImporter(db, lg).Import(context.Background(), f)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d regulations, %d sections, %d requirements from %s\n",
		sum.Regulations, sum.Sections, sum.Requirements, path)
	return nil
}
