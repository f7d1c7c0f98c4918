package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/BaSui01/ragcore/internal/migration"
)

// =============================================================================
// Database Migration Commands
// =============================================================================

// runMigrate handles the migrate command and its subcommands
func runMigrate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printMigrateUsage(stdout)
		return nil
	}
	subcommand := args[0]

	fs := flag.NewFlagSet("migrate "+subcommand, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql)")
	dbURL := fs.String("db-url", "", "Database connection URL")

	positional, rest := leadingPositional(args[1:])
	if err := fs.Parse(rest); err != nil {
		return err
	}
	positional = append(positional, fs.Args()...)

	migrator, err := createMigrator(*configPath, *dbType, *dbURL)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer migrator.Close()

	cli := migration.NewCLI(migrator)
	cli.SetOutput(stdout)
	if subcommand == "reset" {
		subcommand = "down-all"
	}
	return cli.Run(ctx, subcommand, positional)
}

// createMigrator uses --db-type/--db-url when both are given, the config file otherwise
func createMigrator(configPath, dbType, dbURL string) (*migration.DefaultMigrator, error) {
	if dbType != "" && dbURL != "" {
		t, err := migration.ParseDatabaseType(dbType)
		if err != nil {
			return nil, err
		}
		return migration.NewMigrator(&migration.Config{DatabaseType: t, DatabaseURL: dbURL}, nil)
	}

	a, err := newApp(configPath)
	if err != nil {
		return nil, err
	}
	defer a.close()

	dbCfg := a.cfg.Database
	if dbType != "" {
		dbCfg.Driver = dbType
	}
	return migration.NewMigratorFromDatabaseConfig(dbCfg, a.logger)
}

// leadingPositional splits off arguments before the first flag; numbers such as
// "-1" for "steps" count as positional
func leadingPositional(args []string) (positional, rest []string) {
	for i, arg := range args {
		if strings.HasPrefix(arg, "-") {
			if _, err := strconv.Atoi(arg); err != nil {
				return args[:i], args[i:]
			}
		}
	}
	return args, nil
}

// printMigrateUsage prints the usage information for migrate command
func printMigrateUsage(w io.Writer) {
	fmt.Fprintln(w, `Database Migration Commands

Usage:
  ragcore migrate <subcommand> [args] [options]

Subcommands:
  up          Apply all pending migrations
  down        Rollback the last migration
  steps <n>   Apply n migrations (negative rolls back)
  status      Show migration status
  version     Show current migration version
  goto <v>    Migrate to a specific version
  force <v>   Force set migration version (use with caution)
  reset       Rollback all migrations
  help        Show this help message

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, mysql (default: from config)
  --db-url <url>      Database connection URL (default: from config)

Examples:
  ragcore migrate up
  ragcore migrate up --config /etc/ragcore/config.yaml
  ragcore migrate goto 1
  ragcore migrate steps -1
  ragcore migrate status --db-type postgres --db-url postgres://ragcore@localhost/ragcore`)
}
