package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/leorit/backend/internal/infrastructure/config"
	"github.com/leorit/backend/internal/infrastructure/logger"
	"github.com/leorit/backend/internal/infrastructure/migration"
	"github.com/leorit/backend/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const usage = `Order service schema migrations

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (negative rolls back)
  goto <version>        Migrate to a specific version
  version               Show the applied version
  force <version>       Mark version applied and clear the dirty flag
  create <name> [desc]  Create a numbered up/down pair under -path
  list                  List available migrations

Flags:
`

func main() {
	path := flag.String("path", "", "migrations directory; the migrations built into the binary when empty")
	configPath := flag.String("config", "", "config file")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	log := logger.Must(logger.ConfigForEnvironment("development", *logLevel))
	defer func() { _ = log.Sync() }()

	if err := run(log, *path, *configPath, flag.Args()); err != nil {
		log.Error("Migration failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(log *zap.Logger, path, configPath string, args []string) error {
	command := args[0]

	switch command {
	case "create":
		if len(args) < 2 {
			return errors.New("usage: migrate create <name> [description]")
		}
		if path == "" {
			path = "migrations"
		}
		description := ""
		if len(args) > 2 {
			description = args[2]
		}
		mf, err := migration.CreateMigration(path, args[1], description)
		if err != nil {
			return err
		}
		log.Info("Migration created", zap.String("up", mf.UpPath), zap.String("down", mf.DownPath))
		return nil

	case "list":
		var fsys fs.FS = migrations.FS
		if path != "" {
			fsys = os.DirFS(path)
		}
		names, err := migration.ListMigrations(fsys)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}

	load := config.Load
	if configPath != "" {
		load = func() (*config.Config, error) { return config.LoadFile(configPath) }
	}
	cfg, err := load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, path, log)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	switch command {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "step":
		n, err := intArg(args, "step <n>")
		if err != nil {
			return err
		}
		return m.Steps(n)
	case "goto":
		n, err := intArg(args, "goto <version>")
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("version must not be negative: %d", n)
		}
		return m.GoTo(uint(n))
	case "force":
		n, err := intArg(args, "force <version>")
		if err != nil {
			return err
		}
		return m.Force(n)
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		log.Info("Schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func intArg(args []string, form string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("usage: migrate %s", form)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("usage: migrate %s: %w", form, err)
	}
	return n, nil
}
