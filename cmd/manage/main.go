// Command manage runs operator maintenance against the user database.
//
//	manage [--db path] recreate-db
//	manage [--db path] seed-db
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"user-registry/internal/config"
	"user-registry/internal/maintenance"
	"user-registry/internal/repository/sqlite"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	flags := pflag.NewFlagSet("manage", pflag.ExitOnError)
	flags.String("db", "", "sqlite database path (overrides USERS_DATABASE_PATH)")
	flags.String("log-level", "", "log level")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: manage [flags] recreate-db|seed-db\n")
		flags.PrintDefaults()
	}
	_ = flags.Parse(os.Args[1:])

	if flags.NArg() != 1 {
		flags.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	}

	if err := run(context.Background(), flags.Arg(0), cfg.Database.Path, logger); err != nil {
		logger.Fatal(err)
	}
}

func run(ctx context.Context, command, dbPath string, logger *logrus.Logger) error {
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	users := sqlite.NewUserRepository(db)
	if err := users.Init(ctx); err != nil {
		return fmt.Errorf("init user repository: %w", err)
	}

	switch command {
	case "recreate-db":
		if err := maintenance.Recreate(ctx, users); err != nil {
			return err
		}
		logger.Infof("recreated users table in %s", dbPath)
	case "seed-db":
		seeded, err := maintenance.Seed(ctx, users)
		if err != nil {
			return err
		}
		for _, u := range seeded {
			logger.WithField("id", u.ID).Infof("seeded %s <%s>", u.Username, u.Email)
		}
	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}
