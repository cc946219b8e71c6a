package cmd

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ridoystarlord/depmigrate/config"
	"github.com/ridoystarlord/depmigrate/database"
	"github.com/ridoystarlord/depmigrate/loader"
	"github.com/ridoystarlord/depmigrate/migration"
	"github.com/ridoystarlord/depmigrate/runner"
)

// exitOnError prints the failure the way every command reports it and
// exits with status 1.
func exitOnError(prefix string, err error) {
	if err == nil {
		return
	}
	fmt.Printf("❌ %s: %v\n", prefix, err)
	os.Exit(1)
}

func loadConfig() *config.Config {
	cfg, err := config.Load(v)
	exitOnError("Error loading configuration", err)
	return cfg
}

func newLogger(cfg *config.Config) *zap.Logger {
	log, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	exitOnError("Error creating logger", err)
	return log
}

func loadRegistry(cfg *config.Config) *migration.Registry {
	reg, err := loader.LoadDescriptors(cfg.MigrationsDir)
	exitOnError("Error loading migrations", err)
	return reg
}

// session bundles what the database-backed commands need.
type session struct {
	cfg    *config.Config
	db     *database.DB
	runner *runner.Runner
	log    *zap.Logger
}

func openSession(ctx context.Context) *session {
	cfg := loadConfig()
	reg := loadRegistry(cfg)
	log := newLogger(cfg)

	dialect, err := cfg.ResolveDialect()
	if err == nil {
		var db *database.DB
		db, err = database.Open(ctx, cfg.DatabaseURL, dialect)
		if err == nil {
			return &session{
				cfg:    cfg,
				db:     db,
				runner: runner.New(db, reg, log),
				log:    log,
			}
		}
	}
	_ = log.Sync()
	exitOnError("Error connecting to database", err)
	return nil
}

func (s *session) Close() {
	_ = s.log.Sync()
	s.db.Close()
}

// exitOnError is the package-level exitOnError for commands holding a
// session: the database and logger are closed before exiting.
func (s *session) exitOnError(prefix string, err error) {
	if err == nil {
		return
	}
	s.Close()
	exitOnError(prefix, err)
}
