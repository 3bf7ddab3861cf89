// primal-site serves a small-business marketing site and the admin
// console that edits its content.
//
// It reads configuration from site.json in the working directory (or
// --config), connects to PostgreSQL and bootstraps the schema, then serves
// the public pages and the admin API. With "memory": true in the config
// it runs on an in-process store instead.
//
// Usage:
//
//	./primal-site                      # serve with ./site.json
//	./primal-site seed                 # copy default content into empty tables
//	./primal-site hash-password        # print a bcrypt hash for adminPasswordHash
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/primal-host/primal-site/internal/config"
	"github.com/primal-host/primal-site/internal/database"
	"github.com/primal-host/primal-site/internal/events"
	"github.com/primal-host/primal-site/internal/logging"
	"github.com/primal-host/primal-site/internal/mailer"
	"github.com/primal-host/primal-site/internal/media"
	"github.com/primal-host/primal-site/internal/server"
	"github.com/primal-host/primal-site/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:          "primal-site",
	Short:        "Marketing site with an admin content console",
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the public site and the admin API (default)",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "site.json", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(hashPasswordCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the config and builds the logger every command uses.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	log, err := logging.New(level, cfg.DevMode)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// openBackends connects the storage the config asks for. The returned
// closer releases it.
func openBackends(ctx context.Context, cfg *config.Config, log *zap.Logger) (server.Backends, func(), error) {
	var notifier mailer.Notifier = mailer.NewLog(log)
	if cfg.Email.APIKey != "" {
		notifier = mailer.NewResend(cfg.Email.APIKey, cfg.Email.Endpoint, log)
	}

	if cfg.Memory {
		log.Warn("running on the in-memory store; content is lost on restart")
		return server.Backends{
			Store:    store.NewMemory(),
			Media:    media.NewMemory(),
			Changes:  events.NewMemoryLog(),
			Notifier: notifier,
		}, func() {}, nil
	}

	db, err := database.Open(ctx, cfg.ConnString())
	if err != nil {
		return server.Backends{}, nil, err
	}
	log.Info("database connected, schema bootstrapped", zap.String("db", cfg.DBConn+"/"+cfg.DBName))
	return server.Backends{
		Store:    store.NewPostgres(db),
		Media:    media.NewPostgres(db),
		Changes:  events.NewPersister(db.Pool),
		Notifier: notifier,
		DB:       db,
	}, db.Close, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log.Info("primal-site starting", zap.String("listen", cfg.ListenAddr), zap.Bool("memory", cfg.Memory))

	// Root context cancelled on SIGINT or SIGTERM.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backends, closeBackends, err := openBackends(ctx, cfg, log)
	if err != nil {
		log.Error("open storage", zap.Error(err))
		return err
	}
	defer closeBackends()

	deps, err := server.NewDeps(cfg, backends, log)
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		log.Info("no jwtSecret configured; admin sessions end on restart")
	}

	// Blocks until the context is cancelled.
	if err := server.New(cfg, deps).Start(ctx); err != nil {
		log.Error("server error", zap.Error(err))
		return fmt.Errorf("serve: %w", err)
	}
	log.Info("primal-site stopped")
	return nil
}
