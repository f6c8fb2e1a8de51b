package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/chessticulate/chessticulate-api/internal/auth"
	"github.com/chessticulate/chessticulate-api/internal/config"
	"github.com/chessticulate/chessticulate-api/internal/logging"
	"github.com/chessticulate/chessticulate-api/internal/server"
	"github.com/chessticulate/chessticulate-api/internal/store"
	"github.com/chessticulate/chessticulate-api/internal/workers"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the API server",
	Long: `Start the chessticulate API server. The server applies pending
database migrations on startup and serves until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "override the configured port")
	serveCmd.Flags().String("host", "", "override the configured host")
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := newLogger(cfg)
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, &cfg.Database, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	authSvc := auth.NewService(&cfg.Auth, st)
	workersClient := workers.NewClient(&cfg.Workers, log)
	srv := server.New(cfg, log, st, authSvc, workersClient)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start(gctx)
	})

	// watch the config file so log level changes apply without a restart
	if configFile := viper.ConfigFileUsed(); configFile != "" {
		watcher, err := config.NewWatcher(configFile, func() {
			if err := viper.ReadInConfig(); err != nil {
				log.Warn(gctx, err, "failed to reload config file")
				return
			}
			level := viper.GetString("logging.level")
			log.Info(gctx, "config file changed, applying log level", "level", level)
			log.SetLevel(logging.ParseLevel(level))
		})
		if err != nil {
			log.Warn(ctx, err, "config watcher unavailable", "file", configFile)
		} else {
			g.Go(func() error {
				watcher.Start(gctx)
				return nil
			})
		}
	}

	return g.Wait()
}

func newLogger(cfg *config.Config) logging.Logger {
	return logging.NewLogger(&logging.Config{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
	})
}
