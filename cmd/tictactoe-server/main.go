package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/park285/tictactoe-server/internal/app"
	"github.com/park285/tictactoe-server/internal/config"
	"github.com/park285/tictactoe-server/internal/obslog"
	"github.com/park285/tictactoe-server/internal/storage"
)

type rootOptions struct {
	envFiles []string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	serve := newServeCommand(opts)

	cmd := &cobra.Command{
		Use:           "tictactoe-server",
		Short:         "Tic-tac-toe game state server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")
	cmd.Flags().AddFlagSet(serve.Flags())

	cmd.AddCommand(serve)
	cmd.AddCommand(newMigrateCommand(opts))
	return cmd
}

func bootstrap(opts *rootOptions) (*config.AppConfig, *zap.Logger, error) {
	if err := config.LoadDotEnv(opts.envFiles...); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := obslog.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

type serveOptions struct {
	shutdownTimeout time.Duration
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), root, opts)
		},
	}
	cmd.Flags().DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 10*time.Second, "grace period for in-flight requests")
	return cmd
}

func runServe(parent context.Context, root *rootOptions, opts *serveOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, logger, err := bootstrap(root)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("close_failed", zap.Error(err))
		}
	}()

	logger.Info("starting_server",
		zap.String("env", cfg.Env),
		zap.String("addr", cfg.Addr()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return deps.Server.ListenAndServe(cfg.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting_down")
		sctx, cancel := context.WithTimeout(context.Background(), opts.shutdownTimeout)
		defer cancel()
		return deps.Server.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("server_stopped")
	return nil
}

func newMigrateCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(root)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			store, err := storage.Open(cmd.Context(), app.StorageConfig(cfg), logger)
			if err != nil {
				return err
			}
			logger.Info("schema_applied", zap.String("driver", store.Dialect().Name()))
			return store.Close()
		},
	}
}
