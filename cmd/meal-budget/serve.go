package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/iwvelando/meal-budget/internal/config"
	"github.com/iwvelando/meal-budget/internal/devicesync"
	"github.com/iwvelando/meal-budget/internal/household"
	"github.com/iwvelando/meal-budget/internal/planner"
	"github.com/iwvelando/meal-budget/internal/recipe"
	"github.com/iwvelando/meal-budget/internal/server"
	"github.com/iwvelando/meal-budget/internal/store"
	"github.com/iwvelando/meal-budget/pkg/constants"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)


func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		serverConfigPath string
		address          string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the planning HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			serverConf, err := server.LoadConfig(serverConfigPath)
			if err != nil {
				return err
			}
			if address != "" {
				serverConf.Address = address
			}

			var conf *config.Configuration
			if serverConf.ConfigFile != "" {
				conf, err = config.LoadConfiguration(serverConf.ConfigFile)
			} else {
				conf, err = root.loadConfiguration(cmd)
			}
			if err != nil {
				return err
			}

			logger, err := initializeLogger(serverConf.Logging, root.logLevel)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() {
				_ = logger.Sync()
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, logger, serverConf, conf)
		},
	}

	cmd.Flags().StringVar(&serverConfigPath, "server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	cmd.Flags().StringVar(&address, "address", "", "listen address override")
	return cmd
}

// newDependencies builds the API services from the application configuration.
// The returned cleanup closes the store when storage is enabled.
func newDependencies(ctx context.Context, logger *zap.Logger, conf *config.Configuration) (server.Dependencies, func(), error) {
	cleanup := func() {}

	c, _, err := loadCatalog(conf)
	if err != nil {
		return server.Dependencies{}, cleanup, err
	}

	var persister planner.Persister
	if conf.Storage.Enabled {
		st, err := store.Open(ctx, logger, conf.Storage)
		if err != nil {
			return server.Dependencies{}, cleanup, err
		}
		persister = st
		cleanup = func() {
			if err := st.Close(); err != nil {
				logger.Warn("failed to close store", zap.String("op", "main.serve"), zap.Error(err))
			}
		}
	}

	svc, err := planner.NewService(logger, conf.Optimizer, c, persister)
	if err != nil {
		cleanup()
		return server.Dependencies{}, func() {}, err
	}
	distributor, err := household.NewDistributor(logger, conf.Household)
	if err != nil {
		cleanup()
		return server.Dependencies{}, func() {}, err
	}

	return server.Dependencies{
		Planner:     svc,
		Distributor: distributor,
		Adapter:     recipe.NewAdapter(logger, c),
		Resolver:    devicesync.NewResolver(logger),
	}, cleanup, nil
}

func serve(ctx context.Context, logger *zap.Logger, serverConf *server.Config, conf *config.Configuration) error {
	deps, cleanup, err := newDependencies(ctx, logger, conf)
	if err != nil {
		return err
	}
	defer cleanup()

	handler := server.NewHandler(logger, deps, serverConf.BodyLimit(), version)
	if serverConf.RateLimit.Enabled() {
		handler = server.NewRateLimiter(logger, serverConf.RateLimit).Middleware(handler)
	}

	srv := &http.Server{
		Addr:              serverConf.Address,
		Handler:           handler,
		ReadHeaderTimeout: serverConf.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("op", "main.serve"),
			zap.String("address", serverConf.Address),
			zap.String("version", version),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConf.ShutdownTimeout)
	defer cancel()
	logger.Info("shutting down", zap.String("op", "main.serve"))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
