package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/inspirehep/inspire-matcher/config"
	"github.com/inspirehep/inspire-matcher/pkg/routes"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the matcher HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.stop(context.Background())

			if err := a.start(ctx); err != nil {
				return err
			}

			checker := a.healthChecker(version)
			deps := routes.Dependencies{
				ServiceName:  cfg.AppName,
				Logger:       a.logger,
				Compiler:     a.engine.Compiler(),
				Engine:       a.engine,
				Configs:      a.configs,
				Health:       checker,
				AllowOrigins: cfg.AllowOrigins,
				AllowMethods: cfg.AllowMethods,
			}
			if a.results != nil {
				deps.Results = a.results
			}

			server := newHTTPServer(cfg, routes.NewServer(deps))
			checker.SetReady(true)
			a.logger.WithField("addr", server.Addr).Infof("Matcher API listening on %s", server.Addr)

			return runServer(ctx, server)
		},
	}
}

func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}

// runServer serves until ctx is done, then shuts down gracefully
func runServer(ctx context.Context, server *http.Server) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
