package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/conflict-dash/internal/api"
	"github.com/sells-group/conflict-dash/internal/monitoring"
	"github.com/sells-group/conflict-dash/internal/query"
)

var servePort int

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the dataset and start the dashboard API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		metrics := monitoring.NewMetrics()
		ds, _, err := loadDataset(ctx, metrics)
		if err != nil {
			return err
		}

		engine := query.NewEngine(ds, engineOptions(metrics))
		srv := api.New(engine, metrics, cfg.Server, cfg.Query.TopN).NewHTTPServer(cfg.Server.Port)

		var checker *monitoring.Checker
		if cfg.Monitoring.WebhookURL != "" {
			checker = monitoring.NewChecker(
				monitoring.NewCollector(metrics),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
		}
		return runServer(ctx, srv, checker)
	},
}

// runServer serves until ctx is cancelled or the listener fails, then shuts
// down gracefully. checker may be nil.
func runServer(ctx context.Context, srv *http.Server, checker *monitoring.Checker) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zap.L().Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "server shutdown")
		}
		return nil
	})

	if checker != nil {
		g.Go(func() error {
			checker.Run(gctx)
			return nil
		})
	}

	return g.Wait()
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
