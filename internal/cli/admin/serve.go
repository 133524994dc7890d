package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/ragline/internal/api/handlers"
	"github.com/cloo-solutions/ragline/internal/jobs"
	"github.com/cloo-solutions/ragline/internal/server"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the ragline API server on the specified port, with the indexing worker running in-process",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (default from RAGLINE_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not start the in-process indexing worker")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if portFlag, _ := cmd.Flags().GetString("port"); portFlag != "" {
		a.cfg.Port = portFlag
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(a.cfg.DatabaseURL, a.log); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	var worker *jobs.Worker
	if noWorker, _ := cmd.Flags().GetBool("no-worker"); !noWorker {
		worker = a.newWorker()
		go worker.Start(ctx)
	}

	routerCfg := server.RouterConfig{
		APIKey:       a.cfg.APIKey,
		Logger:       a.log.With("component", "http"),
		QueryHandler: handlers.NewQueryHandler(a.retrieval),
		FileHandler:  handlers.NewFileHandler(a.indexer),
	}
	if a.limiter != nil {
		routerCfg.RateLimiter = a.limiter
	} else {
		a.log.Warn("rate limiting disabled: REDIS_URL not set")
	}

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           server.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.log.Info("starting server", "port", a.cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	a.log.Info("shutting down")

	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	a.log.Info("server exited")
	return nil
}

func (a *app) newWorker() *jobs.Worker {
	processor := jobs.NewIndexWorker(a.queue, a.indexer, a.cfg.WorkerConcurrency, a.log)
	return jobs.NewWorker(processor, a.cfg.WorkerPollInterval, a.log)
}
