package admin

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// WorkerCmd runs only the indexing consumer, without the HTTP server.
func WorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the indexing worker",
		Long:  "Consume queued indexing jobs until interrupted. Uses the queue selected by RAGLINE_QUEUE_BACKEND.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			a.log.Info("indexing worker running", "queue", a.cfg.QueueBackend, "concurrency", a.cfg.WorkerConcurrency)
			// Start returns once ctx is cancelled.
			a.newWorker().Start(ctx)
			return nil
		},
	}
}
