package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// IndexCmd indexes one registered file synchronously, bypassing the queue.
func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <file-id>",
		Short: "Index a registered file now",
		Long:  "Fetch, preprocess, chunk and embed one registered file in the foreground and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.indexer.IndexFile(ctx, args[0])
			if err != nil {
				return fmt.Errorf("indexing failed: %w", err)
			}

			outputJSON, _ := cmd.Flags().GetBool("output")
			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			fmt.Printf("Indexed file %s\n", report.FileID)
			fmt.Printf("  Document: %s\n", report.DocumentID)
			fmt.Printf("  Language: %s\n", report.Language)
			fmt.Printf("  Chunks:   %d (%d embedded)\n", report.Chunks, report.Embedded)
			for _, w := range report.Warnings {
				fmt.Printf("  Warning:  %s\n", w)
			}
			return nil
		},
	}

	cmd.Flags().Bool("output", false, "Output as JSON")

	return cmd
}
