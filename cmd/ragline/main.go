package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/ragline/internal/cli"
	"github.com/cloo-solutions/ragline/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "ragline",
		Short: "Ragline CLI - ask questions over your indexed documents",
		Long: `Ragline CLI registers documents for indexing and queries pipelines.

Environment variables:
  RAGLINE_API_URL   API base URL (default: http://localhost:8080)
  RAGLINE_API_KEY   API key, when the server requires one`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.QueryCmd())
	rootCmd.AddCommand(client.FilesCmd())
	rootCmd.AddCommand(client.AuthCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
