package client

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// QueryRequest represents the query API request.
type QueryRequest struct {
	Q         string   `json:"q"`
	TopK      *int     `json:"top_k,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	Dedup     *bool    `json:"dedup,omitempty"`
}

// QuerySource is one retrieved chunk backing the answer.
type QuerySource struct {
	ChunkID string  `json:"chunk_id"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

// QueryResponse represents the query API response.
type QueryResponse struct {
	Answer   string        `json:"answer"`
	Sources  []QuerySource `json:"sources"`
	Warnings []string      `json:"warnings"`
}

// QueryCmd creates the query command.
func QueryCmd() *cobra.Command {
	var (
		topK      int
		threshold float64
		noDedup   bool
	)

	cmd := &cobra.Command{
		Use:   "query <pipeline-id> <question>",
		Short: "Ask a question against a pipeline",
		Long:  "Retrieves the most relevant chunks of the pipeline's documents and generates an answer from them.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			req := QueryRequest{Q: args[1]}
			if cmd.Flags().Changed("top-k") {
				req.TopK = &topK
			}
			if cmd.Flags().Changed("threshold") {
				req.Threshold = &threshold
			}
			if noDedup {
				dedup := false
				req.Dedup = &dedup
			}

			outputJSON, _ := cmd.Flags().GetBool("output")
			return runQuery(cmd.Context(), cmd.OutOrStdout(), api, args[0], req, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 8, "Maximum number of chunks to retrieve")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", 0.4, "Minimum similarity score for a chunk")
	cmd.Flags().BoolVar(&noDedup, "no-dedup", false, "Keep chunks with identical text")

	return cmd
}

func runQuery(ctx context.Context, w io.Writer, api *APIClient, pipelineID string, req QueryRequest, outputJSON bool) error {
	if strings.TrimSpace(req.Q) == "" {
		return fmt.Errorf("question cannot be empty")
	}
	var result QueryResponse
	if err := api.Post(orBackground(ctx), "/pipelines/"+url.PathEscape(pipelineID)+"/query", req, &result); err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if outputJSON {
		return writeJSON(w, result)
	}

	fmt.Fprintln(w, result.Answer)

	if len(result.Sources) > 0 {
		fmt.Fprintf(w, "\nSources (%d):\n", len(result.Sources))
		for i, src := range result.Sources {
			text := strings.Join(strings.Fields(src.Text), " ")
			if r := []rune(text); len(r) > 100 {
				text = string(r[:97]) + "..."
			}
			fmt.Fprintf(w, "%d. [%.3f] %s\n", i+1, src.Score, text)
			fmt.Fprintf(w, "   Chunk: %s\n", src.ChunkID)
		}
	}

	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "Warning: %s\n", warning)
	}

	return nil
}
