package client

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"

	"github.com/spf13/cobra"
)

// RegisterFileRequest registers an object already uploaded to the bucket.
type RegisterFileRequest struct {
	Bucket     string `json:"bucket"`
	ObjectKey  string `json:"object_key"`
	Name       string `json:"name"`
	PipelineID string `json:"pipeline_id,omitempty"`
}

// FileStatus mirrors the file resource returned by the API.
type FileStatus struct {
	FileID     string `json:"file_id"`
	PipelineID string `json:"pipeline_id,omitempty"`
	Name       string `json:"name"`
	Bucket     string `json:"bucket"`
	ObjectKey  string `json:"object_key"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// ReindexResult reports how many files were queued again.
type ReindexResult struct {
	PipelineID string   `json:"pipeline_id"`
	Queued     int      `json:"queued"`
	JobIDs     []string `json:"job_ids"`
}

// FilesCmd creates the files parent command.
func FilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Register uploaded documents and track indexing",
	}

	cmd.AddCommand(filesAddCmd())
	cmd.AddCommand(filesStatusCmd())
	cmd.AddCommand(filesReindexCmd())

	return cmd
}

func filesAddCmd() *cobra.Command {
	var pipelineID, name string

	cmd := &cobra.Command{
		Use:   "add <bucket> <key>",
		Short: "Register an uploaded object for indexing",
		Long:  "Registers an object already stored in the bucket. The server queues it for indexing and returns immediately.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			if name == "" {
				name = path.Base(args[1])
			}
			req := RegisterFileRequest{
				Bucket:     args[0],
				ObjectKey:  args[1],
				Name:       name,
				PipelineID: pipelineID,
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runFilesAdd(cmd.Context(), cmd.OutOrStdout(), api, req, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&pipelineID, "pipeline", "p", "", "Pipeline the file belongs to")
	cmd.Flags().StringVar(&name, "name", "", "Display name (default: base name of the key)")

	return cmd
}

func filesStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <file-id>",
		Short: "Show the indexing status of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runFilesStatus(cmd.Context(), cmd.OutOrStdout(), api, args[0], outputJSON)
		},
	}
}

func filesReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex <pipeline-id>",
		Short: "Queue every file of a pipeline for indexing again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runReindex(cmd.Context(), cmd.OutOrStdout(), api, args[0], outputJSON)
		},
	}
}

func runFilesAdd(ctx context.Context, w io.Writer, api *APIClient, req RegisterFileRequest, outputJSON bool) error {
	var file FileStatus
	if err := api.Post(orBackground(ctx), "/files", req, &file); err != nil {
		return fmt.Errorf("failed to register file: %w", err)
	}

	if outputJSON {
		return writeJSON(w, file)
	}

	fmt.Fprintf(w, "Registered %s (%s)\n", file.Name, file.FileID)
	fmt.Fprintf(w, "  Status: %s\n", file.Status)
	fmt.Fprintf(w, "Check progress with: ragline files status %s\n", file.FileID)
	return nil
}

func runFilesStatus(ctx context.Context, w io.Writer, api *APIClient, fileID string, outputJSON bool) error {
	var file FileStatus
	if err := api.Get(orBackground(ctx), "/files/"+url.PathEscape(fileID), &file); err != nil {
		return fmt.Errorf("failed to get file: %w", err)
	}

	if outputJSON {
		return writeJSON(w, file)
	}

	fmt.Fprintf(w, "File:     %s\n", file.FileID)
	fmt.Fprintf(w, "Name:     %s\n", file.Name)
	fmt.Fprintf(w, "Object:   s3://%s/%s\n", file.Bucket, file.ObjectKey)
	if file.PipelineID != "" {
		fmt.Fprintf(w, "Pipeline: %s\n", file.PipelineID)
	}
	fmt.Fprintf(w, "Status:   %s\n", file.Status)
	fmt.Fprintf(w, "Updated:  %s\n", file.UpdatedAt)
	return nil
}

func runReindex(ctx context.Context, w io.Writer, api *APIClient, pipelineID string, outputJSON bool) error {
	var result ReindexResult
	if err := api.Post(orBackground(ctx), "/pipelines/"+url.PathEscape(pipelineID)+"/reindex", nil, &result); err != nil {
		return fmt.Errorf("failed to reindex pipeline: %w", err)
	}

	if outputJSON {
		return writeJSON(w, result)
	}

	fmt.Fprintf(w, "Queued %d file(s) of pipeline %s for indexing\n", result.Queued, result.PipelineID)
	return nil
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
