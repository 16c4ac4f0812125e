package client

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// IngestResult represents the ingest API response.
type IngestResult struct {
	Filename     string `json:"filename"`
	SectionCount int    `json:"section_count"`
	ChunkCount   int    `json:"chunk_count"`
	VectorCount  int    `json:"vector_count"`
	Inserted     int    `json:"inserted"`
	Updated      int    `json:"updated"`
}

// IngestCmd creates the ingest command.
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file.pdf>...",
		Short: "Upload and index PDF documents",
		Long:  "Uploads PDF documents to the server, which converts, chunks, embeds, and indexes them.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runIngest(cmd, args, outputJSON)
		},
	}

	return cmd
}

func runIngest(cmd *cobra.Command, paths []string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	var results []IngestResult
	for _, path := range paths {
		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return fmt.Errorf("only PDF files are supported: %s", path)
		}

		resp, err := api.PostFile("/documents", "file", path)
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}

		var result IngestResult
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			return fmt.Errorf("failed to parse ingest response: %w", err)
		}
		results = append(results, result)

		if !outputJSON {
			fmt.Printf("Ingested %s: %d sections, %d chunks (%d inserted, %d updated)\n",
				result.Filename, result.SectionCount, result.ChunkCount, result.Inserted, result.Updated)
		}
	}

	if outputJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
	}

	return nil
}
