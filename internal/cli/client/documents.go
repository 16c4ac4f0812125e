package client

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// Document represents one indexed document.
type Document struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	Stem         string `json:"stem"`
	SectionCount int    `json:"section_count"`
	ChunkCount   int    `json:"chunk_count"`
	IngestedAt   string `json:"ingested_at"`
}

// DocumentListResponse represents the document list API response.
type DocumentListResponse struct {
	Documents []*Document `json:"documents"`
}

// DocumentsCmd creates the documents command.
func DocumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List indexed documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runDocuments(cmd, outputJSON)
		},
	}

	return cmd
}

func runDocuments(cmd *cobra.Command, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/documents")
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	var listResp DocumentListResponse
	if err := json.Unmarshal(resp.Data, &listResp); err != nil {
		return fmt.Errorf("failed to parse document list: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(listResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(listResp.Documents) == 0 {
		fmt.Println("No documents indexed.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILENAME\tSECTIONS\tCHUNKS\tINGESTED")
	for _, doc := range listResp.Documents {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", doc.Filename, doc.SectionCount, doc.ChunkCount, doc.IngestedAt)
	}
	return w.Flush()
}
