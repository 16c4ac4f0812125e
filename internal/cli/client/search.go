package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SearchRequest represents the search API request.
type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// SearchResult represents one retrieved chunk.
type SearchResult struct {
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	HeaderTitle string  `json:"header_title,omitempty"`
	PageLabel   string  `json:"page_label,omitempty"`
	Source      string  `json:"source"`
	Score       float64 `json:"score"`
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	Context string          `json:"context"`
	Results []*SearchResult `json:"results"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		topK        int
		showContext bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed documents",
		Long:  "Retrieves the chunks most similar to the query.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSearch(cmd, args[0], topK, showContext, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of results (server default if unset)")
	cmd.Flags().BoolVar(&showContext, "context", false, "Print the assembled citation context instead of individual results")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, topK int, showContext, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/search", SearchRequest{Query: query, TopK: topK})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(resp.Data, &searchResp); err != nil {
		return fmt.Errorf("failed to parse search results: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(searchResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if showContext {
		fmt.Println(searchResp.Context)
		return nil
	}

	if len(searchResp.Results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results:\n\n", len(searchResp.Results))
	for i, result := range searchResp.Results {
		header := result.HeaderTitle
		if header == "" {
			header = "Unknown"
		}
		page := result.PageLabel
		if page == "" {
			page = "Unknown"
		}
		fmt.Printf("%d. %s | %s | %s (%.4f)\n", i+1, result.Source, header, page, result.Score)

		text := result.Text
		if len(text) > 200 {
			text = text[:197] + "..."
		}
		fmt.Printf("   %s\n", text)
		if i < len(searchResp.Results)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}

	return nil
}
