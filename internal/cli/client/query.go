package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// AnswerResponse represents the query API response.
type AnswerResponse struct {
	Answer string `json:"answer"`
}

// QueryCmd creates the query command.
func QueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Ask a question grounded in indexed documents",
		Long:  "Retrieves relevant chunks and has the language model answer using them as context.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runQuery(cmd, args[0], outputJSON)
		},
	}

	return cmd
}

func runQuery(cmd *cobra.Command, question string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/query", SearchRequest{Query: question})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	var answerResp AnswerResponse
	if err := json.Unmarshal(resp.Data, &answerResp); err != nil {
		return fmt.Errorf("failed to parse answer: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(answerResp, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Println(answerResp.Answer)
	}

	return nil
}
