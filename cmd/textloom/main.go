package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/textloom/textloom/internal/cli"
	"github.com/textloom/textloom/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "textloom",
		Short: "Textloom CLI - Document search over your PDFs",
		Long: `Textloom CLI provides commands to ingest and query PDF documents.

Environment variables:
  TEXTLOOM_API_KEY   API key for authentication (optional if the server runs without one)
  TEXTLOOM_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.IngestCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.QueryCmd())
	rootCmd.AddCommand(client.DocumentsCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
