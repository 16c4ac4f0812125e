package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/textloom/textloom/internal/cli"
	"github.com/textloom/textloom/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "textloomd",
		Short: "Textloom daemon",
		Long:  "Textloom daemon for running the API server and ingesting documents directly",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.IngestCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
