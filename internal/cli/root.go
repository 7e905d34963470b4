// Package cli holds the matcher commands
package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matcher",
		Short: "Match bibliographic records against a search index",
		Long: `Matcher finds the indexed records a given record refers to.

A matcher config lists steps of queries. Each query is compiled from the
record, sent to the search index, and the hits are kept when every
validator of the step accepts them.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newServeCmd(version))
	cmd.AddCommand(newWorkerCmd(version))
	cmd.AddCommand(newCompileCmd())
	cmd.AddCommand(newMatchCmd())
	cmd.AddCommand(newValidateConfigCmd())

	return cmd
}

// readInput reads a file, or stdin for "-"
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func writeJSON(cmd *cobra.Command, value any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
