package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/inspirehep/inspire-matcher/config"
	"github.com/inspirehep/inspire-matcher/pkg/logging"
	"github.com/inspirehep/inspire-matcher/pkg/models"
	"github.com/inspirehep/inspire-matcher/pkg/query"
	"github.com/inspirehep/inspire-matcher/pkg/utils"
)

func newCompileCmd() *cobra.Command {
	var (
		queryPath    string
		recordPath   string
		collections  []string
		matchDeleted bool
	)

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile one query against a record and print the search body",
		Example: `  # Compile an exact query
  matcher compile --query query.yaml --record record.json

  # Read the record from stdin
  cat record.json | matcher compile --query query.yaml --record -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, sync, err := logging.NewLogger(cfg.LogLevel, cfg.PrettyLogs)
			if err != nil {
				return err
			}
			defer sync()

			data, err := readInput(cmd, queryPath)
			if err != nil {
				return err
			}
			var spec models.QuerySpec
			if err := yaml.Unmarshal(data, &spec); err != nil {
				return fmt.Errorf("invalid query %s: %w", queryPath, err)
			}
			if _, err := utils.Validate(spec); err != nil {
				return err
			}

			record, err := readRecord(cmd, recordPath)
			if err != nil {
				return err
			}

			body, err := query.NewCompiler(logger).Compile(cmd.Context(), spec, record, query.Options{
				Collections:  collections,
				MatchDeleted: matchDeleted,
			})
			if err != nil {
				return err
			}

			return writeJSON(cmd, body)
		},
	}

	cmd.Flags().StringVarP(&queryPath, "query", "q", "", "Query spec file (YAML or JSON)")
	cmd.Flags().StringVarP(&recordPath, "record", "r", "", "Record file (JSON), - for stdin")
	cmd.Flags().StringSliceVar(&collections, "collections", nil, "Restrict hits to these collections")
	cmd.Flags().BoolVar(&matchDeleted, "match-deleted", false, "Include deleted records")
	_ = cmd.MarkFlagRequired("query")
	_ = cmd.MarkFlagRequired("record")

	return cmd
}

func readRecord(cmd *cobra.Command, path string) (models.Record, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	var record models.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("invalid record %s: %w", path, err)
	}
	if record == nil {
		return nil, fmt.Errorf("record %s is empty", path)
	}
	return record, nil
}
