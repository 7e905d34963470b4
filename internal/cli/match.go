package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inspirehep/inspire-matcher/config"
	"github.com/inspirehep/inspire-matcher/pkg/models"
)

type matchOutput struct {
	*models.MatchRun
	Results []models.MatchResult `json:"results,omitempty"`
}

func newMatchCmd() *cobra.Command {
	var (
		configName string
		configFile string
		recordPath string
		persist    bool
	)

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match one record against the search index",
		Example: `  # Match with the default config
  matcher match --record record.json

  # Match with a config file and store the result
  matcher match --config-file journals.yaml --record record.json --persist`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			record, err := readRecord(cmd, recordPath)
			if err != nil {
				return err
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.stop(ctx)

			matcherConfig, ok := a.configs.Get(configName)
			if configFile != "" {
				matcherConfig, err = config.LoadMatcherConfig(configFile)
				if err != nil {
					return err
				}
			} else if !ok {
				return fmt.Errorf("matcher config %s not found (known: %v)", configName, a.configs.Names())
			}

			if err := a.start(ctx); err != nil {
				return err
			}
			if persist && a.results == nil {
				return fmt.Errorf("--persist needs DB_ENABLED=true")
			}

			run, err := a.engine.Match(ctx, record, matcherConfig)
			if err != nil {
				return err
			}

			out := matchOutput{MatchRun: run}
			if persist {
				out.Results, err = a.results.SaveRun(ctx, run)
				if err != nil {
					return err
				}
			}

			return writeJSON(cmd, out)
		},
	}

	cmd.Flags().StringVarP(&configName, "config", "c", "default", "Name of a loaded matcher config")
	cmd.Flags().StringVar(&configFile, "config-file", "", "Matcher config file, overrides --config")
	cmd.Flags().StringVarP(&recordPath, "record", "r", "", "Record file (JSON), - for stdin")
	cmd.Flags().BoolVar(&persist, "persist", false, "Store the matches in the database")
	_ = cmd.MarkFlagRequired("record")

	return cmd
}
