package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inspirehep/inspire-matcher/config"
	"github.com/inspirehep/inspire-matcher/pkg/logging"
	"github.com/inspirehep/inspire-matcher/pkg/models"
	"github.com/inspirehep/inspire-matcher/pkg/query"
	"github.com/inspirehep/inspire-matcher/pkg/validators"
)

func newValidateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config FILE...",
		Short: "Check matcher config files without contacting the search index",
		Long: `Loads each matcher config, checks its required fields, its validator
names, and compiles every query against an empty record so missing or
inconsistent query keys are reported.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.Nop()
			registry := validators.NewRegistry(logger, validators.DefaultAuthorsTitlesOptions())
			compiler := query.NewCompiler(logger)

			var errs []error
			for _, file := range args {
				if err := checkConfigFile(cmd.Context(), file, registry, compiler); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", file, err)
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", file)
			}

			if len(errs) > 0 {
				return fmt.Errorf("%d of %d configs are invalid", len(errs), len(args))
			}
			return nil
		},
	}
}

func checkConfigFile(ctx context.Context, file string, registry *validators.Registry, compiler *query.Compiler) error {
	cfg, err := config.LoadMatcherConfig(file)
	if err != nil {
		return err
	}
	return checkMatcherConfig(ctx, cfg, registry, compiler)
}

func checkMatcherConfig(ctx context.Context, cfg *models.MatcherConfig, registry *validators.Registry, compiler *query.Compiler) error {
	var errs []error
	for i, step := range cfg.Algorithm {
		for _, name := range step.Validator {
			if _, ok := registry.Lookup(name); !ok {
				errs = append(errs, fmt.Errorf("step %d: unknown validator %q", i, name))
			}
		}
		for j, spec := range step.Queries {
			_, err := compiler.Compile(ctx, spec, models.Record{}, query.Options{})
			var compileErr *query.CompileError
			if errors.As(err, &compileErr) {
				errs = append(errs, compileErr.At(i, j))
			} else if err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
