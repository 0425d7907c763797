package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/strata/pkg/strata"
)

// openDatabase builds the configuration from flags and config.yaml and
// opens the database. Callers must Close it.
func openDatabase(ctx context.Context) (*strata.DB, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	logger := zap.NewNop()
	if flags.verbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
	}
	return strata.Open(ctx, cfg, strata.WithLogger(logger))
}

// printValue writes v to the command's stdout, as indented JSON in JSON
// mode and as plain fmt output otherwise.
func printValue(cmd *cobra.Command, v any) error {
	if flags.jsonMode {
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), v)
	return nil
}
