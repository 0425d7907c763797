// Package cli implements the strata command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	name      string
	provider  string
	backend   string
	jsonMode  bool
	verbose   bool
}

var flags rootFlags

// NewRootCmd creates the top-level "strata" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "strata",
		Short: "A backend-agnostic record store",
		Long: "Strata stores records, tables, and queryable rows behind a uniform\n" +
			"interface, picking the best available backend at startup.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A .env next to the invocation may carry STRATA_* overrides.
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("loading .env: %w", err)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: .strata-db)")
	root.PersistentFlags().StringVar(&flags.name, "name", "", "database name (default: strata)")
	root.PersistentFlags().StringVar(&flags.provider, "provider", "", "backend family: auto, relational, keyvalue")
	root.PersistentFlags().StringVar(&flags.backend, "backend", "", "pin a concrete backend, bypassing selection")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log backend activity to stderr")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newGetCmd())
	root.AddCommand(newSetCmd())
	root.AddCommand(newDeleteCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newTablesCmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newInfoCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}

// exitCode classifies err: caller mistakes get exitUserError, everything
// else exitSysError.
func exitCode(err error) int {
	var (
		cfgErr *types.ConfigurationError
		valErr *types.ValidationError
	)
	switch {
	case errors.As(err, &cfgErr),
		errors.As(err, &valErr),
		errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrTableNotFound),
		errors.Is(err, types.ErrKeyEmpty):
		return exitUserError
	default:
		return exitSysError
	}
}
