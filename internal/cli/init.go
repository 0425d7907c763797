package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize strata storage",
		Long:  "Create configuration and data directories, then open and close the backend once.",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	db, err := openDatabase(cmd.Context())
	if err != nil {
		return err
	}
	backend := db.Backend()
	fallback := db.Fallback()
	if err := db.Close(); err != nil {
		return err
	}

	if flags.jsonMode {
		return printValue(cmd, map[string]any{
			"backend":  backend,
			"fallback": fallback,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "initialized (backend: %s)\n", backend)
	if fallback {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: primary backend unavailable, used in-memory fallback")
	}
	return nil
}
