// Record commands: get, set, delete, keys.
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/strata/pkg/types"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <table> <key>",
		Short: "Get a record by key",
		Example: "  strata get notes 0198b2c6\n" +
			"  strata get settings theme --json",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			value, ok, err := db.Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("record %q not found in table %q: %w", args[1], args[0], types.ErrNotFound)
			}
			return printValue(cmd, value)
		},
	}
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <table> <key> <value>",
		Short: "Store a record",
		Long: "Store a record under table/key. The value is parsed as JSON when\n" +
			"possible and stored as a plain string otherwise. An empty key\n" +
			"(\"\") gets a generated identifier, printed on success.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			key, err := db.Set(cmd.Context(), args[0], args[1], parseValue(args[2]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <table> <key>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			return db.Delete(cmd.Context(), args[0], args[1])
		},
	}
}

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys <table>",
		Short: "List the keys of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			keys, err := db.Keys(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if flags.jsonMode {
				return printValue(cmd, keys)
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}

// parseValue interprets raw as JSON when it parses, falling back to the
// literal string. "42" stores a number; "forty-two" stores a string.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}
