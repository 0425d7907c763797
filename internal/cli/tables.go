package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List known tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			tables, err := db.ListTables(cmd.Context())
			if err != nil {
				return err
			}
			if flags.jsonMode {
				return printValue(cmd, tables)
			}
			for _, table := range tables {
				fmt.Fprintln(cmd.OutOrStdout(), table)
			}
			return nil
		},
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show backend and storage usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			info, err := db.Info(cmd.Context())
			if err != nil {
				return err
			}
			if flags.jsonMode {
				return printValue(cmd, map[string]any{
					"backend":  db.Backend(),
					"fallback": db.Fallback(),
					"used":     info.Used,
					"quota":    info.Quota,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backend:  %s\n", db.Backend())
			fmt.Fprintf(cmd.OutOrStdout(), "fallback: %t\n", db.Fallback())
			fmt.Fprintf(cmd.OutOrStdout(), "used:     %d bytes\n", info.Used)
			if info.Quota > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "quota:    %d bytes\n", info.Quota)
			}
			return nil
		},
	}
}
