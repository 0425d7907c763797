package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/strata/pkg/types"
)

func newQueryCmd() *cobra.Command {
	var (
		whereFlags []string
		orderFlags []string
		limit      int
		offset     int
		count      bool
	)
	cmd := &cobra.Command{
		Use:   "query <table>",
		Short: "Query the rows of a declared table",
		Example: "  strata query people --where 'age>21' --order-by age\n" +
			"  strata query people --where 'name=Ada' --json\n" +
			"  strata query people --count",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := buildQuery(whereFlags, orderFlags, limit, offset)
			if err != nil {
				return err
			}
			db, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if count {
				n, err := db.Count(cmd.Context(), args[0], q)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			}
			rows, err := db.FindAll(cmd.Context(), args[0], q)
			if err != nil {
				return err
			}
			if flags.jsonMode {
				return printValue(cmd, rows)
			}
			for _, row := range rows {
				out, err := json.Marshal(row)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&whereFlags, "where", nil, "filter, e.g. 'age>21' or 'name=Ada' (repeatable, ANDed)")
	cmd.Flags().StringArrayVar(&orderFlags, "order-by", nil, "sort key, e.g. 'age' or 'age:desc' (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	cmd.Flags().BoolVar(&count, "count", false, "print the matching row count instead of rows")
	return cmd
}

// queryOps in match order: two-character operators before their
// one-character prefixes.
var queryOps = []struct {
	token string
	op    types.Op
}{
	{">=", types.OpGe},
	{"<=", types.OpLe},
	{"!=", types.OpNe},
	{"~", types.OpLike},
	{"=", types.OpEq},
	{">", types.OpGt},
	{"<", types.OpLt},
}

func buildQuery(where, order []string, limit, offset int) (types.Query, error) {
	q := types.Query{Limit: limit, Offset: offset}
	for _, expr := range where {
		pred, err := parsePredicate(expr)
		if err != nil {
			return types.Query{}, err
		}
		q.Where = append(q.Where, pred)
	}
	for _, expr := range order {
		column, dir, _ := strings.Cut(expr, ":")
		o := types.Order{Column: column}
		switch strings.ToLower(dir) {
		case "", "asc":
		case "desc":
			o.Desc = true
		default:
			return types.Query{}, fmt.Errorf("bad sort direction %q (want asc or desc)", dir)
		}
		q.OrderBy = append(q.OrderBy, o)
	}
	return q, nil
}

func parsePredicate(expr string) (types.Predicate, error) {
	for _, candidate := range queryOps {
		column, value, found := strings.Cut(expr, candidate.token)
		if !found || column == "" {
			continue
		}
		return types.Predicate{
			Column: strings.TrimSpace(column),
			Op:     candidate.op,
			Value:  parseValue(strings.TrimSpace(value)),
		}, nil
	}
	return types.Predicate{}, fmt.Errorf("cannot parse filter %q (want column<op>value)", expr)
}
