package integration

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/strata/pkg/strata"
	"github.com/mesh-intelligence/strata/pkg/types"
)

func seed(t *testing.T, db *strata.DB) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.CreateTable(ctx, "people", &types.Schema{Columns: []types.Column{
		{Name: "id", Type: types.TypeInteger, PrimaryKey: true, AutoIncrement: true},
		{Name: "name", Type: types.TypeText, NotNull: true},
		{Name: "age", Type: types.TypeInteger, NotNull: true},
		{Name: "active", Type: types.TypeBoolean, Default: true},
		{Name: "score", Type: types.TypeReal, NotNull: true},
	}}))
	// B and D carry integral REAL values; both families must still
	// return them as floats.
	_, err := db.InsertMany(ctx, "people", []types.Row{
		{"name": "A", "age": int64(20), "score": 4.5},
		{"name": "B", "age": int64(30), "active": false, "score": float64(2)},
		{"name": "C", "age": int64(25), "score": 3.25},
		{"name": "D", "age": int64(25), "score": float64(2)},
	})
	require.NoError(t, err)
}

// Both engine families must answer identical queries with identical rows,
// including generated keys, applied defaults, and ordering.
func TestQueryEquivalenceAcrossBackends(t *testing.T) {
	ctx := context.Background()
	queries := map[string]types.Query{
		"filter and sort": {
			Where:   []types.Predicate{{Column: "age", Op: types.OpGt, Value: 21}},
			OrderBy: []types.Order{{Column: "age"}, {Column: "id"}},
		},
		"boolean predicate": {
			Where:   []types.Predicate{{Column: "active", Op: types.OpEq, Value: true}},
			OrderBy: []types.Order{{Column: "id"}},
		},
		"in list": {
			Where:   []types.Predicate{{Column: "name", Op: types.OpIn, Value: []any{"A", "D"}}},
			OrderBy: []types.Order{{Column: "id"}},
		},
		"like": {
			Where:   []types.Predicate{{Column: "name", Op: types.OpLike, Value: "%B%"}},
			OrderBy: []types.Order{{Column: "id"}},
		},
		"paginated": {
			OrderBy: []types.Order{{Column: "age", Desc: true}, {Column: "id"}},
			Limit:   2,
			Offset:  1,
		},
		"real threshold": {
			Where:   []types.Predicate{{Column: "score", Op: types.OpGe, Value: 3.0}},
			OrderBy: []types.Order{{Column: "score"}},
		},
	}

	results := make(map[types.BackendID]map[string][]types.Row)
	for _, backend := range allBackends {
		db := open(t, t.TempDir(), backend)
		seed(t, db)
		perQuery := make(map[string][]types.Row)
		for name, q := range queries {
			rows, err := db.FindAll(ctx, "people", q)
			require.NoError(t, err, "backend %s query %q", backend, name)
			perQuery[name] = rows
		}
		results[backend] = perQuery
		require.NoError(t, db.Close())
	}

	reference := results[allBackends[0]]
	for _, backend := range allBackends[1:] {
		for name := range queries {
			if diff := cmp.Diff(reference[name], results[backend][name]); diff != "" {
				t.Errorf("backend %s, query %q (-%s +%s):\n%s",
					backend, name, allBackends[0], backend, diff)
			}
		}
	}
}

// Inserting a duplicate primary key must fail on every backend instead
// of overwriting the existing row.
func TestDuplicateKeyInsertEquivalence(t *testing.T) {
	ctx := context.Background()
	type outcome struct {
		rejected bool
		count    int64
	}
	results := make(map[types.BackendID]outcome)

	for _, backend := range allBackends {
		db := open(t, t.TempDir(), backend)
		require.NoError(t, db.CreateTable(ctx, "users", &types.Schema{Columns: []types.Column{
			{Name: "id", Type: types.TypeInteger, PrimaryKey: true},
			{Name: "name", Type: types.TypeText, NotNull: true},
		}}))
		_, err := db.Insert(ctx, "users", types.Row{"id": int64(1), "name": "first"})
		require.NoError(t, err)

		_, err = db.Insert(ctx, "users", types.Row{"id": int64(1), "name": "second"})
		count, countErr := db.Count(ctx, "users", types.Query{})
		require.NoError(t, countErr)

		rows, findErr := db.FindAll(ctx, "users", types.Query{})
		require.NoError(t, findErr)
		require.Len(t, rows, 1, "backend %s", backend)
		require.Equal(t, "first", rows[0]["name"], "backend %s", backend)

		results[backend] = outcome{rejected: err != nil, count: count}
		require.NoError(t, db.Close())
	}

	reference := results[allBackends[0]]
	require.True(t, reference.rejected)
	for _, backend := range allBackends[1:] {
		if diff := cmp.Diff(reference, results[backend], cmp.AllowUnexported(outcome{})); diff != "" {
			t.Errorf("backend %s diverges:\n%s", backend, diff)
		}
	}
}

func TestUpdateDeleteEquivalence(t *testing.T) {
	ctx := context.Background()
	type outcome struct {
		updated, deleted, remaining int64
	}
	results := make(map[types.BackendID]outcome)

	for _, backend := range allBackends {
		db := open(t, t.TempDir(), backend)
		seed(t, db)

		updated, err := db.Update(ctx, "people",
			types.Query{Where: []types.Predicate{{Column: "age", Op: types.OpEq, Value: 25}}},
			types.Row{"active": false})
		require.NoError(t, err)

		deleted, err := db.DeleteRows(ctx, "people",
			types.Query{Where: []types.Predicate{{Column: "active", Op: types.OpEq, Value: false}}})
		require.NoError(t, err)

		remaining, err := db.Count(ctx, "people", types.Query{})
		require.NoError(t, err)

		results[backend] = outcome{updated, deleted, remaining}
		require.NoError(t, db.Close())
	}

	reference := results[allBackends[0]]
	for _, backend := range allBackends[1:] {
		if diff := cmp.Diff(reference, results[backend], cmp.AllowUnexported(outcome{})); diff != "" {
			t.Errorf("backend %s diverges:\n%s", backend, diff)
		}
	}
}
