package relational

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/strata/pkg/types"
)

func peopleSchema() *types.Schema {
	return &types.Schema{Columns: []types.Column{
		{Name: "id", Type: types.TypeInteger, PrimaryKey: true, AutoIncrement: true},
		{Name: "name", Type: types.TypeText, NotNull: true},
		{Name: "age", Type: types.TypeInteger, NotNull: true},
	}}
}

func seedPeople(t *testing.T, e *Engine) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.CreateTable(ctx, "people", peopleSchema()))
	for _, row := range []types.Row{
		{"name": "A", "age": int64(20)},
		{"name": "B", "age": int64(30)},
		{"name": "C", "age": int64(25)},
	} {
		_, err := e.Insert(ctx, "people", row)
		require.NoError(t, err)
	}
}

func names(rows []types.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r["name"].(string)
	}
	return out
}

func TestInsertResolvesGeneratedKey(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	seedPeople(t, e)

	rows, err := e.FindAll(ctx, "people", types.Query{
		OrderBy: []types.Order{{Column: "id"}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, int64(3), rows[2]["id"])

	row, err := e.Insert(ctx, "people", types.Row{"name": "D", "age": int64(40)})
	require.NoError(t, err)
	assert.Equal(t, int64(4), row["id"])
}

func TestFindAllFilterSortSlice(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	seedPeople(t, e)

	// The canonical cross-strategy fixture.
	rows, err := e.FindAll(ctx, "people", types.Query{
		Where:   []types.Predicate{{Column: "age", Op: types.OpGt, Value: 21}},
		OrderBy: []types.Order{{Column: "age"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B"}, names(rows))

	rows, err = e.FindAll(ctx, "people", types.Query{
		OrderBy: []types.Order{{Column: "age", Desc: true}},
		Limit:   2,
		Offset:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A"}, names(rows))

	// Offset without limit still paginates.
	rows, err = e.FindAll(ctx, "people", types.Query{
		OrderBy: []types.Order{{Column: "age"}},
		Offset:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, names(rows))
}

func TestPredicateOperators(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	seedPeople(t, e)

	tests := []struct {
		name string
		pred types.Predicate
		want []string
	}{
		{"eq", types.Predicate{Column: "name", Op: types.OpEq, Value: "B"}, []string{"B"}},
		{"ne", types.Predicate{Column: "name", Op: types.OpNe, Value: "B"}, []string{"A", "C"}},
		{"ge", types.Predicate{Column: "age", Op: types.OpGe, Value: 25}, []string{"C", "B"}},
		{"lt", types.Predicate{Column: "age", Op: types.OpLt, Value: 25}, []string{"A"}},
		{"le", types.Predicate{Column: "age", Op: types.OpLe, Value: 25}, []string{"A", "C"}},
		{"in", types.Predicate{Column: "name", Op: types.OpIn, Value: []any{"A", "C"}}, []string{"A", "C"}},
		{"not in", types.Predicate{Column: "name", Op: types.OpNotIn, Value: []any{"A", "C"}}, []string{"B"}},
		{"like substring", types.Predicate{Column: "name", Op: types.OpLike, Value: "%B%"}, []string{"B"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := e.FindAll(ctx, "people", types.Query{
				Where:   []types.Predicate{tt.pred},
				OrderBy: []types.Order{{Column: "age"}},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(rows))
		})
	}
}

func TestCountUpdateDelete(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	seedPeople(t, e)

	n, err := e.Count(ctx, "people", types.Query{
		Where: []types.Predicate{{Column: "age", Op: types.OpGt, Value: 21}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	affected, err := e.Update(ctx, "people",
		types.Query{Where: []types.Predicate{{Column: "name", Op: types.OpEq, Value: "A"}}},
		types.Row{"age": int64(21)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	rows, err := e.FindAll(ctx, "people", types.Query{
		Where: []types.Predicate{{Column: "name", Op: types.OpEq, Value: "A"}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(21), rows[0]["age"])

	deleted, err := e.DeleteRows(ctx, "people", types.Query{
		Where: []types.Predicate{{Column: "age", Op: types.OpLe, Value: 25}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	n, err = e.Count(ctx, "people", types.Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestQueryUndeclaredTable(t *testing.T) {
	e := newEngine(t)
	_, err := e.FindAll(context.Background(), "nothing", types.Query{})
	assert.ErrorIs(t, err, types.ErrTableNotFound)
}

func TestRowValidation(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	require.NoError(t, e.CreateTable(ctx, "people", peopleSchema()))

	var verr *types.ValidationError
	_, err := e.Insert(ctx, "people", types.Row{"name": "A"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "age", verr.Column)

	_, err = e.Insert(ctx, "people", types.Row{"name": "A", "age": int64(1), "nope": true})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "nope", verr.Column)

	_, err = e.FindAll(ctx, "people", types.Query{
		Where: []types.Predicate{{Column: "nope", Op: types.OpEq, Value: 1}},
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "nope", verr.Column)
}

func TestTextPrimaryKeyGenerated(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	require.NoError(t, e.CreateTable(ctx, "sessions", &types.Schema{Columns: []types.Column{
		{Name: "token", Type: types.TypeText, PrimaryKey: true},
		{Name: "user", Type: types.TypeText, NotNull: true},
	}}))

	row, err := e.Insert(ctx, "sessions", types.Row{"user": "alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, row["token"])

	row2, err := e.Insert(ctx, "sessions", types.Row{"user": "bob"})
	require.NoError(t, err)
	assert.NotEqual(t, row["token"], row2["token"])
}

func TestColumnTypeRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	require.NoError(t, e.CreateTable(ctx, "events", &types.Schema{Columns: []types.Column{
		{Name: "id", Type: types.TypeInteger, PrimaryKey: true, AutoIncrement: true},
		{Name: "active", Type: types.TypeBoolean},
		{Name: "score", Type: types.TypeReal},
		{Name: "payload", Type: types.TypeJSON},
		{Name: "at", Type: types.TypeText},
	}}))

	at := time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC)
	inserted, err := e.Insert(ctx, "events", types.Row{
		"active":  true,
		"score":   1.5,
		"payload": map[string]any{"tags": []any{"a", "b"}, "when": at},
		"at":      at,
	})
	require.NoError(t, err)

	rows, err := e.FindAll(ctx, "events", types.Query{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	got := rows[0]

	assert.Equal(t, inserted["id"], got["id"])
	assert.Equal(t, true, got["active"])
	assert.Equal(t, 1.5, got["score"])
	assert.Equal(t, map[string]any{"tags": []any{"a", "b"}, "when": at}, got["payload"])
	assert.Equal(t, at.Format(time.RFC3339Nano), got["at"])
}

func TestDefaultsApplied(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	require.NoError(t, e.CreateTable(ctx, "tasks", &types.Schema{Columns: []types.Column{
		{Name: "id", Type: types.TypeInteger, PrimaryKey: true, AutoIncrement: true},
		{Name: "title", Type: types.TypeText, NotNull: true},
		{Name: "state", Type: types.TypeText, NotNull: true, Default: "open"},
	}}))

	row, err := e.Insert(ctx, "tasks", types.Row{"title": "write docs"})
	require.NoError(t, err)
	assert.Equal(t, "open", row["state"])

	rows, err := e.FindAll(ctx, "tasks", types.Query{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "open", rows[0]["state"])
}
