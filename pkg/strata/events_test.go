package strata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/strata/pkg/types"
)

func TestReadyEvent(t *testing.T) {
	var ready []types.ReadyPayload
	db := openDB(t, types.Config{}, WithListener(types.EventReady, func(payload any) {
		ready = append(ready, payload.(types.ReadyPayload))
	}))

	require.Len(t, ready, 1)
	assert.Equal(t, db.Backend(), ready[0].Backend)
	assert.False(t, ready[0].Fallback)
}

func TestCloseAndDestroyEvents(t *testing.T) {
	var events []string
	record := func(name string) func(any) {
		return func(any) { events = append(events, name) }
	}

	db := openDB(t, types.Config{Backend: types.BackendMemory})
	db.On(types.EventClose, record("close"))
	require.NoError(t, db.Close())

	db2, err := Open(context.Background(), types.Config{
		Name: "app", DataDir: t.TempDir(), Backend: types.BackendMemory,
	})
	require.NoError(t, err)
	db2.On(types.EventDestroy, record("destroy"))
	require.NoError(t, db2.Destroy())

	assert.Equal(t, []string{"close", "destroy"}, events)
}

func TestOffRemovesListener(t *testing.T) {
	db := openDB(t, types.Config{Backend: types.BackendMemory})

	calls := 0
	id := db.On(types.EventClose, func(any) { calls++ })
	assert.True(t, db.Off(types.EventClose, id))
	assert.False(t, db.Off(types.EventClose, id))

	require.NoError(t, db.Close())
	assert.Zero(t, calls)
}

func TestErrorEvent(t *testing.T) {
	ctx := context.Background()
	var seen []types.ErrorPayload
	db := openDB(t, types.Config{Backend: types.BackendMemory},
		WithListener(types.EventError, func(payload any) {
			seen = append(seen, payload.(types.ErrorPayload))
		}))

	// Channels have no structural encoding; the write fails inside the
	// backend and surfaces on the event bus.
	_, err := db.Set(ctx, "notes", "k", make(chan int))
	require.Error(t, err)

	require.Len(t, seen, 1)
	assert.Equal(t, "set", seen[0].Op)
	assert.ErrorContains(t, seen[0].Err, "unsupported value type")

	// Validation failures stay off the bus.
	require.NoError(t, db.CreateTable(ctx, "users", &types.Schema{Columns: []types.Column{
		{Name: "id", Type: types.TypeInteger, PrimaryKey: true, AutoIncrement: true},
		{Name: "name", Type: types.TypeText, NotNull: true},
	}}))
	_, err = db.Insert(ctx, "users", types.Row{})
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, seen, 1)
}

func TestPanickingListenerIsContained(t *testing.T) {
	db := openDB(t, types.Config{Backend: types.BackendMemory})
	db.On(types.EventClose, func(any) { panic("listener bug") })

	called := false
	db.On(types.EventClose, func(any) { called = true })

	require.NoError(t, db.Close())
	assert.True(t, called)
}
