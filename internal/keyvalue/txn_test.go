package keyvalue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/strata/pkg/types"
)

func TestTxnCommit(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	tx, err := e.Begin(ctx, []string{"users"}, types.ReadWrite)
	require.NoError(t, err)
	require.NoError(t, tx.Set(ctx, "users", "1", "alice"))
	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, types.TxnCommitted, tx.State())

	got, ok, err := e.Get(ctx, "users", "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", got)
}

func TestTxnRollbackRestoresPriorState(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	require.NoError(t, e.Set(ctx, "users", "1", "alice"))

	tx, err := e.Begin(ctx, []string{"users"}, types.ReadWrite)
	require.NoError(t, err)
	require.NoError(t, tx.Set(ctx, "users", "1", "mallory"))
	require.NoError(t, tx.Set(ctx, "users", "2", "new"))
	require.NoError(t, tx.Delete(ctx, "users", "1"))
	require.NoError(t, tx.Rollback(ctx))
	assert.Equal(t, types.TxnRolledBack, tx.State())

	got, ok, err := e.Get(ctx, "users", "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", got, "overwritten value restored")

	ok, err = e.Exists(ctx, "users", "2")
	require.NoError(t, err)
	assert.False(t, ok, "inserted key removed")
}

func TestTxnTerminalStateFailsDeterministically(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	tx, err := e.Begin(ctx, []string{"users"}, types.ReadWrite)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	var inactive *types.TransactionInactiveError
	err = tx.Set(ctx, "users", "1", "x")
	require.ErrorAs(t, err, &inactive)
	assert.Equal(t, types.TxnCommitted, inactive.State)

	_, _, err = tx.Get(ctx, "users", "1")
	assert.ErrorAs(t, err, &inactive)
	assert.ErrorAs(t, tx.Commit(ctx), &inactive)
	assert.ErrorAs(t, tx.Rollback(ctx), &inactive)
}

func TestTxnReadOnlyRejectsWrites(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	tx, err := e.Begin(ctx, []string{"users"}, types.ReadOnly)
	require.NoError(t, err)
	defer tx.Commit(ctx)

	assert.ErrorIs(t, tx.Set(ctx, "users", "1", "x"), types.ErrReadOnly)
	assert.ErrorIs(t, tx.Delete(ctx, "users", "1"), types.ErrReadOnly)
}

func TestTxnTableSetScoping(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	tx, err := e.Begin(ctx, []string{"users"}, types.ReadWrite)
	require.NoError(t, err)
	defer tx.Commit(ctx)

	err = tx.Set(ctx, "posts", "1", "x")
	assert.ErrorContains(t, err, "table set")
}

// Two read-write transactions on overlapping tables must not interleave:
// the second starts only after the first reaches a terminal state.
func TestTxnWriterExclusion(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	first, err := e.Begin(ctx, []string{"users", "posts"}, types.ReadWrite)
	require.NoError(t, err)

	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		second, err := e.Begin(ctx, []string{"posts"}, types.ReadWrite)
		close(started)
		if err != nil {
			t.Error(err)
			return
		}
		// The first transaction must already be terminal.
		if got := first.State(); got == types.TxnActive {
			t.Errorf("second transaction started while first still %s", got)
		}
		second.Commit(ctx)
	}()

	// Give the second transaction a chance to (incorrectly) start.
	select {
	case <-started:
		t.Fatal("second transaction acquired overlapping tables while first active")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, first.Commit(ctx))
	wg.Wait()
}

func TestTxnReadersShare(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	r1, err := e.Begin(ctx, []string{"users"}, types.ReadOnly)
	require.NoError(t, err)
	r2, err := e.Begin(ctx, []string{"users"}, types.ReadOnly)
	require.NoError(t, err)

	require.NoError(t, r1.Commit(ctx))
	require.NoError(t, r2.Commit(ctx))
}

func TestTxnDisjointTablesProceed(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	a, err := e.Begin(ctx, []string{"users"}, types.ReadWrite)
	require.NoError(t, err)
	// Non-overlapping table set; must not block.
	b, err := e.Begin(ctx, []string{"posts"}, types.ReadWrite)
	require.NoError(t, err)

	require.NoError(t, a.Commit(ctx))
	require.NoError(t, b.Commit(ctx))
}
