package strata

import (
	"context"

	"github.com/mesh-intelligence/strata/internal/engine"
)

// BatchKind discriminates batch entries.
type BatchKind string

const (
	BatchSet    BatchKind = "set"
	BatchDelete BatchKind = "delete"
	BatchClear  BatchKind = "clear"
)

// BatchOp is one entry of a Batch call. Value is used only by BatchSet;
// Key is unused by BatchClear.
type BatchOp struct {
	Kind  BatchKind
	Table string
	Key   string
	Value any
}

// Batch applies the operations in order. On a relational backend the
// batch is atomic; on a key/value backend it is best-effort, and the
// returned error aggregates every failed entry.
func (db *DB) Batch(ctx context.Context, ops []BatchOp) error {
	eng, err := db.guard("batch")
	if err != nil {
		return err
	}
	converted := make([]engine.BatchOp, len(ops))
	for i, op := range ops {
		converted[i] = engine.BatchOp{
			Kind:  engine.BatchKind(op.Kind),
			Table: op.Table,
			Key:   op.Key,
			Value: op.Value,
		}
	}
	return db.noteErr("batch", eng.Batch(ctx, converted))
}
