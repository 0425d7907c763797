package strata

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// FindAll returns the rows of table matching q.
func (db *DB) FindAll(ctx context.Context, table string, q types.Query) ([]types.Row, error) {
	eng, err := db.guard("find_all")
	if err != nil {
		return nil, err
	}
	return eng.FindAll(ctx, table, q)
}

// FindOne returns the first row matching q, or types.ErrNotFound.
func (db *DB) FindOne(ctx context.Context, table string, q types.Query) (types.Row, error) {
	eng, err := db.guard("find_one")
	if err != nil {
		return nil, err
	}
	q.Limit = 1
	rows, err := eng.FindAll(ctx, table, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, types.ErrNotFound
	}
	return rows[0], nil
}

// FindByID returns the row whose primary key equals id, or
// types.ErrNotFound.
func (db *DB) FindByID(ctx context.Context, table string, id any) (types.Row, error) {
	eng, err := db.guard("find_by_id")
	if err != nil {
		return nil, err
	}
	q, err := byID(eng.Schema(table))(id)
	if err != nil {
		return nil, err
	}
	rows, err := eng.FindAll(ctx, table, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, types.ErrNotFound
	}
	return rows[0], nil
}

// Count returns the number of rows matching q.
func (db *DB) Count(ctx context.Context, table string, q types.Query) (int64, error) {
	eng, err := db.guard("count")
	if err != nil {
		return 0, err
	}
	return eng.Count(ctx, table, q)
}

// Insert validates row against the table's schema and stores it. The
// returned row includes any generated primary key and applied defaults.
func (db *DB) Insert(ctx context.Context, table string, row types.Row) (types.Row, error) {
	eng, err := db.guard("insert")
	if err != nil {
		return nil, err
	}
	inserted, err := eng.Insert(ctx, table, row)
	if err != nil {
		return nil, db.noteErr("insert", err)
	}
	return inserted, nil
}

// InsertMany inserts rows in order, stopping at the first failure. The
// returned slice holds the rows inserted so far in either case.
func (db *DB) InsertMany(ctx context.Context, table string, rows []types.Row) ([]types.Row, error) {
	eng, err := db.guard("insert_many")
	if err != nil {
		return nil, err
	}
	inserted := make([]types.Row, 0, len(rows))
	for i, row := range rows {
		got, err := eng.Insert(ctx, table, row)
		if err != nil {
			return inserted, db.noteErr("insert_many", fmt.Errorf("row %d: %w", i, err))
		}
		inserted = append(inserted, got)
	}
	return inserted, nil
}

// Update applies changes to every row matching q and returns how many
// rows were affected.
func (db *DB) Update(ctx context.Context, table string, q types.Query, changes types.Row) (int64, error) {
	eng, err := db.guard("update")
	if err != nil {
		return 0, err
	}
	n, err := eng.Update(ctx, table, q, changes)
	if err != nil {
		return 0, db.noteErr("update", err)
	}
	return n, nil
}

// UpdateByID applies changes to the row whose primary key equals id. It
// returns types.ErrNotFound when no such row exists.
func (db *DB) UpdateByID(ctx context.Context, table string, id any, changes types.Row) error {
	eng, err := db.guard("update_by_id")
	if err != nil {
		return err
	}
	q, err := byID(eng.Schema(table))(id)
	if err != nil {
		return err
	}
	n, err := eng.Update(ctx, table, q, changes)
	if err != nil {
		return db.noteErr("update_by_id", err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// DeleteRows removes every row matching q and returns how many rows were
// removed.
func (db *DB) DeleteRows(ctx context.Context, table string, q types.Query) (int64, error) {
	eng, err := db.guard("delete_rows")
	if err != nil {
		return 0, err
	}
	return eng.DeleteRows(ctx, table, q)
}

// DeleteByID removes the row whose primary key equals id. It returns
// types.ErrNotFound when no such row exists.
func (db *DB) DeleteByID(ctx context.Context, table string, id any) error {
	eng, err := db.guard("delete_by_id")
	if err != nil {
		return err
	}
	q, err := byID(eng.Schema(table))(id)
	if err != nil {
		return err
	}
	n, err := eng.DeleteRows(ctx, table, q)
	if err != nil {
		return err
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// byID builds an equality query on the table's primary key.
func byID(schema *types.Schema, ok bool) func(id any) (types.Query, error) {
	return func(id any) (types.Query, error) {
		if !ok {
			return types.Query{}, types.ErrTableNotFound
		}
		pk := schema.PrimaryKey()
		if pk == nil {
			return types.Query{}, &types.ValidationError{Column: "", Reason: "table has no primary key"}
		}
		return types.Query{
			Where: []types.Predicate{{Column: pk.Name, Op: types.OpEq, Value: id}},
		}, nil
	}
}
