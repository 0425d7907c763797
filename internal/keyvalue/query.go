package keyvalue

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/strata/internal/codec"
	"github.com/mesh-intelligence/strata/internal/engine"
	"github.com/mesh-intelligence/strata/pkg/types"
)

// kvRow pairs a decoded document with its logical key so updates and
// deletes can write back.
type kvRow struct {
	key string
	row types.Row
}

// loadRows retrieves the full candidate set for a declared table, in
// sorted key order so downstream tie-breaking is deterministic. Decoded
// values are coerced to the schema's column types.
func (e *Engine) loadRows(ctx context.Context, table string, schema *types.Schema) ([]kvRow, error) {
	keys, err := e.tableKeys(ctx, table)
	if err != nil {
		return nil, err
	}
	phys := make([]string, len(keys))
	for i, k := range keys {
		phys[i] = physKey(table, k)
	}
	values, err := e.adapter.GetBatch(ctx, phys)
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", e.backend, err)
	}
	rows := make([]kvRow, 0, len(keys))
	for i, k := range keys {
		raw, ok := values[phys[i]]
		if !ok {
			continue
		}
		value, err := codec.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("backend %s: decoding %q: %w", e.backend, phys[i], err)
		}
		doc, ok := value.(map[string]any)
		if !ok {
			// Raw key/value record in a declared table; not a row.
			continue
		}
		row := types.Row(doc)
		coerceRow(schema, row)
		rows = append(rows, kvRow{key: k, row: row})
	}
	return rows, nil
}

// coerceRow aligns decoded values with the declared column types. The
// codec narrows integral JSON numbers to int64, so a REAL column read
// back from a document needs widening to float64 to stay type-equal
// with rows produced by the relational strategy.
func coerceRow(schema *types.Schema, row types.Row) {
	for _, col := range schema.Columns {
		if col.Type != types.TypeReal {
			continue
		}
		switch n := row[col.Name].(type) {
		case int64:
			row[col.Name] = float64(n)
		case int:
			row[col.Name] = float64(n)
		}
	}
}

func (e *Engine) declaredSchema(table string) (*types.Schema, error) {
	if err := engine.ValidTableName(table); err != nil {
		return nil, err
	}
	schema, ok := e.Schema(table)
	if !ok {
		return nil, fmt.Errorf("%w: %q has no declared schema", types.ErrTableNotFound, table)
	}
	return schema, nil
}

// FindAll runs the evaluate/sort/slice pipeline over the table's
// documents: each predicate per document, stable multi-key sort, then
// offset, then limit.
func (e *Engine) FindAll(ctx context.Context, table string, q types.Query) ([]types.Row, error) {
	schema, err := e.declaredSchema(table)
	if err != nil {
		return nil, err
	}
	rows, err := e.loadRows(ctx, table, schema)
	if err != nil {
		return nil, err
	}
	matched, err := filterRows(rows, q.Where)
	if err != nil {
		return nil, err
	}
	sortRows(matched, q.OrderBy)
	matched = sliceRows(matched, q.Offset, q.Limit)

	out := make([]types.Row, len(matched))
	for i, r := range matched {
		out[i] = r.row
	}
	return out, nil
}

func (e *Engine) Count(ctx context.Context, table string, q types.Query) (int64, error) {
	schema, err := e.declaredSchema(table)
	if err != nil {
		return 0, err
	}
	rows, err := e.loadRows(ctx, table, schema)
	if err != nil {
		return 0, err
	}
	matched, err := filterRows(rows, q.Where)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// Insert validates the row, applies defaults, generates the primary key
// from the table's counter document when the schema marks it
// auto-increment and the caller omitted it, and stores the document
// under the primary key.
func (e *Engine) Insert(ctx context.Context, table string, row types.Row) (types.Row, error) {
	schema, err := e.declaredSchema(table)
	if err != nil {
		return nil, err
	}
	if err := engine.ValidateRow(schema, row, false); err != nil {
		return nil, err
	}
	stored := engine.ApplyDefaults(schema, cloneRow(row))

	pk := schema.PrimaryKey()
	var key string
	switch {
	case pk != nil && pk.AutoIncrement && stored[pk.Name] == nil:
		seq, err := e.nextSeq(ctx, table)
		if err != nil {
			return nil, err
		}
		stored[pk.Name] = seq
		key = strconv.FormatInt(seq, 10)
	case pk != nil && stored[pk.Name] != nil:
		// Caller-supplied primary key; Set would silently upsert, so
		// reject an existing key the way the relational family does.
		key = keyString(stored[pk.Name])
		exists, err := e.Exists(ctx, table, key)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, &types.ValidationError{Column: pk.Name, Reason: fmt.Sprintf("duplicate primary key %q", key)}
		}
	case pk != nil && pk.Type == types.TypeText:
		key = uuid.Must(uuid.NewV7()).String()
		stored[pk.Name] = key
	default:
		// No usable primary key value; fall back to a generated key.
		key = uuid.Must(uuid.NewV7()).String()
	}

	if err := e.checkUnique(ctx, table, schema, stored, key); err != nil {
		return nil, err
	}
	if err := e.Set(ctx, table, key, map[string]any(stored)); err != nil {
		return nil, err
	}
	return stored, nil
}

// checkUnique scans the table's documents for a value collision on any
// declared unique column. The primary key is excluded; it is enforced
// through the record key itself.
func (e *Engine) checkUnique(ctx context.Context, table string, schema *types.Schema, row types.Row, key string) error {
	var unique []types.Column
	for _, col := range schema.Columns {
		if col.Unique && !col.PrimaryKey && row[col.Name] != nil {
			unique = append(unique, col)
		}
	}
	if len(unique) == 0 {
		return nil
	}
	rows, err := e.loadRows(ctx, table, schema)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r.key == key {
			continue
		}
		for _, col := range unique {
			if equalValues(r.row[col.Name], row[col.Name]) {
				return &types.ValidationError{Column: col.Name, Reason: "duplicate value on unique column"}
			}
		}
	}
	return nil
}

// Update applies changes to every row matching q, writing the changed
// documents back. Returns the number of rows updated.
func (e *Engine) Update(ctx context.Context, table string, q types.Query, changes types.Row) (int64, error) {
	schema, err := e.declaredSchema(table)
	if err != nil {
		return 0, err
	}
	if err := engine.ValidateRow(schema, changes, true); err != nil {
		return 0, err
	}
	rows, err := e.loadRows(ctx, table, schema)
	if err != nil {
		return 0, err
	}
	matched, err := filterRows(rows, q.Where)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, r := range matched {
		for col, value := range changes {
			r.row[col] = value
		}
		if err := e.Set(ctx, table, r.key, map[string]any(r.row)); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// DeleteRows removes every row matching q. Returns the number removed.
func (e *Engine) DeleteRows(ctx context.Context, table string, q types.Query) (int64, error) {
	schema, err := e.declaredSchema(table)
	if err != nil {
		return 0, err
	}
	rows, err := e.loadRows(ctx, table, schema)
	if err != nil {
		return 0, err
	}
	matched, err := filterRows(rows, q.Where)
	if err != nil {
		return 0, err
	}
	phys := make([]string, len(matched))
	for i, r := range matched {
		phys[i] = physKey(table, r.key)
	}
	if err := e.adapter.DeleteBatch(ctx, phys); err != nil {
		return 0, fmt.Errorf("backend %s: %w", e.backend, err)
	}
	return int64(len(matched)), nil
}

// nextSeq increments the table's counter document and returns the new
// value. The counter is monotonic for the life of the store.
func (e *Engine) nextSeq(ctx context.Context, table string) (int64, error) {
	e.seqMu.Lock()
	defer e.seqMu.Unlock()

	key := seqPrefix + table
	var seq int64
	raw, ok, err := e.adapter.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("backend %s: reading counter for %q: %w", e.backend, table, err)
	}
	if ok {
		seq, err = strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("backend %s: corrupt counter for %q: %w", e.backend, table, err)
		}
	}
	seq++
	if err := e.adapter.Set(ctx, key, []byte(strconv.FormatInt(seq, 10))); err != nil {
		return 0, fmt.Errorf("backend %s: writing counter for %q: %w", e.backend, table, err)
	}
	return seq, nil
}

func cloneRow(row types.Row) types.Row {
	out := make(types.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// keyString renders a primary key value as the record's logical key.
func keyString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

// filterRows keeps the rows every predicate accepts.
func filterRows(rows []kvRow, preds []types.Predicate) ([]kvRow, error) {
	if len(preds) == 0 {
		return rows, nil
	}
	out := make([]kvRow, 0, len(rows))
	for _, r := range rows {
		ok, err := matches(r.row, preds)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func matches(row types.Row, preds []types.Predicate) (bool, error) {
	for _, p := range preds {
		if !p.Op.Valid() {
			return false, fmt.Errorf("unknown operator %q", p.Op)
		}
		value := row[p.Column]
		var ok bool
		switch p.Op {
		case types.OpEq:
			ok = equalValues(value, p.Value)
		case types.OpNe:
			ok = !equalValues(value, p.Value)
		case types.OpGt, types.OpGe, types.OpLt, types.OpLe:
			c, comparable := compareValues(value, p.Value)
			if !comparable {
				ok = false
				break
			}
			switch p.Op {
			case types.OpGt:
				ok = c > 0
			case types.OpGe:
				ok = c >= 0
			case types.OpLt:
				ok = c < 0
			case types.OpLe:
				ok = c <= 0
			}
		case types.OpLike:
			pattern, isStr := p.Value.(string)
			str, valStr := value.(string)
			ok = isStr && valStr && likeMatch(str, pattern)
		case types.OpIn, types.OpNotIn:
			list, err := operandList(p.Value)
			if err != nil {
				return false, fmt.Errorf("column %q: %w", p.Column, err)
			}
			found := false
			for _, candidate := range list {
				if equalValues(value, candidate) {
					found = true
					break
				}
			}
			ok = found == (p.Op == types.OpIn)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// operandList normalizes an IN/NOT IN operand into a slice.
func operandList(v any) ([]any, error) {
	if list, ok := v.([]any); ok {
		return list, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("IN operand must be a slice, got %T", v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// likeMatch is the documented degradation of SQL LIKE: one leading and
// one trailing % are stripped, then a substring test runs. Interior
// wildcards are matched literally.
func likeMatch(s, pattern string) bool {
	core := strings.TrimPrefix(pattern, "%")
	core = strings.TrimSuffix(core, "%")
	return strings.Contains(s, core)
}

// compareValues orders two values of the same general kind. The boolean
// reports whether the pair is comparable at all.
func compareValues(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	}
	return 0, false
}

func equalValues(a, b any) bool {
	if c, ok := compareValues(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

// sortRows applies a stable multi-key sort: ties fall through to the next
// sort key, then to original retrieval order.
func sortRows(rows []kvRow, orderBy []types.Order) {
	if len(orderBy) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range orderBy {
			c, ok := compareValues(rows[i].row[o.Column], rows[j].row[o.Column])
			if !ok || c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// sliceRows applies offset then limit, both ignored when <= 0.
func sliceRows(rows []kvRow, offset, limit int) []kvRow {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
