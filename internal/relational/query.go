package relational

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/strata/internal/codec"
	"github.com/mesh-intelligence/strata/internal/engine"
	"github.com/mesh-intelligence/strata/pkg/types"
)

// The relational query strategy compiles the backend-agnostic descriptor
// into one parameterized statement. Predicates join with AND, IN/NOT IN
// operands expand to one placeholder per element, LIKE operands pass
// through verbatim, and limit/offset become trailing clauses only when
// present.

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

func (e *Engine) FindAll(ctx context.Context, table string, q types.Query) ([]types.Row, error) {
	schema, err := e.declaredSchema(table)
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(schema.Columns))
	for i, col := range schema.Columns {
		cols[i] = fmt.Sprintf("%q", col.Name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %q", strings.Join(cols, ", "), table)
	args, err := appendWhere(&b, schema, q.Where)
	if err != nil {
		return nil, err
	}
	if err := appendOrderBy(&b, schema, q.OrderBy); err != nil {
		return nil, err
	}
	appendLimit(&b, q.Limit, q.Offset)

	rows, err := e.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("backend %s: querying %q: %w", e.backend, table, err)
	}
	defer rows.Close()

	out := []types.Row{}
	for rows.Next() {
		row, err := scanRow(rows, schema)
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", e.backend, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (e *Engine) Count(ctx context.Context, table string, q types.Query) (int64, error) {
	schema, err := e.declaredSchema(table)
	if err != nil {
		return 0, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT COUNT(*) FROM %q", table)
	args, err := appendWhere(&b, schema, q.Where)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := e.db.QueryRowContext(ctx, b.String(), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("backend %s: counting %q: %w", e.backend, table, err)
	}
	return n, nil
}

// Insert validates the row, applies defaults, and compiles one INSERT.
// When the schema's primary key is auto-increment and the caller omitted
// it, the generated key is read back from last_insert_rowid.
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
	if pk != nil && !pk.AutoIncrement && stored[pk.Name] == nil && pk.Type == types.TypeText {
		// Text primary keys get generated identifiers, matching the
		// key/value strategy's behavior for keyless inserts.
		stored[pk.Name] = uuid.Must(uuid.NewV7()).String()
	}

	var cols, holders []string
	var args []any
	for _, col := range schema.Columns {
		value, present := stored[col.Name]
		if !present || value == nil {
			continue
		}
		arg, err := bindValue(col, value)
		if err != nil {
			return nil, err
		}
		cols = append(cols, fmt.Sprintf("%q", col.Name))
		holders = append(holders, "?")
		args = append(args, arg)
	}
	stmt := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(holders, ", "))
	res, err := e.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("backend %s: inserting into %q: %w", e.backend, table, err)
	}
	if pk != nil && pk.AutoIncrement && stored[pk.Name] == nil {
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("backend %s: resolving generated key: %w", e.backend, err)
		}
		stored[pk.Name] = id
	}
	return stored, nil
}

func (e *Engine) Update(ctx context.Context, table string, q types.Query, changes types.Row) (int64, error) {
	schema, err := e.declaredSchema(table)
	if err != nil {
		return 0, err
	}
	if err := engine.ValidateRow(schema, changes, true); err != nil {
		return 0, err
	}
	if len(changes) == 0 {
		return 0, nil
	}
	var sets []string
	var args []any
	for _, col := range schema.Columns {
		value, present := changes[col.Name]
		if !present {
			continue
		}
		arg, err := bindValue(col, value)
		if err != nil {
			return 0, err
		}
		sets = append(sets, fmt.Sprintf("%q = ?", col.Name))
		args = append(args, arg)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "UPDATE %q SET %s", table, strings.Join(sets, ", "))
	whereArgs, err := appendWhere(&b, schema, q.Where)
	if err != nil {
		return 0, err
	}
	args = append(args, whereArgs...)
	res, err := e.db.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("backend %s: updating %q: %w", e.backend, table, err)
	}
	return res.RowsAffected()
}

func (e *Engine) DeleteRows(ctx context.Context, table string, q types.Query) (int64, error) {
	schema, err := e.declaredSchema(table)
	if err != nil {
		return 0, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "DELETE FROM %q", table)
	args, err := appendWhere(&b, schema, q.Where)
	if err != nil {
		return 0, err
	}
	res, err := e.db.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("backend %s: deleting from %q: %w", e.backend, table, err)
	}
	return res.RowsAffected()
}

// appendWhere compiles the predicate list onto b, returning the bind
// arguments. Predicates are implicitly conjunctive.
func appendWhere(b *strings.Builder, schema *types.Schema, preds []types.Predicate) ([]any, error) {
	if len(preds) == 0 {
		return nil, nil
	}
	var args []any
	b.WriteString(" WHERE ")
	for i, p := range preds {
		if i > 0 {
			b.WriteString(" AND ")
		}
		col := schema.Column(p.Column)
		if col == nil {
			return nil, &types.ValidationError{Column: p.Column, Reason: "unknown column"}
		}
		if !p.Op.Valid() {
			return nil, fmt.Errorf("unknown operator %q", p.Op)
		}
		switch p.Op {
		case types.OpIn, types.OpNotIn:
			list, err := operandSlice(p.Value)
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", p.Column, err)
			}
			holders := make([]string, len(list))
			for j, elem := range list {
				arg, err := bindValue(*col, elem)
				if err != nil {
					return nil, err
				}
				holders[j] = "?"
				args = append(args, arg)
			}
			fmt.Fprintf(b, "%q %s (%s)", p.Column, p.Op, strings.Join(holders, ", "))
		default:
			arg, err := bindValue(*col, p.Value)
			if err != nil {
				return nil, err
			}
			fmt.Fprintf(b, "%q %s ?", p.Column, p.Op)
			args = append(args, arg)
		}
	}
	return args, nil
}

func appendOrderBy(b *strings.Builder, schema *types.Schema, orderBy []types.Order) error {
	if len(orderBy) == 0 {
		return nil
	}
	parts := make([]string, len(orderBy))
	for i, o := range orderBy {
		if schema.Column(o.Column) == nil {
			return &types.ValidationError{Column: o.Column, Reason: "unknown column"}
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts[i] = fmt.Sprintf("%q %s", o.Column, dir)
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(parts, ", "))
	return nil
}

// appendLimit renders LIMIT/OFFSET only when present. SQLite needs a
// LIMIT clause to carry an OFFSET; -1 means unbounded.
func appendLimit(b *strings.Builder, limit, offset int) {
	switch {
	case limit > 0 && offset > 0:
		fmt.Fprintf(b, " LIMIT %d OFFSET %d", limit, offset)
	case limit > 0:
		fmt.Fprintf(b, " LIMIT %d", limit)
	case offset > 0:
		fmt.Fprintf(b, " LIMIT -1 OFFSET %d", offset)
	}
}

// bindValue converts a descriptor value into its bind representation for
// the column type: dates to RFC 3339 text, booleans to 0/1, and JSON
// column values to the structural encoding.
func bindValue(col types.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch col.Type {
	case types.TypeJSON:
		raw, err := codec.Encode(v)
		if err != nil {
			return nil, &types.ValidationError{Column: col.Name, Reason: err.Error()}
		}
		return string(raw), nil
	case types.TypeBoolean:
		val, ok := v.(bool)
		if !ok {
			return nil, &types.ValidationError{Column: col.Name, Reason: fmt.Sprintf("expected bool, got %T", v)}
		}
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		if t, ok := v.(time.Time); ok {
			return t.UTC().Format(time.RFC3339Nano), nil
		}
		return v, nil
	}
}

// scanRow reads one result row into the schema's column set with
// type-faithful Go values.
func scanRow(rows *sql.Rows, schema *types.Schema) (types.Row, error) {
	targets := make([]any, len(schema.Columns))
	for i := range targets {
		targets[i] = new(any)
	}
	if err := rows.Scan(targets...); err != nil {
		return nil, fmt.Errorf("scanning row: %w", err)
	}
	out := make(types.Row, len(schema.Columns))
	for i, col := range schema.Columns {
		raw := *(targets[i].(*any))
		value, err := decodeColumn(col, raw)
		if err != nil {
			return nil, err
		}
		out[col.Name] = value
	}
	return out, nil
}

func decodeColumn(col types.Column, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch col.Type {
	case types.TypeJSON:
		var text string
		switch v := raw.(type) {
		case string:
			text = v
		case []byte:
			text = string(v)
		default:
			return nil, fmt.Errorf("column %q: unexpected JSON storage type %T", col.Name, raw)
		}
		return codec.Decode([]byte(text))
	case types.TypeBoolean:
		n, ok := raw.(int64)
		if !ok {
			return nil, fmt.Errorf("column %q: unexpected boolean storage type %T", col.Name, raw)
		}
		return n != 0, nil
	case types.TypeText:
		if b, ok := raw.([]byte); ok {
			return string(b), nil
		}
		return raw, nil
	default:
		return raw, nil
	}
}

func cloneRow(row types.Row) types.Row {
	out := make(types.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func operandSlice(v any) ([]any, error) {
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
