package engine

import "github.com/mesh-intelligence/strata/pkg/types"

// ValidateRow checks row against schema before a write. Unknown columns
// are rejected. When partial is false (insert), every not-null column
// without a default must carry a non-nil value; auto-increment primary
// keys are exempt. When partial is true (update), only the columns
// present are checked.
func ValidateRow(schema *types.Schema, row types.Row, partial bool) error {
	for name := range row {
		if schema.Column(name) == nil {
			return &types.ValidationError{Column: name, Reason: "unknown column"}
		}
	}
	for _, col := range schema.Columns {
		value, present := row[col.Name]
		if present && value == nil && col.NotNull {
			return &types.ValidationError{Column: col.Name, Reason: "null value for not-null column"}
		}
		if partial || present {
			continue
		}
		if !col.NotNull || col.Default != nil || col.AutoIncrement {
			continue
		}
		return &types.ValidationError{Column: col.Name, Reason: "missing value for not-null column"}
	}
	return nil
}

// ApplyDefaults fills in declared default values for columns absent from
// row, returning the same row for convenience.
func ApplyDefaults(schema *types.Schema, row types.Row) types.Row {
	for _, col := range schema.Columns {
		if _, present := row[col.Name]; !present && col.Default != nil {
			row[col.Name] = col.Default
		}
	}
	return row
}
