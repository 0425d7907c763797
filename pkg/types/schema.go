package types

// ColumnType is the closed set of primitive column type tags.
type ColumnType string

const (
	TypeText    ColumnType = "TEXT"
	TypeInteger ColumnType = "INTEGER"
	TypeReal    ColumnType = "REAL"
	TypeBlob    ColumnType = "BLOB"
	TypeJSON    ColumnType = "JSON"
	TypeBoolean ColumnType = "BOOLEAN"
)

// SQLType maps the tag onto the physical SQLite column type. JSON is
// stored as TEXT and BOOLEAN as INTEGER.
func (t ColumnType) SQLType() string {
	switch t {
	case TypeJSON:
		return "TEXT"
	case TypeBoolean:
		return "INTEGER"
	default:
		return string(t)
	}
}

// Valid reports whether t is a known column type tag.
func (t ColumnType) Valid() bool {
	switch t {
	case TypeText, TypeInteger, TypeReal, TypeBlob, TypeJSON, TypeBoolean:
		return true
	}
	return false
}

// Column describes one named column of a declared table.
type Column struct {
	Name          string     `json:"name"`
	Type          ColumnType `json:"type"`
	NotNull       bool       `json:"not_null,omitempty"`
	Unique        bool       `json:"unique,omitempty"`
	PrimaryKey    bool       `json:"primary_key,omitempty"`
	AutoIncrement bool       `json:"auto_increment,omitempty"`
	Default       any        `json:"default,omitempty"`
}

// Schema is an ordered set of columns for a declared table. The zero
// value is the undeclared (key,value) layout.
type Schema struct {
	Columns []Column `json:"columns"`
}

// Validate checks structural schema invariants: non-empty unique column
// names, known type tags, at most one primary key, and auto-increment
// only on an INTEGER primary key.
func (s *Schema) Validate() error {
	if len(s.Columns) == 0 {
		return &ValidationError{Column: "", Reason: "schema has no columns"}
	}
	seen := make(map[string]bool, len(s.Columns))
	pk := 0
	for _, col := range s.Columns {
		if col.Name == "" {
			return &ValidationError{Column: col.Name, Reason: "column name must not be empty"}
		}
		if seen[col.Name] {
			return &ValidationError{Column: col.Name, Reason: "duplicate column"}
		}
		seen[col.Name] = true
		if !col.Type.Valid() {
			return &ValidationError{Column: col.Name, Reason: "unknown type " + string(col.Type)}
		}
		if col.PrimaryKey {
			pk++
			if pk > 1 {
				return &ValidationError{Column: col.Name, Reason: "schema declares more than one primary key"}
			}
		}
		if col.AutoIncrement && (!col.PrimaryKey || col.Type != TypeInteger) {
			return &ValidationError{Column: col.Name, Reason: "auto-increment requires an INTEGER primary key"}
		}
	}
	return nil
}

// PrimaryKey returns the primary key column, or nil if none is declared.
func (s *Schema) PrimaryKey() *Column {
	for i := range s.Columns {
		if s.Columns[i].PrimaryKey {
			return &s.Columns[i]
		}
	}
	return nil
}

// Column returns the named column, or nil if the schema does not declare it.
func (s *Schema) Column(name string) *Column {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i]
		}
	}
	return nil
}
