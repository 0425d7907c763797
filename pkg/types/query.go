package types

// Op is a predicate operator. Operators carry their SQL spelling.
type Op string

const (
	OpEq    Op = "="
	OpNe    Op = "!="
	OpGt    Op = ">"
	OpGe    Op = ">="
	OpLt    Op = "<"
	OpLe    Op = "<="
	OpLike  Op = "LIKE"
	OpIn    Op = "IN"
	OpNotIn Op = "NOT IN"
)

// Valid reports whether o is a known operator.
func (o Op) Valid() bool {
	switch o {
	case OpEq, OpNe, OpGt, OpGe, OpLt, OpLe, OpLike, OpIn, OpNotIn:
		return true
	}
	return false
}

// Predicate is one filter condition. For OpIn and OpNotIn, Value must be
// a slice; for every other operator it is a single operand. Predicates in
// a query are implicitly conjunctive.
type Predicate struct {
	Column string `json:"column"`
	Op     Op     `json:"operator"`
	Value  any    `json:"value"`
}

// Order is one sort key.
type Order struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc,omitempty"`
}

// Query is the backend-agnostic filter/sort/paginate descriptor. Both
// execution strategies consume the same descriptor. Limit and Offset
// values <= 0 mean "absent".
type Query struct {
	Where   []Predicate `json:"where,omitempty"`
	OrderBy []Order     `json:"order_by,omitempty"`
	Limit   int         `json:"limit,omitempty"`
	Offset  int         `json:"offset,omitempty"`
}

// Row is a single query result or insert payload: column name to value.
type Row map[string]any
