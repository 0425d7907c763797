package types

// TxnMode selects transaction isolation.
type TxnMode string

const (
	// ReadOnly transactions may share the table set with other readers.
	ReadOnly TxnMode = "readonly"

	// ReadWrite transactions hold their table set exclusively for their
	// whole lifetime.
	ReadWrite TxnMode = "readwrite"
)

// TxnState is the monotonic transaction state: active, then exactly one
// of committed or rolled-back.
type TxnState string

const (
	TxnActive     TxnState = "active"
	TxnCommitted  TxnState = "committed"
	TxnRolledBack TxnState = "rolled-back"
)
