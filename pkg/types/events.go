package types

// Event names emitted by the database façade.
const (
	EventReady        = "ready"
	EventClose        = "close"
	EventDestroy      = "destroy"
	EventError        = "error"
	EventQuotaWarning = "storage-quota-warning"
)

// ReadyPayload accompanies EventReady.
type ReadyPayload struct {
	Backend  BackendID
	Fallback bool
}

// ErrorPayload accompanies EventError.
type ErrorPayload struct {
	Op  string
	Err error
}

// QuotaWarningPayload accompanies EventQuotaWarning.
type QuotaWarningPayload struct {
	Backend BackendID
	Info    StorageInfo
}
