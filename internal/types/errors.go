package types

import "fmt"

// ErrorKind is the closed taxonomy every external call (LLM or search) is
// classified into. It drives fallback policy in the router and the search
// adapter alike.
type ErrorKind string

const (
	ErrNetwork        ErrorKind = "network"
	ErrTimeout        ErrorKind = "timeout"
	ErrAuth           ErrorKind = "auth"
	ErrRateLimit      ErrorKind = "rate_limit"
	ErrInvalidRequest ErrorKind = "invalid_request"
	ErrModelNotFound  ErrorKind = "model_not_found"
	ErrServer         ErrorKind = "server"
	ErrParse          ErrorKind = "parse"
	ErrUnknown        ErrorKind = "unknown"
)

// CallError wraps a classified failure from a provider or search backend.
type CallError struct {
	Kind       ErrorKind
	Message    string
	RetryAfter float64 // seconds, 0 if not supplied by the backend
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewCallError(kind ErrorKind, format string, args ...interface{}) *CallError {
	return &CallError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsTerminal reports whether the fallback state machine must stop advancing
// through the candidate list after this error (only Auth, per spec).
func (k ErrorKind) IsTerminal() bool {
	return k == ErrAuth
}

// Recoverable reports whether a search backend failure should trigger the
// deterministic mock fallback (anything but Auth).
func (k ErrorKind) Recoverable() bool {
	return k != ErrAuth
}
