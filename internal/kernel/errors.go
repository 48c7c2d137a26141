package kernel

import "fmt"

// ConfigurationError aborts a run before the event loop starts: missing
// securities or tick data, an unknown broker, or a malformed tick row.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// ValidationError is a non-fatal, submission-time rejection: selling more
// than is held, or a non-positive share count. The order is never enqueued;
// the run continues.
type ValidationError struct {
	OrderID string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("order %s rejected: %s", e.OrderID, e.Reason)
}

// InsufficientCashWarning is a non-fatal, fill-time rejection: a buy whose
// total debit (price*shares + commission) exceeds cash on hand. The order
// is marked UNFILLED and discarded.
type InsufficientCashWarning struct {
	OrderID string
	Debit   string
	Cash    string
}

func (e *InsufficientCashWarning) Error() string {
	return fmt.Sprintf("order %s: insufficient cash (debit %s > cash %s)", e.OrderID, e.Debit, e.Cash)
}

// NotFillableNotice is a non-fatal, fill-time rejection: a FOK order that
// cannot fill in a single attempt.
type NotFillableNotice struct {
	OrderID string
}

func (e *NotFillableNotice) Error() string {
	return fmt.Sprintf("order %s: not fillable (FOK)", e.OrderID)
}

// InvariantViolation is panicked, never returned — it indicates a bug in
// the kernel, not a user error. Callers that need a recoverable boundary
// (an HTTP handler, a batch runner) must recover() themselves.
type InvariantViolation struct {
	Reason string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Reason)
}

func panicInvariant(format string, args ...any) {
	panic(&InvariantViolation{Reason: fmt.Sprintf(format, args...)})
}
