package purchase

import (
	"errors"
	"fmt"
)

// Kind is the closed enumeration of failure kinds attached at the throw
// site. The retry policy and the failure classifier are driven entirely by
// this data; no type-name matching is involved.
type Kind int

const (
	// KindTransient covers anything retryable: timeouts, connection
	// failures, temporarily unavailable collaborators.
	KindTransient Kind = iota
	// KindValidation marks malformed input. Terminal, never retried.
	KindValidation
	// KindBadPaymentInfo marks a payment instrument the processor rejected
	// as invalid.
	KindBadPaymentInfo
	// KindPaymentDeclined marks a charge the processor refused.
	KindPaymentDeclined
	// KindOutOfStock marks insufficient inventory for one or more lines.
	KindOutOfStock
	// KindConflict marks an attempt to recreate an already-finalized order.
	// A contract violation, surfaced as-is.
	KindConflict
	// KindNotFound marks a ledger lookup that found no record.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindValidation:
		return "validation"
	case KindBadPaymentInfo:
		return "bad_payment_info"
	case KindPaymentDeclined:
		return "payment_declined"
	case KindOutOfStock:
		return "out_of_stock"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	}
	return "unknown"
}

// Retryable reports whether a failure of this kind may be retried.
// Business-rule failures and contract violations never consume retry budget.
func (k Kind) Retryable() bool {
	return k == KindTransient
}

// Error is a failure tagged with its kind and the operation that raised it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a tagged failure from a message.
func NewError(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// WrapError tags an underlying failure with a kind and operation.
func WrapError(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the failure kind from anywhere in the error chain.
// Untagged failures are treated as transient so the gateway retries them.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return KindTransient
}

// CallError is the one layer of remote-call wrapping the gateway adds
// around a failed invocation. It preserves the original failure's kind so
// the classifier can inspect it across the process boundary.
type CallError struct {
	Capability Capability
	Op         string
	Attempts   int
	Err        error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s/%s failed after %d attempt(s): %v", e.Capability, e.Op, e.Attempts, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }
