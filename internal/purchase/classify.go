package purchase

import (
	"context"
	"errors"
)

// Classify maps a saga failure to the reason recorded on the FAILED order.
//
// The gateway wraps every failed invocation in one layer of CallError; the
// underlying kind survives that wrapping, so classification works the same
// whether the leaf ran in-process or behind a remote queue. Rules apply in
// priority order; anything unrecognized, including retry exhaustion, is a
// system error.
func Classify(err error) FailureReason {
	if err == nil {
		return ReasonNone
	}

	var call *CallError
	if errors.As(err, &call) {
		err = call.Err
	}

	switch KindOf(err) {
	case KindPaymentDeclined:
		return ReasonPaymentDeclined
	case KindBadPaymentInfo:
		return ReasonInvalidPaymentMethod
	case KindOutOfStock:
		return ReasonOutOfStockItems
	default:
		return ReasonSystemError
	}
}

// IsCancellation reports whether the failure is an operator-initiated abort
// rather than a business failure.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
