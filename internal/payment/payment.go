// Package payment simulates the credit card processor consumed by the
// purchase saga: debits are recorded per transaction id so a reversal can
// undo all of them at once.
package payment

import (
	"fmt"
	"strings"

	"storefront/internal/purchase"
)

// DefaultDeclineLimit is the charge amount above which a debit is declined
// when no limit is configured.
const DefaultDeclineLimit = 20.0

// checkDebit applies the processor's business rules. Both rejections are
// definitive: the card was never charged.
func checkDebit(req purchase.DebitRequest, declineLimit float64) error {
	if strings.EqualFold(req.CustomerEmail, "bad_customer@example.com") {
		return purchase.NewError(purchase.KindBadPaymentInfo, "debitCreditCard",
			"customer email does not match the card owner")
	}
	if declineLimit > 0 && req.Amount > declineLimit {
		return purchase.NewError(purchase.KindPaymentDeclined, "debitCreditCard",
			fmt.Sprintf("amount %.2f exceeds the credit limit", req.Amount))
	}
	return nil
}
