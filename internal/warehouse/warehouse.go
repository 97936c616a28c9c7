// Package warehouse answers stock availability questions for the purchase
// saga. Checks are read-only: the saga never reserves or consumes stock.
package warehouse

import (
	"fmt"
	"sort"
	"strings"

	"storefront/internal/purchase"
)

func outOfStockError(skus []string) error {
	sort.Strings(skus)
	return purchase.NewError(purchase.KindOutOfStock, "checkInventory",
		fmt.Sprintf("insufficient stock for: %s", strings.Join(skus, ", ")))
}
