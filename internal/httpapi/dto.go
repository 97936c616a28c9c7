package httpapi

import "storefront/internal/purchase"

// PurchaseRequest is the POST /purchase payload.
type PurchaseRequest struct {
	CustomerEmail string                  `json:"customerEmail"`
	CreditCard    purchase.CreditCardInfo `json:"creditCard"`
	Products      []purchase.Product      `json:"products"`
}

// PurchaseAccepted is the 202 response: the saga runs on after the reply.
type PurchaseAccepted struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

// OrderResponse is the GET /orders/{transactionId} payload.
type OrderResponse struct {
	TransactionID string             `json:"transactionId"`
	OrderNumber   string             `json:"orderNumber,omitempty"`
	Status        string             `json:"status"`
	FailureReason string             `json:"failureReason,omitempty"`
	CustomerEmail string             `json:"customerEmail"`
	OrderDate     string             `json:"orderDate"`
	OrderTotal    float64            `json:"orderTotal"`
	LineItems     []purchase.Product `json:"lineItems,omitempty"`
}

// ErrorResponse carries a machine-readable error code plus detail.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
