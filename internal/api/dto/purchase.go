package dto

import "github.com/numbrly/portal/internal/types"

// PurchaseResponse is returned by a successful confirm
type PurchaseResponse struct {
	Number        *NumberResponse `json:"number"`
	Charged       Money           `json:"charged"`
	Balance       Money           `json:"balance"`
	TransactionID string          `json:"transaction_id,omitempty"`
}

// ReleaseResponse is returned by a successful disconnect. A pending refund is
// still owed and will be credited by the retry queue.
type ReleaseResponse struct {
	Number        *NumberResponse    `json:"number"`
	Refund        Money              `json:"refund"`
	RefundStatus  types.RefundStatus `json:"refund_status"`
	Balance       *Money             `json:"balance,omitempty"`
	TransactionID string             `json:"transaction_id,omitempty"`
}

func NewMoney(amount int64) Money {
	return Money{Amount: amount, Display: types.FormatMinorUnits(amount)}
}
