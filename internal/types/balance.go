package types

import (
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a ledger movement
type TransactionType string

const (
	TransactionTypeDebit  TransactionType = "debit"
	TransactionTypeCredit TransactionType = "credit"
)

// TransactionReason records why money moved
type TransactionReason string

const (
	TransactionReasonTopUp            TransactionReason = "top_up"
	TransactionReasonNumberPurchase   TransactionReason = "number_purchase"
	TransactionReasonPurchaseRollback TransactionReason = "purchase_rollback"
	TransactionReasonNumberRefund     TransactionReason = "number_refund"
)

func (r TransactionReason) Validate() error {
	allowed := []TransactionReason{
		TransactionReasonTopUp,
		TransactionReasonNumberPurchase,
		TransactionReasonPurchaseRollback,
		TransactionReasonNumberRefund,
	}
	if !lo.Contains(allowed, r) {
		return ierr.NewError("invalid transaction reason").
			WithHint("Invalid transaction reason").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
				"reason":  r,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// RefundStatus reports whether a release refund reached the ledger
type RefundStatus string

const (
	RefundStatusCompleted RefundStatus = "completed"
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusNone      RefundStatus = "none"
)

// Minor units per major currency unit. The portal bills in a single currency.
const MinorUnitsPerMajor = 100

// FormatMinorUnits renders minor units as a major-unit amount, e.g. 1250 -> "12.50"
func FormatMinorUnits(amount int64) string {
	return decimal.New(amount, 0).Div(decimal.NewFromInt(MinorUnitsPerMajor)).StringFixed(2)
}

// TransactionFilter narrows ledger journal listings
type TransactionFilter struct {
	*QueryFilter
	Type   TransactionType   `json:"type,omitempty" form:"type" validate:"omitempty,oneof=debit credit"`
	Reason TransactionReason `json:"reason,omitempty" form:"reason"`
}

func NewTransactionFilter() *TransactionFilter {
	return &TransactionFilter{QueryFilter: NewDefaultQueryFilter()}
}

func (f *TransactionFilter) Validate() error {
	if f.QueryFilter == nil {
		f.QueryFilter = NewDefaultQueryFilter()
	}
	if err := f.QueryFilter.Validate(); err != nil {
		return err
	}
	if f.Reason != "" {
		return f.Reason.Validate()
	}
	return nil
}
