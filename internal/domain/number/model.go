package number

import (
	"time"

	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/types"
)

// PhoneNumber is a purchasable virtual number and its lifecycle state.
// Exactly one of MobileNumber and TollFreeNumber is set.
type PhoneNumber struct {
	ID             string               `db:"id" json:"id"`
	MobileNumber   string               `db:"mobile_number" json:"mobile_number,omitempty"`
	TollFreeNumber string               `db:"toll_free_number" json:"toll_free_number,omitempty"`
	Category       types.NumberCategory `db:"category" json:"category"`
	ConnectionFee  int64                `db:"connection_fee" json:"connection_fee"`
	MonthlyFee     int64                `db:"monthly_fee" json:"monthly_fee"`
	Status         types.NumberStatus   `db:"status" json:"status"`
	OwnerID        *string              `db:"owner_id" json:"owner_id,omitempty"`
	HoldExpiresAt  *time.Time           `db:"hold_expires_at" json:"hold_expires_at,omitempty"`
	AssignedAt     *time.Time           `db:"assigned_at" json:"assigned_at,omitempty"`
	Version        int64                `db:"version" json:"version"`
	CreatedAt      time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time            `db:"updated_at" json:"updated_at"`
}

func (n *PhoneNumber) TableName() string {
	return "phone_numbers"
}

// Kind reports which number column is populated
func (n *PhoneNumber) Kind() types.NumberKind {
	if n.TollFreeNumber != "" {
		return types.NumberKindTollFree
	}
	return types.NumberKindMobile
}

// Number returns the dialable number regardless of kind
func (n *PhoneNumber) Number() string {
	if n.TollFreeNumber != "" {
		return n.TollFreeNumber
	}
	return n.MobileNumber
}

// Owner returns the owner id or "" when the number is available
func (n *PhoneNumber) Owner() string {
	if n.OwnerID == nil {
		return ""
	}
	return *n.OwnerID
}

// PurchaseTotal is what confirm debits
func (n *PhoneNumber) PurchaseTotal() int64 {
	return n.ConnectionFee + n.MonthlyFee
}

// RefundAmount is what release credits back. The connection fee is not refundable.
func (n *PhoneNumber) RefundAmount() int64 {
	return n.MonthlyFee
}

// IsHoldExpired is true for a held number whose expiry is at or before now
func (n *PhoneNumber) IsHoldExpired(now time.Time) bool {
	return n.Status == types.NumberStatusHeld &&
		n.HoldExpiresAt != nil &&
		!n.HoldExpiresAt.After(now)
}

// IsLiveHoldOf is true when userID holds the number and the hold has not expired
func (n *PhoneNumber) IsLiveHoldOf(userID string, now time.Time) bool {
	return n.Status == types.NumberStatusHeld &&
		n.Owner() == userID &&
		!n.IsHoldExpired(now)
}

// IsLogicallyAvailable treats expired holds as available before the reaper frees them
func (n *PhoneNumber) IsLogicallyAvailable(now time.Time) bool {
	return n.Status == types.NumberStatusAvailable || n.IsHoldExpired(now)
}

// CheckInvariant verifies the status, owner and expiry columns agree
func (n *PhoneNumber) CheckInvariant() error {
	ok := false
	switch n.Status {
	case types.NumberStatusAvailable:
		ok = n.OwnerID == nil && n.HoldExpiresAt == nil
	case types.NumberStatusHeld:
		ok = n.OwnerID != nil && n.HoldExpiresAt != nil
	case types.NumberStatusAssigned:
		ok = n.OwnerID != nil && n.HoldExpiresAt == nil
	}
	if !ok {
		return ierr.NewError("number state is inconsistent").
			WithReportableDetails(map[string]any{
				"number_id": n.ID,
				"status":    n.Status,
			}).
			Mark(ierr.ErrSystem)
	}
	return nil
}

// Validate checks a number before it enters the inventory
func (n *PhoneNumber) Validate() error {
	if (n.MobileNumber == "") == (n.TollFreeNumber == "") {
		return ierr.NewError("exactly one of mobile_number and toll_free_number must be set").
			WithHint("Provide either a mobile number or a toll free number").
			WithReportableDetails(map[string]any{
				"mobile_number":    n.MobileNumber,
				"toll_free_number": n.TollFreeNumber,
			}).
			Mark(ierr.ErrValidation)
	}
	if n.ConnectionFee < 0 || n.MonthlyFee < 0 {
		return ierr.NewError("fees must be non-negative").
			WithHint("Connection and monthly fees cannot be negative").
			WithReportableDetails(map[string]any{
				"connection_fee": n.ConnectionFee,
				"monthly_fee":    n.MonthlyFee,
			}).
			Mark(ierr.ErrValidation)
	}
	if err := n.Category.Validate(); err != nil {
		return err
	}
	return nil
}

// Copy returns a deep copy so callers cannot mutate stored state
func (n *PhoneNumber) Copy() *PhoneNumber {
	c := *n
	if n.OwnerID != nil {
		owner := *n.OwnerID
		c.OwnerID = &owner
	}
	if n.HoldExpiresAt != nil {
		exp := *n.HoldExpiresAt
		c.HoldExpiresAt = &exp
	}
	if n.AssignedAt != nil {
		at := *n.AssignedAt
		c.AssignedAt = &at
	}
	return &c
}

// ReleaseCondition turns Release into a compare-and-set. A nil condition
// releases unconditionally.
type ReleaseCondition struct {
	// ExpectedStatus must match the current status when set
	ExpectedStatus types.NumberStatus
	// ExpectedOwner must match the current owner when set
	ExpectedOwner string
	// ExpiredAt, when set, requires a hold that expired at or before it
	ExpiredAt *time.Time
}

// Matches reports whether n satisfies the condition
func (c *ReleaseCondition) Matches(n *PhoneNumber) bool {
	if c == nil {
		return true
	}
	if c.ExpectedStatus != "" && n.Status != c.ExpectedStatus {
		return false
	}
	if c.ExpectedOwner != "" && n.Owner() != c.ExpectedOwner {
		return false
	}
	if c.ExpiredAt != nil && !n.IsHoldExpired(*c.ExpiredAt) {
		return false
	}
	return true
}

// ErrHoldLimitFor is returned when userID already has max live holds
func ErrHoldLimitFor(userID string, max int) error {
	return ierr.NewError("hold limit exceeded").
		WithHintf("You can hold at most %d numbers at a time", max).
		WithReportableDetails(map[string]any{
			"user_id":   userID,
			"max_holds": max,
		}).
		Mark(ierr.ErrHoldLimitExceeded)
}
