package dto

import (
	"time"

	"github.com/numbrly/portal/internal/domain/number"
	"github.com/numbrly/portal/internal/types"
	"github.com/numbrly/portal/internal/validator"
)

// NumberResponse is the public view of a number. It never exposes who owns it.
type NumberResponse struct {
	ID             string               `json:"id"`
	Number         string               `json:"number"`
	Kind           types.NumberKind     `json:"kind"`
	MobileNumber   string               `json:"mobile_number,omitempty"`
	TollFreeNumber string               `json:"toll_free_number,omitempty"`
	Category       types.NumberCategory `json:"category"`
	ConnectionFee  int64                `json:"connection_fee"`
	MonthlyFee     int64                `json:"monthly_fee"`
	Status         types.NumberStatus   `json:"status"`
	HoldExpiresAt  *time.Time           `json:"hold_expires_at,omitempty"`
	AssignedAt     *time.Time           `json:"assigned_at,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

func FromNumber(n *number.PhoneNumber) *NumberResponse {
	return &NumberResponse{
		ID:             n.ID,
		Number:         n.Number(),
		Kind:           n.Kind(),
		MobileNumber:   n.MobileNumber,
		TollFreeNumber: n.TollFreeNumber,
		Category:       n.Category,
		ConnectionFee:  n.ConnectionFee,
		MonthlyFee:     n.MonthlyFee,
		Status:         n.Status,
		HoldExpiresAt:  n.HoldExpiresAt,
		AssignedAt:     n.AssignedAt,
		CreatedAt:      n.CreatedAt,
		UpdatedAt:      n.UpdatedAt,
	}
}

// FromNumberAt renders an expired hold as available, which is what every
// operation already treats it as
func FromNumberAt(n *number.PhoneNumber, now time.Time) *NumberResponse {
	resp := FromNumber(n)
	if n.IsHoldExpired(now) {
		resp.Status = types.NumberStatusAvailable
		resp.HoldExpiresAt = nil
	}
	return resp
}

// AdminNumberResponse adds ownership and bookkeeping for operators
type AdminNumberResponse struct {
	*NumberResponse
	OwnerID *string `json:"owner_id,omitempty"`
	Version int64   `json:"version"`
}

func FromNumberAdmin(n *number.PhoneNumber) *AdminNumberResponse {
	return &AdminNumberResponse{
		NumberResponse: FromNumber(n),
		OwnerID:        n.OwnerID,
		Version:        n.Version,
	}
}

type ListNumbersResponse = types.ListResponse[*NumberResponse]

type ListAdminNumbersResponse = types.ListResponse[*AdminNumberResponse]

// CreateNumberRequest adds one number to the inventory
type CreateNumberRequest struct {
	MobileNumber   string               `json:"mobile_number,omitempty" validate:"omitempty,max=32"`
	TollFreeNumber string               `json:"toll_free_number,omitempty" validate:"omitempty,max=32"`
	Category       types.NumberCategory `json:"category,omitempty"`
	ConnectionFee  int64                `json:"connection_fee" validate:"min=0"`
	MonthlyFee     int64                `json:"monthly_fee" validate:"min=0"`
}

func (r *CreateNumberRequest) ToNumber(now time.Time) *number.PhoneNumber {
	category := r.Category
	if category == "" {
		category = types.NumberCategoryUnset
	}
	return &number.PhoneNumber{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_NUMBER),
		MobileNumber:   r.MobileNumber,
		TollFreeNumber: r.TollFreeNumber,
		Category:       category,
		ConnectionFee:  r.ConnectionFee,
		MonthlyFee:     r.MonthlyFee,
		Status:         types.NumberStatusAvailable,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// CreateNumbersRequest adds a batch of numbers in one transaction
type CreateNumbersRequest struct {
	Numbers []*CreateNumberRequest `json:"numbers" validate:"required,min=1,max=1000,dive,required"`
}

func (r *CreateNumbersRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// MyNumbersResponse lists what the caller currently holds and owns
type MyNumbersResponse struct {
	Holds       []*NumberResponse `json:"holds"`
	Assignments []*NumberResponse `json:"assignments"`
}
