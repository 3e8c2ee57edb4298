package dto

import (
	"time"

	"github.com/numbrly/portal/internal/validator"
)

// ReserveRequest places a hold. A missing ttl uses the configured default.
type ReserveRequest struct {
	TTLSeconds *int `json:"ttl_seconds,omitempty" validate:"omitempty,min=1"`
}

func (r *ReserveRequest) Validate() error {
	return validator.ValidateRequest(r)
}

func (r *ReserveRequest) TTL() time.Duration {
	if r == nil || r.TTLSeconds == nil {
		return 0
	}
	return time.Duration(*r.TTLSeconds) * time.Second
}

type HoldResponse struct {
	Number    *NumberResponse `json:"number"`
	ExpiresAt time.Time       `json:"expires_at"`
}
