package types

import (
	"time"

	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/samber/lo"
)

// NumberStatus is the lifecycle state of a phone number
type NumberStatus string

const (
	NumberStatusAvailable NumberStatus = "available"
	NumberStatusHeld      NumberStatus = "held"
	NumberStatusAssigned  NumberStatus = "assigned"
)

func (s NumberStatus) String() string {
	return string(s)
}

func (s NumberStatus) Validate() error {
	if s == "" {
		return nil
	}

	allowed := []NumberStatus{
		NumberStatusAvailable,
		NumberStatusHeld,
		NumberStatusAssigned,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid number status").
			WithHint("Status must be one of available, held or assigned").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
				"status":  s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// NumberKind tells which of the two number columns carries the value
type NumberKind string

const (
	NumberKindMobile   NumberKind = "mobile"
	NumberKindTollFree NumberKind = "toll_free"
)

func (k NumberKind) Validate() error {
	if k == "" {
		return nil
	}

	allowed := []NumberKind{NumberKindMobile, NumberKindTollFree}
	if !lo.Contains(allowed, k) {
		return ierr.NewError("invalid number kind").
			WithHint("Kind must be mobile or toll_free").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
				"kind":    k,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// NumberCategory is an informational pricing tier
type NumberCategory string

const (
	NumberCategorySimple   NumberCategory = "simple"
	NumberCategoryGold     NumberCategory = "gold"
	NumberCategoryPlatinum NumberCategory = "platinum"
	NumberCategoryVIP      NumberCategory = "vip"
	NumberCategoryUnset    NumberCategory = "unset"
)

func (c NumberCategory) Validate() error {
	if c == "" {
		return nil
	}

	allowed := []NumberCategory{
		NumberCategorySimple,
		NumberCategoryGold,
		NumberCategoryPlatinum,
		NumberCategoryVIP,
		NumberCategoryUnset,
	}
	if !lo.Contains(allowed, c) {
		return ierr.NewError("invalid number category").
			WithHint("Unknown number category").
			WithReportableDetails(map[string]any{
				"allowed":  allowed,
				"category": c,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// NumberFilter narrows inventory listings
type NumberFilter struct {
	*QueryFilter
	Kind     NumberKind     `json:"kind,omitempty" form:"kind"`
	Category NumberCategory `json:"category,omitempty" form:"category"`
	Status   NumberStatus   `json:"status,omitempty" form:"status"`
	OwnerID  string         `json:"owner_id,omitempty" form:"-"`

	// Now is the reference time for lazy hold expiry. Zero means time.Now().
	Now time.Time `json:"-" form:"-"`
}

func NewNumberFilter() *NumberFilter {
	return &NumberFilter{QueryFilter: NewDefaultQueryFilter()}
}

func (f *NumberFilter) Validate() error {
	if f.QueryFilter == nil {
		f.QueryFilter = NewDefaultQueryFilter()
	}
	if err := f.QueryFilter.Validate(); err != nil {
		return err
	}
	if err := f.Kind.Validate(); err != nil {
		return err
	}
	if err := f.Category.Validate(); err != nil {
		return err
	}
	return f.Status.Validate()
}
