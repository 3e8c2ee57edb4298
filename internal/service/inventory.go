package service

import (
	"context"

	"github.com/numbrly/portal/internal/api/dto"
	"github.com/numbrly/portal/internal/domain/number"
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/types"
	"github.com/samber/lo"
)

// InventoryService exposes the number catalog and each caller's numbers
type InventoryService interface {
	// ListAvailable returns numbers anyone may reserve, expired holds included
	ListAvailable(ctx context.Context, filter *types.NumberFilter) (*dto.ListNumbersResponse, error)
	GetNumber(ctx context.Context, id string) (*dto.NumberResponse, error)
	ListMyNumbers(ctx context.Context, userID string) (*dto.MyNumbersResponse, error)

	// admin
	CreateNumbers(ctx context.Context, req *dto.CreateNumbersRequest) ([]*dto.AdminNumberResponse, error)
	ListNumbers(ctx context.Context, filter *types.NumberFilter) (*dto.ListAdminNumbersResponse, error)
}

type inventoryService struct {
	ServiceParams
}

func NewInventoryService(params ServiceParams) InventoryService {
	return &inventoryService{ServiceParams: params}
}

func (s *inventoryService) ListAvailable(ctx context.Context, filter *types.NumberFilter) (*dto.ListNumbersResponse, error) {
	if filter == nil {
		filter = types.NewNumberFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	filter.Now = s.Clock.Now()

	numbers, err := s.NumberRepo.ListAvailable(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.NumberRepo.CountAvailable(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(numbers, func(n *number.PhoneNumber, _ int) *dto.NumberResponse {
		return dto.FromNumberAt(n, filter.Now)
	})
	resp := types.NewListResponse(items, total, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *inventoryService) GetNumber(ctx context.Context, id string) (*dto.NumberResponse, error) {
	if id == "" {
		return nil, ierr.NewError("number id is required").
			WithHint("Number ID is required").
			Mark(ierr.ErrValidation)
	}

	n, err := s.NumberRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.FromNumberAt(n, s.Clock.Now()), nil
}

func (s *inventoryService) ListMyNumbers(ctx context.Context, userID string) (*dto.MyNumbersResponse, error) {
	now := s.Clock.Now()
	numbers, err := s.NumberRepo.ListByOwner(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	resp := &dto.MyNumbersResponse{
		Holds:       []*dto.NumberResponse{},
		Assignments: []*dto.NumberResponse{},
	}
	for _, n := range numbers {
		switch {
		case n.Status == types.NumberStatusAssigned:
			resp.Assignments = append(resp.Assignments, dto.FromNumber(n))
		case n.IsLiveHoldOf(userID, now):
			resp.Holds = append(resp.Holds, dto.FromNumber(n))
		}
	}
	return resp, nil
}

func (s *inventoryService) CreateNumbers(ctx context.Context, req *dto.CreateNumbersRequest) ([]*dto.AdminNumberResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	numbers := make([]*number.PhoneNumber, 0, len(req.Numbers))
	for i, r := range req.Numbers {
		n := r.ToNumber(now)
		if err := n.Validate(); err != nil {
			return nil, ierr.WithError(err).
				WithReportableDetails(map[string]any{"index": i}).
				Mark(ierr.ErrValidation)
		}
		numbers = append(numbers, n)
	}

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		return s.NumberRepo.Create(ctx, numbers...)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("added numbers to inventory", "count", len(numbers))
	return lo.Map(numbers, func(n *number.PhoneNumber, _ int) *dto.AdminNumberResponse {
		return dto.FromNumberAdmin(n)
	}), nil
}

func (s *inventoryService) ListNumbers(ctx context.Context, filter *types.NumberFilter) (*dto.ListAdminNumbersResponse, error) {
	if filter == nil {
		filter = types.NewNumberFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	filter.Now = s.Clock.Now()

	numbers, err := s.NumberRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.NumberRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(numbers, func(n *number.PhoneNumber, _ int) *dto.AdminNumberResponse {
		return dto.FromNumberAdmin(n)
	})
	resp := types.NewListResponse(items, total, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}
