package service

import (
	"context"
	"sync/atomic"

	"github.com/numbrly/portal/internal/api/dto"
	"github.com/sourcegraph/conc/pool"
)

// ReaperService frees expired holds. It never touches the ledger and is safe
// to run from several instances at once.
type ReaperService interface {
	Sweep(ctx context.Context) (*dto.SweepResponse, error)
}

type reaperService struct {
	ServiceParams
	holdService HoldService
}

func NewReaperService(params ServiceParams, holdService HoldService) ReaperService {
	return &reaperService{
		ServiceParams: params,
		holdService:   holdService,
	}
}

// Sweep releases expired holds in batches until a batch frees nothing new
func (s *reaperService) Sweep(ctx context.Context) (*dto.SweepResponse, error) {
	span, ctx := s.Sentry.StartTransaction(ctx, "reaper.sweep")
	if span != nil {
		defer span.Finish()
	}

	start := s.Clock.Now()
	now := start
	batchSize := s.Config.Reaper.BatchSize
	resp := &dto.SweepResponse{}

	for {
		ids, err := s.holdService.ListExpired(ctx, now, batchSize)
		if err != nil {
			return resp, err
		}
		if len(ids) == 0 {
			break
		}

		var released, skipped, failed atomic.Int64
		p := pool.New().WithContext(ctx).WithMaxGoroutines(s.Config.Reaper.Concurrency)
		for _, id := range ids {
			p.Go(func(ctx context.Context) error {
				ok, err := s.holdService.ReleaseExpired(ctx, id, now)
				switch {
				case err != nil:
					failed.Add(1)
					s.Logger.Errorw("failed to release expired hold", "number_id", id, "error", err)
				case ok:
					released.Add(1)
				default:
					skipped.Add(1)
				}
				return nil
			})
		}
		_ = p.Wait()

		resp.Scanned += len(ids)
		resp.Released += int(released.Load())
		resp.Skipped += int(skipped.Load())
		resp.Failed += int(failed.Load())

		if len(ids) < batchSize || released.Load() == 0 || ctx.Err() != nil {
			break
		}
	}

	s.Metrics.RecordReaperSweep(resp.Released, s.Clock.Now().Sub(start))
	if span != nil {
		span.SetData("released", resp.Released)
		span.SetData("failed", resp.Failed)
	}
	if resp.Scanned > 0 {
		s.Logger.Infow("reaper sweep finished",
			"scanned", resp.Scanned,
			"released", resp.Released,
			"skipped", resp.Skipped,
			"failed", resp.Failed,
		)
	}
	return resp, ctx.Err()
}
