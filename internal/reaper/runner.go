package reaper

import (
	"context"
	"sync"
	"time"

	"github.com/numbrly/portal/internal/config"
	"github.com/numbrly/portal/internal/logger"
	"github.com/numbrly/portal/internal/service"
	"github.com/numbrly/portal/internal/types"
	"go.uber.org/fx"
)

// Runner sweeps expired holds on a fixed interval. Several runners may
// operate against the same store; each release is conditional.
type Runner struct {
	reaperService service.ReaperService
	interval      time.Duration
	logger        *logger.Logger

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
}

func NewRunner(cfg *config.Configuration, reaperService service.ReaperService, logger *logger.Logger) *Runner {
	return &Runner{
		reaperService: reaperService,
		interval:      cfg.Reaper.Interval,
		logger:        logger,
	}
}

// Start launches the sweep loop. It returns immediately.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(types.SetUserID(context.Background(), types.DefaultUserID))
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.run(ctx, r.done)
}

func (r *Runner) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	r.logger.Infow("hold reaper started", "interval", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.SweepOnce(ctx)
		case <-ctx.Done():
			r.logger.Info("hold reaper stopped")
			return
		}
	}
}

// SweepOnce runs a single sweep. Errors are logged, not returned.
func (r *Runner) SweepOnce(ctx context.Context) {
	resp, err := r.reaperService.Sweep(ctx)
	if err != nil && ctx.Err() == nil {
		r.logger.Errorw("hold reaper sweep failed", "error", err)
		return
	}
	if resp != nil && resp.Failed > 0 {
		r.logger.Warnw("hold reaper sweep had failures",
			"released", resp.Released,
			"failed", resp.Failed,
		)
	}
}

// Stop cancels the loop and waits for the current sweep to finish or ctx to expire
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterWithLifecycle ties the runner to the fx application
func (r *Runner) RegisterWithLifecycle(lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			r.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return r.Stop(ctx)
		},
	})
}
