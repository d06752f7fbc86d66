// Package reconcile repairs state left behind by partially failed writes:
// completed missions whose request never left InProgress, and requests that
// reached the report threshold while the recount was failing.
package reconcile

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/apex/log"
	"github.com/reliefconnect/api/internal/apperr"
	"github.com/reliefconnect/api/internal/mission"
	"github.com/reliefconnect/api/internal/model"
	"github.com/reliefconnect/api/internal/report"
	"github.com/reliefconnect/api/internal/store"
)

type Options struct {
	Workers   int
	BatchSize int
	DryRun    bool
}

type Summary struct {
	StuckMissions     int      `json:"stuckMissions"`
	RequestsCompleted int64    `json:"requestsCompleted"`
	Failures          int64    `json:"failures"`
	Cancelled         []string `json:"cancelled"`
}

type Reconciler struct {
	store   store.Store
	engine  *mission.Engine
	reports *report.Aggregator
}

func New(s store.Store, engine *mission.Engine, reports *report.Aggregator) *Reconciler {
	return &Reconciler{store: s, engine: engine, reports: reports}
}

func (r *Reconciler) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 500
	}

	stuck, err := r.store.CompletedMissionsWithOpenRequest(ctx, opts.BatchSize)
	if err != nil {
		return nil, apperr.Store("failed to find stuck missions", err)
	}
	sum := &Summary{StuckMissions: len(stuck)}

	if opts.DryRun {
		for _, m := range stuck {
			log.WithFields(log.Fields{"mission_id": m.ID, "request_id": m.RequestID}).Info("[dry run] would complete request")
		}
	} else {
		r.retryAll(ctx, stuck, opts.Workers, sum)
	}

	cancelled, err := r.reports.Sweep(ctx, opts.DryRun)
	if err != nil {
		return sum, err
	}
	sum.Cancelled = cancelled
	return sum, nil
}

// retryAll fans the stuck missions out over a fixed pool of workers.
func (r *Reconciler) retryAll(ctx context.Context, stuck []model.ReliefMission, workers int, sum *Summary) {
	jobs := make(chan model.ReliefMission, workers*10)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				if err := r.engine.RetryRequestCompletion(ctx, m.ID); err != nil {
					atomic.AddInt64(&sum.Failures, 1)
					log.WithError(err).WithField("mission_id", m.ID).Error("retry failed")
					continue
				}
				atomic.AddInt64(&sum.RequestsCompleted, 1)
			}
		}()
	}

	for _, m := range stuck {
		select {
		case jobs <- m:
		case <-ctx.Done():
		}
	}
	close(jobs)
	wg.Wait()
}
