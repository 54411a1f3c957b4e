package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/stagecrew/rentline-backend/pkg/clock"
	"github.com/stagecrew/rentline-backend/pkg/config"
	"github.com/stagecrew/rentline-backend/pkg/db"
	"github.com/stagecrew/rentline-backend/pkg/db/models"
	"github.com/stagecrew/rentline-backend/pkg/enums"
	pkgerrors "github.com/stagecrew/rentline-backend/pkg/errors"
	"github.com/stagecrew/rentline-backend/pkg/logger"
	"github.com/stagecrew/rentline-backend/pkg/metrics"
	"github.com/stagecrew/rentline-backend/pkg/outbox"
	"github.com/stagecrew/rentline-backend/pkg/outbox/payloads"
)

const dueBatchSize = 20

// Locker elects a single active scheduler instance. Satisfied by
// *redis.Client.
type Locker interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	LockKey(name string) string
}

// Params collects the worker dependencies.
type Params struct {
	DB       *db.Client
	Repo     *Repository
	Handlers []Handler
	Locker   Locker
	Outbox   *outbox.Service
	Metrics  *metrics.SchedulerMetrics
	Clock    clock.Clock
	Config   config.SchedulerConfig
	Logger   *logger.Logger
}

// Worker advances recurring obligations on a fixed tick.
type Worker struct {
	id       string
	db       *db.Client
	repo     *Repository
	handlers map[enums.ObligationKind]Handler
	locker   Locker
	outbox   *outbox.Service
	metrics  *metrics.SchedulerMetrics
	clock    clock.Clock
	cfg      config.SchedulerConfig
	log      *logger.Logger
	parser   cron.Parser

	wg sync.WaitGroup
}

// NewWorker validates the wiring and returns a scheduler worker.
func NewWorker(id string, p Params) (*Worker, error) {
	switch {
	case id == "":
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "scheduler: worker id is required")
	case p.DB == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "scheduler: db is required")
	case p.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "scheduler: repository is required")
	case len(p.Handlers) == 0:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "scheduler: at least one handler is required")
	case p.Locker == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "scheduler: locker is required")
	case p.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "scheduler: outbox is required")
	case p.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "scheduler: logger is required")
	}
	if p.Clock == nil {
		p.Clock = clock.System{}
	}
	handlers := make(map[enums.ObligationKind]Handler, len(p.Handlers))
	for _, handler := range p.Handlers {
		handlers[handler.Kind()] = handler
	}
	return &Worker{
		id:       id,
		db:       p.DB,
		repo:     p.Repo,
		handlers: handlers,
		locker:   p.Locker,
		outbox:   p.Outbox,
		metrics:  p.Metrics,
		clock:    p.Clock,
		cfg:      p.Config,
		log:      p.Logger,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}, nil
}

// Run ticks until the context is cancelled, then drains in-flight
// obligations for at most the configured grace period.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case <-ticker.C:
			if err := w.Tick(ctx); err != nil {
				w.log.Error(ctx, "scheduler tick failed", err)
			}
		}
	}
}

// Tick runs one pass if this instance holds the scheduler lock.
func (w *Worker) Tick(ctx context.Context) error {
	held, err := w.locker.SetNX(ctx, w.locker.LockKey("scheduler"), w.id, w.cfg.LockTTL)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "scheduler lock check failed")
	}
	if !held {
		return nil
	}
	return w.RunOnce(ctx)
}

// RunOnce claims and runs every due obligation.
func (w *Worker) RunOnce(ctx context.Context) error {
	now := w.clock.Now()
	due, err := w.repo.ListDue(ctx, now, dueBatchSize)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list due obligations")
	}

	var combined error
	for i := range due {
		claimed, err := w.repo.Claim(ctx, due[i].ID, w.id, now)
		if err != nil {
			combined = multierr.Append(combined, err)
			continue
		}
		if !claimed {
			continue
		}
		if err := w.runOne(ctx, due[i].ID); err != nil {
			combined = multierr.Append(combined, err)
		}
	}
	return combined
}

func (w *Worker) runOne(ctx context.Context, id uuid.UUID) error {
	w.wg.Add(1)
	defer w.wg.Done()

	obligation, err := w.repo.Find(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load claimed obligation")
	}
	ctx = w.log.WithField(ctx, "obligation_id", id.String())
	kind := string(obligation.Kind)

	handler, ok := w.handlers[obligation.Kind]
	started := w.clock.Now()
	var runErr error
	if !ok {
		runErr = pkgerrors.New(pkgerrors.CodeInternal, "no handler registered for obligation kind")
	} else {
		runErr = handler.Handle(ctx, obligation)
	}
	w.metrics.ObserveDuration(kind, w.clock.Now().Sub(started))

	if runErr != nil {
		w.metrics.IncFailure(kind)
		return w.recordFailure(ctx, obligation, runErr)
	}
	w.metrics.IncSuccess(kind)
	return w.recordSuccess(ctx, obligation)
}

// recordSuccess re-arms the obligation at its next cron instant and
// emits obligation_fired.
func (w *Worker) recordSuccess(ctx context.Context, obligation *models.RecurringObligation) error {
	schedule, err := w.parser.Parse(obligation.Spec)
	if err != nil {
		return w.recordFailure(ctx, obligation, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cron spec"))
	}
	firedAt := obligation.NextFireAt
	next := schedule.Next(w.clock.Now())

	obligation.Status = enums.ObligationActive
	obligation.NextFireAt = next
	obligation.Attempts = 0
	obligation.LastError = nil
	obligation.ClaimedBy = nil
	obligation.ClaimedAt = nil

	err = w.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := w.repo.WithTx(tx).Save(ctx, obligation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist fired obligation")
		}
		return w.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventObligationFired,
			AggregateType: enums.AggregateObligation,
			AggregateID:   obligation.ID,
			Data: payloads.ObligationFired{
				ObligationID: obligation.ID,
				Kind:         obligation.Kind,
				FiredAt:      firedAt,
				NextFireAt:   next,
			},
		})
	})
	if err != nil {
		return err
	}
	w.log.Info(ctx, "obligation fired")
	return nil
}

// recordFailure schedules a retry, or parks the obligation as failed
// once its attempt budget is spent.
func (w *Worker) recordFailure(ctx context.Context, obligation *models.RecurringObligation, cause error) error {
	obligation.Attempts++
	message := cause.Error()
	obligation.LastError = &message
	obligation.ClaimedBy = nil
	obligation.ClaimedAt = nil

	budget := obligation.MaxAttempts
	if budget <= 0 {
		budget = w.cfg.MaxAttempts
	}
	exhausted := obligation.Attempts >= budget
	if exhausted {
		obligation.Status = enums.ObligationFailed
	} else {
		obligation.Status = enums.ObligationActive
		obligation.NextFireAt = w.clock.Now().Add(w.cfg.RetryDelay)
	}

	err := w.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := w.repo.WithTx(tx).Save(ctx, obligation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist failed obligation")
		}
		if !exhausted {
			return nil
		}
		return w.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventObligationFailed,
			AggregateType: enums.AggregateObligation,
			AggregateID:   obligation.ID,
			Data: payloads.ObligationFailed{
				ObligationID: obligation.ID,
				Kind:         obligation.Kind,
				Attempts:     obligation.Attempts,
				LastError:    message,
			},
		})
	})
	if err != nil {
		return multierr.Append(cause, err)
	}
	w.log.Error(ctx, "obligation run failed", cause)
	return cause
}

func (w *Worker) drain() {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(w.cfg.GracePeriod):
		w.log.Warn(context.Background(), "scheduler drain grace period elapsed")
	}
}
