package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/stagecrew/rentline-backend/pkg/config"
	"github.com/stagecrew/rentline-backend/pkg/db/models"
	"github.com/stagecrew/rentline-backend/pkg/logger"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultMaxAttempts    = 10
	defaultPublishTimeout = 15 * time.Second
	maxBackoff            = 10 * time.Second
)

type outboxRepository interface {
	FetchForPublish(limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(id uuid.UUID) error
	MarkFailed(id uuid.UUID, err error) error
}

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	Repository outboxRepository
	Publisher  publisher
}

// Service drains the outbox table into the reservation events topic.
type Service struct {
	cfg          *config.Config
	logg         *logger.Logger
	repo         outboxRepository
	publisher    publisher
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Publisher == nil {
		return nil, errors.New("publisher is required")
	}

	batch := params.Config.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	maxAttempts := params.Config.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	pollMs := params.Config.Outbox.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}

	return &Service{
		cfg:          params.Config,
		logg:         params.Logger,
		repo:         params.Repository,
		publisher:    params.Publisher,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: time.Duration(pollMs) * time.Millisecond,
	}, nil
}

// Run polls the outbox until the context is cancelled. Poll errors back
// off exponentially instead of stopping the loop.
func (s *Service) Run(ctx context.Context) error {
	backoff := s.pollInterval
	for {
		busy, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
		case busy:
			backoff = 0
		default:
			backoff = s.pollInterval
		}

		if err := s.sleep(ctx, backoff); err != nil {
			return err
		}
	}
}

// processBatch publishes one batch. The busy return signals a full
// batch so the caller skips the poll delay.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	events, err := s.repo.FetchForPublish(s.batchSize, s.maxAttempts)
	if err != nil {
		return false, fmt.Errorf("fetching outbox events: %w", err)
	}
	if len(events) == 0 {
		return false, nil
	}

	for _, event := range events {
		fields := map[string]any{
			"event_id":       event.ID.String(),
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"attempt":        event.AttemptCount + 1,
		}
		eventCtx := s.logg.WithFields(ctx, fields)

		if err := s.publishOne(ctx, event); err != nil {
			s.logg.Error(eventCtx, "outbox publish failed", err)
			if markErr := s.repo.MarkFailed(event.ID, err); markErr != nil {
				return false, fmt.Errorf("marking event failed: %w", markErr)
			}
			continue
		}

		if err := s.repo.MarkPublished(event.ID); err != nil {
			return false, fmt.Errorf("marking event published: %w", err)
		}
		s.logg.Info(eventCtx, "outbox event published")
	}

	return len(events) == s.batchSize, nil
}

func (s *Service) publishOne(ctx context.Context, event models.OutboxEvent) error {
	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	result := s.publisher.Publish(publishCtx, &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
		},
	})
	if result == nil {
		return errors.New("publisher returned no result")
	}
	_, err := result.Get(publishCtx)
	return err
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		return base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

type gcpPublisher struct {
	inner *gcppubsub.Publisher
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{inner: p}
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.inner.Publish(ctx, msg)
}
