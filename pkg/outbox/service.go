// Package outbox implements the transactional outbox pattern: domain
// events ride in the same database transaction as the state change
// that produced them, and a separate publisher drains the table.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/stagecrew/rentline-backend/pkg/db"
	"github.com/stagecrew/rentline-backend/pkg/db/models"
	"github.com/stagecrew/rentline-backend/pkg/enums"
	"github.com/stagecrew/rentline-backend/pkg/logger"
)

// DomainEvent is what callers hand to Emit. Data is marshaled as the
// envelope payload; OccurredAt defaults to now when left zero.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

// Service writes outbox rows inside caller transactions.
type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

var errTxRequired = errors.New("transaction required")

// Emit inserts one outbox row on tx. The row commits or rolls back
// with the caller's transaction, which is the whole point.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errTxRequired
	}
	if ctx == nil {
		ctx = context.Background()
	}
	envelope, payload, err := buildEnvelope(event)
	if err != nil {
		return err
	}
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event_id":       envelope.EventID,
			"event_type":     event.EventType,
			"aggregate_id":   event.AggregateID.String(),
			"aggregate_type": event.AggregateType,
		})
		s.logg.Info(logCtx, "outbox event queued")
	}
	return nil
}

// EmitIfNotExists skips the insert when a row for the same event type
// and aggregate is already present. The unique index backs up the
// read-then-write check under concurrent emitters.
func (s *Service) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errTxRequired
	}
	exists, err := s.repo.ExistsTx(tx, event.EventType, event.AggregateType, event.AggregateID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	err = s.Emit(ctx, tx, event)
	if err != nil && dbpkg.IsUniqueViolation(err, "ux_outbox_events_event_aggregate") {
		return nil
	}
	return err
}

func buildEnvelope(event DomainEvent) (PayloadEnvelope, json.RawMessage, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, nil, err
	}
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	envelope := PayloadEnvelope{
		Version:    event.Version,
		EventID:    uuid.NewString(),
		OccurredAt: occurred,
		Actor:      event.Actor,
		Data:       data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return PayloadEnvelope{}, nil, err
	}
	return envelope, payload, nil
}
