package scans

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagecrew/rentline-backend/internal/catalog"
	"github.com/stagecrew/rentline-backend/pkg/authz"
	"github.com/stagecrew/rentline-backend/pkg/clock"
	"github.com/stagecrew/rentline-backend/pkg/config"
	"github.com/stagecrew/rentline-backend/pkg/db"
	"github.com/stagecrew/rentline-backend/pkg/db/models"
	"github.com/stagecrew/rentline-backend/pkg/enums"
	pkgerrors "github.com/stagecrew/rentline-backend/pkg/errors"
	"github.com/stagecrew/rentline-backend/pkg/logger"
	"github.com/stagecrew/rentline-backend/pkg/outbox"
	"github.com/stagecrew/rentline-backend/pkg/outbox/payloads"
)

// Deduper collapses rapid duplicate scans of the same tag by the same
// actor. Satisfied by *redis.Client.
type Deduper interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	ScanCooldownKey(tagCode, actorID string) string
}

// Catalog is the read surface the scan pipeline needs.
type Catalog interface {
	FindBundle(ctx context.Context, id uuid.UUID) (*models.Bundle, error)
}

// ScanInput is one raw scan event from a warehouse device.
type ScanInput struct {
	TagCode    string
	ProjectID  uuid.UUID
	Direction  enums.ScanDirection
	Qty        int
	BundleMode *enums.BundleMode
	Location   Coordinates
}

// ScanResult reports the movements one accepted scan produced.
type ScanResult struct {
	Movements []models.ScanMovement `json:"movements"`
}

// ComponentEcho is returned inside a BUNDLE_MODE_REQUIRED error so the
// device can prompt the operator with the bundle contents.
type ComponentEcho struct {
	ComponentID   uuid.UUID         `json:"componentId"`
	ComponentType enums.SubjectType `json:"componentType"`
	Multiplier    int               `json:"multiplier"`
}

// Service reconciles physical scans against reservations.
type Service interface {
	Apply(ctx context.Context, actor authz.Actor, input ScanInput) (*ScanResult, error)
}

// Params collects the service dependencies.
type Params struct {
	DB       *db.Client
	Repo     *Repository
	Catalog  Catalog
	Expander *catalog.Expander
	Dedup    Deduper
	Gate     LocationGate
	Outbox   *outbox.Service
	Authz    authz.Oracle
	Clock    clock.Clock
	Config   config.ScanConfig
	Logger   *logger.Logger
}

type service struct {
	db       *db.Client
	repo     *Repository
	catalog  Catalog
	expander *catalog.Expander
	dedup    Deduper
	gate     LocationGate
	outbox   *outbox.Service
	authz    authz.Oracle
	clock    clock.Clock
	cfg      config.ScanConfig
	log      *logger.Logger
}

// NewService validates the wiring and returns a scan service.
func NewService(p Params) (Service, error) {
	switch {
	case p.DB == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "scans: db is required")
	case p.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "scans: repository is required")
	case p.Catalog == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "scans: catalog is required")
	case p.Expander == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "scans: expander is required")
	case p.Dedup == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "scans: deduper is required")
	case p.Gate == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "scans: location gate is required")
	case p.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "scans: outbox is required")
	case p.Authz == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "scans: authz oracle is required")
	case p.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "scans: logger is required")
	}
	if p.Clock == nil {
		p.Clock = clock.System{}
	}
	return &service{
		db:       p.DB,
		repo:     p.Repo,
		catalog:  p.Catalog,
		expander: p.Expander,
		dedup:    p.Dedup,
		gate:     p.Gate,
		outbox:   p.Outbox,
		authz:    p.Authz,
		clock:    p.Clock,
		cfg:      p.Config,
		log:      p.Logger,
	}, nil
}

func (s *service) Apply(ctx context.Context, actor authz.Actor, input ScanInput) (*ScanResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	ctx = s.log.WithProjectID(ctx, input.ProjectID.String())
	ctx = s.log.WithField(ctx, "tag_code", input.TagCode)

	allowed, err := s.authz.May(ctx, actor, authz.OpScan, input.TagCode)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "authorization check failed")
	}
	if !allowed {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "actor may not scan")
	}

	inRange, err := s.gate.Allow(ctx, actor, input.Location)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "location gate failed")
	}
	if !inRange {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorizedLoc, "scan location is outside the permitted radius")
	}

	cooldownKey := s.dedup.ScanCooldownKey(input.TagCode, actor.ID)
	fresh, err := s.dedup.SetNX(ctx, cooldownKey, 1, s.cfg.Cooldown)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "scan dedup store failed")
	}
	if !fresh {
		return nil, pkgerrors.New(pkgerrors.CodeDuplicateScan, "tag was scanned moments ago")
	}

	result, err := s.process(ctx, actor, input)
	if err != nil {
		// Free the cooldown slot so the operator can retry a rejected
		// scan immediately.
		if delErr := s.dedup.Del(ctx, cooldownKey); delErr != nil {
			s.log.Warn(s.log.WithField(ctx, "error", delErr.Error()), "failed to clear scan cooldown key")
		}
		return nil, err
	}
	return result, nil
}

func (s *service) process(ctx context.Context, actor authz.Actor, input ScanInput) (*ScanResult, error) {
	tag, err := s.repo.FindTagByCode(ctx, input.TagCode)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown tag code")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "tag lookup failed")
	}

	if tag.Kind == enums.TagBundle && input.BundleMode == nil {
		components, err := s.bundleEcho(ctx, tag.SubjectID)
		if err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodeBundleModeRequired, "bundle tags need an explode or whole mode").
			WithDetails(map[string]any{"components": components})
	}

	now := s.clock.Now()
	var movements []models.ScanMovement
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		switch tag.Kind {
		case enums.TagItem:
			movements, err = s.applyItem(ctx, repo, actor, input, tag.SubjectID, input.Qty, now)
		case enums.TagBundle:
			movements, err = s.applyBundle(ctx, repo, actor, input, tag, now)
		default:
			err = pkgerrors.New(pkgerrors.CodeInternal, "unhandled tag kind")
		}
		if err != nil {
			return err
		}

		if err := repo.TouchTag(ctx, tag.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to touch tag")
		}
		for _, movement := range movements {
			if err := s.emitReconciled(ctx, tx, actor, movement); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ScanResult{Movements: movements}, nil
}

// applyItem reconciles one item scan. Outbound scans consume open
// reservations oldest first; anything beyond what was reserved is
// recorded as unplanned. Inbound scans close the latest open checkout.
func (s *service) applyItem(ctx context.Context, repo *Repository, actor authz.Actor, input ScanInput, itemID uuid.UUID, qty int, now time.Time) ([]models.ScanMovement, error) {
	switch input.Direction {
	case enums.ScanOut:
		return s.applyItemOut(ctx, repo, actor, input, itemID, qty, now)
	case enums.ScanIn:
		return s.applyItemIn(ctx, repo, actor, input, itemID, qty, now)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown scan direction")
	}
}

func (s *service) applyItemOut(ctx context.Context, repo *Repository, actor authz.Actor, input ScanInput, itemID uuid.UUID, qty int, now time.Time) ([]models.ScanMovement, error) {
	var movements []models.ScanMovement
	remaining := qty
	for remaining > 0 {
		row, err := repo.FindOpenItemReservation(ctx, input.ProjectID, itemID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				break
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reservation lookup failed")
		}

		capacity := row.Qty - row.ConsumedQty
		if capacity <= 0 {
			break
		}
		take := remaining
		if take > capacity {
			take = capacity
		}

		if row.State != enums.ReservationConsumed {
			if !row.State.CanTransitionTo(enums.ReservationConsumed) {
				return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "reservation cannot be consumed from its current state")
			}
			row.State = enums.ReservationConsumed
		}
		row.ConsumedQty += take
		if err := repo.SaveReservation(ctx, row); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to consume reservation")
		}

		movement := s.newMovement(actor, input, now, enums.MovementCheckout, take)
		movement.ItemID = &itemID
		movement.ReservationID = &row.ID
		if err := repo.CreateMovement(ctx, &movement); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to record checkout")
		}
		movements = append(movements, movement)
		remaining -= take
	}

	if remaining > 0 {
		movement := s.newMovement(actor, input, now, enums.MovementUnplannedOut, remaining)
		movement.ItemID = &itemID
		if err := repo.CreateMovement(ctx, &movement); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to record unplanned checkout")
		}
		movements = append(movements, movement)
	}
	return movements, nil
}

func (s *service) applyItemIn(ctx context.Context, repo *Repository, actor authz.Actor, input ScanInput, itemID uuid.UUID, qty int, now time.Time) ([]models.ScanMovement, error) {
	checkout, err := repo.FindOutstandingCheckout(ctx, input.ProjectID, itemID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no outstanding checkout for this item")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checkout lookup failed")
	}
	if err := repo.MarkReturned(ctx, checkout.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to close checkout")
	}

	movement := s.newMovement(actor, input, now, enums.MovementReturn, qty)
	movement.ItemID = &itemID
	movement.ReservationID = checkout.ReservationID
	if err := repo.CreateMovement(ctx, &movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to record return")
	}
	return []models.ScanMovement{movement}, nil
}

func (s *service) applyBundle(ctx context.Context, repo *Repository, actor authz.Actor, input ScanInput, tag *models.Tag, now time.Time) ([]models.ScanMovement, error) {
	switch *input.BundleMode {
	case enums.BundleWhole:
		movement := s.newMovement(actor, input, now, enums.MovementComposite, input.Qty)
		movement.BundleID = &tag.SubjectID
		if err := repo.CreateMovement(ctx, &movement); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to record composite movement")
		}
		return []models.ScanMovement{movement}, nil

	case enums.BundleExplode:
		lines, err := s.expander.Expand(ctx, tag.SubjectID, input.Qty)
		if err != nil {
			return nil, err
		}
		var movements []models.ScanMovement
		for _, line := range lines {
			lineMovements, err := s.applyItem(ctx, repo, actor, input, line.ItemID, line.Qty, now)
			if err != nil {
				return nil, err
			}
			movements = append(movements, lineMovements...)
		}
		return movements, nil

	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown bundle mode")
	}
}

func (s *service) bundleEcho(ctx context.Context, bundleID uuid.UUID) ([]ComponentEcho, error) {
	bundle, err := s.catalog.FindBundle(ctx, bundleID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tag points at an unknown bundle")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "bundle lookup failed")
	}
	echo := make([]ComponentEcho, 0, len(bundle.Components))
	for _, component := range bundle.Components {
		echo = append(echo, ComponentEcho{
			ComponentID:   component.ComponentID,
			ComponentType: component.ComponentType,
			Multiplier:    component.Multiplier,
		})
	}
	return echo, nil
}

func (s *service) newMovement(actor authz.Actor, input ScanInput, now time.Time, movementType enums.MovementType, qty int) models.ScanMovement {
	actorID, err := uuid.Parse(actor.ID)
	if err != nil {
		actorID = uuid.Nil
	}
	return models.ScanMovement{
		ID:         uuid.New(),
		TagCode:    input.TagCode,
		ProjectID:  input.ProjectID,
		Direction:  input.Direction,
		Type:       movementType,
		Qty:        qty,
		ActorID:    actorID,
		RecordedAt: now,
	}
}

func (s *service) emitReconciled(ctx context.Context, tx *gorm.DB, actor authz.Actor, movement models.ScanMovement) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventScanReconciled,
		AggregateType: enums.AggregateScanMovement,
		AggregateID:   movement.ID,
		Actor:         actorRef(actor),
		Data: payloads.ScanReconciled{
			MovementID: movement.ID,
			TagCode:    movement.TagCode,
			ProjectID:  movement.ProjectID,
			Direction:  movement.Direction,
			Type:       movement.Type,
			Qty:        movement.Qty,
		},
	})
}

func actorRef(actor authz.Actor) *outbox.ActorRef {
	if actor.ID == "" {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.ID, Role: actor.Role}
}

func validateInput(input ScanInput) error {
	switch {
	case input.TagCode == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "tag code is required")
	case input.ProjectID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "project id is required")
	case !input.Direction.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, "direction must be in or out")
	case input.Qty <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
	}
	if input.BundleMode != nil && !input.BundleMode.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "bundle mode must be explode or whole")
	}
	return nil
}
