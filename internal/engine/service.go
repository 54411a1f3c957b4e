package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/stagecrew/rentline-backend/internal/availability"
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
	"github.com/stagecrew/rentline-backend/pkg/types"
)

// Catalog is the read surface the engine needs from the catalogue. The
// read-through cache in internal/catalog satisfies it.
type Catalog interface {
	FindItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	FindBundle(ctx context.Context, id uuid.UUID) (*models.Bundle, error)
}

// Service exposes the reservation engine operations.
type Service interface {
	Reserve(ctx context.Context, actor authz.Actor, input ReserveInput) (*ReserveResult, error)
	Release(ctx context.Context, actor authz.Actor, reservationID uuid.UUID) (*models.Reservation, error)
	Confirm(ctx context.Context, actor authz.Actor, reservationID uuid.UUID) (*models.Reservation, error)
	Consume(ctx context.Context, actor authz.Actor, reservationID uuid.UUID) (*models.Reservation, error)
	MoveProject(ctx context.Context, actor authz.Actor, projectID uuid.UUID, newWindow types.Window) error
	CheckAvailability(ctx context.Context, requests []AvailabilityRequest) ([]AvailabilityResult, error)
}

// Params collects the engine's collaborators.
type Params struct {
	DB         *db.Client
	Repo       *Repository
	Catalog    Catalog
	Expander   *catalog.Expander
	Calculator *availability.Calculator
	Index      *availability.Index
	Loader     *availability.Loader
	Outbox     *outbox.Service
	Authz      authz.Oracle
	Fallback   FallbackProvider
	Clock      clock.Clock
	Config     config.EngineConfig
	Logger     *logger.Logger
}

type service struct {
	db            *db.Client
	repo          *Repository
	catalog       Catalog
	expander      *catalog.Expander
	calc          *availability.Calculator
	index         *availability.Index
	loader        *availability.Loader
	outbox        *outbox.Service
	authz         authz.Oracle
	fallback      FallbackProvider
	clock         clock.Clock
	cfg           config.EngineConfig
	logg          *logger.Logger
	itemGuards    *GuardSet
	projectGuards *GuardSet
}

// NewService constructs the reservation engine.
func NewService(p Params) (Service, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if p.Repo == nil {
		return nil, fmt.Errorf("engine repository required")
	}
	if p.Catalog == nil {
		return nil, fmt.Errorf("catalog source required")
	}
	if p.Expander == nil {
		return nil, fmt.Errorf("bundle expander required")
	}
	if p.Calculator == nil {
		return nil, fmt.Errorf("availability calculator required")
	}
	if p.Index == nil {
		return nil, fmt.Errorf("interval index required")
	}
	if p.Loader == nil {
		return nil, fmt.Errorf("index loader required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if p.Authz == nil {
		return nil, fmt.Errorf("authorization oracle required")
	}
	if p.Clock == nil {
		p.Clock = clock.System{}
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		db:            p.DB,
		repo:          p.Repo,
		catalog:       p.Catalog,
		expander:      p.Expander,
		calc:          p.Calculator,
		index:         p.Index,
		loader:        p.Loader,
		outbox:        p.Outbox,
		authz:         p.Authz,
		fallback:      p.Fallback,
		clock:         p.Clock,
		cfg:           p.Config,
		logg:          p.Logger,
		itemGuards:    NewGuardSet(),
		projectGuards: NewGuardSet(),
	}, nil
}

func (s *service) authorize(ctx context.Context, actor authz.Actor, op authz.Operation, subject string) error {
	allowed, err := s.authz.May(ctx, actor, op, subject)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "authorization check failed")
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeForbidden, "operation not permitted")
	}
	return nil
}

// acquireGuards retries contended acquisitions with jitter before
// surfacing Contention to the caller.
func (s *service) acquireGuards(ctx context.Context, guards *GuardSet, keys []uuid.UUID) (func(), error) {
	attempts := s.cfg.GuardRetries
	if attempts < 1 {
		attempts = 1
	}
	backoff := retry.NewConstant(s.cfg.GuardRetryJitter)
	backoff = retry.WithJitter(s.cfg.GuardRetryJitter/2, backoff)
	backoff = retry.WithMaxRetries(uint64(attempts-1), backoff)

	var release func()
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, aerr := guards.Acquire(ctx, keys, s.cfg.GuardTimeout)
		if aerr != nil {
			if pkgerrors.HasCode(aerr, pkgerrors.CodeContention) && ctx.Err() == nil {
				return retry.RetryableError(aerr)
			}
			return aerr
		}
		release = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return release, nil
}

// resolveDemands flattens the subject into per-item quantities and
// validates existence and active state.
func (s *service) resolveDemands(ctx context.Context, subjectType enums.SubjectType, subjectID uuid.UUID, qty int) ([]demand, error) {
	switch subjectType {
	case enums.SubjectItem:
		item, err := s.catalog.FindItem(ctx, subjectID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown subject").
					WithDetails(map[string]any{"subject_id": subjectID})
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load item")
		}
		if !item.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeInactiveSubject, "item is inactive").
				WithDetails(map[string]any{"subject_id": subjectID})
		}
		return []demand{{itemID: subjectID, qty: qty}}, nil
	case enums.SubjectBundle:
		bundle, err := s.catalog.FindBundle(ctx, subjectID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown subject").
					WithDetails(map[string]any{"subject_id": subjectID})
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load bundle")
		}
		if !bundle.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeInactiveSubject, "bundle is inactive").
				WithDetails(map[string]any{"subject_id": subjectID})
		}
		lines, err := s.expander.Expand(ctx, subjectID, qty)
		if err != nil {
			return nil, err
		}
		demands := make([]demand, 0, len(lines))
		for _, line := range lines {
			demands = append(demands, demand{itemID: line.ItemID, qty: line.Qty})
		}
		return demands, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown subject type")
	}
}

// evaluateDemands runs the feasibility check for each demand, excluding
// the acting project's own holds.
func (s *service) evaluateDemands(ctx context.Context, projectID uuid.UUID, demands []demand, window types.Window) ([]Conflict, map[uuid.UUID]int, error) {
	var conflicts []Conflict
	availableByItem := make(map[uuid.UUID]int, len(demands))
	for _, d := range demands {
		result, err := s.calc.Evaluate(ctx, availability.Query{
			ItemID:         d.itemID,
			Window:         window,
			ExcludeProject: &projectID,
		})
		if err != nil {
			return nil, nil, err
		}
		availableByItem[d.itemID] = result.Available
		if result.Available < d.qty {
			conflicts = append(conflicts, Conflict{
				ItemID:    d.itemID,
				Requested: d.qty,
				Available: result.Available,
			})
		}
	}
	return conflicts, availableByItem, nil
}

// Reserve places a tentative hold for the subject over the window, or
// reports the full conflict set without side effects.
func (s *service) Reserve(ctx context.Context, actor authz.Actor, input ReserveInput) (*ReserveResult, error) {
	if err := s.authorize(ctx, actor, authz.OpReserve, input.SubjectID.String()); err != nil {
		return nil, err
	}
	if input.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
	}
	if !input.Window.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "window start must not be after end")
	}

	demands, err := s.resolveDemands(ctx, input.SubjectType, input.SubjectID, input.Qty)
	if err != nil {
		return nil, err
	}

	keys := make([]uuid.UUID, 0, len(demands))
	for _, d := range demands {
		keys = append(keys, d.itemID)
	}
	release, err := s.acquireGuards(ctx, s.itemGuards, keys)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.refreshItems(ctx, keys); err != nil {
		return nil, err
	}

	conflicts, _, err := s.evaluateDemands(ctx, input.ProjectID, demands, input.Window)
	if err != nil {
		return nil, err
	}
	useFallback := len(conflicts) > 0 && input.AllowFallback && s.fallback != nil
	if len(conflicts) > 0 && !useFallback {
		s.emitShortage(ctx, actor, input.ProjectID, conflicts, false)
		return nil, shortageError(conflicts)
	}

	result, touched, err := s.persistReservation(ctx, actor, input, demands, conflicts)
	if err != nil {
		s.rebuildItems(ctx, touched)
		if pkgerrors.HasCode(err, pkgerrors.CodePartnerUnavailable) {
			s.emitShortage(ctx, actor, input.ProjectID, conflicts, false)
			return nil, shortageError(conflicts)
		}
		return nil, err
	}
	return result, nil
}

// persistReservation writes reservation rows, partner commitments and
// the outbox event in one transaction, mutating the index alongside.
// The returned item list is what must be rebuilt if the transaction
// rolled back.
func (s *service) persistReservation(ctx context.Context, actor authz.Actor, input ReserveInput, demands []demand, conflicts []Conflict) (*ReserveResult, []uuid.UUID, error) {
	now := s.clock.Now()
	parent := models.Reservation{
		ID:          uuid.New(),
		ProjectID:   input.ProjectID,
		SubjectType: input.SubjectType,
		SubjectID:   input.SubjectID,
		Qty:         input.Qty,
		State:       enums.ReservationTentative,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	parent.SetWindow(input.Window)

	rows := []models.Reservation{parent}
	var components []models.Reservation
	if input.SubjectType == enums.SubjectBundle {
		for _, d := range demands {
			component := models.Reservation{
				ID:          uuid.New(),
				ProjectID:   input.ProjectID,
				SubjectType: enums.SubjectItem,
				SubjectID:   d.itemID,
				ParentID:    &parent.ID,
				Qty:         d.qty,
				State:       enums.ReservationTentative,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			component.SetWindow(input.Window)
			components = append(components, component)
		}
		rows = append(rows, components...)
	}

	touched := make([]uuid.UUID, 0, len(demands))
	for _, d := range demands {
		touched = append(touched, d.itemID)
	}

	reservationByItem := make(map[uuid.UUID]uuid.UUID, len(demands))
	for _, row := range rows {
		if row.SubjectType == enums.SubjectItem {
			reservationByItem[row.SubjectID] = row.ID
		}
	}

	var commitments []models.ExternalCommitment
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateAll(ctx, rows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist reservations")
		}

		if len(conflicts) > 0 {
			shortfalls, err := s.shortfallsFor(ctx, conflicts, input.Window)
			if err != nil {
				return err
			}
			covered, err := s.fallback.Cover(ctx, tx, reservationByItem, input.ProjectID, shortfalls)
			if err != nil {
				return err
			}
			commitments = covered
			for _, commitment := range commitments {
				if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventExternalCommitmentCreated,
					AggregateType: enums.AggregateExternalCommitment,
					AggregateID:   commitment.ID,
					Actor:         actorRef(actor),
					Data: payloads.ExternalCommitmentCreated{
						CommitmentID:  commitment.ID,
						ReservationID: commitment.ReservationID,
						PartnerID:     commitment.PartnerID,
						ItemID:        commitment.ItemID,
						Qty:           commitment.Qty,
						UnitPrice:     commitment.UnitPrice,
					},
				}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit commitment event")
				}
			}
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationCreated,
			AggregateType: enums.AggregateReservation,
			AggregateID:   parent.ID,
			Actor:         actorRef(actor),
			Data: payloads.ReservationCreated{
				ReservationID: parent.ID,
				ProjectID:     parent.ProjectID,
				SubjectType:   parent.SubjectType,
				SubjectID:     parent.SubjectID,
				Qty:           parent.Qty,
				WindowStart:   parent.WindowStart,
				WindowEnd:     parent.WindowEnd,
				Precision:     parent.Precision,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit reservation event")
		}

		for _, row := range rows {
			if row.SubjectType == enums.SubjectItem {
				s.index.Insert(availability.Entry{
					ReservationID: row.ID,
					ProjectID:     row.ProjectID,
					ItemID:        row.SubjectID,
					Qty:           row.Qty,
					Window:        row.Window(),
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, touched, err
	}

	logCtx := s.logg.WithProjectID(ctx, input.ProjectID.String())
	s.logg.Info(logCtx, "reservation created")
	return &ReserveResult{Reservation: parent, Components: components, Commitments: commitments}, nil, nil
}

// shortfallsFor converts conflicts into the uncovered remainders handed
// to the fallback provider.
func (s *service) shortfallsFor(ctx context.Context, conflicts []Conflict, window types.Window) ([]Shortfall, error) {
	shortfalls := make([]Shortfall, 0, len(conflicts))
	for _, conflict := range conflicts {
		item, err := s.catalog.FindItem(ctx, conflict.ItemID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shortfall item")
		}
		shortfalls = append(shortfalls, Shortfall{
			ItemID:   conflict.ItemID,
			ItemKind: item.Kind,
			Qty:      conflict.Requested - conflict.Available,
			Window:   window,
		})
	}
	return shortfalls, nil
}

// Release transitions the reservation (and its components) to cancelled
// and drops it from the index. Releasing a cancelled reservation is a
// no-op returning the prior state.
func (s *service) Release(ctx context.Context, actor authz.Actor, reservationID uuid.UUID) (*models.Reservation, error) {
	if err := s.authorize(ctx, actor, authz.OpRelease, reservationID.String()); err != nil {
		return nil, err
	}
	row, err := s.loadReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if err := rejectComponent(row); err != nil {
		return nil, err
	}
	if row.State == enums.ReservationCancelled {
		return row, nil
	}

	family, err := s.family(ctx, row)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(family))
	touched := make([]uuid.UUID, 0, len(family))
	for _, member := range family {
		ids = append(ids, member.ID)
		if member.SubjectType == enums.SubjectItem {
			touched = append(touched, member.SubjectID)
		}
	}

	priorState := row.State
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateStates(ctx, ids, enums.ReservationCancelled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel reservations")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationReleased,
			AggregateType: enums.AggregateReservation,
			AggregateID:   row.ID,
			Actor:         actorRef(actor),
			Data: payloads.ReservationReleased{
				ReservationID: row.ID,
				ProjectID:     row.ProjectID,
				PriorState:    priorState,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit release event")
		}
		for _, id := range ids {
			s.index.Remove(id)
		}
		return nil
	})
	if err != nil {
		s.rebuildItems(ctx, touched)
		return nil, err
	}

	row.State = enums.ReservationCancelled
	return row, nil
}

// Confirm promotes a tentative reservation, revalidating feasibility
// first: an intervening move of another project may have invalidated
// the tentative hold.
func (s *service) Confirm(ctx context.Context, actor authz.Actor, reservationID uuid.UUID) (*models.Reservation, error) {
	if err := s.authorize(ctx, actor, authz.OpConfirm, reservationID.String()); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, reservationID, enums.ReservationConfirmed, true)
}

// Consume marks the reservation's stock as physically out. Tentative
// reservations are consumed directly; the lifecycle stays forward-only.
func (s *service) Consume(ctx context.Context, actor authz.Actor, reservationID uuid.UUID) (*models.Reservation, error) {
	if err := s.authorize(ctx, actor, authz.OpConsume, reservationID.String()); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, reservationID, enums.ReservationConsumed, false)
}

func (s *service) transition(ctx context.Context, actor authz.Actor, reservationID uuid.UUID, next enums.ReservationState, revalidate bool) (*models.Reservation, error) {
	row, err := s.loadReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if err := rejectComponent(row); err != nil {
		return nil, err
	}
	if !row.State.CanTransitionTo(next) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "state transition disallowed").
			WithDetails(map[string]any{"from": row.State, "to": next})
	}

	family, err := s.family(ctx, row)
	if err != nil {
		return nil, err
	}
	stockRows := make([]models.Reservation, 0, len(family))
	keys := make([]uuid.UUID, 0, len(family))
	ids := make([]uuid.UUID, 0, len(family))
	for _, member := range family {
		ids = append(ids, member.ID)
		if member.SubjectType == enums.SubjectItem {
			stockRows = append(stockRows, member)
			keys = append(keys, member.SubjectID)
		}
	}

	release, err := s.acquireGuards(ctx, s.itemGuards, keys)
	if err != nil {
		return nil, err
	}
	defer release()

	if revalidate {
		if err := s.refreshItems(ctx, keys); err != nil {
			return nil, err
		}
		conflicts, err := s.revalidate(ctx, stockRows)
		if err != nil {
			return nil, err
		}
		if len(conflicts) > 0 {
			s.emitShortage(ctx, actor, row.ProjectID, conflicts, false)
			return nil, shortageError(conflicts)
		}
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateStates(ctx, ids, next); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update reservation state")
		}
		if next != enums.ReservationConfirmed {
			return nil
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationConfirmed,
			AggregateType: enums.AggregateReservation,
			AggregateID:   row.ID,
			Actor:         actorRef(actor),
			Data: payloads.ReservationConfirmed{
				ReservationID: row.ID,
				ProjectID:     row.ProjectID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	row.State = next
	return row, nil
}

// revalidate recomputes feasibility for the reservation's own rows with
// those rows excluded from the count.
func (s *service) revalidate(ctx context.Context, stockRows []models.Reservation) ([]Conflict, error) {
	own := make(map[uuid.UUID]bool, len(stockRows))
	for _, row := range stockRows {
		own[row.ID] = true
	}
	var conflicts []Conflict
	for _, row := range stockRows {
		item, err := s.catalog.FindItem(ctx, row.SubjectID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load item")
		}
		total := item.QuantityTotal
		if !item.IsActive {
			total = 0
		}
		window := row.Window()
		entries := s.index.Overlaps(row.SubjectID, window, nil)
		others := make([]availability.Entry, 0, len(entries))
		for _, entry := range entries {
			if !own[entry.ReservationID] {
				others = append(others, entry)
			}
		}
		available := total - availability.Peak(window, others)
		if available < 0 {
			available = 0
		}
		if available < row.Qty {
			conflicts = append(conflicts, Conflict{ItemID: row.SubjectID, Requested: row.Qty, Available: available})
		}
	}
	return conflicts, nil
}

// CheckAvailability answers feasibility questions without reserving
// guards exclusively or mutating any state.
func (s *service) CheckAvailability(ctx context.Context, requests []AvailabilityRequest) ([]AvailabilityResult, error) {
	results := make([]AvailabilityResult, 0, len(requests))
	for _, request := range requests {
		if request.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive")
		}
		if !request.Window.Valid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "window start must not be after end")
		}
		demands, err := s.resolveDemands(ctx, request.SubjectType, request.SubjectID, request.Qty)
		if err != nil {
			return nil, err
		}
		result := AvailabilityResult{Request: request, Feasible: true}
		for _, d := range demands {
			answer, err := s.calc.Evaluate(ctx, availability.Query{
				ItemID:  d.itemID,
				Window:  request.Window,
				Lenient: !s.cfg.StrictAvailability,
			})
			if err != nil {
				return nil, err
			}
			if answer.Available < d.qty {
				result.Feasible = false
			}
			result.Details = append(result.Details, Conflict{
				ItemID:    d.itemID,
				Requested: d.qty,
				Available: answer.Available,
			})
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *service) loadReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	row, err := s.repo.FindReservation(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load reservation")
	}
	return row, nil
}

// family returns the row plus its bundle components, if any.
func (s *service) family(ctx context.Context, row *models.Reservation) ([]models.Reservation, error) {
	family := []models.Reservation{*row}
	if row.SubjectType != enums.SubjectBundle {
		return family, nil
	}
	components, err := s.repo.ListComponents(ctx, row.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load components")
	}
	return append(family, components...), nil
}

// rejectComponent keeps lifecycle operations on bundle families at the
// parent row. Transitioning a component alone would leave it in a state
// its parent is not in.
func rejectComponent(row *models.Reservation) error {
	if !row.IsComponent() {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "reservation is a bundle component; operate on its parent").
		WithDetails(map[string]any{"parent_id": row.ParentID})
}

// refreshItems reloads the guarded shards from durable rows before a
// feasibility check. Other writer processes (the scheduler worker, a
// second api instance) share the reservation table but not this index,
// so the shard is only trustworthy once re-read under the guard.
func (s *service) refreshItems(ctx context.Context, itemIDs []uuid.UUID) error {
	for _, itemID := range itemIDs {
		entries, err := s.loader.ItemEntries(ctx, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "refresh index shard")
		}
		s.index.RebuildItem(itemID, entries)
	}
	return nil
}

// rebuildItems restores index shards from durable rows after a rolled
// back transaction.
func (s *service) rebuildItems(ctx context.Context, itemIDs []uuid.UUID) {
	for _, itemID := range itemIDs {
		entries, err := s.loader.ItemEntries(ctx, itemID)
		if err != nil {
			logCtx := s.logg.WithItemID(ctx, itemID.String())
			s.logg.Error(logCtx, "index rebuild failed", err)
			continue
		}
		s.index.RebuildItem(itemID, entries)
	}
}

// emitShortage records a shortage event best-effort; it never fails the
// primary operation.
func (s *service) emitShortage(ctx context.Context, actor authz.Actor, projectID uuid.UUID, conflicts []Conflict, onMove bool) {
	payload := payloads.ShortageDetected{ProjectID: projectID, OnMove: onMove}
	for _, conflict := range conflicts {
		payload.Conflicts = append(payload.Conflicts, payloads.ShortageConflict{
			ItemID:    conflict.ItemID,
			Requested: conflict.Requested,
			Available: conflict.Available,
		})
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventShortageDetected,
			AggregateType: enums.AggregateProject,
			AggregateID:   projectID,
			Actor:         actorRef(actor),
			Data:          payload,
		})
	})
	if err != nil {
		s.logg.Error(ctx, "shortage event emit failed", err)
	}
}

func shortageError(conflicts []Conflict) error {
	return pkgerrors.New(pkgerrors.CodeShortage, "insufficient availability").
		WithDetails(map[string]any{"conflicts": conflicts})
}

func actorRef(actor authz.Actor) *outbox.ActorRef {
	if actor.ID == "" {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.ID, Role: actor.Role}
}
