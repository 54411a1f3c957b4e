package engine

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagecrew/rentline-backend/pkg/db/models"
	"github.com/stagecrew/rentline-backend/pkg/enums"
	"github.com/stagecrew/rentline-backend/pkg/types"
)

// ReserveInput describes one reserve call.
type ReserveInput struct {
	ProjectID   uuid.UUID
	SubjectType enums.SubjectType
	SubjectID   uuid.UUID
	Qty         int
	Window      types.Window
	// AllowFallback lets the engine cover a shortage with partner
	// capacity instead of failing.
	AllowFallback bool
}

// ReserveResult is the created reservation envelope. Components is
// populated for bundle subjects, Commitments when partner capacity
// covered part of the demand.
type ReserveResult struct {
	Reservation models.Reservation
	Components  []models.Reservation
	Commitments []models.ExternalCommitment
}

// Conflict is one item-level availability gap.
type Conflict struct {
	ItemID    uuid.UUID `json:"itemId"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// Shortfall is the uncovered remainder handed to the fallback provider.
type Shortfall struct {
	ItemID   uuid.UUID
	ItemKind string
	Qty      int
	Window   types.Window
}

// FallbackProvider covers shortfalls with partner capacity inside the
// reserve transaction. Implemented by internal/partners.
type FallbackProvider interface {
	Cover(ctx context.Context, tx *gorm.DB, reservationByItem map[uuid.UUID]uuid.UUID, projectID uuid.UUID, shortfalls []Shortfall) ([]models.ExternalCommitment, error)
}

// AvailabilityRequest is one read-only feasibility question.
type AvailabilityRequest struct {
	SubjectType enums.SubjectType
	SubjectID   uuid.UUID
	Qty         int
	Window      types.Window
}

// AvailabilityResult answers one request without reserving.
type AvailabilityResult struct {
	Request  AvailabilityRequest
	Feasible bool
	Details  []Conflict
}

// demand is one flattened per-item quantity inside a window.
type demand struct {
	itemID uuid.UUID
	qty    int
}
