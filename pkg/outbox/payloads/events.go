// Package payloads declares the wire payloads carried by outbox events.
// Downstream email/webhook/CRM subsystems decode these by event type.
package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stagecrew/rentline-backend/pkg/enums"
)

// ReservationCreated fires once per successful reserve call.
type ReservationCreated struct {
	ReservationID uuid.UUID             `json:"reservationId"`
	ProjectID     uuid.UUID             `json:"projectId"`
	SubjectType   enums.SubjectType     `json:"subjectType"`
	SubjectID     uuid.UUID             `json:"subjectId"`
	Qty           int                   `json:"qty"`
	WindowStart   time.Time             `json:"windowStart"`
	WindowEnd     time.Time             `json:"windowEnd"`
	Precision     enums.WindowPrecision `json:"precision"`
}

// ReservationReleased fires when a reservation transitions to cancelled.
type ReservationReleased struct {
	ReservationID uuid.UUID              `json:"reservationId"`
	ProjectID     uuid.UUID              `json:"projectId"`
	PriorState    enums.ReservationState `json:"priorState"`
}

// ReservationConfirmed fires on tentative -> confirmed promotion.
type ReservationConfirmed struct {
	ReservationID uuid.UUID `json:"reservationId"`
	ProjectID     uuid.UUID `json:"projectId"`
}

// ProjectMoved fires after an atomic project window translation.
type ProjectMoved struct {
	ProjectID uuid.UUID `json:"projectId"`
	OldStart  time.Time `json:"oldStart"`
	OldEnd    time.Time `json:"oldEnd"`
	NewStart  time.Time `json:"newStart"`
	NewEnd    time.Time `json:"newEnd"`
}

// ShortageConflict is one item-level gap inside a shortage event.
type ShortageConflict struct {
	ItemID    uuid.UUID `json:"itemId"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// ShortageDetected fires when a reserve or move fails on availability.
type ShortageDetected struct {
	ProjectID uuid.UUID          `json:"projectId"`
	Conflicts []ShortageConflict `json:"conflicts"`
	OnMove    bool               `json:"onMove"`
}

// ExternalCommitmentCreated fires when partner capacity covers a shortfall.
type ExternalCommitmentCreated struct {
	CommitmentID  uuid.UUID       `json:"commitmentId"`
	ReservationID uuid.UUID       `json:"reservationId"`
	PartnerID     string          `json:"partnerId"`
	ItemID        uuid.UUID       `json:"itemId"`
	Qty           int             `json:"qty"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
}

// ScanReconciled fires for every accepted scan movement.
type ScanReconciled struct {
	MovementID uuid.UUID           `json:"movementId"`
	TagCode    string              `json:"tagCode"`
	ProjectID  uuid.UUID           `json:"projectId"`
	Direction  enums.ScanDirection `json:"direction"`
	Type       enums.MovementType  `json:"type"`
	Qty        int                 `json:"qty"`
}

// ObligationFired fires after the scheduler successfully ran an obligation.
type ObligationFired struct {
	ObligationID uuid.UUID            `json:"obligationId"`
	Kind         enums.ObligationKind `json:"kind"`
	FiredAt      time.Time            `json:"firedAt"`
	NextFireAt   time.Time            `json:"nextFireAt"`
}

// ObligationFailed fires when an obligation exhausted its retry budget.
type ObligationFailed struct {
	ObligationID uuid.UUID            `json:"obligationId"`
	Kind         enums.ObligationKind `json:"kind"`
	Attempts     int                  `json:"attempts"`
	LastError    string               `json:"lastError"`
}
