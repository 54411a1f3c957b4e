package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateReservation        OutboxAggregateType = "reservation"
	AggregateProject            OutboxAggregateType = "project"
	AggregateExternalCommitment OutboxAggregateType = "external_commitment"
	AggregateScanMovement       OutboxAggregateType = "scan_movement"
	AggregateObligation         OutboxAggregateType = "obligation"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateReservation,
	AggregateProject,
	AggregateExternalCommitment,
	AggregateScanMovement,
	AggregateObligation,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventReservationCreated        OutboxEventType = "reservation_created"
	EventReservationReleased       OutboxEventType = "reservation_released"
	EventReservationConfirmed      OutboxEventType = "reservation_confirmed"
	EventProjectMoved              OutboxEventType = "project_moved"
	EventShortageDetected          OutboxEventType = "shortage_detected"
	EventExternalCommitmentCreated OutboxEventType = "external_commitment_created"
	EventScanReconciled            OutboxEventType = "scan_reconciled"
	EventObligationFired           OutboxEventType = "obligation_fired"
	EventObligationFailed          OutboxEventType = "obligation_failed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventReservationCreated,
	EventReservationReleased,
	EventReservationConfirmed,
	EventProjectMoved,
	EventShortageDetected,
	EventExternalCommitmentCreated,
	EventScanReconciled,
	EventObligationFired,
	EventObligationFailed,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
