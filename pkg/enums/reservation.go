package enums

import "fmt"

// ReservationState maps to the reservation_state enum in Postgres.
type ReservationState string

const (
	ReservationTentative ReservationState = "tentative"
	ReservationConfirmed ReservationState = "confirmed"
	ReservationConsumed  ReservationState = "consumed"
	ReservationCancelled ReservationState = "cancelled"
)

var validReservationStates = []ReservationState{
	ReservationTentative,
	ReservationConfirmed,
	ReservationConsumed,
	ReservationCancelled,
}

// reservationRank orders the forward-only lifecycle. Cancelled is terminal
// and reachable from every state.
var reservationRank = map[ReservationState]int{
	ReservationTentative: 0,
	ReservationConfirmed: 1,
	ReservationConsumed:  2,
}

// IsValid reports whether the value matches the canonical reservation_state enum.
func (s ReservationState) IsValid() bool {
	for _, candidate := range validReservationStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// HoldsStock reports whether a reservation in this state counts against
// item availability.
func (s ReservationState) HoldsStock() bool {
	return s == ReservationTentative || s == ReservationConfirmed || s == ReservationConsumed
}

// CanTransitionTo enforces the forward-only lifecycle:
// tentative -> confirmed -> consumed, and any state -> cancelled.
func (s ReservationState) CanTransitionTo(next ReservationState) bool {
	if s == next {
		return false
	}
	if s == ReservationCancelled {
		return false
	}
	if next == ReservationCancelled {
		return true
	}
	from, okFrom := reservationRank[s]
	to, okTo := reservationRank[next]
	return okFrom && okTo && to > from
}

// ParseReservationState converts raw input into ReservationState.
func ParseReservationState(value string) (ReservationState, error) {
	for _, candidate := range validReservationStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reservation state %q", value)
}

// SubjectType distinguishes what a reservation holds.
type SubjectType string

const (
	SubjectItem   SubjectType = "item"
	SubjectBundle SubjectType = "bundle"
)

// IsValid reports whether the value matches the canonical subject_type enum.
func (s SubjectType) IsValid() bool {
	return s == SubjectItem || s == SubjectBundle
}

// ParseSubjectType converts raw input into SubjectType.
func ParseSubjectType(value string) (SubjectType, error) {
	switch SubjectType(value) {
	case SubjectItem:
		return SubjectItem, nil
	case SubjectBundle:
		return SubjectBundle, nil
	}
	return "", fmt.Errorf("invalid subject type %q", value)
}

// WindowPrecision tags the granularity a reservation window was made at.
type WindowPrecision string

const (
	PrecisionDay       WindowPrecision = "day"
	PrecisionTimestamp WindowPrecision = "timestamp"
)

// IsValid reports whether the value matches the canonical window_precision enum.
func (p WindowPrecision) IsValid() bool {
	return p == PrecisionDay || p == PrecisionTimestamp
}
