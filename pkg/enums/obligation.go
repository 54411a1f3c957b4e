package enums

import "fmt"

// ObligationKind selects the handler for a recurring obligation.
type ObligationKind string

const (
	ObligationRecurringProject ObligationKind = "recurring_project"
	ObligationLeaseRollover    ObligationKind = "lease_rollover"
)

var validObligationKinds = []ObligationKind{
	ObligationRecurringProject,
	ObligationLeaseRollover,
}

// IsValid reports whether the value matches the canonical obligation_kind enum.
func (k ObligationKind) IsValid() bool {
	for _, candidate := range validObligationKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseObligationKind converts raw input into ObligationKind.
func ParseObligationKind(value string) (ObligationKind, error) {
	for _, candidate := range validObligationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid obligation kind %q", value)
}

// ObligationStatus maps to the obligation_status enum in Postgres.
type ObligationStatus string

const (
	ObligationActive   ObligationStatus = "active"
	ObligationRunning  ObligationStatus = "running"
	ObligationFailed   ObligationStatus = "failed"
	ObligationDisabled ObligationStatus = "disabled"
)

// IsValid reports whether the value matches the canonical obligation_status enum.
func (s ObligationStatus) IsValid() bool {
	switch s {
	case ObligationActive, ObligationRunning, ObligationFailed, ObligationDisabled:
		return true
	}
	return false
}
