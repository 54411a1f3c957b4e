package enums

// PartnerSlotStatus maps to the partner_slot_status enum in Postgres.
type PartnerSlotStatus string

const (
	SlotOpen      PartnerSlotStatus = "open"
	SlotConsumed  PartnerSlotStatus = "consumed"
	SlotWithdrawn PartnerSlotStatus = "withdrawn"
)

// IsValid reports whether the value matches the canonical partner_slot_status enum.
func (s PartnerSlotStatus) IsValid() bool {
	switch s {
	case SlotOpen, SlotConsumed, SlotWithdrawn:
		return true
	}
	return false
}

// CommitmentStatus tracks the sync lifecycle of an external commitment.
// The local row is authoritative until the partner acknowledges it.
type CommitmentStatus string

const (
	CommitmentPending  CommitmentStatus = "pending"
	CommitmentSynced   CommitmentStatus = "synced"
	CommitmentReleased CommitmentStatus = "released"
	CommitmentFailed   CommitmentStatus = "failed"
)

// IsValid reports whether the value matches the canonical commitment_status enum.
func (s CommitmentStatus) IsValid() bool {
	switch s {
	case CommitmentPending, CommitmentSynced, CommitmentReleased, CommitmentFailed:
		return true
	}
	return false
}
