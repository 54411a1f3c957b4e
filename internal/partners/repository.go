package partners

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stagecrew/rentline-backend/pkg/db/models"
	"github.com/stagecrew/rentline-backend/pkg/enums"
)

// Repository persists locally synced partner slots and the external
// commitments cut against them.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// ListOpenSlots returns open slots of the kind whose validity covers
// the whole window, cheapest first with older slots breaking ties.
func (r *Repository) ListOpenSlots(ctx context.Context, itemKind string, windowStart, windowEnd time.Time) ([]models.PartnerSlot, error) {
	var slots []models.PartnerSlot
	err := r.db.WithContext(ctx).
		Where("item_kind = ? AND status = ? AND valid_from <= ? AND valid_to >= ? AND qty > 0",
			itemKind, enums.SlotOpen, windowStart, windowEnd).
		Order("unit_price ASC, valid_from ASC").
		Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

// TakeFromSlot reduces a slot's remaining quantity, flipping it to
// consumed when it hits zero.
func (r *Repository) TakeFromSlot(ctx context.Context, slot *models.PartnerSlot, qty int) error {
	slot.Qty -= qty
	if slot.Qty <= 0 {
		slot.Qty = 0
		slot.Status = enums.SlotConsumed
	}
	return r.db.WithContext(ctx).Save(slot).Error
}

// UpsertSlot writes a slot advertised by the partner, keyed by id.
func (r *Repository) UpsertSlot(ctx context.Context, slot *models.PartnerSlot) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"qty", "valid_from", "valid_to", "unit_price", "status", "updated_at"}),
		}).
		Create(slot).Error
}

// CreateCommitments inserts commitment rows inside the caller's tx.
func (r *Repository) CreateCommitments(ctx context.Context, rows []models.ExternalCommitment) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// ListPendingCommitments returns commitments awaiting partner sync,
// oldest first. Commitments whose reservation was cancelled are left to
// the release path instead of being pushed out.
func (r *Repository) ListPendingCommitments(ctx context.Context, limit int) ([]models.ExternalCommitment, error) {
	var rows []models.ExternalCommitment
	err := r.db.WithContext(ctx).
		Joins("JOIN reservations ON reservations.id = external_commitments.reservation_id").
		Where("external_commitments.status = ? AND reservations.state <> ?",
			enums.CommitmentPending, enums.ReservationCancelled).
		Order("external_commitments.created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListReleasableCommitments returns synced or pending commitments whose
// reservation has been cancelled.
func (r *Repository) ListReleasableCommitments(ctx context.Context, limit int) ([]models.ExternalCommitment, error) {
	var rows []models.ExternalCommitment
	err := r.db.WithContext(ctx).
		Joins("JOIN reservations ON reservations.id = external_commitments.reservation_id").
		Where("external_commitments.status IN ? AND reservations.state = ?",
			[]enums.CommitmentStatus{enums.CommitmentPending, enums.CommitmentSynced}, enums.ReservationCancelled).
		Order("external_commitments.created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SaveCommitment writes the commitment row back.
func (r *Repository) SaveCommitment(ctx context.Context, row *models.ExternalCommitment) error {
	return r.db.WithContext(ctx).Save(row).Error
}

// FindCommitment loads one commitment.
func (r *Repository) FindCommitment(ctx context.Context, id uuid.UUID) (*models.ExternalCommitment, error) {
	var row models.ExternalCommitment
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
