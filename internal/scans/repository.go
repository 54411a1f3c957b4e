package scans

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagecrew/rentline-backend/pkg/db/models"
	"github.com/stagecrew/rentline-backend/pkg/enums"
)

var openStates = []enums.ReservationState{
	enums.ReservationTentative,
	enums.ReservationConfirmed,
}

// Repository wires together tag, movement and reservation persistence
// for scan reconciliation.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindTagByCode resolves a physical tag.
func (r *Repository) FindTagByCode(ctx context.Context, code string) (*models.Tag, error) {
	var tag models.Tag
	if err := r.db.WithContext(ctx).First(&tag, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

// TouchTag records that the tag was just seen.
func (r *Repository) TouchTag(ctx context.Context, tagID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Tag{}).
		Where("id = ?", tagID).
		Update("last_seen_at", at).Error
}

// CreateMovement persists one scan movement.
func (r *Repository) CreateMovement(ctx context.Context, movement *models.ScanMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

// FindOpenItemReservation returns the oldest open reservation for the
// project and item, or the most recently consumed one still short of
// its full quantity.
func (r *Repository) FindOpenItemReservation(ctx context.Context, projectID, itemID uuid.UUID) (*models.Reservation, error) {
	var row models.Reservation
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND subject_type = ? AND subject_id = ? AND state IN ?",
			projectID, enums.SubjectItem, itemID, openStates).
		Order("created_at ASC").
		First(&row).Error
	if err == nil {
		return &row, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	err = r.db.WithContext(ctx).
		Where("project_id = ? AND subject_type = ? AND subject_id = ? AND state = ? AND consumed_qty < qty",
			projectID, enums.SubjectItem, itemID, enums.ReservationConsumed).
		Order("created_at ASC").
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SaveReservation writes the reservation row back.
func (r *Repository) SaveReservation(ctx context.Context, row *models.Reservation) error {
	return r.db.WithContext(ctx).Save(row).Error
}

// FindOutstandingCheckout returns the latest outbound movement for the
// project and item that has not been returned yet.
func (r *Repository) FindOutstandingCheckout(ctx context.Context, projectID, itemID uuid.UUID) (*models.ScanMovement, error) {
	var movement models.ScanMovement
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND item_id = ? AND direction = ? AND returned_at IS NULL",
			projectID, itemID, enums.ScanOut).
		Order("recorded_at DESC").
		First(&movement).Error; err != nil {
		return nil, err
	}
	return &movement, nil
}

// MarkReturned stamps the outbound movement as returned.
func (r *Repository) MarkReturned(ctx context.Context, movementID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ScanMovement{}).
		Where("id = ?", movementID).
		Update("returned_at", at).Error
}
