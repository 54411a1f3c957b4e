package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagecrew/rentline-backend/pkg/db/models"
	"github.com/stagecrew/rentline-backend/pkg/enums"
)

// Repository persists recurring obligations.
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

// ListDue returns active obligations whose fire time has passed.
func (r *Repository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.RecurringObligation, error) {
	var rows []models.RecurringObligation
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_fire_at <= ?", enums.ObligationActive, now).
		Order("next_fire_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Claim flips one due obligation to running for this worker. The
// conditional update makes the claim safe against concurrent workers:
// only one of them sees a row affected.
func (r *Repository) Claim(ctx context.Context, id uuid.UUID, worker string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RecurringObligation{}).
		Where("id = ? AND status = ? AND next_fire_at <= ?", id, enums.ObligationActive, now).
		Updates(map[string]any{
			"status":     enums.ObligationRunning,
			"claimed_by": worker,
			"claimed_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Find loads one obligation.
func (r *Repository) Find(ctx context.Context, id uuid.UUID) (*models.RecurringObligation, error) {
	var row models.RecurringObligation
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Save writes the obligation row back.
func (r *Repository) Save(ctx context.Context, row *models.RecurringObligation) error {
	return r.db.WithContext(ctx).Save(row).Error
}

// Create inserts a new obligation.
func (r *Repository) Create(ctx context.Context, row *models.RecurringObligation) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// FindProject loads a project for window-shifting handlers.
func (r *Repository) FindProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).First(&project, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// CreateProject inserts a project row created by a handler.
func (r *Repository) CreateProject(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}
