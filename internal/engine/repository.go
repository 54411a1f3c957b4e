package engine

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

// Repository wires together reservation and project persistence.
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

// FindReservation loads one reservation row.
func (r *Repository) FindReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var row models.Reservation
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ListComponents loads the component rows of a bundle parent.
func (r *Repository) ListComponents(ctx context.Context, parentID uuid.UUID) ([]models.Reservation, error) {
	var rows []models.Reservation
	if err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByProject returns every reservation attached to the project,
// cancelled rows excluded.
func (r *Repository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Reservation, error) {
	var rows []models.Reservation
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND state <> ?", projectID, enums.ReservationCancelled).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindOpenItemReservation returns the oldest open reservation for the
// given project and item, used by scan reconciliation.
func (r *Repository) FindOpenItemReservation(ctx context.Context, projectID, itemID uuid.UUID) (*models.Reservation, error) {
	var row models.Reservation
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND subject_type = ? AND subject_id = ? AND state IN ?",
			projectID, enums.SubjectItem, itemID, openStates).
		Order("created_at ASC").
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// CreateAll inserts the given reservation rows in one statement.
func (r *Repository) CreateAll(ctx context.Context, rows []models.Reservation) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// UpdateStates sets the state of every given reservation id.
func (r *Repository) UpdateStates(ctx context.Context, ids []uuid.UUID, state enums.ReservationState) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id IN ?", ids).
		Update("state", state).Error
}

// SaveReservation writes the full row back.
func (r *Repository) SaveReservation(ctx context.Context, row *models.Reservation) error {
	return r.db.WithContext(ctx).Save(row).Error
}

// UpdateWindows translates the windows of the given rows.
func (r *Repository) UpdateWindows(ctx context.Context, rows []models.Reservation) error {
	for i := range rows {
		if err := r.db.WithContext(ctx).
			Model(&models.Reservation{}).
			Where("id = ?", rows[i].ID).
			Updates(map[string]any{
				"window_start": rows[i].WindowStart,
				"window_end":   rows[i].WindowEnd,
			}).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindProject loads one project row.
func (r *Repository) FindProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).First(&project, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// CreateProject persists a new project.
func (r *Repository) CreateProject(ctx context.Context, project *models.Project) (*models.Project, error) {
	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		return nil, err
	}
	return project, nil
}

// UpdateProjectWindow writes the project's new window.
func (r *Repository) UpdateProjectWindow(ctx context.Context, projectID uuid.UUID, start, end time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Project{}).
		Where("id = ?", projectID).
		Updates(map[string]any{"window_start": start, "window_end": end}).Error
}
