package availability

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagecrew/rentline-backend/pkg/db/models"
	"github.com/stagecrew/rentline-backend/pkg/enums"
)

var stockHoldingStates = []enums.ReservationState{
	enums.ReservationTentative,
	enums.ReservationConfirmed,
	enums.ReservationConsumed,
}

// Loader rebuilds index shards from durable reservation rows.
type Loader struct {
	db *gorm.DB
}

// NewLoader builds a loader over the given GORM DB.
func NewLoader(db *gorm.DB) *Loader {
	return &Loader{db: db}
}

// LoadAll returns an index populated from every stock-holding item
// reservation. Bundle parent rows carry no stock themselves and are
// skipped.
func (l *Loader) LoadAll(ctx context.Context) (*Index, error) {
	var rows []models.Reservation
	if err := l.db.WithContext(ctx).
		Where("subject_type = ? AND state IN ?", enums.SubjectItem, stockHoldingStates).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	index := NewIndex()
	for _, row := range rows {
		index.Insert(entryFromRow(row))
	}
	return index, nil
}

// ItemEntries loads the durable entries for one item, used to rebuild
// the shard after a rolled back transaction.
func (l *Loader) ItemEntries(ctx context.Context, itemID uuid.UUID) ([]Entry, error) {
	var rows []models.Reservation
	if err := l.db.WithContext(ctx).
		Where("subject_type = ? AND subject_id = ? AND state IN ?", enums.SubjectItem, itemID, stockHoldingStates).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, entryFromRow(row))
	}
	return entries, nil
}

func entryFromRow(row models.Reservation) Entry {
	return Entry{
		ReservationID: row.ID,
		ProjectID:     row.ProjectID,
		ItemID:        row.SubjectID,
		Qty:           row.Qty,
		Window:        row.Window(),
	}
}
