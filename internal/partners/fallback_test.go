package partners

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/stagecrew/rentline-backend/internal/engine"
	"github.com/stagecrew/rentline-backend/pkg/db/models"
	"github.com/stagecrew/rentline-backend/pkg/enums"
	pkgerrors "github.com/stagecrew/rentline-backend/pkg/errors"
	"github.com/stagecrew/rentline-backend/pkg/logger"
	"github.com/stagecrew/rentline-backend/pkg/types"
)

func newPartnersDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:partners_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.PartnerSlot{}, &models.ExternalCommitment{}, &models.Reservation{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "partners-test", Output: io.Discard})
}

func mustSlot(t *testing.T, db *gorm.DB, partnerID, kind string, qty int, price string, from, to time.Time) *models.PartnerSlot {
	t.Helper()
	unitPrice, err := decimal.NewFromString(price)
	if err != nil {
		t.Fatalf("parse price: %v", err)
	}
	slot := &models.PartnerSlot{
		ID:        uuid.New(),
		PartnerID: partnerID,
		ItemKind:  kind,
		Qty:       qty,
		ValidFrom: from,
		ValidTo:   to,
		UnitPrice: unitPrice,
		Status:    enums.SlotOpen,
	}
	if err := db.Create(slot).Error; err != nil {
		t.Fatalf("create slot: %v", err)
	}
	return slot
}

func mustCoverWindow(t *testing.T) types.Window {
	t.Helper()
	return types.NewDayWindow(time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC), time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC))
}

func TestFallbackCoversCheapestFirst(t *testing.T) {
	t.Parallel()
	db := newPartnersDB(t)
	ctx := context.Background()
	window := mustCoverWindow(t)

	cheap := mustSlot(t, db, "partner-a", "lighting", 2, "40.00", window.Start.AddDate(0, 0, -5), window.End.AddDate(0, 0, 5))
	pricey := mustSlot(t, db, "partner-b", "lighting", 10, "90.00", window.Start.AddDate(0, 0, -5), window.End.AddDate(0, 0, 5))

	fallback, err := NewFallback(NewRepository(db), testLogger())
	if err != nil {
		t.Fatalf("new fallback: %v", err)
	}

	itemID := uuid.New()
	reservationID := uuid.New()
	var commitments []models.ExternalCommitment
	err = db.Transaction(func(tx *gorm.DB) error {
		commitments, err = fallback.Cover(ctx, tx,
			map[uuid.UUID]uuid.UUID{itemID: reservationID},
			uuid.New(),
			[]engine.Shortfall{{ItemID: itemID, ItemKind: "lighting", Qty: 5, Window: window}},
		)
		return err
	})
	if err != nil {
		t.Fatalf("cover: %v", err)
	}
	if len(commitments) != 2 {
		t.Fatalf("expected 2 commitments, got %d", len(commitments))
	}
	if commitments[0].SlotID != cheap.ID || commitments[0].Qty != 2 {
		t.Fatalf("expected cheapest slot drained first, got %+v", commitments[0])
	}
	if commitments[1].SlotID != pricey.ID || commitments[1].Qty != 3 {
		t.Fatalf("expected remainder from pricier slot, got %+v", commitments[1])
	}
	if commitments[0].ReservationID != reservationID {
		t.Fatalf("commitment must reference the reservation")
	}

	var storedCheap models.PartnerSlot
	if err := db.First(&storedCheap, "id = ?", cheap.ID).Error; err != nil {
		t.Fatalf("reload slot: %v", err)
	}
	if storedCheap.Qty != 0 || storedCheap.Status != enums.SlotConsumed {
		t.Fatalf("drained slot should be consumed, got qty=%d status=%s", storedCheap.Qty, storedCheap.Status)
	}
	var stored int64
	if err := db.Model(&models.ExternalCommitment{}).Count(&stored).Error; err != nil {
		t.Fatalf("count commitments: %v", err)
	}
	if stored != 2 {
		t.Fatalf("expected 2 stored commitments, got %d", stored)
	}
}

func TestFallbackFailsWhenCapacityShort(t *testing.T) {
	t.Parallel()
	db := newPartnersDB(t)
	ctx := context.Background()
	window := mustCoverWindow(t)

	mustSlot(t, db, "partner-a", "lighting", 1, "40.00", window.Start.AddDate(0, 0, -5), window.End.AddDate(0, 0, 5))
	// Covers only part of the requested window, so it must be skipped.
	mustSlot(t, db, "partner-b", "lighting", 50, "10.00", window.Start.AddDate(0, 0, 1), window.End.AddDate(0, 0, 5))

	fallback, err := NewFallback(NewRepository(db), testLogger())
	if err != nil {
		t.Fatalf("new fallback: %v", err)
	}

	itemID := uuid.New()
	err = db.Transaction(func(tx *gorm.DB) error {
		_, coverErr := fallback.Cover(ctx, tx,
			map[uuid.UUID]uuid.UUID{itemID: uuid.New()},
			uuid.New(),
			[]engine.Shortfall{{ItemID: itemID, ItemKind: "lighting", Qty: 3, Window: window}},
		)
		return coverErr
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodePartnerUnavailable) {
		t.Fatalf("expected PARTNER_UNAVAILABLE, got %v", err)
	}

	var stored int64
	if err := db.Model(&models.ExternalCommitment{}).Count(&stored).Error; err != nil {
		t.Fatalf("count commitments: %v", err)
	}
	if stored != 0 {
		t.Fatalf("rolled back cover must leave no commitments, found %d", stored)
	}
	var slot models.PartnerSlot
	if err := db.First(&slot, "partner_id = ?", "partner-a").Error; err != nil {
		t.Fatalf("reload slot: %v", err)
	}
	if slot.Qty != 1 {
		t.Fatalf("rolled back cover must not drain slots, qty=%d", slot.Qty)
	}
}

func TestFallbackIgnoresWithdrawnSlots(t *testing.T) {
	t.Parallel()
	db := newPartnersDB(t)
	ctx := context.Background()
	window := mustCoverWindow(t)

	withdrawn := mustSlot(t, db, "partner-a", "lighting", 10, "5.00", window.Start.AddDate(0, 0, -5), window.End.AddDate(0, 0, 5))
	if err := db.Model(withdrawn).Update("status", enums.SlotWithdrawn).Error; err != nil {
		t.Fatalf("withdraw slot: %v", err)
	}
	open := mustSlot(t, db, "partner-b", "lighting", 10, "80.00", window.Start.AddDate(0, 0, -5), window.End.AddDate(0, 0, 5))

	fallback, err := NewFallback(NewRepository(db), testLogger())
	if err != nil {
		t.Fatalf("new fallback: %v", err)
	}
	itemID := uuid.New()
	var commitments []models.ExternalCommitment
	err = db.Transaction(func(tx *gorm.DB) error {
		commitments, err = fallback.Cover(ctx, tx,
			map[uuid.UUID]uuid.UUID{itemID: uuid.New()},
			uuid.New(),
			[]engine.Shortfall{{ItemID: itemID, ItemKind: "lighting", Qty: 2, Window: window}},
		)
		return err
	})
	if err != nil {
		t.Fatalf("cover: %v", err)
	}
	if len(commitments) != 1 || commitments[0].SlotID != open.ID {
		t.Fatalf("withdrawn slot must be skipped, got %+v", commitments)
	}
}
