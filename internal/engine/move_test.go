package engine

import (
	"context"
	"testing"

	"github.com/stagecrew/rentline-backend/pkg/authz"
	"github.com/stagecrew/rentline-backend/pkg/db/models"
	"github.com/stagecrew/rentline-backend/pkg/enums"
	pkgerrors "github.com/stagecrew/rentline-backend/pkg/errors"
)

func TestMoveProjectConflict(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	actor := authz.Actor{ID: "tester"}
	speaker := h.mustItem(t, "Speaker", 6)
	p1 := h.mustProject(t, "2025-08-01", "2025-08-03")
	p2 := h.mustProject(t, "2025-08-05", "2025-08-07")

	if _, err := h.svc.Reserve(ctx, actor, ReserveInput{
		ProjectID: p1.ID, SubjectType: enums.SubjectItem, SubjectID: speaker.ID,
		Qty: 4, Window: mustWindow(t, "2025-08-01", "2025-08-03"),
	}); err != nil {
		t.Fatalf("reserve p1: %v", err)
	}
	if _, err := h.svc.Reserve(ctx, actor, ReserveInput{
		ProjectID: p2.ID, SubjectType: enums.SubjectItem, SubjectID: speaker.ID,
		Qty: 3, Window: mustWindow(t, "2025-08-05", "2025-08-07"),
	}); err != nil {
		t.Fatalf("reserve p2: %v", err)
	}

	err := h.svc.MoveProject(ctx, actor, p1.ID, mustWindow(t, "2025-08-04", "2025-08-06"))
	if !pkgerrors.HasCode(err, pkgerrors.CodeShortageOnMove) {
		t.Fatalf("expected shortage on move, got %v", err)
	}
	typed := pkgerrors.As(err)
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected conflict details, got %T", typed.Details())
	}
	conflicts, ok := details["conflicts"].([]Conflict)
	if !ok || len(conflicts) != 1 {
		t.Fatalf("expected one conflict, got %+v", details)
	}
	if conflicts[0].Requested != 4 || conflicts[0].Available != 3 {
		t.Fatalf("expected req=4 avail=3, got %+v", conflicts[0])
	}

	// P1 unchanged.
	var row models.Reservation
	if err := h.db.First(&row, "project_id = ?", p1.ID).Error; err != nil {
		t.Fatalf("load p1 row: %v", err)
	}
	if row.Window().String() != mustWindow(t, "2025-08-01", "2025-08-03").String() {
		t.Fatalf("expected p1 window untouched, got %s", row.Window())
	}
}

func TestMoveProjectSucceeds(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	actor := authz.Actor{ID: "tester"}
	speaker := h.mustItem(t, "Speaker", 6)
	p1 := h.mustProject(t, "2025-08-01", "2025-08-03")
	p2 := h.mustProject(t, "2025-08-05", "2025-08-07")

	if _, err := h.svc.Reserve(ctx, actor, ReserveInput{
		ProjectID: p1.ID, SubjectType: enums.SubjectItem, SubjectID: speaker.ID,
		Qty: 4, Window: mustWindow(t, "2025-08-01", "2025-08-03"),
	}); err != nil {
		t.Fatalf("reserve p1: %v", err)
	}
	if _, err := h.svc.Reserve(ctx, actor, ReserveInput{
		ProjectID: p2.ID, SubjectType: enums.SubjectItem, SubjectID: speaker.ID,
		Qty: 3, Window: mustWindow(t, "2025-08-05", "2025-08-07"),
	}); err != nil {
		t.Fatalf("reserve p2: %v", err)
	}

	if err := h.svc.MoveProject(ctx, actor, p1.ID, mustWindow(t, "2025-08-10", "2025-08-12")); err != nil {
		t.Fatalf("move: %v", err)
	}

	// The vacated window is fully available again.
	results, err := h.svc.CheckAvailability(ctx, []AvailabilityRequest{{
		SubjectType: enums.SubjectItem, SubjectID: speaker.ID, Qty: 6,
		Window: mustWindow(t, "2025-08-01", "2025-08-03"),
	}})
	if err != nil {
		t.Fatalf("check availability: %v", err)
	}
	if !results[0].Feasible || results[0].Details[0].Available != 6 {
		t.Fatalf("expected 6 available in vacated window, got %+v", results[0])
	}

	// Durable rows were translated.
	var row models.Reservation
	if err := h.db.First(&row, "project_id = ?", p1.ID).Error; err != nil {
		t.Fatalf("load moved row: %v", err)
	}
	if row.Window().String() != mustWindow(t, "2025-08-10", "2025-08-12").String() {
		t.Fatalf("expected translated window, got %s", row.Window())
	}

	var project models.Project
	if err := h.db.First(&project, "id = ?", p1.ID).Error; err != nil {
		t.Fatalf("load project: %v", err)
	}
	if !project.WindowStart.Equal(mustWindow(t, "2025-08-10", "2025-08-12").Start) {
		t.Fatalf("expected project window updated, got %s", project.WindowStart)
	}
}

func TestMoveProjectRoundTrip(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	actor := authz.Actor{ID: "tester"}
	item := h.mustItem(t, "Truss", 8)
	project := h.mustProject(t, "2025-09-01", "2025-09-04")

	if _, err := h.svc.Reserve(ctx, actor, ReserveInput{
		ProjectID: project.ID, SubjectType: enums.SubjectItem, SubjectID: item.ID,
		Qty: 5, Window: mustWindow(t, "2025-09-01", "2025-09-04"),
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := h.svc.MoveProject(ctx, actor, project.ID, mustWindow(t, "2025-09-08", "2025-09-11")); err != nil {
		t.Fatalf("move forward: %v", err)
	}
	if err := h.svc.MoveProject(ctx, actor, project.ID, mustWindow(t, "2025-09-01", "2025-09-04")); err != nil {
		t.Fatalf("move back: %v", err)
	}

	var row models.Reservation
	if err := h.db.First(&row, "project_id = ?", project.ID).Error; err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.Window().String() != mustWindow(t, "2025-09-01", "2025-09-04").String() {
		t.Fatalf("expected original window after round trip, got %s", row.Window())
	}
}
