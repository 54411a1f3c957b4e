package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stagecrew/rentline-backend/api/middleware"
	"github.com/stagecrew/rentline-backend/internal/engine"
	"github.com/stagecrew/rentline-backend/pkg/authz"
	"github.com/stagecrew/rentline-backend/pkg/db/models"
	"github.com/stagecrew/rentline-backend/pkg/enums"
	pkgerrors "github.com/stagecrew/rentline-backend/pkg/errors"
	"github.com/stagecrew/rentline-backend/pkg/types"
)

type stubEngine struct {
	reserveResult *engine.ReserveResult
	reserveErr    error
	reserveInput  engine.ReserveInput

	transitionRow *models.Reservation
	transitionErr error

	moveErr    error
	moveWindow types.Window

	availability []engine.AvailabilityResult
}

func (s *stubEngine) Reserve(_ context.Context, _ authz.Actor, input engine.ReserveInput) (*engine.ReserveResult, error) {
	s.reserveInput = input
	if s.reserveErr != nil {
		return nil, s.reserveErr
	}
	return s.reserveResult, nil
}

func (s *stubEngine) Release(context.Context, authz.Actor, uuid.UUID) (*models.Reservation, error) {
	return s.transitionRow, s.transitionErr
}

func (s *stubEngine) Confirm(context.Context, authz.Actor, uuid.UUID) (*models.Reservation, error) {
	return s.transitionRow, s.transitionErr
}

func (s *stubEngine) Consume(context.Context, authz.Actor, uuid.UUID) (*models.Reservation, error) {
	return s.transitionRow, s.transitionErr
}

func (s *stubEngine) MoveProject(_ context.Context, _ authz.Actor, _ uuid.UUID, window types.Window) error {
	s.moveWindow = window
	return s.moveErr
}

func (s *stubEngine) CheckAvailability(context.Context, []engine.AvailabilityRequest) ([]engine.AvailabilityResult, error) {
	return s.availability, nil
}

func withTestActor(req *http.Request) *http.Request {
	actor := authz.Actor{ID: uuid.NewString(), Role: "planner"}
	return req.WithContext(middleware.WithActor(req.Context(), actor))
}

func TestReservationCreateSuccess(t *testing.T) {
	t.Parallel()

	projectID := uuid.New()
	itemID := uuid.New()
	svc := &stubEngine{reserveResult: &engine.ReserveResult{
		Reservation: models.Reservation{
			ID:          uuid.New(),
			ProjectID:   projectID,
			SubjectType: enums.SubjectItem,
			SubjectID:   itemID,
			Qty:         3,
			WindowStart: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			WindowEnd:   time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC),
			State:       enums.ReservationTentative,
		},
	}}
	handler := ReservationCreate(svc, nil)

	payload := fmt.Sprintf(`{
		"project_id": %q,
		"subject_type": "item",
		"subject_id": %q,
		"qty": 3,
		"window_start": "2026-09-01",
		"window_end": "2026-09-05"
	}`, projectID, itemID)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", bytes.NewReader([]byte(payload)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, withTestActor(req))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data reserveResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Reservation.ProjectID != projectID {
		t.Fatalf("expected project %s got %s", projectID, envelope.Data.Reservation.ProjectID)
	}
	if svc.reserveInput.Qty != 3 {
		t.Fatalf("expected qty 3 passed to engine, got %d", svc.reserveInput.Qty)
	}
	if !svc.reserveInput.Window.Start.Equal(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window start %s", svc.reserveInput.Window.Start)
	}
}

func TestReservationCreateMissingActor(t *testing.T) {
	t.Parallel()

	handler := ReservationCreate(&stubEngine{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
}

func TestReservationCreateValidation(t *testing.T) {
	t.Parallel()

	handler := ReservationCreate(&stubEngine{}, nil)

	payload := fmt.Sprintf(`{"project_id": %q, "subject_type": "item"}`, uuid.New())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", bytes.NewReader([]byte(payload)))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, withTestActor(req))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestReservationCreateShortage(t *testing.T) {
	t.Parallel()

	itemID := uuid.New()
	shortage := pkgerrors.New(pkgerrors.CodeShortage, "insufficient availability").
		WithDetails(map[string]any{"conflicts": []engine.Conflict{{ItemID: itemID, Requested: 5, Available: 2}}})
	handler := ReservationCreate(&stubEngine{reserveErr: shortage}, nil)

	payload := fmt.Sprintf(`{
		"project_id": %q,
		"subject_type": "item",
		"subject_id": %q,
		"qty": 5,
		"window_start": "2026-09-01",
		"window_end": "2026-09-05"
	}`, uuid.New(), itemID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", bytes.NewReader([]byte(payload)))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, withTestActor(req))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Details any    `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeShortage) {
		t.Fatalf("expected shortage code got %s", envelope.Error.Code)
	}
	if envelope.Error.Details == nil {
		t.Fatal("expected shortage conflicts in details")
	}
}

func TestReservationConfirmSuccess(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	svc := &stubEngine{transitionRow: &models.Reservation{ID: id, State: enums.ReservationConfirmed}}
	handler := ReservationConfirm(svc, nil)

	router := chi.NewRouter()
	router.Post("/api/v1/reservations/{reservationID}/confirm", handler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/"+id.String()+"/confirm", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, withTestActor(req))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data reservationDTO `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.State != string(enums.ReservationConfirmed) {
		t.Fatalf("expected confirmed got %s", envelope.Data.State)
	}
}

func TestReservationReleaseStateConflict(t *testing.T) {
	t.Parallel()

	svc := &stubEngine{transitionErr: pkgerrors.New(pkgerrors.CodeStateConflict, "cannot release consumed reservation")}
	handler := ReservationRelease(svc, nil)

	router := chi.NewRouter()
	router.Post("/api/v1/reservations/{reservationID}/release", handler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/"+uuid.NewString()+"/release", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, withTestActor(req))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}
}

func TestReservationTransitionBadID(t *testing.T) {
	t.Parallel()

	handler := ReservationConsume(&stubEngine{}, nil)

	router := chi.NewRouter()
	router.Post("/api/v1/reservations/{reservationID}/consume", handler)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/not-a-uuid/consume", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, withTestActor(req))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
