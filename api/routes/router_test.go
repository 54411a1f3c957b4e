package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stagecrew/rentline-backend/internal/engine"
	"github.com/stagecrew/rentline-backend/pkg/authz"
	"github.com/stagecrew/rentline-backend/pkg/config"
	"github.com/stagecrew/rentline-backend/pkg/db/models"
	"github.com/stagecrew/rentline-backend/pkg/enums"
	"github.com/stagecrew/rentline-backend/pkg/logger"
	"github.com/stagecrew/rentline-backend/pkg/types"
)

type stubEngine struct {
	reservation *models.Reservation
}

func (s *stubEngine) Reserve(ctx context.Context, actor authz.Actor, input engine.ReserveInput) (*engine.ReserveResult, error) {
	return &engine.ReserveResult{Reservation: *s.reservation}, nil
}

func (s *stubEngine) Release(ctx context.Context, actor authz.Actor, id uuid.UUID) (*models.Reservation, error) {
	return s.reservation, nil
}

func (s *stubEngine) Confirm(ctx context.Context, actor authz.Actor, id uuid.UUID) (*models.Reservation, error) {
	return s.reservation, nil
}

func (s *stubEngine) Consume(ctx context.Context, actor authz.Actor, id uuid.UUID) (*models.Reservation, error) {
	return s.reservation, nil
}

func (s *stubEngine) MoveProject(ctx context.Context, actor authz.Actor, projectID uuid.UUID, window types.Window) error {
	return nil
}

func (s *stubEngine) CheckAvailability(ctx context.Context, requests []engine.AvailabilityRequest) ([]engine.AvailabilityResult, error) {
	out := make([]engine.AvailabilityResult, 0, len(requests))
	for _, req := range requests {
		out = append(out, engine.AvailabilityResult{Request: req, Feasible: true})
	}
	return out, nil
}

type stubProjects struct{}

func (stubProjects) FindProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return &models.Project{ID: id, ClientRef: "stub"}, nil
}

func (stubProjects) CreateProject(ctx context.Context, project *models.Project) (*models.Project, error) {
	return project, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{}
	cfg.App.Env = "test"
	res := &models.Reservation{
		ID:          uuid.New(),
		ProjectID:   uuid.New(),
		SubjectType: enums.SubjectItem,
		SubjectID:   uuid.New(),
		Qty:         1,
		State:       enums.ReservationTentative,
		WindowStart: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC),
	}
	return NewRouter(cfg, logger.New(logger.Options{ServiceName: "router-test"}), Services{
		Engine:   &stubEngine{reservation: res},
		Projects: stubProjects{},
	})
}

func TestRouterHealthLive(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 but got %d", rec.Code)
	}
	if got := rec.Header().Get("X-Rentline-Env"); got != "test" {
		t.Fatalf("expected env header test but got %q", got)
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 but got %d", rec.Code)
	}
}

func TestRouterActorHeaderReachesEngine(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	body := `{"project_id":"` + uuid.NewString() + `","subject_type":"item","subject_id":"` + uuid.NewString() + `","qty":1,"window_start":"2026-09-01","window_end":"2026-09-05"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-Id", "user-1")
	req.Header.Set("X-Actor-Role", "planner")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 but got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouterMissingActorRejected(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	body := `{"project_id":"` + uuid.NewString() + `","subject_type":"item","subject_id":"` + uuid.NewString() + `","qty":1,"window_start":"2026-09-01","window_end":"2026-09-05"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 but got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRouterAvailabilityCheck(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	body := `{"checks":[{"subject_type":"item","subject_id":"` + uuid.NewString() + `","qty":2,"window_start":"2026-09-01","window_end":"2026-09-03"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/availability/check", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 but got %d: %s", rec.Code, rec.Body.String())
	}
	var envelope types.SuccessEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
}

func TestRouterMetricsExposed(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 but got %d", rec.Code)
	}
}
