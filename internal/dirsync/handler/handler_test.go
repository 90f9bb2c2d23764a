package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/mock/gomock"

	"hive/internal/directory"
	"hive/internal/directory/mocks"
	"hive/internal/dirsync/runlock"
	"hive/internal/dirsync/service"
	runstore "hive/internal/dirsync/store/memory"
	"hive/internal/org/scope"
	employeestore "hive/internal/org/store/employee"
	groupstore "hive/internal/org/store/group"
	membershipstore "hive/internal/org/store/membership"
	requeststore "hive/internal/validation/store/memory"
	"hive/pkg/platform/audit"
	auditmemory "hive/pkg/platform/audit/store/memory"
	"hive/pkg/testutil"
)

type syncFixture struct {
	router http.Handler
	client *mocks.MockClient
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	employees := employeestore.NewInMemory()
	groups := groupstore.NewInMemory()
	memberships := membershipstore.NewInMemory()
	recorder := audit.NewRecorder(auditmemory.New(), audit.WithLogger(logger))
	resolver := scope.NewResolver(groups, scope.NewStaticDirectory())

	svc := service.NewService(
		runstore.New(),
		service.NewFetcher(client, 2, logger),
		service.NewDiffer(employees, groups, memberships, logger),
		service.NewRouter(employees, groups, memberships, requeststore.New(), resolver, recorder, logger),
		runlock.NewMemory(),
		recorder,
		service.WithLogger(logger),
	)

	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	return &syncFixture{router: r, client: client}
}

func TestTriggerRequiresAuthentication(t *testing.T) {
	f := newSyncFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/sync/runs", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without an actor, got %d", rec.Code)
	}
}

func TestTriggerReturnsCompletedRun(t *testing.T) {
	f := newSyncFixture(t)
	f.client.EXPECT().ListManagedGroups(gomock.Any()).Return([]directory.Group{
		{ID: "g1", DisplayName: "org-Engineering"},
	}, nil)
	f.client.EXPECT().ListGroupMembers(gomock.Any(), "g1").Return(nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/sync/runs", nil)
	req = testutil.WithActor(req, "ops@example.org")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var run struct {
		ID        string `json:"id"`
		Status    string `json:"status"`
		Initiator string `json:"initiator"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&run); err != nil {
		t.Fatalf("failed to decode run: %v", err)
	}
	if run.Status != "completed" {
		t.Fatalf("expected completed run, got %q", run.Status)
	}
	if run.Initiator != "ops@example.org" {
		t.Fatalf("expected initiator from actor, got %q", run.Initiator)
	}

	// The terminal run is retrievable by id.
	getReq := httptest.NewRequest(http.MethodGet, "/sync/runs/"+run.ID, nil)
	getReq = testutil.WithActor(getReq, "ops@example.org")
	getRec := httptest.NewRecorder()
	f.router.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching run, got %d", getRec.Code)
	}
}

func TestTriggerSurfacesFetchFailure(t *testing.T) {
	f := newSyncFixture(t)
	f.client.EXPECT().ListManagedGroups(gomock.Any()).
		Return(nil, directory.NewFetchError("list groups", http.ErrHandlerTimeout))

	req := httptest.NewRequest(http.MethodPost, "/sync/runs", nil)
	req = testutil.WithActor(req, "ops@example.org")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 on fetch failure, got %d", rec.Code)
	}

	var run struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&run); err != nil {
		t.Fatalf("failed to decode failed run: %v", err)
	}
	if run.Status != "failed" {
		t.Fatalf("expected the failed ledger entry in the body, got %q", run.Status)
	}
}

func TestCurrentIsNotFoundWhileIdle(t *testing.T) {
	f := newSyncFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/sync/runs/current", nil)
	req = testutil.WithActor(req, "ops@example.org")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 while idle, got %d", rec.Code)
	}
}

func TestHistoryRejectsNonNumericLimit(t *testing.T) {
	f := newSyncFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/sync/runs?limit=many", nil)
	req = testutil.WithActor(req, "ops@example.org")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad limit, got %d", rec.Code)
	}
}
