package httptransport

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/mock/gomock"

	"hive/internal/directory/mocks"
	dirsynchandler "hive/internal/dirsync/handler"
	"hive/internal/dirsync/runlock"
	dirsyncservice "hive/internal/dirsync/service"
	runstore "hive/internal/dirsync/store/memory"
	"hive/internal/org/scope"
	employeestore "hive/internal/org/store/employee"
	groupstore "hive/internal/org/store/group"
	membershipstore "hive/internal/org/store/membership"
	validationhandler "hive/internal/validation/handler"
	validationservice "hive/internal/validation/service"
	requeststore "hive/internal/validation/store/memory"
	"hive/pkg/platform/audit"
	auditmemory "hive/pkg/platform/audit/store/memory"
	"hive/pkg/platform/middleware/auth"
)

const signingKey = "router-test-key"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().ListManagedGroups(gomock.Any()).Return(nil, nil).AnyTimes()

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	employees := employeestore.NewInMemory()
	groups := groupstore.NewInMemory()
	memberships := membershipstore.NewInMemory()
	requests := requeststore.New()
	recorder := audit.NewRecorder(auditmemory.New(), audit.WithLogger(logger))
	resolver := scope.NewResolver(groups, scope.NewStaticDirectory())

	syncService := dirsyncservice.NewService(
		runstore.New(),
		dirsyncservice.NewFetcher(client, 1, logger),
		dirsyncservice.NewDiffer(employees, groups, memberships, logger),
		dirsyncservice.NewRouter(employees, groups, memberships, requests, resolver, recorder, logger),
		runlock.NewMemory(),
		recorder,
		dirsyncservice.WithLogger(logger),
	)
	validationService := validationservice.NewService(requests, employees, groups, memberships, resolver, recorder, validationservice.WithLogger(logger))

	return NewRouter(Deps{
		Sync:       dirsynchandler.New(syncService, logger),
		Validation: validationhandler.New(validationService, logger),
		Auth:       auth.NewHMACValidator(signingKey),
		Logger:     logger,
	})
}

func mintToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(signingKey))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestOperationalEndpointsAreOpen(t *testing.T) {
	router := newTestRouter(t)

	health := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	healthRec := httptest.NewRecorder()
	router.ServeHTTP(healthRec, health)
	if healthRec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /healthz, got %d", healthRec.Code)
	}

	metrics := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsRec := httptest.NewRecorder()
	router.ServeHTTP(metricsRec, metrics)
	if metricsRec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", metricsRec.Code)
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/sync/runs", "/validation/requests"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 from %s without a token, got %d", path, rec.Code)
		}
	}
}

func TestAuthenticatedTriggerFlowsThrough(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/sync/runs", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "ops@example.org"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 from an authenticated trigger, got %d: %s", rec.Code, rec.Body.String())
	}
}
