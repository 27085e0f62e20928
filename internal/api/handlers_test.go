package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/skywatch/internal/config"
	"github.com/yegors/skywatch/internal/storage/sqlite"
	"github.com/yegors/skywatch/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	if err != nil {
		t.Fatalf("Failed to create test logger: %v", err)
	}
	return log
}

func testIncidentStorage(t *testing.T) *sqlite.IncidentStorage {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	storage, err := sqlite.NewIncidentStorage(db, testLogger(t))
	if err != nil {
		t.Fatalf("NewIncidentStorage failed: %v", err)
	}
	return storage
}

func TestGetIncidentsByCallsign(t *testing.T) {
	storage := testIncidentStorage(t)
	now := time.Now().UTC().Truncate(time.Second)
	for _, cs := range []string{"UAL451", "BAW9"} {
		if err := storage.UpsertIncident(&sqlite.IncidentRecord{
			ID:        cs + "-1",
			Callsign:  cs,
			State:     "resolved",
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			t.Fatalf("UpsertIncident failed: %v", err)
		}
	}

	h := NewHandler(nil, nil, nil, nil, nil, nil, storage, nil, &config.Config{}, testLogger(t))
	router := chi.NewRouter()
	router.Get("/incidents/callsign/{callsign}", h.GetIncidentsByCallsign)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/incidents/callsign/UAL451", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var body struct {
		Incidents []sqlite.IncidentRecord `json:"incidents"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(body.Incidents) != 1 {
		t.Fatalf("Expected 1 incident, got %d", len(body.Incidents))
	}
	if body.Incidents[0].Callsign != "UAL451" {
		t.Errorf("Expected UAL451 incident, got %q", body.Incidents[0].Callsign)
	}
}

func TestGetIncidentsByCallsignStorageDisabled(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil, nil, nil, nil, nil, &config.Config{}, testLogger(t))
	router := chi.NewRouter()
	router.Get("/incidents/callsign/{callsign}", h.GetIncidentsByCallsign)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/incidents/callsign/UAL451", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 with storage disabled, got %d", rec.Code)
	}
}
