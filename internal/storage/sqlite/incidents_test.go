package sqlite

import (
	"testing"
	"time"
)

func TestIncidentUpsertRefreshesExisting(t *testing.T) {
	db, log := testDB(t)
	storage, err := NewIncidentStorage(db, log)
	if err != nil {
		t.Fatalf("NewIncidentStorage failed: %v", err)
	}

	created := time.Now().UTC().Truncate(time.Second)
	record := &IncidentRecord{
		ID:            "UAL451-1000",
		Callsign:      "UAL451",
		State:         "escalated",
		UrgencyLevel:  "critical",
		EmergencyType: "mayday",
		Confidence:    0.9,
		Summary:       "Mayday declared, engine fire",
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	if err := storage.UpsertIncident(record); err != nil {
		t.Fatalf("UpsertIncident failed: %v", err)
	}

	record.State = "call_triggered"
	record.CallID = "call-42"
	record.UpdatedAt = created.Add(time.Minute)
	if err := storage.UpsertIncident(record); err != nil {
		t.Fatalf("Second UpsertIncident failed: %v", err)
	}

	records, err := storage.GetIncidentsByCallsign("UAL451", 10)
	if err != nil {
		t.Fatalf("GetIncidentsByCallsign failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected upsert to keep a single record, got %d", len(records))
	}
	if records[0].State != "call_triggered" {
		t.Errorf("Expected refreshed state call_triggered, got %q", records[0].State)
	}
	if records[0].CallID != "call-42" {
		t.Errorf("Expected call ID call-42, got %q", records[0].CallID)
	}
	if !records[0].CreatedAt.Equal(created) {
		t.Errorf("Expected created_at to survive upsert, got %v", records[0].CreatedAt)
	}
	if !records[0].UpdatedAt.Equal(created.Add(time.Minute)) {
		t.Errorf("Expected refreshed updated_at, got %v", records[0].UpdatedAt)
	}
}

func TestIncidentRecentOrdering(t *testing.T) {
	db, log := testDB(t)
	storage, err := NewIncidentStorage(db, log)
	if err != nil {
		t.Fatalf("NewIncidentStorage failed: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Second)
	for i, callsign := range []string{"UAL451", "BAW9", "DAL1083"} {
		ts := base.Add(time.Duration(i) * time.Minute)
		if err := storage.UpsertIncident(&IncidentRecord{
			ID:        callsign + "-1",
			Callsign:  callsign,
			State:     "candidate",
			CreatedAt: ts,
			UpdatedAt: ts,
		}); err != nil {
			t.Fatalf("UpsertIncident failed: %v", err)
		}
	}

	records, err := storage.GetRecentIncidents(2)
	if err != nil {
		t.Fatalf("GetRecentIncidents failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].Callsign != "DAL1083" || records[1].Callsign != "BAW9" {
		t.Errorf("Expected newest-first ordering, got %s then %s", records[0].Callsign, records[1].Callsign)
	}
}
