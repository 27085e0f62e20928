package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yegors/skywatch/internal/bus"
	"github.com/yegors/skywatch/pkg/logger"
)

type fakeCaller struct {
	result  *CallResult
	err     error
	calls   int
	lastReq CallRequest
}

func (f *fakeCaller) PlaceCall(ctx context.Context, req CallRequest, contact Contact) (*CallResult, error) {
	f.calls++
	f.lastReq = req
	return f.result, f.err
}

func newBridgeHarness(t *testing.T, caller Caller, enabled bool) *bus.Bus {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	if err != nil {
		t.Fatalf("Failed to create test logger: %v", err)
	}
	msgBus := bus.New(100, log)
	NewBridge(caller, NewContactBook(testContacts()), msgBus, enabled, time.Second, log)
	return msgBus
}

func testCallPayload() map[string]any {
	return map[string]any{
		"incident_id":    "inc-1",
		"incident_key":   "BAW9-12345",
		"callsign":       "BAW9",
		"emergency_type": "mayday",
		"urgency_level":  "critical",
		"reason":         "engine fire",
	}
}

func TestBridgePlacesCallAndPublishesStatus(t *testing.T) {
	caller := &fakeCaller{result: &CallResult{CallID: "call-9", Status: "completed", Contact: "Emergency Services"}}
	msgBus := newBridgeHarness(t, caller, true)

	msgBus.Publish(bus.TopicEmergencyCall, testCallPayload(), "test")

	if caller.calls != 1 {
		t.Fatalf("Expected 1 call placed, got %d", caller.calls)
	}
	if caller.lastReq.Callsign != "BAW9" || caller.lastReq.IncidentID != "inc-1" {
		t.Errorf("Unexpected call request %+v", caller.lastReq)
	}

	statuses := msgBus.History(bus.TopicCallStatus, 10)
	if len(statuses) != 1 {
		t.Fatalf("Expected 1 status message, got %d", len(statuses))
	}
	payload := statuses[0].Payload
	if payload["incident_id"] != "inc-1" || payload["status"] != "completed" || payload["call_id"] != "call-9" {
		t.Errorf("Unexpected status payload %v", payload)
	}
}

func TestBridgePublishesFailureStatus(t *testing.T) {
	caller := &fakeCaller{err: errors.New("provider unreachable")}
	msgBus := newBridgeHarness(t, caller, true)

	msgBus.Publish(bus.TopicEmergencyCall, testCallPayload(), "test")

	statuses := msgBus.History(bus.TopicCallStatus, 10)
	if len(statuses) != 1 {
		t.Fatalf("Expected 1 status message, got %d", len(statuses))
	}
	payload := statuses[0].Payload
	if payload["status"] != "failed" {
		t.Errorf("Expected failed status, got %v", payload["status"])
	}
	if payload["error"] == "" {
		t.Error("Expected error detail in status payload")
	}
}

func TestBridgeDisabledSkipsCallButResolves(t *testing.T) {
	caller := &fakeCaller{result: &CallResult{CallID: "call-9", Status: "completed"}}
	msgBus := newBridgeHarness(t, caller, false)

	msgBus.Publish(bus.TopicEmergencyCall, testCallPayload(), "test")

	if caller.calls != 0 {
		t.Errorf("Expected no call when dispatch disabled, got %d", caller.calls)
	}
	statuses := msgBus.History(bus.TopicCallStatus, 10)
	if len(statuses) != 1 || statuses[0].Payload["status"] != "completed" {
		t.Errorf("Expected synthetic completed status, got %v", statuses)
	}
}

func TestBridgeIgnoresMalformedRequests(t *testing.T) {
	caller := &fakeCaller{result: &CallResult{}}
	msgBus := newBridgeHarness(t, caller, true)

	msgBus.Publish(bus.TopicEmergencyCall, map[string]any{"callsign": "BAW9"}, "test")

	if caller.calls != 0 {
		t.Errorf("Expected no call for request without incident_id, got %d", caller.calls)
	}
	if statuses := msgBus.History(bus.TopicCallStatus, 10); len(statuses) != 0 {
		t.Errorf("Expected no status for malformed request, got %d", len(statuses))
	}
}
