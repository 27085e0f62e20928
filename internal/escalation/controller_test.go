package escalation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yegors/skywatch/internal/assessment"
	"github.com/yegors/skywatch/internal/bus"
	"github.com/yegors/skywatch/internal/collector"
	"github.com/yegors/skywatch/pkg/logger"
)

type fakeAssessor struct {
	result *assessment.Result
	err    error
	calls  int
}

func (f *fakeAssessor) Assess(ctx context.Context, consolidated *collector.ConsolidatedContext) (*assessment.Result, error) {
	f.calls++
	return f.result, f.err
}

type harness struct {
	collector  *collector.Collector
	bus        *bus.Bus
	assessor   *fakeAssessor
	controller *Controller
}

func newHarness(t *testing.T, assessor *fakeAssessor, config Config) *harness {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	if err != nil {
		t.Fatalf("Failed to create test logger: %v", err)
	}

	coll := collector.New(collector.Config{
		RetentionHours:           24,
		WindowMinutes:            10,
		CandidateLookbackMinutes: 5,
		VolumeThreshold:          3,
	}, log)
	msgBus := bus.New(100, log)

	return &harness{
		collector:  coll,
		bus:        msgBus,
		assessor:   assessor,
		controller: NewController(context.Background(), coll, assessor, msgBus, config, log),
	}
}

func defaultConfig() Config {
	return Config{
		EvalInterval:      5 * time.Second,
		LookbackMinutes:   5,
		WindowMinutes:     10,
		MinConfidence:     0.30,
		CriticalThreshold: 0.85,
		HighThreshold:     0.70,
		MediumThreshold:   0.50,
		CallTimeout:       5 * time.Minute,
		EvictionGrace:     10 * time.Minute,
	}
}

// addMayday seeds the collector so the callsign becomes an emergency
// candidate with consolidatable context.
func (h *harness) addMayday(callsign string) {
	h.collector.AddLanguageObservation(collector.LanguageObservation{
		Callsigns:    []string{callsign},
		Instructions: []string{"MAYDAY declared, engine fire"},
		Summary:      "engine fire reported",
		Timestamp:    time.Now().UTC(),
	})
}

func (h *harness) incident(t *testing.T, callsign string) Incident {
	t.Helper()
	for _, inc := range h.controller.Incidents() {
		if inc.Callsign == callsign {
			return inc
		}
	}
	t.Fatalf("No incident tracked for %s", callsign)
	return Incident{}
}

func TestEvaluateOpensIncidentForCandidate(t *testing.T) {
	h := newHarness(t, &fakeAssessor{err: errors.New("unavailable")}, defaultConfig())
	h.addMayday("BAW9")

	h.controller.Evaluate(context.Background())

	inc := h.incident(t, "BAW9")
	if inc.State != StateCandidate {
		t.Errorf("Expected candidate state while assessment unavailable, got %s", inc.State)
	}
	if inc.ID == "" {
		t.Error("Expected non-empty incident ID")
	}

	changes := h.bus.History(bus.TopicCandidateChange, 10)
	if len(changes) != 1 || changes[0].Payload["change"] != "added" {
		t.Errorf("Expected one candidate-added message, got %v", changes)
	}
}

func TestEscalationPublishesDetectionAndCallsOnce(t *testing.T) {
	h := newHarness(t, &fakeAssessor{result: &assessment.Result{
		UrgencyLevel:  assessment.UrgencyCritical,
		EmergencyType: "fire",
		Confidence:    0.92,
		CallRequired:  true,
		Summary:       "engine fire confirmed",
	}}, defaultConfig())
	h.addMayday("BAW9")

	// Cycle 1: candidate -> assessed -> escalated.
	h.controller.Evaluate(context.Background())
	if inc := h.incident(t, "BAW9"); inc.State != StateEscalated {
		t.Fatalf("Expected escalated state after first cycle, got %s", inc.State)
	}
	detected := h.bus.History(bus.TopicEmergencyDetected, 10)
	if len(detected) != 1 {
		t.Fatalf("Expected one emergency.detected message, got %d", len(detected))
	}
	if detected[0].Payload["callsign"] != "BAW9" {
		t.Errorf("Unexpected detection payload %v", detected[0].Payload)
	}

	// Cycle 2: escalated -> call triggered, exactly one call message.
	h.controller.Evaluate(context.Background())
	if inc := h.incident(t, "BAW9"); inc.State != StateCallTriggered {
		t.Fatalf("Expected call_triggered state after second cycle, got %s", inc.State)
	}

	// Further cycles must never publish a second call.
	h.controller.Evaluate(context.Background())
	h.controller.Evaluate(context.Background())

	calls := h.bus.History(bus.TopicEmergencyCall, 10)
	if len(calls) != 1 {
		t.Fatalf("Expected exactly one emergency.call message, got %d", len(calls))
	}
	if calls[0].Payload["incident_key"] == "" {
		t.Error("Expected incident_key in call payload")
	}
}

func TestLowUrgencyWithoutCallIsSuppressed(t *testing.T) {
	h := newHarness(t, &fakeAssessor{result: &assessment.Result{
		UrgencyLevel: assessment.UrgencyLow,
		Confidence:   0.9,
		CallRequired: false,
		Summary:      "routine chatter",
	}}, defaultConfig())
	h.addMayday("SWA345")

	h.controller.Evaluate(context.Background())

	if inc := h.incident(t, "SWA345"); inc.State != StateSuppressed {
		t.Errorf("Expected suppressed state, got %s", inc.State)
	}
	if got := h.bus.History(bus.TopicEmergencyDetected, 10); len(got) != 0 {
		t.Errorf("Expected no detection messages, got %d", len(got))
	}
}

func TestBelowMinConfidenceIsSuppressed(t *testing.T) {
	h := newHarness(t, &fakeAssessor{result: &assessment.Result{
		UrgencyLevel: assessment.UrgencyCritical,
		Confidence:   0.2,
		CallRequired: true,
	}}, defaultConfig())
	h.addMayday("BAW9")

	h.controller.Evaluate(context.Background())

	if inc := h.incident(t, "BAW9"); inc.State != StateSuppressed {
		t.Errorf("Expected suppressed state below minimum confidence, got %s", inc.State)
	}
}

func TestBelowTierThresholdStaysAssessed(t *testing.T) {
	h := newHarness(t, &fakeAssessor{result: &assessment.Result{
		UrgencyLevel: assessment.UrgencyCritical,
		Confidence:   0.6, // above minimum, below the critical tier
		CallRequired: true,
	}}, defaultConfig())
	h.addMayday("BAW9")

	h.controller.Evaluate(context.Background())

	if inc := h.incident(t, "BAW9"); inc.State != StateAssessed {
		t.Errorf("Expected assessed state below tier threshold, got %s", inc.State)
	}
	if got := h.bus.History(bus.TopicEmergencyCall, 10); len(got) != 0 {
		t.Errorf("Expected no call messages, got %d", len(got))
	}
}

func TestTerminalCallStatusResolvesIncident(t *testing.T) {
	h := newHarness(t, &fakeAssessor{result: &assessment.Result{
		UrgencyLevel: assessment.UrgencyCritical,
		Confidence:   0.95,
		CallRequired: true,
	}}, defaultConfig())
	h.addMayday("BAW9")

	h.controller.Evaluate(context.Background())
	h.controller.Evaluate(context.Background())
	inc := h.incident(t, "BAW9")
	if inc.State != StateCallTriggered {
		t.Fatalf("Expected call_triggered state, got %s", inc.State)
	}

	// A non-terminal status leaves the incident open.
	h.bus.Publish(bus.TopicCallStatus, map[string]any{
		"incident_id": inc.ID,
		"status":      "initiated",
	}, "test")
	if got := h.incident(t, "BAW9"); got.State != StateCallTriggered {
		t.Fatalf("Expected call_triggered after non-terminal status, got %s", got.State)
	}

	h.bus.Publish(bus.TopicCallStatus, map[string]any{
		"incident_id": inc.ID,
		"status":      "completed",
		"call_id":     "call-123",
	}, "test")

	resolved := h.incident(t, "BAW9")
	if resolved.State != StateResolved {
		t.Errorf("Expected resolved state, got %s", resolved.State)
	}
	if resolved.CallID != "call-123" {
		t.Errorf("Expected call ID recorded, got %q", resolved.CallID)
	}
	if resolved.UnknownOutcome {
		t.Error("Expected known outcome after terminal status")
	}
}

func TestCallTimeoutResolvesWithUnknownOutcome(t *testing.T) {
	config := defaultConfig()
	config.CallTimeout = 0 // expire immediately
	h := newHarness(t, &fakeAssessor{result: &assessment.Result{
		UrgencyLevel: assessment.UrgencyCritical,
		Confidence:   0.95,
		CallRequired: true,
	}}, config)
	h.addMayday("BAW9")

	h.controller.Evaluate(context.Background())
	h.controller.Evaluate(context.Background())
	h.controller.Evaluate(context.Background())

	inc := h.incident(t, "BAW9")
	if inc.State != StateResolved {
		t.Fatalf("Expected resolved state after call timeout, got %s", inc.State)
	}
	if !inc.UnknownOutcome {
		t.Error("Expected unknown outcome flag after timeout")
	}
}

func TestEvictionAfterGrace(t *testing.T) {
	config := defaultConfig()
	config.EvictionGrace = 0
	h := newHarness(t, &fakeAssessor{result: &assessment.Result{
		UrgencyLevel: assessment.UrgencyLow,
		Confidence:   0.9,
		CallRequired: false,
	}}, config)
	h.addMayday("SWA345")

	// Suppress, then the next cycle evicts it.
	h.controller.Evaluate(context.Background())
	h.controller.Evaluate(context.Background())

	for _, inc := range h.controller.Incidents() {
		if inc.Callsign == "SWA345" {
			t.Errorf("Expected incident evicted, still tracked in state %s", inc.State)
		}
	}
}

func TestDetectionSubscriberMayReenterController(t *testing.T) {
	h := newHarness(t, &fakeAssessor{result: &assessment.Result{
		UrgencyLevel:  assessment.UrgencyCritical,
		EmergencyType: "fire",
		Confidence:    0.92,
		CallRequired:  true,
	}}, defaultConfig())
	h.addMayday("BAW9")

	// Subscribers run synchronously inside Publish; reading controller
	// state back must not deadlock on the controller's lock.
	var observed int
	h.bus.Subscribe(bus.TopicEmergencyDetected, func(msg bus.Message) error {
		observed = len(h.controller.Incidents())
		return nil
	})

	h.controller.Evaluate(context.Background())

	if observed != 1 {
		t.Errorf("Expected subscriber to observe 1 incident, got %d", observed)
	}
	if inc := h.incident(t, "BAW9"); inc.State != StateEscalated {
		t.Errorf("Expected escalated state, got %s", inc.State)
	}
}

func TestUndecidedIncidentAgesOut(t *testing.T) {
	config := defaultConfig()
	config.MaxIncidentAge = time.Nanosecond

	// Low urgency with call_required never suppresses and never clears
	// a tier threshold, so the incident can only leave via the age bound.
	h := newHarness(t, &fakeAssessor{result: &assessment.Result{
		UrgencyLevel: assessment.UrgencyLow,
		Confidence:   0.9,
		CallRequired: true,
	}}, config)
	h.addMayday("DAL1083")

	h.controller.Evaluate(context.Background())

	for _, inc := range h.controller.Incidents() {
		if inc.Callsign == "DAL1083" {
			t.Fatalf("Expected undecided incident aged out, still tracked in state %s", inc.State)
		}
	}

	// The callsign is still a candidate, so a fresh incident opens and
	// is assessed again on the next cycle instead of staying blocked.
	h.controller.Evaluate(context.Background())
	if h.assessor.calls != 2 {
		t.Errorf("Expected re-opened incident to be re-assessed, got %d assessments", h.assessor.calls)
	}
}

func TestFailingAssessmentDoesNotPinIncidentForever(t *testing.T) {
	config := defaultConfig()
	config.MaxIncidentAge = time.Nanosecond
	h := newHarness(t, &fakeAssessor{err: errors.New("unavailable")}, config)
	h.addMayday("BAW9")

	h.controller.Evaluate(context.Background())

	for _, inc := range h.controller.Incidents() {
		if inc.Callsign == "BAW9" {
			t.Errorf("Expected stuck candidate aged out, still tracked in state %s", inc.State)
		}
	}
}

func TestZeroMaxIncidentAgeKeepsUndecidedIncidents(t *testing.T) {
	h := newHarness(t, &fakeAssessor{err: errors.New("unavailable")}, defaultConfig())
	h.addMayday("BAW9")

	h.controller.Evaluate(context.Background())
	h.controller.Evaluate(context.Background())

	if inc := h.incident(t, "BAW9"); inc.State != StateCandidate {
		t.Errorf("Expected candidate retained with age bound disabled, got %s", inc.State)
	}
}

func TestOpenIncidentsExcludesTerminal(t *testing.T) {
	h := newHarness(t, &fakeAssessor{result: &assessment.Result{
		UrgencyLevel: assessment.UrgencyLow,
		Confidence:   0.9,
		CallRequired: false,
	}}, defaultConfig())
	h.addMayday("SWA345")

	h.controller.Evaluate(context.Background())

	if got := h.controller.OpenIncidents(); got != 0 {
		t.Errorf("Expected 0 open incidents after suppression, got %d", got)
	}
	if got := len(h.controller.Incidents()); got != 1 {
		t.Errorf("Expected suppressed incident still tracked, got %d", got)
	}
}
