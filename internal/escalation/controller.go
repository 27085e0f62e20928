// Package escalation turns aggregated per-callsign context into a
// bounded incident state machine ending, at most once per incident, in
// an external call trigger.
package escalation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yegors/skywatch/internal/assessment"
	"github.com/yegors/skywatch/internal/bus"
	"github.com/yegors/skywatch/internal/collector"
	"github.com/yegors/skywatch/pkg/logger"
)

// terminalCallStatuses are call-status values that resolve an incident.
var terminalCallStatuses = map[string]bool{
	"completed": true,
	"failed":    true,
	"ended":     true,
	"no-answer": true,
}

// Controller consumes consolidated context and candidate flags and
// drives incidents through the escalation state machine.
type Controller struct {
	ctx       context.Context
	cancel    context.CancelFunc
	collector *collector.Collector
	assessor  assessment.Assessor
	msgBus    *bus.Bus
	detector  *changeDetector
	config    Config
	logger    *logger.Logger
	wg        sync.WaitGroup

	mu        sync.Mutex
	incidents map[string]*Incident
}

// NewController creates a new escalation controller and registers its
// call-status subscription on the bus.
func NewController(
	ctx context.Context,
	coll *collector.Collector,
	assessor assessment.Assessor,
	msgBus *bus.Bus,
	config Config,
	logger *logger.Logger,
) *Controller {
	cctx, ccancel := context.WithCancel(ctx)
	c := &Controller{
		ctx:       cctx,
		cancel:    ccancel,
		collector: coll,
		assessor:  assessor,
		msgBus:    msgBus,
		detector:  newChangeDetector(logger),
		config:    config,
		logger:    logger.Named("escalation"),
		incidents: make(map[string]*Incident),
	}

	msgBus.Subscribe(bus.TopicCallStatus, c.handleCallStatus)

	return c
}

// Start runs the periodic evaluation loop.
func (c *Controller) Start() {
	c.logger.Info("Starting escalation loop",
		logger.Duration("interval", c.config.EvalInterval))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.config.EvalInterval)
		defer ticker.Stop()

		for {
			select {
			case <-c.ctx.Done():
				c.logger.Info("Escalation loop stopped")
				return
			case <-ticker.C:
				c.Evaluate(c.ctx)
			}
		}
	}()
}

// Stop cancels the evaluation loop and waits for it to exit.
func (c *Controller) Stop() {
	c.cancel()
	c.wg.Wait()
}

// Evaluate runs one full evaluation cycle: pull candidates, open new
// incidents, step every open incident, and evict aged terminal ones.
func (c *Controller) Evaluate(ctx context.Context) {
	candidates := c.collector.EmergencyCandidates(c.config.LookbackMinutes)

	for _, change := range c.detector.Detect(candidates) {
		c.msgBus.Publish(bus.TopicCandidateChange, map[string]any{
			"callsign": change.Callsign,
			"change":   change.Type,
		}, "escalation-controller")
	}

	c.mu.Lock()
	for _, cs := range candidates {
		if _, tracked := c.incidents[cs]; tracked {
			continue
		}
		now := time.Now().UTC()
		c.incidents[cs] = &Incident{
			ID:        uuid.NewString(),
			Callsign:  cs,
			State:     StateCandidate,
			CreatedAt: now,
			UpdatedAt: now,
		}
		c.logger.Info("Opened incident", logger.String("callsign", cs))
	}
	open := make([]*Incident, 0, len(c.incidents))
	for _, inc := range c.incidents {
		open = append(open, inc)
	}
	c.mu.Unlock()

	for _, inc := range open {
		c.step(ctx, inc)
	}

	c.evict()
}

// step advances a single incident by at most one state per call, plus
// the escalate->call transition which is immediate.
func (c *Controller) step(ctx context.Context, inc *Incident) {
	c.mu.Lock()
	state := inc.State
	c.mu.Unlock()

	switch state {
	case StateCandidate, StateAssessed:
		c.assess(ctx, inc)
	case StateEscalated:
		c.triggerCall(inc)
	case StateCallTriggered:
		c.checkCallTimeout(inc)
	}
}

// assess consolidates context, invokes the assessment collaborator and
// applies the threshold decision. A missing consolidation or a failed
// assessment leaves the incident where it is until the next cycle.
func (c *Controller) assess(ctx context.Context, inc *Incident) {
	consolidated := c.collector.Consolidate(inc.Callsign, c.config.WindowMinutes)
	if consolidated == nil {
		c.logger.Debug("No recent context for incident, deferring",
			logger.String("callsign", inc.Callsign))
		return
	}

	result, err := c.assessor.Assess(ctx, consolidated)
	if err != nil || result == nil {
		c.logger.Warn("Assessment unavailable, deferring",
			logger.String("callsign", inc.Callsign),
			logger.Error(err))
		return
	}

	c.mu.Lock()
	if inc.State.Terminal() {
		c.mu.Unlock()
		return
	}

	inc.State = StateAssessed
	inc.EmergencyType = result.EmergencyType
	inc.UrgencyLevel = result.UrgencyLevel
	inc.Confidence = result.Confidence
	inc.Summary = result.Summary
	inc.CallRecipients = result.RecommendedRecipients
	inc.UpdatedAt = time.Now().UTC()

	// The publish happens after the lock is released; subscribers run
	// synchronously and must not observe the controller mid-transition.
	var detected map[string]any

	switch {
	case result.Confidence < c.config.MinConfidence,
		result.UrgencyLevel == assessment.UrgencyLow && !result.CallRequired:
		inc.State = StateSuppressed
		inc.resolvedAt = time.Now().UTC()
		c.logger.Info("Incident suppressed",
			logger.String("callsign", inc.Callsign),
			logger.Float64("confidence", result.Confidence),
			logger.String("urgency", result.UrgencyLevel))

	case result.CallRequired && result.Confidence >= c.thresholdFor(result.UrgencyLevel):
		inc.State = StateEscalated
		detected = map[string]any{
			"incident_id":    inc.ID,
			"callsign":       inc.Callsign,
			"emergency_type": inc.EmergencyType,
			"urgency_level":  inc.UrgencyLevel,
			"confidence":     inc.Confidence,
			"reason":         inc.Summary,
		}
		c.logger.Warn("Incident escalated",
			logger.String("callsign", inc.Callsign),
			logger.String("emergency_type", inc.EmergencyType),
			logger.String("urgency", inc.UrgencyLevel),
			logger.Float64("confidence", inc.Confidence))
	}
	c.mu.Unlock()

	if detected != nil {
		c.msgBus.Publish(bus.TopicEmergencyDetected, detected, "escalation-controller")
	}
}

// thresholdFor returns the confidence floor for the urgency tier.
func (c *Controller) thresholdFor(urgency string) float64 {
	switch urgency {
	case assessment.UrgencyCritical:
		return c.config.CriticalThreshold
	case assessment.UrgencyHigh:
		return c.config.HighThreshold
	case assessment.UrgencyMedium:
		return c.config.MediumThreshold
	default:
		return 1.01 // low urgency never clears a tier threshold
	}
}

// triggerCall publishes the emergency call request at most once per
// incident. The idempotency key is the callsign plus the incident
// creation timestamp.
func (c *Controller) triggerCall(inc *Incident) {
	c.mu.Lock()
	if inc.callPublished || inc.State != StateEscalated {
		c.mu.Unlock()
		return
	}
	inc.callPublished = true
	inc.State = StateCallTriggered
	inc.CallTriggered = time.Now().UTC()
	inc.UpdatedAt = inc.CallTriggered
	payload := map[string]any{
		"incident_id":    inc.ID,
		"incident_key":   fmt.Sprintf("%s-%d", inc.Callsign, inc.CreatedAt.UnixNano()),
		"callsign":       inc.Callsign,
		"emergency_type": inc.EmergencyType,
		"urgency_level":  inc.UrgencyLevel,
		"confidence":     inc.Confidence,
		"reason":         inc.Summary,
		"recipients":     inc.CallRecipients,
	}
	c.mu.Unlock()

	c.logger.Warn("Triggering emergency call",
		logger.String("callsign", inc.Callsign),
		logger.String("incident_id", inc.ID))

	c.msgBus.Publish(bus.TopicEmergencyCall, payload, "escalation-controller")
}

// checkCallTimeout resolves an incident whose call produced no status
// inside the timeout. The call is never retried automatically; a human
// is assumed in the loop for retries.
func (c *Controller) checkCallTimeout(inc *Incident) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if inc.State != StateCallTriggered {
		return
	}
	if time.Since(inc.CallTriggered) < c.config.CallTimeout {
		return
	}

	inc.State = StateResolved
	inc.UnknownOutcome = true
	inc.resolvedAt = time.Now().UTC()
	inc.UpdatedAt = inc.resolvedAt
	c.logger.Warn("Call status timeout, resolving with unknown outcome",
		logger.String("callsign", inc.Callsign),
		logger.String("incident_id", inc.ID))
}

// handleCallStatus maps call-status bus messages onto incidents.
func (c *Controller) handleCallStatus(msg bus.Message) error {
	incidentID, _ := msg.Payload["incident_id"].(string)
	status, _ := msg.Payload["status"].(string)
	callID, _ := msg.Payload["call_id"].(string)
	callErr, _ := msg.Payload["error"].(string)

	if incidentID == "" || status == "" {
		return fmt.Errorf("call status message missing incident_id or status")
	}
	if !terminalCallStatuses[status] {
		c.logger.Debug("Non-terminal call status",
			logger.String("incident_id", incidentID),
			logger.String("status", status))
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, inc := range c.incidents {
		if inc.ID != incidentID {
			continue
		}
		if inc.State != StateCallTriggered {
			return nil
		}
		inc.State = StateResolved
		inc.CallID = callID
		inc.CallError = callErr
		inc.resolvedAt = time.Now().UTC()
		inc.UpdatedAt = inc.resolvedAt
		c.logger.Info("Incident resolved",
			logger.String("callsign", inc.Callsign),
			logger.String("status", status),
			logger.String("call_id", callID))
		return nil
	}

	return nil
}

// evict drops terminal incidents after the grace period so the same
// callsign can re-enter as a genuinely new event. Pre-call incidents
// that never reach a decision age out after MaxIncidentAge; without
// that bound a persistently failing assessment would pin the callsign
// forever.
func (c *Controller) evict() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for cs, inc := range c.incidents {
		if inc.State.Terminal() {
			if time.Since(inc.resolvedAt) >= c.config.EvictionGrace {
				delete(c.incidents, cs)
				c.logger.Debug("Evicted incident",
					logger.String("callsign", cs),
					logger.String("state", string(inc.State)))
			}
			continue
		}

		if c.config.MaxIncidentAge <= 0 {
			continue
		}
		if inc.State != StateCandidate && inc.State != StateAssessed {
			continue
		}
		if time.Since(inc.CreatedAt) >= c.config.MaxIncidentAge {
			delete(c.incidents, cs)
			c.logger.Warn("Incident aged out without a decision",
				logger.String("callsign", cs),
				logger.String("state", string(inc.State)),
				logger.Duration("age", time.Since(inc.CreatedAt)))
		}
	}
}

// Incidents returns a snapshot of all tracked incidents.
func (c *Controller) Incidents() []Incident {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Incident, 0, len(c.incidents))
	for _, inc := range c.incidents {
		out = append(out, *inc)
	}
	return out
}

// OpenIncidents counts incidents not yet in a terminal state.
func (c *Controller) OpenIncidents() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, inc := range c.incidents {
		if !inc.State.Terminal() {
			n++
		}
	}
	return n
}
