package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/yegors/skywatch/internal/bus"
	"github.com/yegors/skywatch/pkg/logger"
)

// Bridge consumes emergency.call messages, places the call through the
// Caller, and publishes the outcome on emergency.call.status.
type Bridge struct {
	caller  Caller
	book    *ContactBook
	bus     *bus.Bus
	enabled bool
	timeout time.Duration
	logger  *logger.Logger
}

// NewBridge creates the bridge and subscribes it to the call topic.
func NewBridge(caller Caller, book *ContactBook, msgBus *bus.Bus, enabled bool, timeout time.Duration, logger *logger.Logger) *Bridge {
	b := &Bridge{
		caller:  caller,
		book:    book,
		bus:     msgBus,
		enabled: enabled,
		timeout: timeout,
		logger:  logger.Named("dispatch"),
	}
	msgBus.Subscribe(bus.TopicEmergencyCall, b.handleCallRequest)
	return b
}

func (b *Bridge) handleCallRequest(msg bus.Message) error {
	incidentID, _ := msg.Payload["incident_id"].(string)
	if incidentID == "" {
		return fmt.Errorf("call request missing incident_id")
	}

	req := CallRequest{
		IncidentID:    incidentID,
		Callsign:      stringField(msg.Payload, "callsign"),
		IncidentKey:   stringField(msg.Payload, "incident_key"),
		EmergencyType: stringField(msg.Payload, "emergency_type"),
		UrgencyLevel:  stringField(msg.Payload, "urgency_level"),
		Reason:        stringField(msg.Payload, "reason"),
	}

	if !b.enabled {
		b.logger.Warn("Call dispatch disabled, logging instead of calling",
			logger.String("incident_id", req.IncidentID),
			logger.String("callsign", req.Callsign),
			logger.String("reason", req.Reason))
		b.publishStatus(req.IncidentID, "", "completed", "dispatch disabled", "")
		return nil
	}

	contact := b.book.Select(req.EmergencyType, req.UrgencyLevel)
	if contact == nil {
		b.publishStatus(req.IncidentID, "", "failed", "", "no suitable emergency contact")
		return fmt.Errorf("no suitable contact for emergency type %q", req.EmergencyType)
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	result, err := b.caller.PlaceCall(ctx, req, *contact)
	if err != nil {
		b.logger.Error("Emergency call failed",
			logger.String("incident_id", req.IncidentID),
			logger.String("contact", contact.Name),
			logger.Error(err))
		b.publishStatus(req.IncidentID, "", "failed", contact.Name, err.Error())
		return err
	}

	b.publishStatus(req.IncidentID, result.CallID, result.Status, result.Contact, "")
	return nil
}

func (b *Bridge) publishStatus(incidentID, callID, status, contact, callErr string) {
	payload := map[string]any{
		"incident_id": incidentID,
		"status":      status,
	}
	if callID != "" {
		payload["call_id"] = callID
	}
	if contact != "" {
		payload["contact"] = contact
	}
	if callErr != "" {
		payload["error"] = callErr
	}
	b.bus.Publish(bus.TopicCallStatus, payload, "dispatch")
}

func stringField(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}
