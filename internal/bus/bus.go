// Package bus implements the in-process publish/subscribe router that
// decouples observation producers from escalation and broadcast
// consumers.
package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yegors/skywatch/pkg/logger"
)

// Well-known topics. Producers and consumers agree on payload shape
// out of band.
const (
	TopicEmergencyDetected = "emergency.detected"
	TopicEmergencyCall     = "emergency.call"
	TopicCallStatus        = "emergency.call.status"
	TopicCandidateChange   = "candidate.change"
	TopicSystemStatus      = "system.status"
)

// Message is one published datum. Immutable after publish.
type Message struct {
	ID        string         `json:"id"`
	Topic     string         `json:"topic"`
	Sender    string         `json:"sender"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// Handler consumes one message. A handler error (or panic) is isolated:
// it is logged and does not prevent the remaining handlers from running.
type Handler func(msg Message) error

// Bus routes messages to subscribers per topic, in registration order,
// synchronously. Delivery is at-most-once and best-effort: a slow
// subscriber blocks the publisher, and there is no retry.
type Bus struct {
	historyLimit int
	logger       *logger.Logger

	mu          sync.RWMutex
	subscribers map[string][]Handler
	history     []Message
}

// New creates a message bus with a bounded history.
func New(historyLimit int, logger *logger.Logger) *Bus {
	return &Bus{
		historyLimit: historyLimit,
		logger:       logger.Named("bus"),
		subscribers:  make(map[string][]Handler),
	}
}

// Subscribe registers a handler for a topic. Handlers on the same
// topic are invoked in registration order.
func (b *Bus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], handler)
	b.mu.Unlock()

	b.logger.Debug("Subscribed to topic", logger.String("topic", topic))
}

// Publish synchronously invokes every current subscriber for the topic
// and then appends the message to history. Handler failures do not
// prevent remaining handlers or the history append.
func (b *Bus) Publish(topic string, payload map[string]any, sender string) {
	msg := Message{
		ID:        uuid.NewString(),
		Topic:     topic,
		Sender:    sender,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.subscribers[topic]))
	copy(handlers, b.subscribers[topic])
	b.mu.RUnlock()

	for i, handler := range handlers {
		b.deliver(msg, i, handler)
	}

	b.mu.Lock()
	b.history = append(b.history, msg)
	if len(b.history) > b.historyLimit {
		b.history = b.history[len(b.history)-b.historyLimit:]
	}
	b.mu.Unlock()

	b.logger.Debug("Published message",
		logger.String("topic", topic),
		logger.String("sender", sender),
		logger.Int("subscribers", len(handlers)))
}

// deliver runs one handler, containing both errors and panics.
func (b *Bus) deliver(msg Message, index int, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Subscriber panicked",
				logger.String("topic", msg.Topic),
				logger.Int("subscriber", index),
				logger.Any("panic", r))
		}
	}()

	if err := handler(msg); err != nil {
		b.logger.Error("Subscriber failed",
			logger.String("topic", msg.Topic),
			logger.Int("subscriber", index),
			logger.Error(err))
	}
}

// History returns up to limit retained messages, most recent last,
// optionally filtered by topic. Empty topic returns all topics.
func (b *Bus) History(topic string, limit int) []Message {
	if limit <= 0 {
		limit = 100
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var matched []Message
	if topic == "" {
		matched = b.history
	} else {
		for _, msg := range b.history {
			if msg.Topic == topic {
				matched = append(matched, msg)
			}
		}
	}

	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}

	out := make([]Message, len(matched))
	copy(out, matched)
	return out
}
