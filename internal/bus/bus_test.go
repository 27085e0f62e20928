package bus

import (
	"errors"
	"fmt"
	"testing"

	"github.com/yegors/skywatch/pkg/logger"
)

func testBus(t *testing.T, historyLimit int) *Bus {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	if err != nil {
		t.Fatalf("Failed to create test logger: %v", err)
	}
	return New(historyLimit, log)
}

func TestPublishDeliversInRegistrationOrder(t *testing.T) {
	b := testBus(t, 10)

	var order []string
	b.Subscribe("test.topic", func(Message) error {
		order = append(order, "first")
		return nil
	})
	b.Subscribe("test.topic", func(Message) error {
		order = append(order, "second")
		return nil
	})

	b.Publish("test.topic", map[string]any{"k": "v"}, "tester")

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("Expected registration-order delivery, got %v", order)
	}
}

func TestPublishSkipsOtherTopics(t *testing.T) {
	b := testBus(t, 10)

	called := false
	b.Subscribe("topic.a", func(Message) error {
		called = true
		return nil
	})

	b.Publish("topic.b", nil, "tester")

	if called {
		t.Error("Expected subscriber on topic.a not to receive topic.b")
	}
}

func TestPublishIsolatesHandlerFailures(t *testing.T) {
	b := testBus(t, 10)

	var delivered []int
	b.Subscribe("test.topic", func(Message) error {
		delivered = append(delivered, 1)
		return errors.New("handler error")
	})
	b.Subscribe("test.topic", func(Message) error {
		delivered = append(delivered, 2)
		panic("handler panic")
	})
	b.Subscribe("test.topic", func(Message) error {
		delivered = append(delivered, 3)
		return nil
	})

	b.Publish("test.topic", nil, "tester")

	if len(delivered) != 3 {
		t.Errorf("Expected all 3 handlers to run, got %v", delivered)
	}
	// The message still lands in history.
	if got := b.History("test.topic", 10); len(got) != 1 {
		t.Errorf("Expected 1 history entry, got %d", len(got))
	}
}

func TestMessageFieldsPopulated(t *testing.T) {
	b := testBus(t, 10)

	var received Message
	b.Subscribe("test.topic", func(msg Message) error {
		received = msg
		return nil
	})
	b.Publish("test.topic", map[string]any{"callsign": "UAL451"}, "tester")

	if received.ID == "" {
		t.Error("Expected non-empty message ID")
	}
	if received.Topic != "test.topic" {
		t.Errorf("Expected topic test.topic, got %q", received.Topic)
	}
	if received.Sender != "tester" {
		t.Errorf("Expected sender tester, got %q", received.Sender)
	}
	if received.Timestamp.IsZero() {
		t.Error("Expected non-zero timestamp")
	}
	if received.Payload["callsign"] != "UAL451" {
		t.Errorf("Unexpected payload %v", received.Payload)
	}
}

func TestHistoryBounded(t *testing.T) {
	b := testBus(t, 5)

	for i := 0; i < 8; i++ {
		b.Publish("test.topic", map[string]any{"n": i}, "tester")
	}

	history := b.History("test.topic", 100)
	if len(history) != 5 {
		t.Fatalf("Expected history capped at 5, got %d", len(history))
	}
	// Oldest entries were evicted; most recent is last.
	if history[len(history)-1].Payload["n"] != 7 {
		t.Errorf("Expected newest message last, got %v", history[len(history)-1].Payload)
	}
	if history[0].Payload["n"] != 3 {
		t.Errorf("Expected oldest retained message to be 3, got %v", history[0].Payload)
	}
}

func TestHistoryTopicFilterAndLimit(t *testing.T) {
	b := testBus(t, 100)

	for i := 0; i < 3; i++ {
		b.Publish("topic.a", map[string]any{"n": fmt.Sprintf("a%d", i)}, "tester")
		b.Publish("topic.b", map[string]any{"n": fmt.Sprintf("b%d", i)}, "tester")
	}

	a := b.History("topic.a", 100)
	if len(a) != 3 {
		t.Errorf("Expected 3 topic.a messages, got %d", len(a))
	}
	all := b.History("", 100)
	if len(all) != 6 {
		t.Errorf("Expected 6 messages across topics, got %d", len(all))
	}
	limited := b.History("topic.b", 2)
	if len(limited) != 2 {
		t.Errorf("Expected limit of 2, got %d", len(limited))
	}
	if limited[1].Payload["n"] != "b2" {
		t.Errorf("Expected newest topic.b message last, got %v", limited[1].Payload)
	}
}

func TestPublishWithoutSubscribersStillRecorded(t *testing.T) {
	b := testBus(t, 10)
	b.Publish("lonely.topic", nil, "tester")

	if got := b.History("lonely.topic", 10); len(got) != 1 {
		t.Errorf("Expected message recorded without subscribers, got %d", len(got))
	}
}
