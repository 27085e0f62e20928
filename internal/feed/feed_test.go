package feed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/yegors/skywatch/pkg/logger"
)

func testFeed(t *testing.T, maxMessages int) *Feed {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	if err != nil {
		t.Fatalf("Failed to create test logger: %v", err)
	}
	return New(filepath.Join(t.TempDir(), "messages.json"), maxMessages, log)
}

func TestFeedAppendNewestFirst(t *testing.T) {
	f := testFeed(t, 10)

	if err := f.Append("UAL451", "first message", false); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := f.Append("BAW9", "second message", true); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	messages, err := f.Messages()
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(messages))
	}
	if messages[0].Callsign != "BAW9" {
		t.Errorf("Expected newest message first, got %s", messages[0].Callsign)
	}
	if !messages[0].IsUrgent {
		t.Error("Expected urgent flag preserved")
	}
	if messages[0].ID == "" || messages[0].Timestamp.IsZero() {
		t.Error("Expected ID and timestamp populated")
	}
}

func TestFeedTruncatesAtMax(t *testing.T) {
	f := testFeed(t, 3)

	for i := 0; i < 5; i++ {
		if err := f.Append("UAL451", string(rune('a'+i)), false); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	messages, err := f.Messages()
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("Expected 3 retained messages, got %d", len(messages))
	}
	if messages[0].Message != "e" {
		t.Errorf("Expected newest message retained, got %q", messages[0].Message)
	}
	if messages[2].Message != "c" {
		t.Errorf("Expected oldest retained message to be c, got %q", messages[2].Message)
	}
}

func TestFeedEmptyBeforeFirstAppend(t *testing.T) {
	f := testFeed(t, 10)

	messages, err := f.Messages()
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("Expected no messages, got %d", len(messages))
	}
}

func TestFeedRecoversFromCorruptFile(t *testing.T) {
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	if err != nil {
		t.Fatalf("Failed to create test logger: %v", err)
	}
	path := filepath.Join(t.TempDir(), "messages.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0o644); err != nil {
		t.Fatalf("Failed to seed corrupt file: %v", err)
	}

	f := New(path, 10, log)
	if err := f.Append("UAL451", "after corruption", false); err != nil {
		t.Fatalf("Append over corrupt file failed: %v", err)
	}

	messages, err := f.Messages()
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(messages) != 1 || messages[0].Message != "after corruption" {
		t.Errorf("Expected feed reset with one message, got %v", messages)
	}
}
