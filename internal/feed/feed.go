// Package feed maintains the shared flat-file message feed consumed by
// the frontend.
package feed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yegors/skywatch/pkg/logger"
)

// Message is one entry in the feed file.
type Message struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Callsign  string    `json:"callsign"`
	Message   string    `json:"message"`
	IsUrgent  bool      `json:"isUrgent"`
}

// Feed appends messages newest-first to a JSON file, truncated to a
// retained maximum.
type Feed struct {
	path        string
	maxMessages int
	mu          sync.Mutex
	logger      *logger.Logger
}

// New creates a feed writer. The file is created lazily on first append.
func New(path string, maxMessages int, logger *logger.Logger) *Feed {
	if maxMessages <= 0 {
		maxMessages = 500
	}
	return &Feed{
		path:        path,
		maxMessages: maxMessages,
		logger:      logger.Named("feed"),
	}
}

// Append prepends a message to the feed file.
func (f *Feed) Append(callsign, text string, urgent bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	messages, err := f.load()
	if err != nil {
		// A corrupt feed file is replaced rather than blocking new messages.
		f.logger.Warn("Resetting unreadable feed file", logger.Error(err))
		messages = nil
	}

	entry := Message{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Callsign:  callsign,
		Message:   text,
		IsUrgent:  urgent,
	}

	messages = append([]Message{entry}, messages...)
	if len(messages) > f.maxMessages {
		messages = messages[:f.maxMessages]
	}

	return f.write(messages)
}

// Messages returns the current feed contents, newest first.
func (f *Feed) Messages() ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *Feed) load() ([]Message, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read feed file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse feed file: %w", err)
	}
	return messages, nil
}

func (f *Feed) write(messages []Message) error {
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal feed: %w", err)
	}

	// Write-then-rename so readers never see a partial file.
	tmp := f.path + ".tmp"
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create feed directory: %w", err)
		}
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write feed file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace feed file: %w", err)
	}
	return nil
}
