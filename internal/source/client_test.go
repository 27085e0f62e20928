package source

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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

func TestTimeoutBoundsConnectionNotBody(t *testing.T) {
	c := NewClient("http://localhost/stream", 30*time.Second, 3, testLogger(t))

	// A client-wide timeout would sever the live stream while the body
	// is being read; only the connection phase may be bounded.
	if c.httpClient.Timeout != 0 {
		t.Errorf("Expected no client-wide timeout, got %v", c.httpClient.Timeout)
	}
	transport, ok := c.httpClient.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("Expected *http.Transport, got %T", c.httpClient.Transport)
	}
	if transport.ResponseHeaderTimeout != 30*time.Second {
		t.Errorf("Expected 30s response header timeout, got %v", transport.ResponseHeaderTimeout)
	}
}

func TestStreamOutlivesConfiguredTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 5; i++ {
			if _, err := w.Write(make([]byte, 10)); err != nil {
				return
			}
			flusher.Flush()
			time.Sleep(60 * time.Millisecond)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, 100*time.Millisecond, 1, testLogger(t))
	body, err := c.Open(context.Background())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer body.Close()

	// Reading spans 300ms, past the 100ms connection timeout.
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("Stream severed before the source ended: %v", err)
	}
	if len(data) != 50 {
		t.Errorf("Expected 50 streamed bytes, got %d", len(data))
	}
}
