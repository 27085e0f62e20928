// Package source fetches the upstream PCM audio feed over HTTP.
package source

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/yegors/skywatch/pkg/logger"
)

// Client fetches the live audio stream from the upstream source.
type Client struct {
	url        string
	maxRetries int
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new audio source client.
func NewClient(url string, timeout time.Duration, maxRetries int, logger *logger.Logger) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}

	transport := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: timeout,
		DisableCompression:    true, // audio streams must not be recompressed
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	// No client-wide timeout: it would keep running while the body is
	// read and sever the live stream mid-flight. Dial and header
	// timeouts on the transport bound the connection phase instead.
	return &Client{
		url:        url,
		maxRetries: maxRetries,
		httpClient: &http.Client{
			Transport: transport,
		},
		logger: logger.Named("audio-source"),
	}
}

// withCacheBreaker appends a timestamp parameter so intermediaries
// never serve a stale stream.
func withCacheBreaker(url string) string {
	separator := "?"
	if strings.Contains(url, "?") {
		separator = "&"
	}
	return fmt.Sprintf("%s%snocache=%d", url, separator, time.Now().UnixNano())
}

// Open connects to the audio source and returns the stream body. The
// caller owns closing the returned reader.
func (c *Client) Open(ctx context.Context) (io.ReadCloser, error) {
	url := withCacheBreaker(c.url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("User-Agent", "Skywatch/1.0")

	retryDelay := 1 * time.Second

	var resp *http.Response
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		resp, err = c.httpClient.Do(req)
		if err == nil && resp.StatusCode == http.StatusOK {
			c.logger.Info("Connected to audio source", logger.String("url", c.url))
			return resp.Body, nil
		}

		if resp != nil {
			resp.Body.Close()
		}

		if attempt == c.maxRetries-1 {
			break
		}

		c.logger.Warn("Retrying audio source connection",
			logger.String("url", c.url),
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", c.maxRetries),
			logger.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
			retryDelay *= 2
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect after %d attempts: %w", c.maxRetries, err)
	}
	return nil, fmt.Errorf("unexpected status code after %d attempts: %d", c.maxRetries, resp.StatusCode)
}
