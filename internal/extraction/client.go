package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/yegors/skywatch/pkg/logger"
)

const extractionSystemPrompt = `You are an ATC communications analyst. Extract structured content from the radio transcript.

Callsigns must be normalized to ICAO telephony form (e.g. "United four five one" -> "UAL451").
Runways are identifiers like "27L" or "09".
Instructions are short imperative phrases ("descend to 3000", "contact tower 118.3").

Respond with JSON only:
{
  "callsigns": ["..."],
  "instructions": ["..."],
  "runways": ["..."],
  "summary": "one sentence"
}`

// Client is the model-backed transcript extractor.
type Client struct {
	client openai.Client
	model  string
	logger *logger.Logger
}

// NewClient creates an OpenAI-backed extractor.
func NewClient(apiKey, model string, timeout time.Duration, logger *logger.Logger) *Client {
	return &Client{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithHTTPClient(&http.Client{Timeout: timeout}),
		),
		model:  model,
		logger: logger.Named("extraction"),
	}
}

// Extract implements Extractor.
func (c *Client) Extract(ctx context.Context, transcript string) (*Extraction, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(extractionSystemPrompt),
			openai.UserMessage(transcript),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("extraction returned no choices")
	}

	extraction, err := parseExtraction(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	c.logger.Debug("Extraction complete",
		logger.Int("callsigns", len(extraction.Callsigns)),
		logger.Int("instructions", len(extraction.Instructions)),
		logger.Int("runways", len(extraction.Runways)))

	return extraction, nil
}

func parseExtraction(content string) (*Extraction, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var extraction Extraction
	if err := json.Unmarshal([]byte(content), &extraction); err != nil {
		return nil, err
	}
	return &extraction, nil
}

var _ Extractor = (*Client)(nil)
