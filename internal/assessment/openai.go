package assessment

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

	"github.com/yegors/skywatch/internal/collector"
	"github.com/yegors/skywatch/pkg/logger"
)

const assessmentSystemPrompt = `You are an expert aviation safety analyst reviewing consolidated ATC context for one aircraft.

Emergency indicators to detect: MAYDAY, PAN-PAN, fuel emergency, medical emergency, mechanical failure, fire or smoke, severe weather.

Be conservative: better to escalate unnecessarily than miss a real emergency.

Respond with JSON only:
{
  "urgency_level": "low|medium|high|critical",
  "emergency_type": "mayday|pan_pan|fuel|medical|mechanical|weather|fire|unknown",
  "confidence": 0.0-1.0,
  "call_required": true/false,
  "recommended_recipients": ["..."],
  "summary": "one sentence"
}`

// Client is the model-backed emergency assessor.
type Client struct {
	client   openai.Client
	model    string
	fallback *KeywordAssessor
	logger   *logger.Logger
}

// NewClient creates an OpenAI-backed assessor. Malformed model output
// degrades to the keyword assessor rather than failing the pipeline.
func NewClient(apiKey, model string, timeout time.Duration, logger *logger.Logger) *Client {
	return &Client{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithHTTPClient(&http.Client{Timeout: timeout}),
		),
		model:    model,
		fallback: NewKeywordAssessor(),
		logger:   logger.Named("assessment"),
	}
}

// Assess implements Assessor.
func (c *Client) Assess(ctx context.Context, consolidated *collector.ConsolidatedContext) (*Result, error) {
	userInput, err := json.MarshalIndent(consolidated, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal consolidated context: %w", err)
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(assessmentSystemPrompt),
			openai.UserMessage(string(userInput)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("assessment request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("assessment returned no choices")
	}

	result, perr := parseResult(resp.Choices[0].Message.Content)
	if perr != nil {
		// Malformed model output is a data-quality failure, not fatal.
		c.logger.Warn("Malformed assessment response, falling back to keyword classification",
			logger.String("callsign", consolidated.Callsign),
			logger.Error(perr))
		return c.fallback.Assess(ctx, consolidated)
	}

	c.logger.Info("Assessment complete",
		logger.String("callsign", consolidated.Callsign),
		logger.String("urgency", result.UrgencyLevel),
		logger.Float64("confidence", result.Confidence),
		logger.Bool("call_required", result.CallRequired))

	return result, nil
}

// parseResult decodes the model's JSON, tolerating markdown fences.
func parseResult(content string) (*Result, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var result Result
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("failed to parse assessment JSON: %w", err)
	}

	switch result.UrgencyLevel {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
	default:
		return nil, fmt.Errorf("unknown urgency level %q", result.UrgencyLevel)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return nil, fmt.Errorf("confidence %f out of range", result.Confidence)
	}

	return &result, nil
}

var _ Assessor = (*Client)(nil)
