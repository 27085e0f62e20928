package transcription

import "time"

// Config represents the configuration for the transcription client.
type Config struct {
	OpenAIAPIKey string
	Model        string
	Language     string
	Timeout      time.Duration
}

// Result is the tagged outcome of one transcription call, so callers
// never branch on ad-hoc missing-field checks.
type Result struct {
	Text   string
	Empty  bool // silence or non-speech audio
	Failed bool // collaborator failure, recovered locally
}

// Ok reports whether the result carries usable text.
func (r Result) Ok() bool {
	return !r.Empty && !r.Failed
}
