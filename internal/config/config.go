package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the top-level service configuration, loaded from a single
// TOML file at startup.
type Config struct {
	Server        ServerConfig        `toml:"server"`
	Source        SourceConfig        `toml:"source"`
	Audio         AudioConfig         `toml:"audio"`
	Transcription TranscriptionConfig `toml:"transcription"`
	Extraction    ExtractionConfig    `toml:"extraction"`
	Assessment    AssessmentConfig    `toml:"assessment"`
	Collector     CollectorConfig     `toml:"collector"`
	Bus           BusConfig           `toml:"bus"`
	Escalation    EscalationConfig    `toml:"escalation"`
	Dispatch      DispatchConfig      `toml:"dispatch"`
	Feed          FeedConfig          `toml:"feed"`
	Storage       StorageConfig       `toml:"storage"`
	Logging       LoggingConfig       `toml:"logging"`
}

// ServerConfig contains the HTTP API server configuration
type ServerConfig struct {
	Host               string   `toml:"host"`
	Port               int      `toml:"port"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
}

// SourceConfig describes the upstream audio feed
type SourceConfig struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries"`
}

// AudioConfig contains audio chunking parameters
type AudioConfig struct {
	SampleRate           int  `toml:"sample_rate"`
	Channels             int  `toml:"channels"`
	BytesPerSample       int  `toml:"bytes_per_sample"`
	ChunkDurationSeconds int  `toml:"chunk_duration_seconds"`
	MirrorToSink         bool `toml:"mirror_to_sink"`
	QueueCapacity        int  `toml:"queue_capacity"`
}

// TranscriptionConfig contains speech-to-text settings
type TranscriptionConfig struct {
	OpenAIAPIKey   string `toml:"openai_api_key"`
	Model          string `toml:"model"`
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ExtractionConfig contains language-extraction settings
type ExtractionConfig struct {
	OpenAIAPIKey   string `toml:"openai_api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// AssessmentConfig contains emergency-assessment settings
type AssessmentConfig struct {
	OpenAIAPIKey   string `toml:"openai_api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// CollectorConfig contains context-consolidation settings
type CollectorConfig struct {
	RetentionHours             int `toml:"retention_hours"`
	ConsolidationWindowMinutes int `toml:"consolidation_window_minutes"`
	CandidateLookbackMinutes   int `toml:"candidate_lookback_minutes"`
	VolumeCandidateThreshold   int `toml:"volume_candidate_threshold"`
}

// BusConfig contains message bus settings
type BusConfig struct {
	HistoryLimit int `toml:"history_limit"`
}

// EscalationConfig contains the escalation controller settings
type EscalationConfig struct {
	EvalIntervalSeconds  int     `toml:"eval_interval_seconds"`
	MinConfidence        float64 `toml:"min_confidence"`
	CriticalThreshold    float64 `toml:"critical_threshold"`
	HighThreshold        float64 `toml:"high_threshold"`
	MediumThreshold      float64 `toml:"medium_threshold"`
	CallTimeoutMinutes   int     `toml:"call_timeout_minutes"`
	EvictionGraceMinutes int     `toml:"eviction_grace_minutes"`

	// MaxIncidentAgeMinutes bounds how long an undecided incident may
	// stay open before it ages out. Zero disables the bound.
	MaxIncidentAgeMinutes int `toml:"max_incident_age_minutes"`
}

// DispatchConfig contains the outbound voice-call settings
type DispatchConfig struct {
	Enabled        bool            `toml:"enabled"`
	BaseURL        string          `toml:"base_url"`
	APIKey         string          `toml:"api_key"`
	TimeoutSeconds int             `toml:"timeout_seconds"`
	Contacts       []ContactConfig `toml:"contacts"`
}

// ContactConfig describes one emergency contact
type ContactConfig struct {
	Name           string   `toml:"name"`
	Phone          string   `toml:"phone"`
	EmergencyTypes []string `toml:"emergency_types"`
	Priority       int      `toml:"priority"`
}

// FeedConfig contains the shared messages.json feed settings
type FeedConfig struct {
	Path        string `toml:"path"`
	MaxMessages int    `toml:"max_messages"`
}

// StorageConfig contains the SQLite database settings
type StorageConfig struct {
	Path string `toml:"path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns a configuration with reasonable defaults for every
// section. Load applies the file on top of these.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Source: SourceConfig{
			TimeoutSeconds: 30,
			MaxRetries:     3,
		},
		Audio: AudioConfig{
			SampleRate:           16000,
			Channels:             1,
			BytesPerSample:       2,
			ChunkDurationSeconds: 5,
			MirrorToSink:         true,
			QueueCapacity:        16,
		},
		Transcription: TranscriptionConfig{
			Model:          "whisper-1",
			Language:       "en",
			TimeoutSeconds: 30,
		},
		Extraction: ExtractionConfig{
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 30,
		},
		Assessment: AssessmentConfig{
			Model:          "gpt-4o",
			TimeoutSeconds: 30,
		},
		Collector: CollectorConfig{
			RetentionHours:             24,
			ConsolidationWindowMinutes: 10,
			CandidateLookbackMinutes:   5,
			VolumeCandidateThreshold:   3,
		},
		Bus: BusConfig{
			HistoryLimit: 1000,
		},
		Escalation: EscalationConfig{
			EvalIntervalSeconds:   5,
			MinConfidence:         0.30,
			CriticalThreshold:     0.85,
			HighThreshold:         0.70,
			MediumThreshold:       0.50,
			CallTimeoutMinutes:    5,
			EvictionGraceMinutes:  10,
			MaxIncidentAgeMinutes: 30,
		},
		Dispatch: DispatchConfig{
			TimeoutSeconds: 30,
		},
		Feed: FeedConfig{
			Path:        "messages.json",
			MaxMessages: 500,
		},
		Storage: StorageConfig{
			Path: "skywatch.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads and parses the configuration file, applying it over the
// defaults and validating the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	config := Default()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for invariant violations. These are
// configuration errors and are fatal at startup.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels <= 0 {
		return fmt.Errorf("audio.channels must be positive, got %d", c.Audio.Channels)
	}
	if c.Audio.BytesPerSample <= 0 {
		return fmt.Errorf("audio.bytes_per_sample must be positive, got %d", c.Audio.BytesPerSample)
	}
	if c.Audio.ChunkDurationSeconds <= 0 {
		return fmt.Errorf("audio.chunk_duration_seconds must be positive, got %d", c.Audio.ChunkDurationSeconds)
	}
	if c.Audio.QueueCapacity <= 0 {
		return fmt.Errorf("audio.queue_capacity must be positive, got %d", c.Audio.QueueCapacity)
	}
	if c.Collector.RetentionHours <= 0 {
		return fmt.Errorf("collector.retention_hours must be positive, got %d", c.Collector.RetentionHours)
	}
	if c.Collector.VolumeCandidateThreshold <= 0 {
		return fmt.Errorf("collector.volume_candidate_threshold must be positive, got %d", c.Collector.VolumeCandidateThreshold)
	}
	if c.Bus.HistoryLimit <= 0 {
		return fmt.Errorf("bus.history_limit must be positive, got %d", c.Bus.HistoryLimit)
	}
	if c.Escalation.MinConfidence < 0 || c.Escalation.MinConfidence > 1 {
		return fmt.Errorf("escalation.min_confidence must be in [0,1], got %f", c.Escalation.MinConfidence)
	}
	for _, threshold := range []struct {
		name  string
		value float64
	}{
		{"escalation.critical_threshold", c.Escalation.CriticalThreshold},
		{"escalation.high_threshold", c.Escalation.HighThreshold},
		{"escalation.medium_threshold", c.Escalation.MediumThreshold},
	} {
		if threshold.value < 0 || threshold.value > 1 {
			return fmt.Errorf("%s must be in [0,1], got %f", threshold.name, threshold.value)
		}
	}
	if c.Feed.MaxMessages <= 0 {
		return fmt.Errorf("feed.max_messages must be positive, got %d", c.Feed.MaxMessages)
	}
	return nil
}
