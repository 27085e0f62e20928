package collector

import "time"

// UnknownCallsign is the sentinel bucket for audio observations whose
// transcript yields no identifier. The datum is preserved rather than
// discarded; it is never retroactively merged.
const UnknownCallsign = "UNKNOWN"

// AudioObservation is one transcription-path datum: the transcript of
// a single processed audio chunk. Immutable once filed.
type AudioObservation struct {
	SequenceID   int64     `json:"sequence_id"`
	Transcript   string    `json:"transcript"`
	Confidence   float64   `json:"confidence"`
	Timestamp    time.Time `json:"timestamp"`
	AudioQuality *float64  `json:"audio_quality,omitempty"`
}

// LanguageObservation is one extraction-path datum: the structured
// fields recovered from a transcript. A single utterance may reference
// multiple aircraft. Immutable once filed.
type LanguageObservation struct {
	Callsigns    []string  `json:"callsigns"`
	Instructions []string  `json:"instructions"`
	Runways      []string  `json:"runways"`
	Summary      string    `json:"summary"`
	Timestamp    time.Time `json:"timestamp"`
}

// SystemSnapshot is the system-wide state embedded in consolidations.
type SystemSnapshot struct {
	ActiveCallsigns int       `json:"active_callsigns"`
	OpenIncidents   int       `json:"open_incidents"`
	Timestamp       time.Time `json:"timestamp"`
}

// ConsolidatedContext is the derived per-callsign snapshot. It is
// recomputed on every request and never mutated in place.
type ConsolidatedContext struct {
	Callsign        string         `json:"callsign"`
	RawTranscript   string         `json:"raw_transcript"`
	Callsigns       []string       `json:"callsigns"`
	Instructions    []string       `json:"instructions"`
	Runways         []string       `json:"runways"`
	RecentSummaries []string       `json:"recent_summaries"`
	Confidence      float64        `json:"confidence"`
	System          SystemSnapshot `json:"system"`
	AudioCount      int            `json:"audio_count"`
	LanguageCount   int            `json:"language_count"`
	WindowMinutes   int            `json:"window_minutes"`
	Timestamp       time.Time      `json:"timestamp"`
}

// Stats is a read-only snapshot of collector counters.
type Stats struct {
	ObservationsCollected int64     `json:"observations_collected"`
	Consolidations        int64     `json:"consolidations"`
	ActiveCallsigns       int       `json:"active_callsigns"`
	StartTime             time.Time `json:"start_time"`
}
