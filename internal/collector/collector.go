// Package collector maintains per-callsign windowed observation
// histories and consolidates them on demand into a single snapshot.
package collector

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yegors/skywatch/internal/callsign"
	"github.com/yegors/skywatch/pkg/logger"
)

// emergencyTokens are instruction tokens that make a callsign an
// emergency candidate regardless of communication volume.
var emergencyTokens = []string{"emergency", "mayday", "pan_pan", "pan-pan", "priority", "medical"}

// Config holds the collector's windowing knobs.
type Config struct {
	RetentionHours           int
	WindowMinutes            int
	CandidateLookbackMinutes int
	VolumeThreshold          int
}

// Collector aggregates audio and language observations per callsign
// within sliding time windows. All methods are safe for concurrent use.
type Collector struct {
	config Config
	logger *logger.Logger

	mu       sync.RWMutex
	audio    map[string][]AudioObservation
	language map[string][]LanguageObservation
	system   SystemSnapshot

	observationsCollected int64
	consolidations        int64
	startTime             time.Time
}

// New creates a new context collector.
func New(config Config, logger *logger.Logger) *Collector {
	return &Collector{
		config:    config,
		logger:    logger.Named("collector"),
		audio:     make(map[string][]AudioObservation),
		language:  make(map[string][]LanguageObservation),
		startTime: time.Now().UTC(),
	}
}

// AddAudioObservation files an audio observation under the callsign
// recovered from its transcript, or under the UNKNOWN bucket when no
// identifier matches. Triggers an amortized retention sweep.
func (c *Collector) AddAudioObservation(obs AudioObservation) {
	cs := callsign.Extract(obs.Transcript)
	if cs == "" {
		cs = UnknownCallsign
	}

	c.mu.Lock()
	c.audio[cs] = append(c.audio[cs], obs)
	c.observationsCollected++
	c.sweepLocked()
	c.mu.Unlock()

	c.logger.Debug("Added audio observation",
		logger.String("callsign", cs),
		logger.Int64("sequence_id", obs.SequenceID))
}

// AddLanguageObservation files a language observation under every
// callsign it names.
func (c *Collector) AddLanguageObservation(obs LanguageObservation) {
	if len(obs.Callsigns) == 0 {
		return
	}

	c.mu.Lock()
	for _, cs := range obs.Callsigns {
		c.language[cs] = append(c.language[cs], obs)
	}
	c.observationsCollected++
	c.mu.Unlock()

	c.logger.Debug("Added language observation",
		logger.Strings("callsigns", obs.Callsigns),
		logger.Strings("instructions", obs.Instructions))
}

// SetSystemSnapshot replaces the system-wide snapshot embedded in
// subsequent consolidations.
func (c *Collector) SetSystemSnapshot(snap SystemSnapshot) {
	c.mu.Lock()
	c.system = snap
	c.mu.Unlock()
}

// Consolidate recomputes the snapshot for one callsign from the
// observations inside the window. Returns nil when the window holds no
// observations of either kind.
func (c *Collector) Consolidate(cs string, windowMinutes int) *ConsolidatedContext {
	if windowMinutes <= 0 {
		windowMinutes = c.config.WindowMinutes
	}
	cutoff := time.Now().UTC().Add(-time.Duration(windowMinutes) * time.Minute)

	c.mu.Lock()
	defer c.mu.Unlock()

	var recentAudio []AudioObservation
	for _, obs := range c.audio[cs] {
		if obs.Timestamp.After(cutoff) {
			recentAudio = append(recentAudio, obs)
		}
	}

	var recentLanguage []LanguageObservation
	for _, obs := range c.language[cs] {
		if obs.Timestamp.After(cutoff) {
			recentLanguage = append(recentLanguage, obs)
		}
	}

	if len(recentAudio) == 0 && len(recentLanguage) == 0 {
		return nil
	}

	// The single most recent transcript represents the raw text.
	var rawTranscript string
	var latest time.Time
	for _, obs := range recentAudio {
		if obs.Timestamp.After(latest) {
			latest = obs.Timestamp
			rawTranscript = obs.Transcript
		}
	}

	callsigns := make(map[string]struct{})
	instructions := make(map[string]struct{})
	runways := make(map[string]struct{})
	var summaries []string
	for _, obs := range recentLanguage {
		for _, v := range obs.Callsigns {
			callsigns[v] = struct{}{}
		}
		for _, v := range obs.Instructions {
			instructions[v] = struct{}{}
		}
		for _, v := range obs.Runways {
			runways[v] = struct{}{}
		}
		if obs.Summary != "" {
			summaries = append(summaries, obs.Summary)
		}
	}
	if len(summaries) > 3 {
		summaries = summaries[len(summaries)-3:]
	}

	// Language-only context is still usable; default the confidence.
	confidence := 0.8
	if len(recentAudio) > 0 {
		var sum float64
		for _, obs := range recentAudio {
			sum += obs.Confidence
		}
		confidence = sum / float64(len(recentAudio))
	}

	c.consolidations++

	return &ConsolidatedContext{
		Callsign:        cs,
		RawTranscript:   rawTranscript,
		Callsigns:       sortedKeys(callsigns),
		Instructions:    sortedKeys(instructions),
		Runways:         sortedKeys(runways),
		RecentSummaries: summaries,
		Confidence:      confidence,
		System:          c.system,
		AudioCount:      len(recentAudio),
		LanguageCount:   len(recentLanguage),
		WindowMinutes:   windowMinutes,
		Timestamp:       time.Now().UTC(),
	}
}

// EmergencyCandidates returns callsigns worth an emergency assessment:
// either a language observation inside the lookback window carries an
// emergency token, or the callsign has at least VolumeThreshold
// language observations in the window (frequent chatter about one
// aircraft is itself a signal).
func (c *Collector) EmergencyCandidates(lookbackMinutes int) []string {
	if lookbackMinutes <= 0 {
		lookbackMinutes = c.config.CandidateLookbackMinutes
	}
	cutoff := time.Now().UTC().Add(-time.Duration(lookbackMinutes) * time.Minute)

	c.mu.RLock()
	defer c.mu.RUnlock()

	candidates := make(map[string]struct{})
	for cs, observations := range c.language {
		recent := 0
		flagged := false
		for _, obs := range observations {
			if !obs.Timestamp.After(cutoff) {
				continue
			}
			recent++
			if !flagged && hasEmergencyToken(obs.Instructions) {
				flagged = true
			}
		}
		if flagged || recent >= c.config.VolumeThreshold {
			candidates[cs] = struct{}{}
		}
	}

	return sortedKeys(candidates)
}

// TrackedCallsigns enumerates every callsign with at least one
// observation of either kind.
func (c *Collector) TrackedCallsigns() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{})
	for cs := range c.audio {
		seen[cs] = struct{}{}
	}
	for cs := range c.language {
		seen[cs] = struct{}{}
	}
	return sortedKeys(seen)
}

// Stats returns a snapshot of collector counters.
func (c *Collector) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]struct{})
	for cs := range c.audio {
		seen[cs] = struct{}{}
	}
	for cs := range c.language {
		seen[cs] = struct{}{}
	}

	return Stats{
		ObservationsCollected: c.observationsCollected,
		Consolidations:        c.consolidations,
		ActiveCallsigns:       len(seen),
		StartTime:             c.startTime,
	}
}

// Sweep removes observations past the retention horizon and drops any
// callsign whose lists are both empty.
func (c *Collector) Sweep() {
	c.mu.Lock()
	c.sweepLocked()
	c.mu.Unlock()
}

func (c *Collector) sweepLocked() {
	cutoff := time.Now().UTC().Add(-time.Duration(c.config.RetentionHours) * time.Hour)

	for cs, observations := range c.audio {
		kept := observations[:0]
		for _, obs := range observations {
			if obs.Timestamp.After(cutoff) {
				kept = append(kept, obs)
			}
		}
		if len(kept) == 0 {
			delete(c.audio, cs)
		} else {
			c.audio[cs] = kept
		}
	}

	for cs, observations := range c.language {
		kept := observations[:0]
		for _, obs := range observations {
			if obs.Timestamp.After(cutoff) {
				kept = append(kept, obs)
			}
		}
		if len(kept) == 0 {
			delete(c.language, cs)
		} else {
			c.language[cs] = kept
		}
	}
}

func hasEmergencyToken(instructions []string) bool {
	joined := strings.ToLower(strings.Join(instructions, " "))
	for _, token := range emergencyTokens {
		if strings.Contains(joined, token) {
			return true
		}
	}
	return false
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
