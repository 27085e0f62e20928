package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/yegors/skywatch/internal/assessment"
	"github.com/yegors/skywatch/internal/audio"
	"github.com/yegors/skywatch/internal/bus"
	"github.com/yegors/skywatch/internal/callsign"
	"github.com/yegors/skywatch/internal/collector"
	"github.com/yegors/skywatch/internal/escalation"
	"github.com/yegors/skywatch/internal/extraction"
	"github.com/yegors/skywatch/internal/feed"
	"github.com/yegors/skywatch/internal/metrics"
	"github.com/yegors/skywatch/internal/source"
	"github.com/yegors/skywatch/internal/storage/sqlite"
	"github.com/yegors/skywatch/internal/transcription"
	"github.com/yegors/skywatch/pkg/logger"
)

// defaultTranscriptConfidence is assigned to observations whose
// transcription backend reports no per-segment confidence.
const defaultTranscriptConfidence = 0.8

// Config tunes the pipeline loops.
type Config struct {
	SampleRate          int
	Channels            int
	QueueCapacity       int
	StatusInterval      time.Duration
	TranscriptRetention time.Duration
	CandidateLookback   int
}

// Deps are the components the pipeline orchestrates. Transcripts,
// Incidents, Feed, and Metrics may be nil.
type Deps struct {
	Source      *source.Client
	Ingestor    *audio.Ingestor
	Transcriber transcription.Transcriber
	Extractor   extraction.Extractor
	Collector   *collector.Collector
	Escalation  *escalation.Controller
	Bus         *bus.Bus
	Transcripts *sqlite.TranscriptStorage
	Incidents   *sqlite.IncidentStorage
	Feed        *feed.Feed
	Metrics     *metrics.Metrics
}

// Pipeline runs the capture, transcription, and escalation loops.
type Pipeline struct {
	deps   Deps
	config Config
	queue  *chunkQueue
	logger *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the pipeline and registers its bus subscriptions.
func New(ctx context.Context, deps Deps, config Config, log *logger.Logger) *Pipeline {
	if config.StatusInterval <= 0 {
		config.StatusInterval = 30 * time.Second
	}

	pctx, cancel := context.WithCancel(ctx)
	p := &Pipeline{
		deps:   deps,
		config: config,
		queue:  newChunkQueue(config.QueueCapacity),
		logger: log.Named("pipeline"),
		ctx:    pctx,
		cancel: cancel,
	}

	deps.Bus.Subscribe(bus.TopicCandidateChange, p.handleCandidateChange)
	deps.Bus.Subscribe(bus.TopicEmergencyDetected, p.handleEmergencyDetected)
	deps.Bus.Subscribe(bus.TopicEmergencyCall, p.handleEmergencyCall)
	deps.Bus.Subscribe(bus.TopicCallStatus, p.handleCallStatus)

	return p
}

// Start launches the capture, consumer, escalation, and status loops.
func (p *Pipeline) Start() {
	p.wg.Add(3)
	go p.captureLoop()
	go p.consumeLoop()
	go p.statusLoop()

	p.deps.Escalation.Start()

	p.logger.Info("Pipeline started",
		logger.Int("queue_capacity", p.config.QueueCapacity),
		logger.Duration("status_interval", p.config.StatusInterval))
}

// Stop shuts the loops down in dependency order and blocks until they
// have exited.
func (p *Pipeline) Stop() {
	p.cancel()
	p.deps.Ingestor.Stop()
	p.deps.Ingestor.Wait()
	p.queue.Close()
	p.wg.Wait()
	p.deps.Escalation.Stop()
	p.logger.Info("Pipeline stopped")
}

// captureLoop keeps one live connection to the audio source, feeding
// sealed chunks into the queue. Lost connections are re-established
// with a fixed delay.
func (p *Pipeline) captureLoop() {
	defer p.wg.Done()

	for {
		if p.ctx.Err() != nil {
			return
		}

		src, err := p.deps.Source.Open(p.ctx)
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			p.logger.Error("Audio source unavailable, retrying", logger.Error(err))
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		// Blocks until the stream ends or the ingestor is stopped.
		p.deps.Ingestor.Stream(src, p.onChunk)

		// Residual bytes belong to the severed connection and must not
		// leak into the next stream's first chunk.
		p.deps.Ingestor.Reset()

		if p.ctx.Err() != nil {
			return
		}
		p.logger.Warn("Audio stream ended, reconnecting")
	}
}

// onChunk runs on the capture path: it must never block.
func (p *Pipeline) onChunk(chunk audio.Chunk) error {
	if m := p.deps.Metrics; m != nil {
		m.ChunksProduced.Inc()
		m.BytesIngested.Add(float64(len(chunk.PCM)))
	}

	if !p.queue.Push(chunk) {
		p.logger.Warn("Chunk queue full, dropping chunk",
			logger.Int64("sequence", chunk.Sequence),
			logger.Int64("total_dropped", p.queue.Dropped()))
		if m := p.deps.Metrics; m != nil {
			m.ChunksDropped.Inc()
		}
	}

	if m := p.deps.Metrics; m != nil {
		m.QueueDepth.Set(float64(p.queue.Depth()))
	}
	return nil
}

// consumeLoop drains the queue through transcription and context
// collection.
func (p *Pipeline) consumeLoop() {
	defer p.wg.Done()

	for chunk := range p.queue.Chan() {
		p.process(chunk)
	}
}

func (p *Pipeline) process(chunk audio.Chunk) {
	if m := p.deps.Metrics; m != nil {
		m.TranscriptionRequests.Inc()
	}

	start := time.Now()
	result := p.deps.Transcriber.Transcribe(p.ctx, chunk.PCM, p.config.SampleRate, p.config.Channels)
	if m := p.deps.Metrics; m != nil {
		m.TranscriptionDuration.Observe(time.Since(start).Seconds())
	}

	if result.Failed {
		if m := p.deps.Metrics; m != nil {
			m.TranscriptionFailures.Inc()
		}
		return
	}
	if result.Empty {
		if m := p.deps.Metrics; m != nil {
			m.TranscriptionEmpty.Inc()
		}
		return
	}

	cs := callsign.Extract(result.Text)
	if cs == "" {
		cs = collector.UnknownCallsign
	}

	p.logger.Info("Transcribed chunk",
		logger.Int64("sequence", chunk.Sequence),
		logger.String("callsign", cs),
		logger.String("text", result.Text))

	if p.deps.Transcripts != nil {
		record := &sqlite.TranscriptRecord{
			SequenceID: chunk.Sequence,
			Callsign:   cs,
			Text:       result.Text,
			Confidence: defaultTranscriptConfidence,
			Timestamp:  chunk.Timestamp,
			CreatedAt:  time.Now().UTC(),
		}
		if _, err := p.deps.Transcripts.StoreTranscript(record); err != nil {
			p.logger.Error("Failed to archive transcript", logger.Error(err))
		}
	}

	if p.deps.Feed != nil {
		urgent := assessment.DetectIndicators(result.Text).Count() > 0
		if err := p.deps.Feed.Append(cs, result.Text, urgent); err != nil {
			p.logger.Error("Failed to append to message feed", logger.Error(err))
		}
	}

	p.deps.Collector.AddAudioObservation(collector.AudioObservation{
		SequenceID: chunk.Sequence,
		Transcript: result.Text,
		Confidence: defaultTranscriptConfidence,
		Timestamp:  chunk.Timestamp,
	})
	if m := p.deps.Metrics; m != nil {
		m.AudioObservations.Inc()
	}

	if p.deps.Extractor != nil {
		p.extract(result.Text)
	}
}

func (p *Pipeline) extract(transcript string) {
	ext, err := p.deps.Extractor.Extract(p.ctx, transcript)
	if err != nil {
		p.logger.Warn("Extraction failed", logger.Error(err))
		return
	}
	if ext.Empty() {
		return
	}

	p.deps.Collector.AddLanguageObservation(collector.LanguageObservation{
		Callsigns:    ext.Callsigns,
		Instructions: ext.Instructions,
		Runways:      ext.Runways,
		Summary:      ext.Summary,
		Timestamp:    time.Now().UTC(),
	})
	if m := p.deps.Metrics; m != nil {
		m.LanguageObservations.Inc()
	}
}

// statusLoop publishes periodic system snapshots, refreshes gauges,
// persists incident state, and prunes the transcript archive.
func (p *Pipeline) statusLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.publishStatus()
		}
	}
}

func (p *Pipeline) publishStatus() {
	tracked := p.deps.Collector.TrackedCallsigns()
	candidates := p.deps.Collector.EmergencyCandidates(p.config.CandidateLookback)
	open := p.deps.Escalation.OpenIncidents()

	p.deps.Collector.SetSystemSnapshot(collector.SystemSnapshot{
		ActiveCallsigns: len(tracked),
		OpenIncidents:   open,
		Timestamp:       time.Now().UTC(),
	})

	ingest := p.deps.Ingestor.Stats()
	p.deps.Bus.Publish(bus.TopicSystemStatus, map[string]any{
		"tracked_callsigns":    len(tracked),
		"emergency_candidates": len(candidates),
		"open_incidents":       open,
		"chunks_ingested":      ingest.Chunks,
		"bytes_ingested":       ingest.BytesRead,
		"chunks_dropped":       p.queue.Dropped(),
	}, "pipeline")

	if m := p.deps.Metrics; m != nil {
		m.TrackedCallsigns.Set(float64(len(tracked)))
		m.EmergencyCandidates.Set(float64(len(candidates)))
		m.QueueDepth.Set(float64(p.queue.Depth()))
	}

	if p.deps.Incidents != nil {
		for _, inc := range p.deps.Escalation.Incidents() {
			record := &sqlite.IncidentRecord{
				ID:            inc.ID,
				Callsign:      inc.Callsign,
				State:         string(inc.State),
				UrgencyLevel:  inc.UrgencyLevel,
				EmergencyType: inc.EmergencyType,
				Confidence:    inc.Confidence,
				Summary:       inc.Summary,
				CallID:        inc.CallID,
				CallError:     inc.CallError,
				CreatedAt:     inc.CreatedAt,
				UpdatedAt:     inc.UpdatedAt,
			}
			if err := p.deps.Incidents.UpsertIncident(record); err != nil {
				p.logger.Error("Failed to persist incident",
					logger.String("incident_id", inc.ID),
					logger.Error(err))
			}
		}
	}

	if p.deps.Transcripts != nil && p.config.TranscriptRetention > 0 {
		cutoff := time.Now().UTC().Add(-p.config.TranscriptRetention)
		if n, err := p.deps.Transcripts.PruneBefore(cutoff); err != nil {
			p.logger.Error("Failed to prune transcripts", logger.Error(err))
		} else if n > 0 {
			p.logger.Debug("Pruned old transcripts", logger.Int64("removed", n))
		}
	}
}

func (p *Pipeline) handleCandidateChange(msg bus.Message) error {
	if m := p.deps.Metrics; m != nil && msg.Payload["change"] == "added" {
		m.IncidentsOpened.Inc()
	}
	return nil
}

func (p *Pipeline) handleEmergencyDetected(msg bus.Message) error {
	if m := p.deps.Metrics; m != nil {
		m.IncidentsEscalated.Inc()
	}
	if p.deps.Feed != nil {
		cs, _ := msg.Payload["callsign"].(string)
		reason, _ := msg.Payload["reason"].(string)
		if err := p.deps.Feed.Append(cs, "EMERGENCY DETECTED: "+reason, true); err != nil {
			p.logger.Error("Failed to append emergency to feed", logger.Error(err))
		}
	}
	return nil
}

func (p *Pipeline) handleEmergencyCall(msg bus.Message) error {
	if m := p.deps.Metrics; m != nil {
		m.CallsTriggered.Inc()
	}
	return nil
}

func (p *Pipeline) handleCallStatus(msg bus.Message) error {
	m := p.deps.Metrics
	if m == nil {
		return nil
	}
	switch msg.Payload["status"] {
	case "completed", "ended":
		m.CallsCompleted.Inc()
	case "failed", "no-answer":
		m.CallsFailed.Inc()
	}
	return nil
}

// Stats is a combined runtime snapshot for the status API.
type Stats struct {
	Ingest        audio.IngestorStats `json:"ingest"`
	QueueDepth    int                 `json:"queue_depth"`
	QueueDropped  int64               `json:"queue_dropped"`
	Collector     collector.Stats     `json:"collector"`
	OpenIncidents int                 `json:"open_incidents"`
}

// Stats returns a snapshot of pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Ingest:        p.deps.Ingestor.Stats(),
		QueueDepth:    p.queue.Depth(),
		QueueDropped:  p.queue.Dropped(),
		Collector:     p.deps.Collector.Stats(),
		OpenIncidents: p.deps.Escalation.OpenIncidents(),
	}
}
