// Package segmenter implements the streaming speech-segmentation engine at
// the heart of Voxtype. It consumes raw PCM chunks from an audio source,
// classifies each chunk as speech or silence, accumulates contiguous speech
// into an utterance buffer, and decides under several competing timing and
// size policies when to hand the buffer to a transcriber.
//
// The engine owns a single worker goroutine that drains a bounded ingestion
// queue. Producers call [Segmenter.AddAudio], which never blocks and never
// classifies or buffers on the caller's goroutine. Completed transcriptions
// are delivered to a [Sink] callback in flush order.
package segmenter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/voxtype/voxtype/internal/observe"
	"github.com/voxtype/voxtype/pkg/audio"
	"github.com/voxtype/voxtype/pkg/provider/stt"
	"github.com/voxtype/voxtype/pkg/provider/vad"
)

// State describes the engine lifecycle.
type State int

const (
	// StateIdle means no worker is running. The engine can be started.
	StateIdle State = iota

	// StateRunning means the worker is draining the queue and audio is
	// accepted.
	StateRunning

	// StateDraining is the window between a stop request and the worker
	// observing the stop entry. Audio offered during this window is dropped.
	StateDraining
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Flush trigger reasons, recorded as the "reason" metric attribute.
const (
	reasonMaxSizeSpeaking = "max-size-while-speaking"
	reasonSilence         = "silence-after-speech"
	reasonMaxSizeTrailing = "max-size-during-trailing-silence"
	reasonInactivity      = "inactivity-timeout"
	reasonDrain           = "drain-on-stop"
)

// Sink receives each completed transcription result. It is invoked from the
// worker goroutine, one call at a time and in flush order. The sink must not
// call back into the engine synchronously. A panicking sink is recovered and
// logged without disturbing the engine.
type Sink func(res stt.Result)

// Settings holds the tunable flush thresholds. They can be swapped at runtime
// via [Segmenter.UpdateSettings] without disturbing the in-flight buffer.
type Settings struct {
	// MinUtterance is the minimum accumulated audio before a
	// silence-triggered or inactivity-triggered flush is allowed.
	MinUtterance time.Duration

	// MinDispatchBytes gates whether a flushed buffer is worth sending at
	// all. Smaller flushes are dropped, never transcribed. This applies to
	// every flush reason, including the final drain on stop.
	MinDispatchBytes int

	// SilenceFlush is the continuous silence (or total absence of incoming
	// audio) required after the last detected speech before a flush fires.
	SilenceFlush time.Duration

	// MaxSegment is the hard cap on buffered audio. Once the buffer reaches
	// this duration it is flushed unconditionally.
	MaxSegment time.Duration
}

// DefaultSettings returns the thresholds used when a config does not override
// them: half a second of speech, 1.5 s of silence, 10 s segments, and a 1 s
// (32000 byte at 16 kHz) dispatch floor.
func DefaultSettings() Settings {
	return Settings{
		MinUtterance:     500 * time.Millisecond,
		MinDispatchBytes: 32000,
		SilenceFlush:     1500 * time.Millisecond,
		MaxSegment:       10 * time.Second,
	}
}

// Validate checks the settings for internal consistency.
func (s Settings) Validate() error {
	var errs []error
	if s.MinUtterance < 0 {
		errs = append(errs, errors.New("minUtterance must not be negative"))
	}
	if s.MinDispatchBytes < 0 {
		errs = append(errs, errors.New("minDispatchBytes must not be negative"))
	}
	if s.SilenceFlush <= 0 {
		errs = append(errs, errors.New("silenceFlush must be positive"))
	}
	if s.MaxSegment <= 0 {
		errs = append(errs, errors.New("maxSegment must be positive"))
	}
	return errors.Join(errs...)
}

// thresholds is the byte-resolved form of Settings, derived once per swap so
// the worker never repeats duration arithmetic per chunk.
type thresholds struct {
	minUtteranceBytes int
	minDispatchBytes  int
	silenceFlush      time.Duration
	maxSegmentBytes   int
}

func (s Settings) resolve(sampleRate int) thresholds {
	// The engine ingests 16-bit mono only, so channels is fixed at 1.
	return thresholds{
		minUtteranceBytes: audio.DurationToBytes(s.MinUtterance, sampleRate, 1),
		minDispatchBytes:  s.MinDispatchBytes,
		silenceFlush:      s.SilenceFlush,
		maxSegmentBytes:   audio.DurationToBytes(s.MaxSegment, sampleRate, 1),
	}
}

// Config holds the per-session engine configuration.
type Config struct {
	// SampleRate is the PCM sample rate in Hz of all incoming audio.
	// Audio is always 16-bit mono.
	SampleRate int

	// Settings are the initial flush thresholds. Zero value means
	// [DefaultSettings].
	Settings Settings
}

// queue entries are either an audio chunk or the stop marker. The marker is
// enqueued on the same channel as chunks, so FIFO ordering guarantees the
// worker observes it only after every chunk enqueued before it.
type item struct {
	pcm  []byte
	stop bool
}

const (
	defaultPollInterval  = 50 * time.Millisecond
	defaultQueueCapacity = 256
)

// Segmenter is the streaming speech-segmentation engine. Construct with
// [New], then drive with Start / AddAudio / Stop. A stopped Segmenter can be
// started again.
type Segmenter struct {
	classifier  vad.Classifier
	transcriber stt.Transcriber
	sink        Sink
	logger      *slog.Logger
	metrics     *observe.Metrics

	sampleRate   int
	pollInterval time.Duration
	queueCap     int

	// now is swapped in tests to control silence timing.
	now func() time.Time

	// mu protects everything below. It is held only for short decision
	// steps, never across classifier, transcriber, or sink calls.
	mu         sync.Mutex
	state      State
	queue      chan item
	buffer     []byte
	lastSpeech time.Time
	lastAudio  time.Time
	cfg        thresholds

	wg sync.WaitGroup
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Segmenter) { s.logger = l }
}

// WithMetrics sets the metrics instance. Defaults to
// [observe.DefaultMetrics]. Tests should inject their own to avoid global
// state.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Segmenter) { s.metrics = m }
}

// WithPollInterval sets the worker's queue poll timeout. It bounds the
// latency of reacting to Stop and to inactivity. Defaults to 50 ms.
func WithPollInterval(d time.Duration) Option {
	return func(s *Segmenter) { s.pollInterval = d }
}

// WithQueueCapacity bounds the ingestion queue. Chunks offered while the
// queue is full are dropped and counted, never blocking the producer.
// Defaults to 256 entries.
func WithQueueCapacity(n int) Option {
	return func(s *Segmenter) { s.queueCap = n }
}

// New creates a Segmenter. The transcriber is required. A nil classifier is
// permitted and makes the engine fail open, treating every chunk as speech;
// losing audio is worse than over-buffering. A nil sink discards results.
func New(cfg Config, classifier vad.Classifier, transcriber stt.Transcriber, sink Sink, opts ...Option) (*Segmenter, error) {
	if transcriber == nil {
		return nil, errors.New("segmenter: transcriber must not be nil")
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("segmenter: invalid sample rate %d", cfg.SampleRate)
	}
	if (cfg.Settings == Settings{}) {
		cfg.Settings = DefaultSettings()
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("segmenter: invalid settings: %w", err)
	}

	s := &Segmenter{
		classifier:   classifier,
		transcriber:  transcriber,
		sink:         sink,
		sampleRate:   cfg.SampleRate,
		pollInterval: defaultPollInterval,
		queueCap:     defaultQueueCapacity,
		now:          time.Now,
		state:        StateIdle,
		cfg:          cfg.Settings.resolve(cfg.SampleRate),
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.pollInterval <= 0 {
		s.pollInterval = defaultPollInterval
	}
	if s.queueCap <= 0 {
		s.queueCap = defaultQueueCapacity
	}
	return s, nil
}

// Start transitions the engine to Running and spawns the worker. Returns
// false without side effects when a worker is already active, including while
// a previous stop is still draining. Starting resets the utterance buffer and
// discards any audio left over from a previous run.
func (s *Segmenter) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return false
	}

	// A fresh channel drops any stale queue contents from the previous run.
	s.queue = make(chan item, s.queueCap)
	s.buffer = nil
	now := s.now()
	s.lastSpeech = now
	s.lastAudio = now
	s.state = StateRunning

	s.wg.Add(1)
	go s.worker(s.queue)

	s.logger.Debug("segmenter started",
		"sample_rate", s.sampleRate,
		"poll_interval", s.pollInterval,
	)
	return true
}

// AddAudio offers a chunk of raw little-endian 16-bit mono PCM to the engine.
// It never blocks: when the engine is not running the chunk is silently
// ignored, and when the ingestion queue is full the chunk is dropped and
// counted. Empty chunks are a no-op.
func (s *Segmenter) AddAudio(chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return
	}
	// Recorded before the worker consumes the chunk so HasRecentAudio
	// reflects freshly arrived data immediately.
	s.lastAudio = s.now()

	select {
	case s.queue <- item{pcm: chunk}:
		s.metrics.QueueDepth.Add(context.Background(), 1)
	default:
		s.metrics.DroppedChunks.Add(context.Background(), 1)
		s.logger.Warn("ingestion queue full, dropping chunk", "bytes", len(chunk))
	}
}

// Stop requests shutdown of the worker. It enqueues a stop entry behind all
// previously offered audio and returns immediately; the worker flushes any
// qualifying remainder exactly once and then goes Idle. Calling Stop when not
// running is a no-op. Use Close to additionally wait for the drain.
func (s *Segmenter) Stop() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateDraining
	q := s.queue
	s.mu.Unlock()

	select {
	case q <- item{stop: true}:
	default:
		// Queue full. No producer can add more entries in Draining, so the
		// worker is guaranteed to make room; deliver without blocking the
		// caller.
		go func() { q <- item{stop: true} }()
	}
}

// Close stops the engine and waits for the worker to finish draining. Safe to
// call multiple times and when the engine was never started.
func (s *Segmenter) Close() error {
	s.Stop()
	s.wg.Wait()
	return nil
}

// State returns the current lifecycle state.
func (s *Segmenter) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HasRecentAudio reports whether any audio, speech or silence, arrived within
// the silence-flush window. Callers can use it to auto-stop a session on a
// natural pause; the worker uses it for inactivity flushes.
func (s *Segmenter) HasRecentAudio() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Sub(s.lastAudio) < s.cfg.silenceFlush
}

// UpdateSettings swaps the flush thresholds atomically. The new values take
// effect on the worker's next decision; the in-flight buffer is never reset.
func (s *Segmenter) UpdateSettings(st Settings) error {
	if err := st.Validate(); err != nil {
		return fmt.Errorf("segmenter: invalid settings: %w", err)
	}
	s.mu.Lock()
	s.cfg = st.resolve(s.sampleRate)
	s.mu.Unlock()
	s.logger.Info("segmenter settings updated",
		"min_utterance", st.MinUtterance,
		"silence_flush", st.SilenceFlush,
		"max_segment", st.MaxSegment,
		"min_dispatch_bytes", st.MinDispatchBytes,
	)
	return nil
}

// worker is the single consumer goroutine. All flush decisions happen here;
// chunks are handled strictly in enqueue order.
func (s *Segmenter) worker(q chan item) {
	defer s.wg.Done()

	for {
		select {
		case it := <-q:
			if it.stop {
				s.drain()
				return
			}
			s.metrics.QueueDepth.Add(context.Background(), -1)
			s.handleChunk(it.pcm)

		case <-time.After(s.pollInterval):
			s.handlePollTimeout()
		}
	}
}

// handleChunk classifies one chunk and applies the flush policy.
func (s *Segmenter) handleChunk(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	silent := s.classify(pcm)

	var (
		flush  []byte
		reason string
	)

	s.mu.Lock()
	now := s.now()
	switch {
	case !silent:
		s.buffer = append(s.buffer, pcm...)
		s.lastSpeech = now
		if len(s.buffer) >= s.cfg.maxSegmentBytes {
			flush, reason = s.takeBuffer(), reasonMaxSizeSpeaking
		}

	case len(s.buffer) >= s.cfg.minUtteranceBytes && now.Sub(s.lastSpeech) >= s.cfg.silenceFlush:
		flush, reason = s.takeBuffer(), reasonSilence

	case len(s.buffer) > 0:
		// Keep a short tail of trailing silence for transcription context.
		s.buffer = append(s.buffer, pcm...)
		if len(s.buffer) >= s.cfg.maxSegmentBytes {
			flush, reason = s.takeBuffer(), reasonMaxSizeTrailing
		}

	default:
		// Leading silence before any speech: never buffered.
	}
	s.mu.Unlock()

	if flush != nil {
		s.dispatch(flush, reason)
	}
}

// handlePollTimeout fires the inactivity flush: the buffer holds a full
// utterance and nothing at all has arrived recently, so the audio source has
// stalled or the utterance ended with no trailing silence chunks delivered.
func (s *Segmenter) handlePollTimeout() {
	var flush []byte

	s.mu.Lock()
	if len(s.buffer) >= s.cfg.minUtteranceBytes && s.now().Sub(s.lastAudio) >= s.cfg.silenceFlush {
		flush = s.takeBuffer()
	}
	s.mu.Unlock()

	if flush != nil {
		s.dispatch(flush, reasonInactivity)
	}
}

// drain performs the final flush after the stop entry and transitions to
// Idle. The minimum-utterance and silence gates do not apply here; a final
// partial utterance is still worth transcribing if it clears the dispatch
// floor.
func (s *Segmenter) drain() {
	s.mu.Lock()
	flush := s.takeBuffer()
	s.mu.Unlock()

	if len(flush) > 0 {
		s.dispatch(flush, reasonDrain)
	}

	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
	s.logger.Debug("segmenter stopped")
}

// takeBuffer hands ownership of the accumulated bytes to the caller and
// resets the buffer for the next segment. Callers must hold mu.
func (s *Segmenter) takeBuffer() []byte {
	b := s.buffer
	s.buffer = nil
	return b
}

// classify runs the silence classifier outside the state lock. A nil or
// failing classifier fails open: the chunk is treated as speech.
func (s *Segmenter) classify(chunk []byte) bool {
	if s.classifier == nil {
		return false
	}
	silent, err := s.classifier.IsSilent(chunk)
	if err != nil {
		s.logger.Warn("silence classifier failed, treating chunk as speech", "error", err)
		return false
	}
	return silent
}

// dispatch sends one flushed segment to the transcriber and the result to the
// sink. It runs on the worker goroutine, so at most one transcription is in
// flight at a time and results reach the sink in flush order. Transcriber and
// sink failures are contained here and never reach the loop.
func (s *Segmenter) dispatch(pcm []byte, reason string) {
	ctx, span := observe.StartSpan(context.Background(), "segmenter.dispatch")
	defer span.End()

	s.metrics.RecordFlush(ctx, reason)

	s.mu.Lock()
	minDispatch := s.cfg.minDispatchBytes
	s.mu.Unlock()

	if len(pcm) < minDispatch {
		s.metrics.RecordDroppedSegment(ctx, "below_min")
		s.logger.Debug("segment below dispatch floor, dropping",
			"bytes", len(pcm),
			"min_bytes", minDispatch,
			"reason", reason,
		)
		return
	}

	segDur := audio.BytesToDuration(len(pcm), s.sampleRate, 1)
	s.metrics.SegmentDuration.Record(ctx, segDur.Seconds())

	start := time.Now()
	res, err := s.transcriber.Transcribe(ctx, pcm)
	s.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordTranscriberError(ctx, "primary")
		s.metrics.RecordDroppedSegment(ctx, "transcriber_error")
		s.logger.Error("transcription failed, segment dropped",
			"error", err,
			"bytes", len(pcm),
			"reason", reason,
		)
		return
	}

	res.Text = strings.TrimSpace(res.Text)
	if res.Text == "" {
		// A non-utterance (breath, noise), not an error.
		s.metrics.RecordDroppedSegment(ctx, "empty_text")
		return
	}

	s.logger.Debug("segment transcribed",
		"reason", reason,
		"audio", segDur,
		"chars", len(res.Text),
	)
	s.emit(res)
}

// emit delivers one result to the sink, recovering a panicking sink so a
// broken consumer cannot corrupt engine state.
func (s *Segmenter) emit(res stt.Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("result sink panicked", "panic", r)
		}
	}()
	if s.sink != nil {
		s.sink(res)
	}
}
