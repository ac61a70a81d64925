// Package app wires the Voxtype subsystems into a running dictation service.
//
// The App struct owns the full lifecycle: New builds the transcription
// backends, the silence classifier, the transcript store, and the HTTP
// server from the config; Run serves until the context is cancelled; Close
// tears everything down.
//
// For testing, inject doubles via functional options (WithTranscriber,
// WithStore, etc.). When an option is not given, New creates the real
// implementation from the config.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/voxtype/voxtype/internal/config"
	"github.com/voxtype/voxtype/internal/health"
	"github.com/voxtype/voxtype/internal/observe"
	"github.com/voxtype/voxtype/internal/segmenter"
	"github.com/voxtype/voxtype/internal/server"
	"github.com/voxtype/voxtype/internal/transcript"
	"github.com/voxtype/voxtype/internal/transcript/postgres"
	"github.com/voxtype/voxtype/pkg/provider/embeddings"
	"github.com/voxtype/voxtype/pkg/provider/stt"
	"github.com/voxtype/voxtype/pkg/provider/vad"
)

// Option overrides one subsystem, usually with a test double.
type Option func(*App)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithLogLevelVar connects the level var driving the process logger, so
// server.log_level changes apply on config reload.
func WithLogLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithMetrics sets the metrics instruments. Defaults to the process-wide set.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithTranscriber replaces the configured transcription backend.
func WithTranscriber(t stt.Transcriber) Option {
	return func(a *App) { a.transcriber = t }
}

// WithClassifier replaces the configured silence classifier.
func WithClassifier(c vad.Classifier) Option {
	return func(a *App) { a.classifier = c }
}

// WithStore replaces the transcript store. Overrides storage.postgres_dsn.
func WithStore(s transcript.Store) Option {
	return func(a *App) { a.store = s }
}

// WithEmbedder replaces the embeddings provider for the semantic index.
func WithEmbedder(e embeddings.Provider) Option {
	return func(a *App) { a.embedder = e }
}

// App is the assembled Voxtype service.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	level   *slog.LevelVar
	metrics *observe.Metrics

	transcriber stt.Transcriber
	classifier  vad.Classifier
	store       transcript.Store
	embedder    embeddings.Provider
	srv         *server.Server

	// closers owns backends with release semantics, like the native
	// whisper.cpp model.
	closers []io.Closer

	// mu protects the hot-reloadable state and the session registry.
	mu        sync.Mutex
	corrector *transcript.Corrector
	settings  segmenter.Settings
	sessions  map[string]*dictationSession
}

// New assembles the service from cfg. cfg must already be validated; pass it
// through [config.ApplyDefaults] and [config.Validate] first.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:      cfg,
		logger:   slog.Default(),
		settings: cfg.Segmenter.Settings(),
		sessions: make(map[string]*dictationSession),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	a.corrector = newCorrector(cfg.Vocabulary)

	if a.transcriber == nil {
		t, closers, err := buildTranscriber(&cfg.Transcriber, cfg.Audio.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("app: transcriber: %w", err)
		}
		a.transcriber = t
		a.closers = append(a.closers, closers...)
	}
	if a.classifier == nil {
		a.classifier = buildClassifier(&cfg.VAD, cfg.Audio.SampleRate)
	}
	if a.store == nil && cfg.Storage.PostgresDSN != "" {
		store, err := postgres.New(ctx, cfg.Storage.PostgresDSN, cfg.Storage.EmbeddingDimensions)
		if err != nil {
			return nil, fmt.Errorf("app: transcript store: %w", err)
		}
		a.store = store
	}
	if a.embedder == nil && cfg.Storage.Embeddings.Name != "" {
		e, err := buildEmbedder(&cfg.Storage.Embeddings)
		if err != nil {
			a.closeBackends()
			return nil, fmt.Errorf("app: embeddings: %w", err)
		}
		a.embedder = e
	}

	srvOpts := []server.Option{
		server.WithLogger(a.logger),
		server.WithMetrics(a.metrics),
		server.WithHealth(health.New(a.healthCheckers()...)),
		server.WithSampleRate(cfg.Audio.SampleRate),
	}
	if tls := cfg.Server.TLS; tls != nil {
		srvOpts = append(srvOpts, server.WithTLS(tls.CertFile, tls.KeyFile))
	}
	srv, err := server.New(cfg.Server.ListenAddr, a.newSession, srvOpts...)
	if err != nil {
		a.closeBackends()
		return nil, fmt.Errorf("app: server: %w", err)
	}
	a.srv = srv
	return a, nil
}

// Server exposes the HTTP server, for tests that drive the handler directly.
func (a *App) Server() *server.Server {
	return a.srv
}

// Run serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.srv.Run(ctx)
}

// Close releases every backend. Call after Run returns.
func (a *App) Close() error {
	a.mu.Lock()
	sessions := make([]*dictationSession, 0, len(a.sessions))
	for _, s := range a.sessions {
		sessions = append(sessions, s)
	}
	a.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}

	a.closeBackends()
	if a.store != nil {
		a.store.Close()
	}
	return nil
}

func (a *App) closeBackends() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("backend close failed", "error", err)
		}
	}
	a.closers = nil
}

// OnConfigChange applies hot-reloadable settings from a freshly loaded
// config. Wire it to [config.NewWatcher].
func (a *App) OnConfigChange(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Changed() {
		return
	}

	if d.LogLevelChanged && a.level != nil {
		a.level.Set(slogLevel(d.NewLogLevel))
		a.logger.Info("log level changed", "level", string(d.NewLogLevel))
	}

	if d.VocabularyChanged {
		a.mu.Lock()
		a.corrector = newCorrector(new.Vocabulary)
		a.mu.Unlock()
		a.logger.Info("vocabulary reloaded", "words", len(new.Vocabulary.Words))
	}

	if d.SegmenterChanged {
		settings := new.Segmenter.Settings()
		if err := settings.Validate(); err != nil {
			a.logger.Error("rejecting reloaded segmenter settings", "error", err)
			return
		}
		a.mu.Lock()
		a.settings = settings
		sessions := make([]*dictationSession, 0, len(a.sessions))
		for _, s := range a.sessions {
			sessions = append(sessions, s)
		}
		a.mu.Unlock()
		for _, s := range sessions {
			if err := s.seg.UpdateSettings(settings); err != nil {
				a.logger.Error("settings push failed", "session_id", s.id, "error", err)
			}
		}
		a.logger.Info("segmenter settings reloaded", "sessions", len(sessions))
	}
}

// newSession builds one dictation session per stream connection.
func (a *App) newSession(sessionID string, emit func(server.Event)) (server.Session, error) {
	logger := a.logger.With("session_id", sessionID)
	sess := &dictationSession{
		id:       sessionID,
		app:      a,
		logger:   logger,
		norm:     transcript.NewNormalizer(),
		emit:     emit,
		language: a.cfg.Transcriber.Primary.Language,
	}
	sess.log = transcript.NewLog(a.cfg.Transcript.HistoryLimit, sess.norm)

	a.mu.Lock()
	settings := a.settings
	a.mu.Unlock()

	seg, err := segmenter.New(
		segmenter.Config{SampleRate: a.cfg.Audio.SampleRate, Settings: settings},
		a.classifier,
		a.transcriber,
		sess.handleResult,
		segmenter.WithLogger(logger),
		segmenter.WithMetrics(a.metrics),
		segmenter.WithQueueCapacity(a.cfg.Segmenter.QueueCapacity),
	)
	if err != nil {
		return nil, err
	}
	sess.seg = seg

	a.mu.Lock()
	a.sessions[sessionID] = sess
	a.mu.Unlock()
	return sess, nil
}

func (a *App) currentCorrector() *transcript.Corrector {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.corrector
}

func (a *App) removeSession(id string) {
	a.mu.Lock()
	delete(a.sessions, id)
	a.mu.Unlock()
}

func (a *App) healthCheckers() []health.Checker {
	var checkers []health.Checker
	if p, ok := a.store.(pinger); ok {
		checkers = append(checkers, health.Checker{Name: "postgres", Check: p.Ping})
	}
	return checkers
}

// pinger is satisfied by the PostgreSQL store.
type pinger interface {
	Ping(ctx context.Context) error
}

func newCorrector(cfg config.VocabularyConfig) *transcript.Corrector {
	var opts []transcript.CorrectorOption
	if cfg.MinSimilarity > 0 {
		opts = append(opts, transcript.WithMinSimilarity(cfg.MinSimilarity))
	}
	return transcript.NewCorrector(cfg.Words, opts...)
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
