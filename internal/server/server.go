// Package server exposes the Voxtype transcription service over HTTP.
//
// The main surface is a WebSocket endpoint at /v1/stream: clients push raw
// 16-bit mono PCM (or Opus packets) as binary frames and receive transcript
// events as JSON text frames. Each connection owns one segmentation session.
// The server also serves the health probes and the Prometheus /metrics
// scrape endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voxtype/voxtype/internal/health"
	"github.com/voxtype/voxtype/internal/observe"
)

const shutdownGrace = 10 * time.Second

// Event is one JSON message sent to a streaming client.
type Event struct {
	// Type discriminates the message: "session" once after connect,
	// "transcript" per completed segment, "error" for session faults.
	Type string `json:"type"`

	// SessionID identifies the session on "session" events.
	SessionID string `json:"session_id,omitempty"`

	// Text is the post-processed transcription on "transcript" events.
	Text string `json:"text,omitempty"`

	// Language is the detected or configured language, when known.
	Language string `json:"language,omitempty"`

	// DurationMs is the audio duration of the segment in milliseconds.
	DurationMs int64 `json:"duration_ms,omitempty"`

	// Message carries detail on "error" events.
	Message string `json:"message,omitempty"`
}

// Session is the per-connection segmentation engine driven by the stream
// handler. It is implemented by the application wiring around
// [github.com/voxtype/voxtype/internal/segmenter.Segmenter].
type Session interface {
	Start() bool
	AddAudio(chunk []byte)
	Stop()
	Close() error
}

// SessionFactory builds a [Session] whose transcript events are delivered to
// emit. emit may be called from the session's worker goroutine and must not
// block.
type SessionFactory func(sessionID string, emit func(Event)) (Session, error)

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetrics sets the metrics instruments. Defaults to the process-wide set.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithHealth registers the health handler's routes on the server mux.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) {
		s.health = h
	}
}

// WithSampleRate sets the PCM sample rate expected from clients and used for
// Opus decoding. Default: 16000.
func WithSampleRate(rate int) Option {
	return func(s *Server) {
		s.sampleRate = rate
	}
}

// WithTLS serves HTTPS using the given certificate and key files.
func WithTLS(certFile, keyFile string) Option {
	return func(s *Server) {
		s.certFile = certFile
		s.keyFile = keyFile
	}
}

// Server is the HTTP front of the transcription service. Construct with
// [New] and drive with [Server.Run].
type Server struct {
	addr    string
	factory SessionFactory

	logger     *slog.Logger
	metrics    *observe.Metrics
	health     *health.Handler
	sampleRate int
	certFile   string
	keyFile    string

	mu      sync.Mutex
	boundTo net.Addr
}

// New returns a Server listening on addr once [Server.Run] is called.
// factory is invoked once per /v1/stream connection.
func New(addr string, factory SessionFactory, opts ...Option) (*Server, error) {
	if factory == nil {
		return nil, errors.New("server: session factory must not be nil")
	}
	s := &Server{
		addr:       addr,
		factory:    factory,
		logger:     slog.Default(),
		sampleRate: 16000,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s, nil
}

// Handler assembles the route mux wrapped in the observability middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.health != nil {
		s.health.Register(mux)
	}
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/stream", s.handleStream)
	return observe.Middleware(s.metrics)(mux)
}

// Addr returns the bound listener address, nil before [Server.Run] has
// started listening. Useful with ":0" in tests.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundTo
}

// Run listens and serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.boundTo = ln.Addr()
	s.mu.Unlock()

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("server listening", "addr", ln.Addr().String(), "tls", s.certFile != "")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if s.certFile != "" {
			err = httpSrv.ServeTLS(ln, s.certFile, s.keyFile)
		} else {
			err = httpSrv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return httpSrv.Shutdown(shCtx)
	})
	return g.Wait()
}
