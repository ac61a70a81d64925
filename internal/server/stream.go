package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/voxtype/voxtype/pkg/audio"
)

// eventBuffer is the per-connection capacity for outbound transcript events.
// A client that stops reading loses events rather than stalling the
// segmentation worker.
const eventBuffer = 64

// control is an inbound JSON text frame from the client.
type control struct {
	// Type is "stop" (drain and flush the current session) or "start"
	// (begin a fresh session after a stop).
	Type string `json:"type"`
}

// handleStream upgrades the connection and runs one streaming session.
//
// Protocol: binary frames carry audio (raw PCM, or Opus packets when the
// client connected with ?codec=opus); text frames carry control messages.
// The server sends a "session" event on connect and a "transcript" event per
// completed segment.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Clients are native dictation apps, not browsers; origin checks
		// would only reject local tools.
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session aborted")

	var dec *opusDecoder
	var conv *audio.Converter
	switch codec := r.URL.Query().Get("codec"); codec {
	case "opus":
		// The decoder already emits mono at the engine rate.
		if dec, err = newOpusDecoder(s.sampleRate); err != nil {
			s.logger.Error("opus decoder init failed", "error", err)
			conn.Close(websocket.StatusInternalError, "opus unsupported")
			return
		}
	case "", "pcm":
		if conv, err = s.pcmConverter(r.URL.Query()); err != nil {
			s.logger.Warn("bad capture format", "error", err)
			conn.Close(websocket.StatusUnsupportedData, "bad capture format")
			return
		}
	default:
		conn.Close(websocket.StatusUnsupportedData, "unknown codec")
		return
	}

	sessionID := newSessionID()
	logger := s.logger.With("session_id", sessionID)

	events := make(chan Event, eventBuffer)
	emit := func(ev Event) {
		select {
		case events <- ev:
		default:
			logger.Warn("event buffer full, dropping event", "type", ev.Type)
		}
	}

	session, err := s.factory(sessionID, emit)
	if err != nil {
		logger.Error("session init failed", "error", err)
		conn.Close(websocket.StatusInternalError, "session init failed")
		return
	}
	defer session.Close()

	if !session.Start() {
		logger.Error("session refused to start")
		conn.Close(websocket.StatusInternalError, "session start failed")
		return
	}

	s.metrics.ActiveSessions.Add(r.Context(), 1)
	defer s.metrics.ActiveSessions.Add(context.Background(), -1)
	logger.Info("stream session opened", "remote", r.RemoteAddr, "opus", dec != nil)

	emit(Event{Type: "session", SessionID: sessionID})

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return s.readLoop(ctx, conn, session, dec, conv, logger) })
	g.Go(func() error { return s.writeLoop(ctx, conn, events) })

	err = g.Wait()
	session.Stop()

	status := websocket.CloseStatus(err)
	if err == nil || status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
		logger.Info("stream session closed")
		conn.Close(websocket.StatusNormalClosure, "session closed")
		return
	}
	logger.Warn("stream session ended", "error", err)
}

// pcmConverter builds a capture-format converter from the rate and channels
// query parameters. Absent parameters mean the client already captures in the
// engine format.
func (s *Server) pcmConverter(q url.Values) (*audio.Converter, error) {
	rate, channels := s.sampleRate, 1
	if v := q.Get("rate"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("rate %q: %w", v, err)
		}
		rate = n
	}
	if v := q.Get("channels"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("channels %q: %w", v, err)
		}
		channels = n
	}
	conv, err := audio.NewConverter(rate, channels, s.sampleRate)
	if err != nil {
		return nil, err
	}
	if conv.Noop() {
		return nil, nil
	}
	return conv, nil
}

// readLoop consumes client frames until the connection closes. Binary frames
// are fed to the session; text frames are parsed as control messages.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, session Session, dec *opusDecoder, conv *audio.Converter, logger *slog.Logger) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		switch typ {
		case websocket.MessageBinary:
			pcm := data
			if dec != nil {
				if pcm, err = dec.decode(data); err != nil {
					logger.Warn("opus packet dropped", "error", err)
					continue
				}
			} else if conv != nil {
				if pcm, err = conv.Convert(data); err != nil {
					logger.Warn("misaligned chunk dropped", "error", err)
					continue
				}
			}
			session.AddAudio(pcm)

		case websocket.MessageText:
			var c control
			if err := json.Unmarshal(data, &c); err != nil {
				logger.Warn("bad control frame", "error", err)
				continue
			}
			switch c.Type {
			case "stop":
				session.Stop()
			case "start":
				if !session.Start() {
					logger.Warn("restart ignored, session already running")
				}
			default:
				logger.Warn("unknown control type", "type", c.Type)
			}
		}
	}
}

// writeLoop forwards events to the client as JSON text frames.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			data, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return err
			}
		}
	}
}

// newSessionID returns a random 16-hex-char session identifier.
func newSessionID() string {
	var b [8]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
