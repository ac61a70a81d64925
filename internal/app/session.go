package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxtype/voxtype/internal/segmenter"
	"github.com/voxtype/voxtype/internal/server"
	"github.com/voxtype/voxtype/internal/transcript"
	"github.com/voxtype/voxtype/pkg/provider/stt"
)

// persistTimeout bounds the store and embeddings calls per utterance.
const persistTimeout = 10 * time.Second

// embeddingAttacher is satisfied by the PostgreSQL store.
type embeddingAttacher interface {
	AttachEmbedding(ctx context.Context, id int64, embedding []float32) error
}

// dictationSession is one client's segmentation engine plus the transcript
// post-processing chain. It implements [server.Session]; handleResult is the
// segmenter sink and runs on the segmenter's worker goroutine.
type dictationSession struct {
	id       string
	app      *App
	logger   *slog.Logger
	seg      *segmenter.Segmenter
	norm     *transcript.Normalizer
	log      *transcript.Log
	emit     func(server.Event)
	language string
}

func (s *dictationSession) Start() bool       { return s.seg.Start() }
func (s *dictationSession) AddAudio(b []byte) { s.seg.AddAudio(b) }
func (s *dictationSession) Stop()             { s.seg.Stop() }

func (s *dictationSession) Close() error {
	s.app.removeSession(s.id)
	return s.seg.Close()
}

// handleResult post-processes one transcription result: normalize, filter
// hallucinations, apply vocabulary corrections, emit to the client, then
// persist and index. Persistence failures are logged, never surfaced to the
// client.
func (s *dictationSession) handleResult(res stt.Result) {
	text := s.norm.StripTimestamps(res.Text)
	text = s.norm.FilterHallucinations(text)
	if !s.norm.IsValid(text) {
		s.logger.Debug("discarding segment without usable text", "raw", res.Text)
		s.app.metrics.RecordDroppedSegment(context.Background(), "no_usable_text")
		return
	}

	corrected, corrections := s.app.currentCorrector().Correct(text)
	for _, c := range corrections {
		s.logger.Debug("vocabulary correction",
			"from", c.Original, "to", c.Corrected, "confidence", c.Confidence)
	}

	language := res.Language
	if language == "" {
		language = s.language
	}

	u := transcript.Utterance{
		SessionID: s.id,
		Text:      corrected,
		Language:  language,
		Duration:  resultDuration(res),
		CreatedAt: time.Now(),
	}
	s.log.Append(u)

	s.emit(server.Event{
		Type:       "transcript",
		Text:       corrected,
		Language:   language,
		DurationMs: u.Duration.Milliseconds(),
	})

	s.persist(u)
}

func (s *dictationSession) persist(u transcript.Utterance) {
	if s.app.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.app.store.Save(ctx, &u); err != nil {
		s.logger.Error("utterance save failed", "error", err)
		return
	}

	att, ok := s.app.store.(embeddingAttacher)
	if !ok || s.app.embedder == nil {
		return
	}
	vec, err := s.app.embedder.Embed(ctx, u.Text)
	if err != nil {
		s.logger.Warn("utterance embedding failed", "error", err)
		return
	}
	if err := att.AttachEmbedding(ctx, u.ID, vec); err != nil {
		s.logger.Warn("embedding attach failed", "utterance_id", u.ID, "error", err)
	}
}

// resultDuration derives the audio duration from per-phrase timing when the
// backend provides it.
func resultDuration(res stt.Result) time.Duration {
	if len(res.Segments) == 0 {
		return 0
	}
	return res.Segments[len(res.Segments)-1].End
}
