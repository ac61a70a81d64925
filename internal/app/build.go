package app

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voxtype/voxtype/internal/config"
	"github.com/voxtype/voxtype/internal/resilience"
	"github.com/voxtype/voxtype/pkg/provider/embeddings"
	embollama "github.com/voxtype/voxtype/pkg/provider/embeddings/ollama"
	embopenai "github.com/voxtype/voxtype/pkg/provider/embeddings/openai"
	"github.com/voxtype/voxtype/pkg/provider/stt"
	sttopenai "github.com/voxtype/voxtype/pkg/provider/stt/openai"
	"github.com/voxtype/voxtype/pkg/provider/stt/whispercpp"
	"github.com/voxtype/voxtype/pkg/provider/vad"
	"github.com/voxtype/voxtype/pkg/provider/vad/energy"
)

// buildTranscriber assembles the configured backend chain. When a fallback
// entry is configured, both backends sit behind per-backend circuit breakers.
func buildTranscriber(cfg *config.TranscriberConfig, sampleRate int) (stt.Transcriber, []io.Closer, error) {
	var closers []io.Closer

	primary, closer, err := buildTranscriberEntry(&cfg.Primary, sampleRate)
	if err != nil {
		return nil, nil, fmt.Errorf("primary: %w", err)
	}
	if closer != nil {
		closers = append(closers, closer)
	}

	fb := resilience.NewTranscriberFallback(primary, cfg.Primary.Name, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.BreakerFailures,
			ResetTimeout: time.Duration(cfg.BreakerResetSec * float64(time.Second)),
		},
	})

	if cfg.Fallback != nil {
		fallback, closer, err := buildTranscriberEntry(cfg.Fallback, sampleRate)
		if err != nil {
			for _, c := range closers {
				c.Close()
			}
			return nil, nil, fmt.Errorf("fallback: %w", err)
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		fb.AddFallback(cfg.Fallback.Name, fallback)
	}

	return fb, closers, nil
}

func buildTranscriberEntry(e *config.TranscriberEntry, sampleRate int) (stt.Transcriber, io.Closer, error) {
	timeout := time.Duration(e.TimeoutSec * float64(time.Second))

	switch e.Name {
	case "whispercpp":
		opts := []whispercpp.Option{whispercpp.WithSampleRate(sampleRate)}
		if e.Model != "" {
			opts = append(opts, whispercpp.WithModel(e.Model))
		}
		if e.Language != "" {
			opts = append(opts, whispercpp.WithLanguage(e.Language))
		}
		if timeout > 0 {
			opts = append(opts, whispercpp.WithHTTPClient(&http.Client{Timeout: timeout}))
		}
		t, err := whispercpp.New(e.BaseURL, opts...)
		return t, nil, err

	case "whispercpp-native":
		var opts []whispercpp.NativeOption
		if e.Language != "" {
			opts = append(opts, whispercpp.WithNativeLanguage(e.Language))
		}
		t, err := whispercpp.NewNative(e.ModelPath, opts...)
		if err != nil {
			return nil, nil, err
		}
		return t, t, nil

	case "openai":
		opts := []sttopenai.Option{sttopenai.WithSampleRate(sampleRate)}
		if e.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(e.BaseURL))
		}
		if e.Language != "" {
			opts = append(opts, sttopenai.WithLanguage(e.Language))
		}
		if timeout > 0 {
			opts = append(opts, sttopenai.WithTimeout(timeout))
		}
		t, err := sttopenai.New(e.APIKey, e.Model, opts...)
		return t, nil, err

	default:
		return nil, nil, fmt.Errorf("unknown transcriber %q", e.Name)
	}
}

// buildClassifier maps the VAD config onto a classifier implementation.
func buildClassifier(cfg *config.VADConfig, sampleRate int) vad.Classifier {
	switch cfg.Mode {
	case config.VADModeOff:
		return speechOnly{}
	case config.VADModeFrameRatio:
		return energy.New(sampleRate,
			energy.WithThreshold(cfg.Threshold),
			energy.WithFrameRatio(cfg.FrameMs, cfg.SpeechRatio),
		)
	default:
		return energy.New(sampleRate, energy.WithThreshold(cfg.Threshold))
	}
}

// speechOnly treats every chunk as speech, so segments are cut purely by the
// max-size cap.
type speechOnly struct{}

func (speechOnly) IsSilent([]byte) (bool, error) { return false, nil }

func buildEmbedder(e *config.EmbeddingsEntry) (embeddings.Provider, error) {
	switch e.Name {
	case "openai":
		var opts []embopenai.Option
		if e.BaseURL != "" {
			opts = append(opts, embopenai.WithBaseURL(e.BaseURL))
		}
		return embopenai.New(e.APIKey, e.Model, opts...)
	case "ollama":
		return embollama.New(e.BaseURL, e.Model)
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", e.Name)
	}
}
