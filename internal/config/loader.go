package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidTranscriberNames lists the known transcription backends.
var ValidTranscriberNames = []string{"whispercpp", "whispercpp-native", "openai"}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills in unset fields so the rest of the system never deals
// with zero values.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8090"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Segmenter.MinUtteranceSec == 0 {
		cfg.Segmenter.MinUtteranceSec = 0.5
	}
	if cfg.Segmenter.SilenceSec == 0 {
		cfg.Segmenter.SilenceSec = 1.5
	}
	if cfg.Segmenter.MaxSegmentSec == 0 {
		cfg.Segmenter.MaxSegmentSec = 10
	}
	if cfg.Segmenter.MinDispatchBytes == 0 {
		cfg.Segmenter.MinDispatchBytes = 32000
	}
	if cfg.Segmenter.QueueCapacity == 0 {
		cfg.Segmenter.QueueCapacity = 256
	}
	if cfg.VAD.Mode == "" {
		cfg.VAD.Mode = VADModeFrameRatio
	}
	if cfg.VAD.Threshold == 0 {
		cfg.VAD.Threshold = 300
	}
	if cfg.VAD.FrameMs == 0 {
		cfg.VAD.FrameMs = 30
	}
	if cfg.VAD.SpeechRatio == 0 {
		cfg.VAD.SpeechRatio = 0.25
	}
	if cfg.Transcriber.BreakerFailures == 0 {
		cfg.Transcriber.BreakerFailures = 5
	}
	if cfg.Transcriber.BreakerResetSec == 0 {
		cfg.Transcriber.BreakerResetSec = 30
	}
	if cfg.Storage.EmbeddingDimensions == 0 {
		cfg.Storage.EmbeddingDimensions = 1536
	}
	if cfg.Vocabulary.MinSimilarity == 0 {
		cfg.Vocabulary.MinSimilarity = 0.8
	}
	if cfg.Transcript.HistoryLimit == 0 {
		cfg.Transcript.HistoryLimit = 200
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}

	if cfg.Segmenter.MinUtteranceSec < 0 {
		errs = append(errs, errors.New("segmenter.min_utterance_sec must not be negative"))
	}
	if cfg.Segmenter.SilenceSec <= 0 {
		errs = append(errs, errors.New("segmenter.silence_sec must be positive"))
	}
	if cfg.Segmenter.MaxSegmentSec <= 0 {
		errs = append(errs, errors.New("segmenter.max_segment_sec must be positive"))
	}
	if cfg.Segmenter.MaxSegmentSec <= cfg.Segmenter.SilenceSec {
		slog.Warn("segmenter.max_segment_sec is not larger than silence_sec; most flushes will hit the size cap",
			"max_segment_sec", cfg.Segmenter.MaxSegmentSec,
			"silence_sec", cfg.Segmenter.SilenceSec,
		)
	}
	if cfg.Segmenter.MinDispatchBytes < 0 {
		errs = append(errs, errors.New("segmenter.min_dispatch_bytes must not be negative"))
	}

	if !cfg.VAD.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("vad.mode %q is invalid; valid values: energy, frame-ratio, off", cfg.VAD.Mode))
	}
	if cfg.VAD.Threshold < 0 {
		errs = append(errs, errors.New("vad.threshold must not be negative"))
	}
	if cfg.VAD.Mode == VADModeFrameRatio {
		if cfg.VAD.FrameMs <= 0 {
			errs = append(errs, errors.New("vad.frame_ms must be positive in frame-ratio mode"))
		}
		if cfg.VAD.SpeechRatio <= 0 || cfg.VAD.SpeechRatio > 1 {
			errs = append(errs, fmt.Errorf("vad.speech_ratio %.2f is out of range (0, 1]", cfg.VAD.SpeechRatio))
		}
	}

	errs = append(errs, validateTranscriber("transcriber.primary", &cfg.Transcriber.Primary)...)
	if cfg.Transcriber.Fallback != nil {
		errs = append(errs, validateTranscriber("transcriber.fallback", cfg.Transcriber.Fallback)...)
	}
	if cfg.Transcriber.BreakerFailures < 1 {
		errs = append(errs, errors.New("transcriber.breaker_failures must be at least 1"))
	}

	if cfg.Storage.Embeddings.Name != "" && cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.embeddings is configured but storage.postgres_dsn is empty; the semantic index has nowhere to live")
	}

	if cfg.Vocabulary.MinSimilarity <= 0 || cfg.Vocabulary.MinSimilarity > 1 {
		errs = append(errs, fmt.Errorf("vocabulary.min_similarity %.2f is out of range (0, 1]", cfg.Vocabulary.MinSimilarity))
	}
	if cfg.Transcript.HistoryLimit < 1 {
		errs = append(errs, errors.New("transcript.history_limit must be at least 1"))
	}

	return errors.Join(errs...)
}

// validateTranscriber checks one backend entry. prefix names the YAML path
// for error messages.
func validateTranscriber(prefix string, e *TranscriberEntry) []error {
	var errs []error
	if e.Name == "" {
		errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		return errs
	}
	if !slices.Contains(ValidTranscriberNames, e.Name) {
		errs = append(errs, fmt.Errorf("%s.name %q is unknown; valid values: %v", prefix, e.Name, ValidTranscriberNames))
		return errs
	}
	switch e.Name {
	case "whispercpp":
		if e.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%s.base_url is required for whispercpp", prefix))
		}
	case "whispercpp-native":
		if e.ModelPath == "" {
			errs = append(errs, fmt.Errorf("%s.model_path is required for whispercpp-native", prefix))
		}
	case "openai":
		if e.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s.api_key is required for openai", prefix))
		}
	}
	if e.TimeoutSec < 0 {
		errs = append(errs, fmt.Errorf("%s.timeout_sec must not be negative", prefix))
	}
	return errs
}
