package config

import "slices"

// DiffResult describes what changed between two configs. Only fields that
// can be safely hot-reloaded are tracked; everything else requires a restart.
type DiffResult struct {
	// SegmenterChanged is true when any flush threshold changed. The new
	// thresholds can be pushed into a running engine without dropping the
	// in-flight buffer.
	SegmenterChanged bool

	// VocabularyChanged is true when the correction word list or similarity
	// floor changed.
	VocabularyChanged bool

	LogLevelChanged bool
	NewLogLevel     LogLevel
}

// Changed reports whether anything hot-reloadable differs.
func (d DiffResult) Changed() bool {
	return d.SegmenterChanged || d.VocabularyChanged || d.LogLevelChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) DiffResult {
	d := DiffResult{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Segmenter != new.Segmenter {
		d.SegmenterChanged = true
	}

	if old.Vocabulary.MinSimilarity != new.Vocabulary.MinSimilarity ||
		!slices.Equal(old.Vocabulary.Words, new.Vocabulary.Words) {
		d.VocabularyChanged = true
	}

	return d
}
