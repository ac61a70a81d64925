package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// writeConfig writes yaml to path, bumping mtime so the watcher's stat check
// notices the change even on coarse filesystem clocks.
func writeConfig(t *testing.T, path, yaml string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	future := time.Now().Add(time.Duration(len(yaml)) * time.Millisecond)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
}

func TestNewWatcher_InitialLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxtype.yaml")
	writeConfig(t, path, minimalYAML)

	w, err := NewWatcher(path, nil, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if got := w.Current().Transcriber.Primary.Name; got != "whispercpp" {
		t.Errorf("initial config primary = %q, want whispercpp", got)
	}
}

func TestNewWatcher_InvalidInitialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxtype.yaml")
	writeConfig(t, path, "transcriber: {primary: {name: telepathy}}")

	if _, err := NewWatcher(path, nil); err == nil {
		t.Fatal("NewWatcher accepted an invalid initial config")
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxtype.yaml")
	writeConfig(t, path, minimalYAML)

	var mu sync.Mutex
	var newSilence float64
	onChange := func(old, new *Config) {
		mu.Lock()
		newSilence = new.Segmenter.SilenceSec
		mu.Unlock()
	}

	w, err := NewWatcher(path, onChange, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	writeConfig(t, path, minimalYAML+`
segmenter:
  silence_sec: 2.5
`)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		got := newSilence
		mu.Unlock()
		if got == 2.5 {
			if w.Current().Segmenter.SilenceSec != 2.5 {
				t.Error("Current() does not reflect the reloaded config")
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("watcher did not pick up the config change")
}

func TestWatcher_KeepsOldConfigOnInvalidChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxtype.yaml")
	writeConfig(t, path, minimalYAML)

	var called sync.Map
	w, err := NewWatcher(path, func(old, new *Config) {
		called.Store("changed", true)
	}, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	writeConfig(t, path, "vad: {mode: psychic}")
	time.Sleep(100 * time.Millisecond)

	if _, ok := called.Load("changed"); ok {
		t.Error("onChange fired for an invalid config")
	}
	if got := w.Current().Transcriber.Primary.Name; got != "whispercpp" {
		t.Errorf("Current() = %q, want the previous valid config", got)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxtype.yaml")
	writeConfig(t, path, minimalYAML)

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Stop()
	w.Stop()
}
