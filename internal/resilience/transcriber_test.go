package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	sttmock "github.com/voxtype/voxtype/pkg/provider/stt/mock"
)

func TestTranscriberFallback_PrimaryHealthy(t *testing.T) {
	primary := sttmock.New().ScriptText("from primary")
	backup := sttmock.New().ScriptText("from backup")

	tf := NewTranscriberFallback(primary, "whispercpp", FallbackConfig{})
	tf.AddFallback("openai", backup)

	res, err := tf.Transcribe(context.Background(), []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "from primary" {
		t.Errorf("text = %q, want from primary", res.Text)
	}
	if backup.CallCount() != 0 {
		t.Error("backup was called although the primary is healthy")
	}
}

func TestTranscriberFallback_FailsOver(t *testing.T) {
	primary := sttmock.New()
	primary.Err = errors.New("server unreachable")
	backup := sttmock.New().ScriptText("rescued")

	tf := NewTranscriberFallback(primary, "whispercpp", FallbackConfig{})
	tf.AddFallback("openai", backup)

	res, err := tf.Transcribe(context.Background(), []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "rescued" {
		t.Errorf("text = %q, want rescued", res.Text)
	}
}

func TestTranscriberFallback_OpenBreakerStopsProbing(t *testing.T) {
	primary := sttmock.New()
	primary.Err = errors.New("down")

	tf := NewTranscriberFallback(primary, "whispercpp", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures:  2,
			ResetTimeout: time.Hour,
		},
	})
	good := sttmock.New().ScriptText("a", "b", "c")
	tf.AddFallback("openai", good)

	for i := 0; i < 3; i++ {
		if _, err := tf.Transcribe(context.Background(), []byte{9}); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	// Primary tripped after 2 failures; the third call must skip it.
	if got := primary.CallCount(); got != 2 {
		t.Errorf("primary calls = %d, want 2", got)
	}
	if got := good.CallCount(); got != 3 {
		t.Errorf("fallback calls = %d, want 3", got)
	}
}

func TestTranscriberFallback_AllDown(t *testing.T) {
	primary := sttmock.New()
	primary.Err = errors.New("down")

	tf := NewTranscriberFallback(primary, "whispercpp", FallbackConfig{})

	_, err := tf.Transcribe(context.Background(), []byte{9})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestTranscriberFallback_Backends(t *testing.T) {
	tf := NewTranscriberFallback(sttmock.New(), "whispercpp", FallbackConfig{})
	tf.AddFallback("openai", sttmock.New())

	got := tf.Backends()
	if len(got) != 2 || got[0] != "whispercpp" || got[1] != "openai" {
		t.Errorf("Backends() = %v, want [whispercpp openai]", got)
	}
}
