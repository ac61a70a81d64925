package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/voxtype/voxtype/internal/health"
	"github.com/voxtype/voxtype/pkg/audio"
)

type fakeSession struct {
	mu      sync.Mutex
	running bool
	stops   int
	closed  bool
	audio   [][]byte
}

func (f *fakeSession) Start() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return false
	}
	f.running = true
	return true
}

func (f *fakeSession) AddAudio(chunk []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	f.audio = append(f.audio, buf)
}

func (f *fakeSession) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	f.stops++
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSession) audioCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.audio)
}

func (f *fakeSession) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// streamFixture serves a Server handler backed by a single fake session and
// exposes the emit callback captured from the factory.
type streamFixture struct {
	srv     *httptest.Server
	session *fakeSession

	mu   sync.Mutex
	emit func(Event)
}

func newStreamFixture(t *testing.T) *streamFixture {
	t.Helper()
	f := &streamFixture{session: &fakeSession{}}
	factory := func(_ string, emit func(Event)) (Session, error) {
		f.mu.Lock()
		f.emit = emit
		f.mu.Unlock()
		return f.session, nil
	}
	s, err := New(":0", factory)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.srv = httptest.NewServer(s.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *streamFixture) sendEvent(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emit(ev)
}

func (f *streamFixture) dial(t *testing.T, ctx context.Context, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/v1/stream" + query
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	return conn
}

func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn) Event {
	t.Helper()
	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if typ != websocket.MessageText {
		t.Fatalf("message type = %v, want text", typ)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return ev
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNew_NilFactoryRejected(t *testing.T) {
	t.Parallel()

	if _, err := New(":0", nil); err == nil {
		t.Fatal("New with nil factory should error")
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	t.Parallel()

	f := newStreamFixture(t)
	resp, err := http.Get(f.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestHandler_RegistersHealthRoutes(t *testing.T) {
	t.Parallel()

	factory := func(_ string, _ func(Event)) (Session, error) {
		return &fakeSession{}, nil
	}
	s, err := New(":0", factory, WithHealth(health.New()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestStream_SendsSessionEventOnConnect(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	f := newStreamFixture(t)
	conn := f.dial(t, ctx, "")
	defer conn.Close(websocket.StatusNormalClosure, "")

	ev := readEvent(t, ctx, conn)
	if ev.Type != "session" {
		t.Fatalf("first event type = %q, want session", ev.Type)
	}
	if ev.SessionID == "" {
		t.Fatal("session event missing session_id")
	}
}

func TestStream_BinaryFramesReachSession(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	f := newStreamFixture(t)
	conn := f.dial(t, ctx, "")
	defer conn.Close(websocket.StatusNormalClosure, "")
	readEvent(t, ctx, conn)

	chunk := []byte{0x01, 0x02, 0x03, 0x04}
	if err := conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
		t.Fatalf("write: %v", err)
	}

	waitFor(t, func() bool { return f.session.audioCount() == 1 }, "audio delivery")
	f.session.mu.Lock()
	got := fmt.Sprintf("%x", f.session.audio[0])
	f.session.mu.Unlock()
	if got != "01020304" {
		t.Fatalf("audio = %s, want 01020304", got)
	}
}

func TestStream_ForwardsTranscriptEvents(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	f := newStreamFixture(t)
	conn := f.dial(t, ctx, "")
	defer conn.Close(websocket.StatusNormalClosure, "")
	readEvent(t, ctx, conn)

	f.sendEvent(Event{Type: "transcript", Text: "hello world", DurationMs: 1200})

	ev := readEvent(t, ctx, conn)
	if ev.Type != "transcript" || ev.Text != "hello world" || ev.DurationMs != 1200 {
		t.Fatalf("event = %+v, want transcript hello world 1200ms", ev)
	}
}

func TestStream_StopControlStopsSession(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	f := newStreamFixture(t)
	conn := f.dial(t, ctx, "")
	defer conn.Close(websocket.StatusNormalClosure, "")
	readEvent(t, ctx, conn)

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"stop"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, func() bool { return f.session.stopCount() == 1 }, "session stop")

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"start"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, func() bool {
		f.session.mu.Lock()
		defer f.session.mu.Unlock()
		return f.session.running
	}, "session restart")
}

func TestStream_ConvertsClientCaptureFormat(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	f := newStreamFixture(t)
	conn := f.dial(t, ctx, "?rate=32000&channels=2")
	defer conn.Close(websocket.StatusNormalClosure, "")
	readEvent(t, ctx, conn)

	// 4 stereo frames at 32 kHz downmix and resample to 2 mono samples at
	// 16 kHz: (0+20)/2 and (200+220)/2.
	chunk := audio.Int16sToBytes([]int16{0, 20, 100, 120, 200, 220, 300, 320})
	if err := conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
		t.Fatalf("write: %v", err)
	}

	waitFor(t, func() bool { return f.session.audioCount() == 1 }, "audio delivery")
	f.session.mu.Lock()
	got := fmt.Sprintf("%x", f.session.audio[0])
	f.session.mu.Unlock()
	want := fmt.Sprintf("%x", audio.Int16sToBytes([]int16{10, 210}))
	if got != want {
		t.Fatalf("audio = %s, want %s", got, want)
	}
}

func TestStream_RejectsBadCaptureFormat(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	f := newStreamFixture(t)
	conn := f.dial(t, ctx, "?channels=5")
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, _, err := conn.Read(ctx)
	if err == nil {
		t.Fatal("read should fail after format rejection")
	}
	if status := websocket.CloseStatus(err); status != websocket.StatusUnsupportedData {
		t.Fatalf("close status = %v, want unsupported data", status)
	}
}

func TestStream_UnknownCodecRejected(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	f := newStreamFixture(t)
	conn := f.dial(t, ctx, "?codec=flac")
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, _, err := conn.Read(ctx)
	if err == nil {
		t.Fatal("read should fail after codec rejection")
	}
	if status := websocket.CloseStatus(err); status != websocket.StatusUnsupportedData {
		t.Fatalf("close status = %v, want unsupported data", status)
	}
}

func TestStream_SessionClosedOnDisconnect(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	f := newStreamFixture(t)
	conn := f.dial(t, ctx, "")
	readEvent(t, ctx, conn)

	conn.Close(websocket.StatusNormalClosure, "done")

	waitFor(t, func() bool {
		f.session.mu.Lock()
		defer f.session.mu.Unlock()
		return f.session.closed
	}, "session close")
}

func TestRun_BindsAndShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	factory := func(_ string, _ func(Event)) (Session, error) {
		return &fakeSession{}, nil
	}
	s, err := New("127.0.0.1:0", factory)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitFor(t, func() bool { return s.Addr() != nil }, "listener bind")

	resp, err := http.Get("http://" + s.Addr().String() + "/metrics")
	if err != nil {
		t.Fatalf("get /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
