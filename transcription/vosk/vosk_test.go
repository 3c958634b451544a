package vosk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kbukum/captiongen/audio"
	"github.com/kbukum/captiongen/security"
	"github.com/kbukum/captiongen/security/tlstest"
	"github.com/kbukum/captiongen/subtitle"
	"github.com/kbukum/captiongen/testutil"
	"github.com/kbukum/captiongen/transcription"
)

var upgrader = websocket.Upgrader{}

// fakeServer mimics the Vosk reply pattern: nothing for the config message,
// one reply per audio chunk, the final result for end of stream.
type fakeServer struct {
	mu        sync.Mutex
	config    map[string]any
	chunks    int
	replies   []string
	final     string
	gotEOF    bool
	stallRead bool
}

func (s *fakeServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.mu.Lock()
			switch {
			case kind == websocket.TextMessage && strings.Contains(string(data), "config"):
				_ = json.Unmarshal(data, &s.config)
				s.mu.Unlock()
				continue
			case kind == websocket.TextMessage && string(data) == `{"eof" : 1}`:
				s.gotEOF = true
				final := s.final
				s.mu.Unlock()
				_ = conn.WriteMessage(websocket.TextMessage, []byte(final))
				continue
			}
			reply := `{"partial" : ""}`
			if s.chunks < len(s.replies) {
				reply = s.replies[s.chunks]
			}
			s.chunks++
			stall := s.stallRead
			s.mu.Unlock()
			if stall {
				continue
			}
			_ = conn.WriteMessage(websocket.TextMessage, []byte(reply))
		}
	}
}

func newProvider(t *testing.T, cfg Config) *Provider {
	t.Helper()
	p, err := NewProvider(cfg, nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return p
}

func startServer(t *testing.T, s *fakeServer) string {
	t.Helper()
	srv := httptest.NewServer(s.handler(t))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func speechRequest(t *testing.T, frames int) transcription.Request {
	path := testutil.WriteWAV(t, t.TempDir(), "speech.wav", testutil.SpeechWAV(frames))
	return transcription.Request{
		AudioPath:   path,
		Format:      audio.Format{SampleRate: 16000, Channels: 1, BitDepth: 16},
		ChunkFrames: 4000,
	}
}

type collected struct {
	batches [][]subtitle.WordEvent
	finals  []bool
}

func (c *collected) fn(words []subtitle.WordEvent, final bool) error {
	c.batches = append(c.batches, words)
	c.finals = append(c.finals, final)
	return nil
}

func TestRecognizeStreamsBatches(t *testing.T) {
	s := &fakeServer{
		replies: []string{
			`{"partial" : "हमेशा"}`,
			`{"result" : [{"conf" : 1.0, "end" : 3.66, "start" : 3.27, "word" : "हमेशा"}], "text" : "हमेशा"}`,
			`{"partial" : ""}`,
		},
		final: `{"result" : [{"conf" : 0.9, "end" : 4.5, "start" : 4.0, "word" : "रहो"}], "text" : "रहो"}`,
	}
	p := newProvider(t, Config{URL: startServer(t, s), ReadTimeout: 5 * time.Second})

	var c collected
	if err := p.Recognize(context.Background(), speechRequest(t, 12000), c.fn); err != nil {
		t.Fatalf("Recognize: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chunks != 3 || !s.gotEOF {
		t.Errorf("server saw %d chunks, eof=%v", s.chunks, s.gotEOF)
	}
	cfg, _ := s.config["config"].(map[string]any)
	if cfg["sample_rate"] != float64(16000) || cfg["words"] != float64(1) {
		t.Errorf("config message = %v", s.config)
	}
	if len(c.batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(c.batches))
	}
	if c.finals[0] || !c.finals[1] {
		t.Errorf("finals = %v", c.finals)
	}
	if got := c.batches[0][0]; got.Text != "हमेशा" || got.Start != 3.27 || got.End != 3.66 {
		t.Errorf("first word = %+v", got)
	}
}

func TestRecognizeEmptyFinal(t *testing.T) {
	s := &fakeServer{final: `{"text" : ""}`}
	p := newProvider(t, Config{URL: startServer(t, s)})

	var c collected
	if err := p.Recognize(context.Background(), speechRequest(t, 4000), c.fn); err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(c.batches) != 1 || !c.finals[0] || len(c.batches[0]) != 0 {
		t.Errorf("batches = %v finals = %v", c.batches, c.finals)
	}
}

func TestRecognizeBatchErrorStops(t *testing.T) {
	s := &fakeServer{
		replies: []string{`{"result" : [{"end" : 1, "start" : 0, "word" : "a"}], "text" : "a"}`},
		final:   `{"text" : ""}`,
	}
	p := newProvider(t, Config{URL: startServer(t, s)})
	stop := errors.New("stop")

	err := p.Recognize(context.Background(), speechRequest(t, 8000), func([]subtitle.WordEvent, bool) error {
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("err = %v, want stop", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gotEOF {
		t.Error("eof should not be sent after a rejected batch")
	}
}

func TestRecognizeReadTimeout(t *testing.T) {
	s := &fakeServer{stallRead: true}
	p := newProvider(t, Config{URL: startServer(t, s), ReadTimeout: 50 * time.Millisecond})

	var c collected
	err := p.Recognize(context.Background(), speechRequest(t, 4000), c.fn)
	if err == nil || !strings.Contains(err.Error(), "no reply within") {
		t.Errorf("err = %v", err)
	}
}

func TestRecognizeCancelled(t *testing.T) {
	s := &fakeServer{stallRead: true}
	p := newProvider(t, Config{URL: startServer(t, s), ReadTimeout: 10 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var c collected
	err := p.Recognize(ctx, speechRequest(t, 4000), c.fn)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestRecognizeRejectsWrongFormat(t *testing.T) {
	s := &fakeServer{}
	p := newProvider(t, Config{URL: startServer(t, s)})
	path := testutil.WriteWAV(t, t.TempDir(), "stereo.wav", testutil.WAVSpec{SampleRate: 44100, Channels: 2, BitDepth: 16, Frames: 100})

	err := p.Recognize(context.Background(), transcription.Request{
		AudioPath: path,
		Format:    audio.Format{SampleRate: 16000, Channels: 1, BitDepth: 16},
	}, (&collected{}).fn)
	if !errors.Is(err, audio.ErrUnsupportedFormat) {
		t.Errorf("err = %v", err)
	}
}

func TestIsAvailable(t *testing.T) {
	p := newProvider(t, Config{URL: startServer(t, &fakeServer{})})
	if !p.IsAvailable(context.Background()) {
		t.Error("expected available")
	}
	down := newProvider(t, Config{URL: "ws://127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	if down.IsAvailable(context.Background()) {
		t.Error("expected unavailable")
	}
}

func TestIsAvailableOverTLS(t *testing.T) {
	certs := tlstest.Generate(t)
	srv := certs.NewServer(t, (&fakeServer{}).handler(t))
	url := "wss" + strings.TrimPrefix(srv.URL, "https")

	if newProvider(t, Config{URL: url, DialTimeout: time.Second}).IsAvailable(context.Background()) {
		t.Error("handshake should fail without the private CA")
	}
	trusted := newProvider(t, Config{URL: url, TLS: &security.TLSConfig{CAFile: certs.CAFile}})
	if !trusted.IsAvailable(context.Background()) {
		t.Error("expected available with the private CA")
	}
}
