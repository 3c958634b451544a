package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/captiongen/bootstrap"
	"github.com/kbukum/captiongen/component"
	"github.com/kbukum/captiongen/config"
	"github.com/kbukum/captiongen/logger"
	"github.com/kbukum/captiongen/testutil"
	"github.com/kbukum/captiongen/transcription/whisper"
)

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	if cfg.Name != ServiceName || cfg.Environment != "development" {
		t.Errorf("service = %+v", cfg.ServiceConfig)
	}
	if cfg.Server.Port != 8000 || cfg.Recognizer.Provider != "vosk" || cfg.Recognizer.Language != "hi" {
		t.Errorf("server port %d, recognizer %+v", cfg.Server.Port, cfg.Recognizer.Config)
	}
	if cfg.Recognizer.Vosk.URL == "" || cfg.Recognizer.Whisper.URL == "" {
		t.Error("backend defaults not applied")
	}
	if cfg.Storage.Provider != "local" || cfg.Jobs.Path == "" || cfg.Pipeline.Timeout != 15*time.Minute {
		t.Errorf("storage %+v jobs %+v pipeline %+v", cfg.Storage, cfg.Jobs, cfg.Pipeline)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"transliteration off needs no key", func(c *Config) {}, ""},
		{"transliteration on needs a key", func(c *Config) { c.Transliteration.Enabled = true }, "api_key"},
		{"transliteration on with key", func(c *Config) {
			c.Transliteration.Enabled = true
			c.LLM.APIKey = "secret"
		}, ""},
		{"unknown recognizer", func(c *Config) { c.Recognizer.Provider = "azure" }, "azure"},
		{"fallback equals provider", func(c *Config) { c.Recognizer.Fallback = "vosk" }, "fallback"},
		{"whisper with vosk fallback", func(c *Config) {
			c.Recognizer.Provider = "whisper"
			c.Recognizer.Fallback = "vosk"
		}, ""},
		{"bad environment", func(c *Config) { c.Environment = "qa" }, "environment"},
		{"bad body size", func(c *Config) { c.Server.MaxBodySize = "lots" }, "max_body_size"},
		{"s3 needs a bucket", func(c *Config) { c.Storage.Provider = "s3" }, "bucket"},
		{"s3 keys come in pairs", func(c *Config) {
			c.Storage.Provider = "s3"
			c.Storage.S3.Bucket = "captions"
			c.Storage.S3.AccessKey = "id"
		}, "secret_key"},
		{"s3 with bucket", func(c *Config) {
			c.Storage.Provider = "s3"
			c.Storage.S3.Bucket = "captions"
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			tt.mutate(cfg)
			cfg.ApplyDefaults()
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	yml := "recognizer:\n  provider: whisper\n  whisper:\n    url: http://sidecar:8387\nserver:\n  port: 9100\n"
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DEEPINFRA_API_KEY", "legacy-key")
	t.Setenv("MODEL_NAME", "some/model")
	t.Setenv("PIPELINE_MAX_CONCURRENT", "5")

	cfg, err := Load(path, config.WithEnvFile(filepath.Join(dir, ".env")))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9100 || cfg.Recognizer.Provider != "whisper" || cfg.Recognizer.Whisper.URL != "http://sidecar:8387" {
		t.Errorf("file values not loaded: %+v %+v", cfg.Server, cfg.Recognizer)
	}
	if cfg.LLM.APIKey != "legacy-key" || cfg.LLM.Model != "some/model" {
		t.Errorf("env aliases not applied: %+v", cfg.LLM)
	}
	if !cfg.Transliteration.Enabled {
		t.Error("transliteration should default to enabled")
	}
	if cfg.Pipeline.MaxConcurrent != 5 {
		t.Errorf("max_concurrent = %d, want 5 from the environment", cfg.Pipeline.MaxConcurrent)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config invalid: %v", err)
	}
}

func TestDependencyHealth(t *testing.T) {
	fail := func(context.Context) error { return errors.New("gone") }
	ok := func(context.Context) error { return nil }

	tests := []struct {
		name string
		dep  *Dependency
		want component.HealthStatus
	}{
		{"healthy", NewDependency("ffmpeg", "ffmpeg", ok), component.StatusHealthy},
		{"required failure", NewDependency("recognizer", "vosk", fail), component.StatusUnhealthy},
		{"optional failure", NewDependency("llm", "openai", fail).Optional(), component.StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := tt.dep.Health(context.Background())
			if h.Status != tt.want || h.Name != tt.dep.Name() {
				t.Errorf("health = %+v, want %s", h, tt.want)
			}
			if tt.want != component.StatusHealthy && h.Message != "gone" {
				t.Errorf("message = %q", h.Message)
			}
		})
	}

	d := NewDependency("ffmpeg", "/usr/bin/ffmpeg", ok)
	if desc := d.Describe(); desc.Type != "dependency" || desc.Details != "/usr/bin/ffmpeg" {
		t.Errorf("describe = %+v", desc)
	}
}

// wavConverter stands in for ffmpeg by writing a synthetic speech WAV.
type wavConverter struct{ t *testing.T }

func (c wavConverter) ToWAV(_ context.Context, _, dst string) error {
	testutil.WriteWAV(c.t, filepath.Dir(dst), filepath.Base(dst), testutil.SpeechWAV(16000))
	return nil
}

// whisperSidecar answers health checks and returns two words.
func whisperSidecar(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		case "/transcribe":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"language": "hi",
				"segments": []map[string]any{{
					"start": 0.27, "end": 0.8, "text": " namaste doston",
					"words": []map[string]any{
						{"word": " namaste", "start": 0.27, "end": 0.5},
						{"word": " doston", "start": 0.5, "end": 0.8},
					},
				}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &Config{}
	cfg.Storage.BasePath = filepath.Join(dir, "data")
	cfg.Jobs.Path = ":memory:"
	cfg.Jobs.AutoMigrate = true
	cfg.Jobs.LogLevel = "silent"
	cfg.Logging.Level = "error"
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	return cfg
}

func newService(t *testing.T, cfg *Config) *Service {
	t.Helper()
	s, err := New(cfg, bootstrap.WithLogger(logger.Nop()), bootstrap.WithoutSummary())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServeFailsWithoutFFmpeg(t *testing.T) {
	cfg := testConfig(t)
	cfg.Audio.FFmpegPath = "captiongen-no-such-ffmpeg"
	s := newService(t, cfg)

	err := s.Serve(context.Background())
	if err == nil || !strings.Contains(err.Error(), "ffmpeg") {
		t.Fatalf("Serve = %v, want ffmpeg error", err)
	}

	// The storage lock is released on the failed start.
	next := testConfig(t)
	next.Storage.BasePath = cfg.Storage.BasePath
	next.Audio.FFmpegPath = cfg.Audio.FFmpegPath
	if err := newService(t, next).Serve(context.Background()); err == nil || !strings.Contains(err.Error(), "ffmpeg") {
		t.Fatalf("second Serve = %v, want ffmpeg error rather than a lock error", err)
	}
}

func TestRequiredRecognizerIsFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recognizer.Provider = whisper.ProviderName
	cfg.Recognizer.Whisper.URL = "http://127.0.0.1:1"
	cfg.Recognizer.RequireOnStartup = true
	s := newService(t, cfg)
	s.converter = wavConverter{t: t}

	err := s.Serve(context.Background())
	if err == nil || !strings.Contains(err.Error(), "unreachable") {
		t.Fatalf("Serve = %v, want unreachable recognizer", err)
	}
}

func uploadMP3(t *testing.T, url string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "episode.mp3")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), make([]byte, 256)...))
	_ = mw.Close()

	resp, err := http.Post(url+"/generate-captions?transliterate=false", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func waitHealthy(t *testing.T, url string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("%s never became healthy", url)
}

func TestServeEndToEnd(t *testing.T) {
	sidecar := whisperSidecar(t)
	cfg := testConfig(t)
	cfg.Recognizer.Provider = whisper.ProviderName
	cfg.Recognizer.Whisper.URL = sidecar.URL
	s := newService(t, cfg)
	s.converter = wavConverter{t: t}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	waitHealthy(t, base)

	resp := uploadMP3(t, base)
	srt, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body %s", resp.StatusCode, srt)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/x-subrip") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), "episode_") {
		t.Errorf("disposition = %q", resp.Header.Get("Content-Disposition"))
	}
	if !strings.Contains(string(srt), "0:00:00,270 --> ") || !strings.Contains(strings.ToLower(string(srt)), "namaste") {
		t.Errorf("srt = %q", srt)
	}

	jobID := resp.Header.Get("X-Job-ID")
	if jobID == "" {
		t.Fatal("missing X-Job-ID")
	}
	jr, err := http.Get(base + "/api/v1/jobs/" + jobID)
	if err != nil {
		t.Fatal(err)
	}
	var job struct {
		Data struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	_ = json.NewDecoder(jr.Body).Decode(&job)
	jr.Body.Close()
	if jr.StatusCode != http.StatusOK || job.Data.ID != jobID || job.Data.Status != "succeeded" {
		t.Errorf("job lookup = %d %+v", jr.StatusCode, job)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestTranscribe(t *testing.T) {
	sidecar := whisperSidecar(t)
	cfg := testConfig(t)
	cfg.Recognizer.Provider = whisper.ProviderName
	cfg.Recognizer.Whisper.URL = sidecar.URL
	s := newService(t, cfg)
	s.converter = wavConverter{t: t}

	src := filepath.Join(t.TempDir(), "talk.mp3")
	if err := os.WriteFile(src, []byte("ID3 not really audio"), 0o600); err != nil {
		t.Fatal(err)
	}
	res, err := s.Transcribe(context.Background(), src, false)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(res.Blocks) == 0 || res.Provider != whisper.ProviderName || res.Transliterated {
		t.Errorf("result = %+v", res)
	}
	if !strings.HasPrefix(res.Filename, "talk_") || !strings.HasSuffix(res.Filename, "_yt.srt") {
		t.Errorf("filename = %q", res.Filename)
	}
}
