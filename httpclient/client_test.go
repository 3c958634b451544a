package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/captiongen/resilience"
	"github.com/kbukum/captiongen/security"
	"github.com/kbukum/captiongen/security/tlstest"
)

func newClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func fastRetry() *resilience.RetryConfig {
	return &resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestDoJSONWithBearerAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/openai/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth = %q", got)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["model"]})
	}))
	defer srv.Close()

	c := newClient(t, Config{BaseURL: srv.URL + "/v1/openai/", Auth: BearerAuth("sk-test")})
	var out map[string]string
	err := c.DoJSON(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/chat/completions",
		Body:   map[string]string{"model": "llama"},
	}, &out)
	if err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if out["echo"] != "llama" {
		t.Errorf("out = %v", out)
	}
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		kind      ErrorKind
		retryable bool
	}{
		{http.StatusBadRequest, KindClient, false},
		{http.StatusUnauthorized, KindAuth, false},
		{http.StatusNotFound, KindNotFound, false},
		{http.StatusTooManyRequests, KindRateLimit, true},
		{http.StatusBadGateway, KindServer, true},
	}
	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer srv.Close()

			resp, err := newClient(t, Config{BaseURL: srv.URL}).Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
			kind, ok := KindOf(err)
			if !ok || kind != tc.kind {
				t.Fatalf("err = %v, want kind %s", err, tc.kind)
			}
			if IsRetryable(err) != tc.retryable {
				t.Errorf("retryable = %v", IsRetryable(err))
			}
			if resp == nil || resp.StatusCode != tc.status {
				t.Errorf("response should be returned with the error")
			}
		})
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c := newClient(t, Config{BaseURL: srv.URL, Policy: resilience.Policy{Retry: fastRetry()}})
	resp, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if string(resp.Body) != "ok" || calls.Load() != 3 {
		t.Errorf("body = %q after %d calls", resp.Body, calls.Load())
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := newClient(t, Config{BaseURL: srv.URL, Policy: resilience.Policy{Retry: fastRetry()}})
	if _, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"}); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestCircuitOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newClient(t, Config{BaseURL: srv.URL, Policy: resilience.Policy{
		CircuitBreaker: &resilience.CircuitBreakerConfig{Name: "test", MaxFailures: 2, OpenTimeout: time.Minute},
	}})
	for i := 0; i < 2; i++ {
		_, _ = c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	}
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("err = %v, want circuit open", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestMultipartUpload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "speech.wav")
	if err := os.WriteFile(path, []byte("RIFFdata"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse: %v", err)
			return
		}
		if r.FormValue("language") != "hi" {
			t.Errorf("language = %q", r.FormValue("language"))
		}
		f, hdr, err := r.FormFile("audio")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "speech.wav" || string(data) != "RIFFdata" || hdr.Header.Get("Content-Type") != "audio/wav" {
			t.Errorf("file part = %s %q %s", hdr.Filename, data, hdr.Header.Get("Content-Type"))
		}
	}))
	defer srv.Close()

	_, err := newClient(t, Config{BaseURL: srv.URL}).Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/transcribe",
		Body: &MultipartBody{
			Fields: map[string]string{"language": "hi"},
			Files:  []FileField{{FieldName: "audio", Path: path, ContentType: "audio/wav"}},
		},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
}

func TestConnectionError(t *testing.T) {
	c := newClient(t, Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	_, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	if kind, ok := KindOf(err); !ok || kind != KindConnection {
		t.Errorf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "connection") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestPrivateCA(t *testing.T) {
	certs := tlstest.Generate(t)
	srv := certs.NewServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))

	// Without the CA the handshake fails.
	plain := newClient(t, Config{BaseURL: srv.URL, Timeout: time.Second})
	if _, err := plain.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"}); err == nil {
		t.Fatal("expected an unknown authority error")
	}

	trusted := newClient(t, Config{BaseURL: srv.URL, Timeout: time.Second, TLS: &security.TLSConfig{CAFile: certs.CAFile}})
	resp, err := trusted.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Errorf("body = %q", resp.Body)
	}
}

func TestInvalidTLSConfig(t *testing.T) {
	_, err := New(Config{TLS: &security.TLSConfig{CertFile: "cert.pem"}}, nil)
	if err == nil {
		t.Fatal("expected error for a cert without a key")
	}
}
