// Package whisper recognizes speech with a faster-whisper HTTP sidecar that
// returns word-level timestamps.
package whisper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kbukum/captiongen/httpclient"
	"github.com/kbukum/captiongen/logger"
	"github.com/kbukum/captiongen/provider"
	"github.com/kbukum/captiongen/resilience"
	"github.com/kbukum/captiongen/security"
	"github.com/kbukum/captiongen/subtitle"
	"github.com/kbukum/captiongen/transcription"
)

const (
	// ProviderName is the registered name for the Whisper recognizer.
	ProviderName = "whisper"

	defaultURL     = "http://localhost:8387"
	defaultModel   = "small"
	defaultTimeout = 10 * time.Minute
)

// Config holds configuration for the Whisper recognizer.
type Config struct {
	URL         string        `yaml:"url" mapstructure:"url" validate:"omitempty,url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	Device      string        `yaml:"device" mapstructure:"device"`
	ComputeType string        `yaml:"compute_type" mapstructure:"compute_type"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`

	TLS *security.TLSConfig `yaml:"tls" mapstructure:"tls"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.URL == "" {
		c.URL = defaultURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}

// Provider implements transcription.Recognizer against the sidecar.
type Provider struct {
	cfg    Config
	client *httpclient.Client
	log    *logger.Logger
}

// NewProvider creates a Whisper recognizer.
func NewProvider(cfg Config, log *logger.Logger) (*Provider, error) {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = 2
	client, err := httpclient.New(httpclient.Config{
		BaseURL: cfg.URL,
		Timeout: cfg.Timeout,
		Policy:  resilience.Policy{Retry: &retry},
		TLS:     cfg.TLS,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}
	return &Provider{
		cfg:    cfg,
		client: client,
		log:    log.WithFields(map[string]interface{}{logger.FieldProvider: ProviderName}),
	}, nil
}

// Factory returns a provider.Factory for the registry.
func Factory(cfg Config, log *logger.Logger) provider.Factory[transcription.Recognizer] {
	return func() (transcription.Recognizer, error) {
		return NewProvider(cfg, log)
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable checks the sidecar health endpoint.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := p.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health"})
	return err == nil
}

type response struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []segment `json:"segments"`
}

type segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []word  `json:"words"`
}

type word struct {
	Word        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"probability"`
}

// Recognize uploads the whole file and delivers every word as one final
// batch. Whitespace-only tokens are dropped.
func (p *Provider) Recognize(ctx context.Context, req transcription.Request, fn transcription.BatchFunc) error {
	fields := map[string]string{
		"model":           p.cfg.Model,
		"word_timestamps": "true",
		"response_format": "verbose_json",
	}
	if req.Language != "" {
		fields["language"] = req.Language
	}
	if p.cfg.Device != "" {
		fields["device"] = p.cfg.Device
	}
	if p.cfg.ComputeType != "" {
		fields["compute_type"] = p.cfg.ComputeType
	}

	var resp response
	err := p.client.DoJSON(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/transcribe",
		Body: &httpclient.MultipartBody{
			Fields: fields,
			Files:  []httpclient.FileField{{FieldName: "audio", Path: req.AudioPath, ContentType: "audio/wav"}},
		},
	}, &resp)
	if err != nil {
		return fmt.Errorf("whisper: %w", err)
	}

	words := resp.words()
	p.log.WithContext(ctx).Debug("Whisper transcription received", map[string]interface{}{
		"segments": len(resp.Segments),
		"words":    len(words),
		"language": resp.Language,
	})
	return fn(words, true)
}

func (r *response) words() []subtitle.WordEvent {
	var out []subtitle.WordEvent
	for _, seg := range r.Segments {
		for _, w := range seg.Words {
			if strings.TrimSpace(w.Word) == "" {
				continue
			}
			out = append(out, subtitle.WordEvent{Text: w.Word, Start: w.Start, End: w.End})
		}
	}
	return out
}
