package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/kbukum/captiongen/httpclient"
	"github.com/kbukum/captiongen/logger"
)

// ErrNoDialect is returned by NewWithDialect for a nil dialect.
var ErrNoDialect = errors.New("llm: dialect is required")

// Completer sends one completion request.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Adapter is a Completer for one provider and model.
type Adapter struct {
	client  *httpclient.Client
	dialect Dialect
	cfg     Config
	log     *logger.Logger
}

// New creates an adapter using the registered dialect named in cfg.
func New(cfg Config, log *logger.Logger) (*Adapter, error) {
	cfg.ApplyDefaults()
	d, err := GetDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	return NewWithDialect(d, cfg, log)
}

// NewWithDialect creates an adapter with an explicit dialect.
func NewWithDialect(d Dialect, cfg Config, log *logger.Logger) (*Adapter, error) {
	if d == nil {
		return nil, ErrNoDialect
	}
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}

	client, err := httpclient.New(httpclient.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Auth:    httpclient.BearerAuth(cfg.APIKey),
		Policy:  cfg.Resilience,
		TLS:     cfg.TLS,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	return &Adapter{
		client:  client,
		dialect: d,
		cfg:     cfg,
		log:     log.WithFields(map[string]interface{}{logger.FieldProvider: d.Name()}),
	}, nil
}

// Name returns the dialect name.
func (a *Adapter) Name() string { return a.dialect.Name() }

// Model returns the default model.
func (a *Adapter) Model() string { return a.cfg.Model }

// IsAvailable probes the dialect's health endpoint. Without one it reports
// whether a key is configured.
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	hp := a.dialect.HealthPath()
	if hp == "" {
		return a.cfg.APIKey != ""
	}
	_, err := a.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: hp})
	return err == nil
}

// Complete sends req and returns the parsed response.
func (a *Adapter) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	a.fill(&req)
	body, err := a.dialect.BuildRequest(req)
	if err != nil {
		return nil, fmt.Errorf("llm: build request: %w", err)
	}

	resp, err := a.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   a.dialect.ChatPath(),
		Body:   body,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: %s: %w", a.dialect.Name(), err)
	}

	out, err := a.dialect.ParseResponse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llm: parse response: %w", err)
	}
	a.log.WithContext(ctx).Debug("Completion received", map[string]interface{}{
		"model":             out.Model,
		"prompt_tokens":     out.Usage.PromptTokens,
		"completion_tokens": out.Usage.CompletionTokens,
		"finish_reason":     out.FinishReason,
	})
	return out, nil
}

func (a *Adapter) fill(req *CompletionRequest) {
	if req.Model == "" {
		req.Model = a.cfg.Model
	}
	if req.Temperature == nil {
		req.Temperature = a.cfg.Temperature
	}
	if req.TopP == nil {
		req.TopP = a.cfg.TopP
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = a.cfg.MaxTokens
	}
}
