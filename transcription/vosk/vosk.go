// Package vosk recognizes speech with a Vosk server over its websocket
// protocol.
package vosk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kbukum/captiongen/audio"
	"github.com/kbukum/captiongen/logger"
	"github.com/kbukum/captiongen/provider"
	"github.com/kbukum/captiongen/security"
	"github.com/kbukum/captiongen/subtitle"
	"github.com/kbukum/captiongen/transcription"
)

const (
	// ProviderName is the registered name for the Vosk recognizer.
	ProviderName = "vosk"

	defaultURL         = "ws://localhost:2700"
	defaultDialTimeout = 10 * time.Second
	defaultReadTimeout = 60 * time.Second
	closeGrace         = time.Second
)

// The server matches this message literally.
var eofMessage = []byte(`{"eof" : 1}`)

// Config holds configuration for the Vosk recognizer.
type Config struct {
	URL         string        `yaml:"url" mapstructure:"url" validate:"omitempty,url"`
	DialTimeout time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	// ReadTimeout bounds the wait for each server reply.
	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	// TLS applies to wss:// URLs.
	TLS *security.TLSConfig `yaml:"tls" mapstructure:"tls"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.URL == "" {
		c.URL = defaultURL
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = defaultReadTimeout
	}
}

// Provider implements transcription.Recognizer against a Vosk server.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
	log    *logger.Logger
}

// NewProvider creates a Vosk recognizer.
func NewProvider(cfg Config, log *logger.Logger) (*Provider, error) {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	tlsCfg, err := cfg.TLS.Build()
	if err != nil {
		return nil, fmt.Errorf("vosk: %w", err)
	}
	return &Provider{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout, TLSClientConfig: tlsCfg},
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

// IsAvailable reports whether the server accepts a websocket handshake.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	conn, _, err := p.dialer.DialContext(ctx, p.cfg.URL, nil)
	if err != nil {
		return false
	}
	p.closeConn(conn)
	return true
}

type configMessage struct {
	Config struct {
		SampleRate int `json:"sample_rate"`
		Words      int `json:"words"`
	} `json:"config"`
}

type wordResult struct {
	Conf  float64 `json:"conf"`
	End   float64 `json:"end"`
	Start float64 `json:"start"`
	Word  string  `json:"word"`
}

type serverMessage struct {
	Result  []wordResult `json:"result"`
	Text    string       `json:"text"`
	Partial *string      `json:"partial"`
}

func (m *serverMessage) words() []subtitle.WordEvent {
	out := make([]subtitle.WordEvent, len(m.Result))
	for i, w := range m.Result {
		out[i] = subtitle.WordEvent{Text: w.Word, Start: w.Start, End: w.End}
	}
	return out
}

// Recognize streams the PCM of req.AudioPath in lockstep: one binary chunk,
// one server reply. Replies that carry a result become batches; partial
// replies are skipped. The reply to the end-of-stream message is the final
// batch.
func (p *Provider) Recognize(ctx context.Context, req transcription.Request, fn transcription.BatchFunc) error {
	r, err := audio.OpenWAV(req.AudioPath, req.Format)
	if err != nil {
		return err
	}
	defer r.Close()

	conn, _, err := p.dialer.DialContext(ctx, p.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("vosk: dial %s: %w", p.cfg.URL, err)
	}
	defer p.closeConn(conn)
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var cm configMessage
	cm.Config.SampleRate = req.Format.SampleRate
	cm.Config.Words = 1
	if err := conn.WriteJSON(cm); err != nil {
		return p.streamErr(ctx, "send config", err)
	}

	chunks, batches := 0, 0
	err = r.Chunks(req.ChunkFrames, func(pcm []byte) error {
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
			return p.streamErr(ctx, "send audio", err)
		}
		chunks++
		msg, err := p.read(ctx, conn)
		if err != nil {
			return err
		}
		if msg.Partial != nil || msg.Result == nil {
			return nil
		}
		batches++
		return fn(msg.words(), false)
	})
	if err != nil {
		return err
	}

	if err := conn.WriteMessage(websocket.TextMessage, eofMessage); err != nil {
		return p.streamErr(ctx, "send eof", err)
	}
	final, err := p.read(ctx, conn)
	if err != nil {
		return err
	}

	p.log.Debug("Recognition stream finished", map[string]interface{}{
		"chunks":      chunks,
		"batches":     batches + 1,
		"final_words": len(final.Result),
		"duration_ms": r.Duration().Milliseconds(),
	})
	return fn(final.words(), true)
}

func (p *Provider) read(ctx context.Context, conn *websocket.Conn) (*serverMessage, error) {
	if err := conn.SetReadDeadline(time.Now().Add(p.cfg.ReadTimeout)); err != nil {
		return nil, p.streamErr(ctx, "set deadline", err)
	}
	kind, data, err := conn.ReadMessage()
	if err != nil {
		return nil, p.streamErr(ctx, "read reply", err)
	}
	if kind != websocket.TextMessage {
		return nil, fmt.Errorf("vosk: unexpected message type %d", kind)
	}
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("vosk: decode reply: %w", err)
	}
	return &msg, nil
}

// streamErr reports cancellation in preference to the socket error it caused.
func (p *Provider) streamErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("vosk: %s: no reply within %s: %w", op, p.cfg.ReadTimeout, err)
	}
	return fmt.Errorf("vosk: %s: %w", op, err)
}

func (p *Provider) closeConn(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
	_ = conn.Close()
}
