package transcription

import (
	"github.com/kbukum/captiongen/logger"
	"github.com/kbukum/captiongen/provider"
)

// NewRegistry creates a registry for recognizer factories.
func NewRegistry() *provider.Registry[Recognizer] {
	return provider.NewRegistry[Recognizer]()
}

// NewManager initializes the configured recognizers. Without a fallback the
// manager always returns Provider; with one it returns the first available
// of Provider and Fallback.
func NewManager(reg *provider.Registry[Recognizer], cfg Config, log *logger.Logger) (*provider.Manager[Recognizer], error) {
	names := []string{cfg.Provider}
	if cfg.Fallback != "" {
		names = append(names, cfg.Fallback)
	}

	mgr := provider.NewManager[Recognizer](reg, &provider.PrioritySelector[Recognizer]{Priority: names}, log)
	for _, name := range names {
		if err := mgr.Initialize(name); err != nil {
			return nil, err
		}
	}
	if cfg.Fallback == "" {
		if err := mgr.SetDefault(cfg.Provider); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}
