package llm

import (
	"fmt"
	"sort"
	"sync"
)

// Dialect maps CompletionRequest and CompletionResponse to one provider's
// HTTP format.
type Dialect interface {
	Name() string
	// ChatPath is the completion endpoint relative to the base URL.
	ChatPath() string
	// HealthPath is a cheap GET for availability checks. Empty disables it.
	HealthPath() string
	BuildRequest(req CompletionRequest) (any, error)
	ParseResponse(body []byte) (*CompletionResponse, error)
}

var (
	dialectsMu sync.RWMutex
	dialects   = map[string]Dialect{}
)

// RegisterDialect makes d available to New under name.
func RegisterDialect(name string, d Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[name] = d
}

// GetDialect returns a registered dialect.
func GetDialect(name string) (Dialect, error) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	d, ok := dialects[name]
	if !ok {
		return nil, fmt.Errorf("llm: unknown dialect %q (registered: %v)", name, dialectNames())
	}
	return d, nil
}

func dialectNames() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
