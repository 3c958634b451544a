package server

import (
	"strings"
	"unicode"
)

var systemPaths = map[string]bool{
	"/health": true,
	"/info":   true,
}

// formatHandlerName shortens Gin's handler path:
//
//	"github.com/kbukum/captiongen/api.(*Handler).Generate-fm" -> "Handler.Generate"
//	"github.com/kbukum/captiongen/server/endpoint.Health.func1" -> "health"
func formatHandlerName(fullPath string) string {
	name := strings.TrimSuffix(fullPath, "-fm")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.NewReplacer("(*", "", ")", "").Replace(name)

	if strings.Contains(name, ".func") {
		parts := strings.Split(name, ".")
		for i := len(parts) - 1; i >= 0; i-- {
			if !strings.HasPrefix(parts[i], "func") {
				return strings.ToLower(parts[i])
			}
		}
	}

	// Drop the package qualifier.
	if pkg, rest, ok := strings.Cut(name, "."); ok && rest != "" && !strings.ContainsFunc(pkg, unicode.IsUpper) {
		name = rest
	}
	return name
}

// methodOrder returns a sort key for HTTP methods (GET first, DELETE last).
func methodOrder(method string) int {
	switch method {
	case "GET":
		return 0
	case "POST":
		return 1
	case "PUT":
		return 2
	case "PATCH":
		return 3
	case "DELETE":
		return 4
	default:
		return 5
	}
}
