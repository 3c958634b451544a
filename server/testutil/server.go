package testutil

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/captiongen/logger"
	"github.com/kbukum/captiongen/server"
	"github.com/kbukum/captiongen/server/endpoint"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// NewServer creates a server with the default middleware and endpoints
// applied. mutate may adjust the config before the server is built.
func NewServer(t testing.TB, checker endpoint.HealthChecker, mutate func(*server.Config)) *server.Server {
	t.Helper()
	cfg := server.Config{Host: "127.0.0.1"}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := server.New(cfg, logger.Nop())
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	srv.ApplyDefaults("captiongen-test", nil, checker)
	return srv
}

// Serve exposes srv's full handler stack on an httptest server that is
// closed when the test ends.
func Serve(t testing.TB, srv *server.Server) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}
