package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerSkipsProbeEndpoints(t *testing.T) {
	var buf bytes.Buffer
	h := Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/health", "/metrics"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))
	}
	if buf.Len() != 0 {
		t.Fatalf("probe requests must not be logged, got %s", buf.String())
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/conversations", nil))
	line := buf.String()
	if !strings.Contains(line, `"path":"/conversations"`) {
		t.Fatalf("expected request log line, got %s", line)
	}
	if !strings.Contains(line, `"status":200`) || !strings.Contains(line, `"bytes":2`) {
		t.Fatalf("expected status and size fields, got %s", line)
	}
}
