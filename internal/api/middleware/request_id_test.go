package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/windforecast/windforecast/internal/api/middleware"
)

func serveRequestID(t *testing.T, inbound string) (seen, echoed string) {
	t.Helper()
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	if inbound != "" {
		req.Header.Set("X-Request-Id", inbound)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return seen, w.Header().Get("X-Request-Id")
}

func TestRequestID_GeneratesNewID(t *testing.T) {
	seen, echoed := serveRequestID(t, "")

	assert.True(t, strings.HasPrefix(seen, "req_"))
	assert.Len(t, seen, len("req_")+32)
	assert.Equal(t, seen, echoed)
}

func TestRequestID_InboundIDs(t *testing.T) {
	tests := []struct {
		name    string
		inbound string
		kept    bool
	}{
		{"plain token", "upstream-id-1", true},
		{"gcp trace header value", "105445aa7843bc8bf206b12000100000/1;o=1", true},
		{"oversized", strings.Repeat("x", 500), false},
		{"contains space", "two words", false},
		{"control character", "id\x01", false},
		{"non ascii", "identificación", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen, echoed := serveRequestID(t, tt.inbound)
			assert.Equal(t, seen, echoed)
			if tt.kept {
				assert.Equal(t, tt.inbound, seen)
			} else {
				assert.True(t, strings.HasPrefix(seen, "req_"))
			}
		})
	}
}

func TestGetRequestID_EmptyWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	assert.Empty(t, middleware.GetRequestID(req.Context()))
}

func TestRequestID_UniqueIDs(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, _ := serveRequestID(t, "")
		assert.False(t, ids[id], "duplicate request ID generated: %s", id)
		ids[id] = true
	}
}
