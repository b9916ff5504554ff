package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/microsafety/microsafety/internal/api/middleware"
)

type staticFlags map[string]bool

func (f staticFlags) IsEnabled(_ context.Context, key string) bool { return f[key] }

func TestDisabledBy(t *testing.T) {
	tests := []struct {
		name  string
		flags middleware.FlagChecker
		want  int
	}{
		{"no checker", nil, http.StatusOK},
		{"flag off", staticFlags{}, http.StatusOK},
		{"flag on", staticFlags{"disable_assistant": true}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/me/assistant", http.NoBody)
			middleware.DisabledBy(tt.flags, "disable_assistant", "assistant is switched off")(okHandler()).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusServiceUnavailable {
				assert.Contains(t, rec.Body.String(), "assistant is switched off")
				assert.Contains(t, rec.Body.String(), "/v1/me/assistant")
				assert.Contains(t, rec.Body.String(), `"flag":"disable_assistant"`)
			}
		})
	}
}
