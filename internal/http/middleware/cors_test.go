package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginMatcher(t *testing.T) {
	m := newOriginMatcher([]string{" https://lumina.myclarix.com/ ", "https://*.myclarix.dev", ""})

	cases := []struct {
		origin string
		want   bool
	}{
		{"https://lumina.myclarix.com", true},
		{"https://app.myclarix.dev", true},
		{"https://a.b.myclarix.dev", true},
		{"https://myclarix.dev", false},
		{"http://app.myclarix.dev", false},
		{"https://evilmyclarix.dev", false},
		{"https://unknown.example", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, m.allows(tc.origin), tc.origin)
	}

	assert.True(t, newOriginMatcher([]string{"*"}).allows("https://random.example"))
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantAllowed bool
		wantCalled  bool
	}{
		{name: "listed origin", method: http.MethodPost, origin: "https://lumina.myclarix.com", wantStatus: http.StatusOK, wantAllowed: true, wantCalled: true},
		{name: "unknown origin", method: http.MethodPost, origin: "https://unknown.example", wantStatus: http.StatusOK, wantCalled: true},
		{name: "no origin", method: http.MethodGet, wantStatus: http.StatusOK, wantCalled: true},
		{name: "preflight", method: http.MethodOptions, origin: "https://lumina.myclarix.com", preflight: true, wantStatus: http.StatusNoContent, wantAllowed: true},
		{name: "plain options", method: http.MethodOptions, origin: "https://lumina.myclarix.com", wantStatus: http.StatusOK, wantAllowed: true, wantCalled: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tc.method, "/api/chat", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if tc.preflight {
				req.Header.Set("Access-Control-Request-Method", "POST")
			}
			rec := httptest.NewRecorder()

			CORS([]string{"https://lumina.myclarix.com"})(next).ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantCalled, called)
			if tc.wantAllowed {
				assert.Equal(t, tc.origin, rec.Header().Get("Access-Control-Allow-Origin"))
				assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Client-Id")
				assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Company-Id")
				assert.Equal(t, "Origin", rec.Header().Get("Vary"))
			} else {
				assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}
