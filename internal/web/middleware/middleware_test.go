package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JonMunkholm/sheet2sql/internal/logging"
)

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		headers map[string]string
		want    string
	}{
		{"untrusted source keeps remote", []string{"10.0.0.0/8"}, "192.0.2.1:5000",
			map[string]string{"X-Real-IP": "203.0.113.9"}, "192.0.2.1:5000"},
		{"trusted uses x-real-ip", []string{"10.0.0.0/8"}, "10.1.2.3:5000",
			map[string]string{"X-Real-IP": "203.0.113.9"}, "203.0.113.9"},
		{"trusted uses first forwarded", []string{"10.0.0.0/8"}, "10.1.2.3:5000",
			map[string]string{"X-Forwarded-For": "203.0.113.7, 10.1.2.3"}, "203.0.113.7"},
		{"single address entry", []string{"127.0.0.1"}, "127.0.0.1:80",
			map[string]string{"X-Real-IP": "198.51.100.2"}, "198.51.100.2"},
		{"garbage header ignored", []string{"10.0.0.0/8"}, "10.1.2.3:5000",
			map[string]string{"X-Real-IP": "not-an-ip"}, "10.1.2.3:5000"},
		{"bad entry skipped", []string{"nonsense", ""}, "10.1.2.3:5000",
			map[string]string{"X-Real-IP": "203.0.113.9"}, "10.1.2.3:5000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPIKeyAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name string
		keys []string
		key  string
		want int
	}{
		{"disabled", nil, "", http.StatusNoContent},
		{"missing", []string{"a"}, "", http.StatusUnauthorized},
		{"wrong", []string{"a"}, "b", http.StatusForbidden},
		{"prefix is not a match", []string{"abc"}, "ab", http.StatusForbidden},
		{"valid", []string{"a", "b"}, "b", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/templates", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			APIKeyAuth(tt.keys)(ok).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logging.Setup(&buf, "info", "text")

	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	out := buf.String()
	for _, want := range []string{"status=418", "bytes=5", "path=/healthz"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %q: %s", want, out)
		}
	}
}
