package authmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func serve(h http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts", http.NoBody)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBearerToken_ValidToken(t *testing.T) {
	t.Parallel()

	rec := serve(BearerToken("secret-token-123")(okHandler), "Bearer secret-token-123")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestBearerToken_EmptyTokenDisablesCheck(t *testing.T) {
	t.Parallel()

	h := BearerToken("")(okHandler)
	for _, auth := range []string{"", "Bearer anything", "Basic dXNlcjpwYXNz"} {
		if rec := serve(h, auth); rec.Code != http.StatusOK {
			t.Errorf("auth %q: status = %d, want %d", auth, rec.Code, http.StatusOK)
		}
	}
}

func TestBearerToken_Rejected(t *testing.T) {
	t.Parallel()

	h := BearerToken("correct-token")(okHandler)

	tests := []struct {
		name     string
		value    string
		wantBody string
	}{
		{"missing header", "", `{"error":"missing or malformed authorization header"}`},
		{"basic auth", "Basic dXNlcjpwYXNz", `{"error":"missing or malformed authorization header"}`},
		{"lowercase bearer", "bearer correct-token", `{"error":"missing or malformed authorization header"}`},
		{"no prefix", "correct-token", `{"error":"missing or malformed authorization header"}`},
		{"wrong token", "Bearer wrong-token", `{"error":"invalid token"}`},
		{"partial match", "Bearer correct", `{"error":"invalid token"}`},
		{"token with suffix", "Bearer correct-token-extra", `{"error":"invalid token"}`},
		{"empty token", "Bearer ", `{"error":"invalid token"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := serve(h, tt.value)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
			if got := rec.Header().Get("WWW-Authenticate"); got != challenge {
				t.Errorf("WWW-Authenticate = %q, want %q", got, challenge)
			}
			if got := rec.Header().Get("Content-Type"); got != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", got)
			}
			if got := rec.Body.String(); got != tt.wantBody+"\n" {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestBearerToken_PassesRequestThrough(t *testing.T) {
	t.Parallel()

	var called bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusAccepted)
	})

	rec := serve(BearerToken("tok")(inner), "Bearer tok")
	if !called {
		t.Error("inner handler was not called")
	}
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
}
