package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gatehouse/gatehouse/internal/config"
)

func newTestServer(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()

	cfg := &config.Config{
		AppEnv:             "development",
		StoreDriver:        config.DriverSQLite,
		SQLitePath:         filepath.Join(t.TempDir(), "gatehouse.db"),
		SessionCookieName:  "gatehouse_session",
		SessionIdleTTL:     time.Hour,
		HashAlgorithm:      "bcrypt",
		BcryptCost:         4,
		CORSAllowedOrigins: "https://app.example",
		MaxRequestBodySize: 1024,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := newApp(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	t.Cleanup(a.close)

	srv := httptest.NewServer(setupRouter(a))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return srv, &http.Client{Jar: jar}
}

func postJSON(t *testing.T, c *http.Client, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := c.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()
	srv, client := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := client.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
		if resp.Header.Get("X-Request-ID") == "" {
			t.Errorf("GET %s missing X-Request-ID", path)
		}
		if len(resp.Cookies()) != 0 {
			t.Errorf("GET %s set a session cookie", path)
		}
	}
}

func TestRouter_LocalLogin(t *testing.T) {
	t.Parallel()
	srv, client := newTestServer(t)

	resp := postJSON(t, client, srv.URL+"/auth/signup", map[string]string{
		"identity": "ada@example.com", "password": "pw", "password_confirm": "pw",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d", resp.StatusCode)
	}
	cookies := resp.Cookies()
	if len(cookies) != 1 || !cookies[0].HttpOnly || cookies[0].Name != "gatehouse_session" {
		t.Fatalf("unexpected session cookie: %+v", cookies)
	}

	resp = postJSON(t, client, srv.URL+"/auth/login", map[string]string{"identity": "ada@example.com", "password": "pw"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}

	me, err := client.Get(srv.URL + "/api/v1/me")
	if err != nil {
		t.Fatalf("GET /api/v1/me: %v", err)
	}
	defer me.Body.Close()
	var body struct {
		Identity     string   `json:"identity"`
		Source       string   `json:"source"`
		Capabilities []string `json:"capabilities"`
	}
	if err := json.NewDecoder(me.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Identity != "ada@example.com" || body.Source != "local" || len(body.Capabilities) == 0 {
		t.Errorf("me = %+v", body)
	}
}

func TestRouter_FederatedDisabled(t *testing.T) {
	t.Parallel()
	srv, client := newTestServer(t)

	resp, err := client.Get(srv.URL + "/auth/federated/start")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", resp.StatusCode)
	}
}

func TestRouter_BodyLimit(t *testing.T) {
	t.Parallel()
	srv, client := newTestServer(t)

	resp := postJSON(t, client, srv.URL+"/auth/login", map[string]string{
		"identity": strings.Repeat("a", 2048), "password": "pw",
	})
	if resp.StatusCode != http.StatusRequestEntityTooLarge && resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 413 or 400", resp.StatusCode)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	t.Parallel()
	srv, client := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/auth/login", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q", got)
	}
}

func TestRedactURL(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"":                                   "",
		"postgres://user:secret@db:5432/app": "postgres://user@db:5432/app",
		"redis://:secret@cache:6379":         "redis://redacted@cache:6379",
		"redis://cache:6379":                 "redis://cache:6379",
	}
	for in, want := range tests {
		if got := redactURL(in); got != want {
			t.Errorf("redactURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()
	dsn := "postgres://user:secret@db:5432/app"
	err := errors.New("dial " + dsn + " failed: password=hunter2")

	got := sanitizeError(err, dsn)
	if strings.Contains(got, "secret") || strings.Contains(got, "hunter2") {
		t.Errorf("sanitizeError leaked a secret: %q", got)
	}
	if sanitizeError(nil) != "" {
		t.Error("sanitizeError(nil) should be empty")
	}
}

func TestRouter_SessionIDRotatesOnLogin(t *testing.T) {
	t.Parallel()
	srv, client := newTestServer(t)

	resp := postJSON(t, client, srv.URL+"/auth/signup", map[string]string{
		"identity": "v@x.com", "password": "pw", "password_confirm": "pw",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d", resp.StatusCode)
	}

	// A bare client obtains an anonymous session id.
	bare := &http.Client{}
	resp, err := bare.Get(srv.URL + "/auth/session")
	if err != nil {
		t.Fatalf("GET /auth/session: %v", err)
	}
	resp.Body.Close()
	planted := cookieNamed(resp, "gatehouse_session")
	if planted == nil {
		t.Fatal("no session cookie issued")
	}

	send := func(method, path, body string, cookie *http.Cookie) *http.Response {
		t.Helper()
		req, _ := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.AddCookie(cookie)
		resp, err := bare.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
		resp.Body.Close()
		return resp
	}

	// Logging in with the planted id moves the session to a new one.
	resp = send(http.MethodPost, "/auth/login", `{"identity":"v@x.com","password":"pw"}`, planted)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	issued := cookieNamed(resp, "gatehouse_session")
	if issued == nil || issued.Value == planted.Value {
		t.Fatalf("login must issue a fresh session id, got %v", issued)
	}

	if resp := send(http.MethodGet, "/api/v1/me", "", planted); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("planted id: /api/v1/me status = %d, want 401", resp.StatusCode)
	}
	if resp := send(http.MethodGet, "/api/v1/me", "", issued); resp.StatusCode != http.StatusOK {
		t.Errorf("issued id: /api/v1/me status = %d, want 200", resp.StatusCode)
	}

	// Logout retires the authenticated id as well.
	resp = send(http.MethodPost, "/auth/logout", "", issued)
	if next := cookieNamed(resp, "gatehouse_session"); next == nil || next.Value == issued.Value {
		t.Fatalf("logout must issue a fresh session id, got %v", next)
	}
	if resp := send(http.MethodGet, "/api/v1/me", "", issued); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("logged-out id: /api/v1/me status = %d, want 401", resp.StatusCode)
	}
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
