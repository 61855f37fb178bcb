package pcgcp_test

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alephnan/pcgcp"
)

func newTestServer(t *testing.T) (*httptest.Server, *http.Client) {
	h, _, _, _ := newTestHandler()
	srv := httptest.NewServer(pcgcp.NewServer(h).Handler())
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	return srv, &http.Client{Jar: jar}
}

func xhr(method, url, body string) *http.Request {
	req, _ := http.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	return req
}

func TestServer_Health(t *testing.T) {
	srv, c := newTestServer(t)

	resp, err := c.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "{}" {
		t.Errorf("Expected 200 {}, got %d %s", resp.StatusCode, body)
	}
}

func TestServer_AuthorizationRoute(t *testing.T) {
	srv, c := newTestServer(t)

	t.Run("requires XHR", func(t *testing.T) {
		resp, err := c.Post(srv.URL+"/api/authorization", "application/json", strings.NewReader(`{"code":"a","id_token":"b"}`))
		if err != nil {
			t.Fatalf("POST failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", resp.StatusCode)
		}
	})

	t.Run("POST only", func(t *testing.T) {
		resp, err := c.Do(xhr(http.MethodGet, srv.URL+"/api/authorization", ""))
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("Expected 405, got %d", resp.StatusCode)
		}
		if got := resp.Header.Get("Allow"); got != http.MethodPost {
			t.Errorf("Expected Allow: POST, got %q", got)
		}
	})
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv, c := newTestServer(t)

	tests := []struct {
		method, path, allow string
	}{
		{http.MethodPost, "/api/health", "GET"},
		{http.MethodPut, "/api/session", "GET, DELETE"},
		{http.MethodPatch, "/api/authorization", "POST"},
	}
	for _, tt := range tests {
		resp, err := c.Do(xhr(tt.method, srv.URL+tt.path, ""))
		if err != nil {
			t.Fatalf("%s %s failed: %v", tt.method, tt.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: Expected 405, got %d", tt.method, tt.path, resp.StatusCode)
		}
		if got := resp.Header.Get("Allow"); got != tt.allow {
			t.Errorf("%s %s: Expected Allow %q, got %q", tt.method, tt.path, tt.allow, got)
		}
	}

	resp, err := c.Get(srv.URL + "/api/nope")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown route, got %d", resp.StatusCode)
	}
}

func TestServer_Session(t *testing.T) {
	srv, c := newTestServer(t)

	get := func() (int, map[string]string) {
		resp, err := c.Get(srv.URL + "/api/session")
		if err != nil {
			t.Fatalf("GET failed: %v", err)
		}
		defer resp.Body.Close()
		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		return resp.StatusCode, body
	}

	if status, _ := get(); status != http.StatusUnauthorized {
		t.Errorf("Expected 401 before sign-in, got %d", status)
	}

	resp, err := c.Do(xhr(http.MethodPost, srv.URL+"/api/authorization", `{"code":"abc","id_token":"tok"}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	status, body := get()
	if status != http.StatusOK || body["email"] != "user@example.com" {
		t.Errorf("Expected signed in session, got %d %v", status, body)
	}

	resp, err = c.Do(xhr(http.MethodDelete, srv.URL+"/api/session", ""))
	if err != nil {
		t.Fatalf("DELETE failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", resp.StatusCode)
	}
	if status, _ := get(); status != http.StatusUnauthorized {
		t.Errorf("Expected 401 after logout, got %d", status)
	}
}

func TestServer_StaticDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>pcgcp</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	h, _, _, _ := newTestHandler()
	s := pcgcp.NewServer(h)
	s.StaticDir = dir
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "pcgcp") {
		t.Errorf("Expected index.html, got %s", body)
	}

	resp, err = http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected API routes to win over static files, got %d", resp.StatusCode)
	}
}

func TestServer_GracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	h, _, _, _ := newTestHandler()
	s := pcgcp.NewServer(h)
	s.ShutdownTimeout = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Server did not shut down")
	}
}

func TestServer_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	s := pcgcp.NewServer(nil)
	if err := s.ListenAndServe(context.Background(), ln.Addr().String()); err == nil {
		t.Error("Expected error for an address in use")
	}
}
