package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/sessiontrack/internal/services/sessions/domain"
)

func startTestServer(t *testing.T) string {
	t.Helper()
	t.Setenv("SESSIONS_DB_PATH", t.TempDir()+"/nested/sessions.db")
	t.Setenv("SESSIONS_DEMO_TOKEN", "demo-token")
	t.Setenv("SESSIONS_LOG_LEVEL", "error")

	srv, err := NewWithAddr("127.0.0.1:0")
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- srv.Serve(runCtx)
	}()
	t.Cleanup(func() {
		runCancel()
		select {
		case serveErr := <-serveDone:
			if serveErr != nil {
				t.Fatalf("serve: %v", serveErr)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for server shutdown")
		}
	})
	return "http://" + srv.Addr()
}

func doRequest(t *testing.T, method, url, body string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer demo-token")
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, data
}

func TestServer_CreateGetUpdateAndListRoundTrip(t *testing.T) {
	base := startTestServer(t)

	status, body := doRequest(t, http.MethodPost, base+"/sessions", `{"region":"us-west-2"}`)
	if status != http.StatusOK {
		t.Fatalf("create status = %d, body %s", status, body)
	}
	var created domain.Session
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if created.SessionID == "" || created.Status != domain.StatusPending {
		t.Fatalf("created = %+v", created)
	}

	status, body = doRequest(t, http.MethodGet, base+"/sessions?sessionId="+created.SessionID, "")
	if status != http.StatusOK {
		t.Fatalf("get status = %d, body %s", status, body)
	}

	status, body = doRequest(t, http.MethodPut, base+"/sessions", `{"sessionId":"`+created.SessionID+`","status":"active"}`)
	if status != http.StatusOK {
		t.Fatalf("update status = %d, body %s", status, body)
	}
	var updated domain.Session
	if err := json.Unmarshal(body, &updated); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if updated.Status != domain.StatusActive {
		t.Fatalf("updated status = %s, want active", updated.Status)
	}

	status, body = doRequest(t, http.MethodGet, base+"/sessions?status=active&region=us-west-2", "")
	if status != http.StatusOK {
		t.Fatalf("list status = %d, body %s", status, body)
	}
	var listed []domain.Session
	if err := json.Unmarshal(body, &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].SessionID != created.SessionID {
		t.Fatalf("listed = %+v", listed)
	}

	status, body = doRequest(t, http.MethodGet, base+"/metrics", "")
	if status != http.StatusOK {
		t.Fatalf("metrics status = %d", status)
	}
	if !strings.Contains(string(body), `sessions_operations_total{operation="create",outcome="ok"} 1`) {
		t.Fatalf("metrics missing create counter:\n%s", body)
	}
}

func TestNewWithAddrRejectsUnknownStore(t *testing.T) {
	t.Setenv("SESSIONS_STORE", "postgres")
	t.Setenv("SESSIONS_DEMO_TOKEN", "demo-token")

	_, err := NewWithAddr("127.0.0.1:0")
	if err == nil {
		t.Fatal("expected error for unknown store")
	}
	if !strings.Contains(err.Error(), "SESSIONS_STORE") {
		t.Fatalf("error = %v, want mention of SESSIONS_STORE", err)
	}
}

func TestNewWithAddrRequiresAuthConfig(t *testing.T) {
	t.Setenv("SESSIONS_DB_PATH", t.TempDir()+"/sessions.db")
	t.Setenv("SESSIONS_AUTH_DISABLED", "false")
	t.Setenv("SESSIONS_DEMO_TOKEN", "")
	t.Setenv("SESSIONS_AUTH_PUBLIC_KEY", "")

	if _, err := NewWithAddr("127.0.0.1:0"); err == nil {
		t.Fatal("expected error without auth configuration")
	}
}

func TestServeNilServer(t *testing.T) {
	var srv *Server
	if err := srv.Serve(context.Background()); err == nil {
		t.Fatal("expected error for nil server")
	}
	if got := srv.Addr(); got != "" {
		t.Fatalf("addr = %q, want empty", got)
	}
}
