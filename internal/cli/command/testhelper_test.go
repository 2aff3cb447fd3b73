package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/urfave/cli/v2"
)

// mockServer creates a test HTTP server with custom handlers.
type mockServer struct {
	*httptest.Server
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	hits     map[string]int
}

// newMockServer creates a new mock server.
func newMockServer(t *testing.T) *mockServer {
	m := &mockServer{
		handlers: make(map[string]http.HandlerFunc),
		hits:     make(map[string]int),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		handler, ok := m.handlers[r.URL.Path]
		m.hits[r.URL.Path]++
		m.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

// handle registers a handler for a path.
func (m *mockServer) handle(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

func (m *mockServer) hitCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits[path]
}

// jsonResponse writes a JSON response.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// errorResponse writes an auth service error body.
func errorResponse(w http.ResponseWriter, status int, detail string) {
	jsonResponse(w, status, map[string]string{"detail": detail})
}

// signedToken builds an HS256 access token for email with an optional tenant claim.
func signedToken(t *testing.T, email string, tenantID int64, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": email,
		"exp": time.Now().Add(ttl).Unix(),
	}
	if tenantID != 0 {
		claims["tenant_id"] = tenantID
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// harness runs the CLI against a mock auth service and a temp session file.
type harness struct {
	t           *testing.T
	srv         *mockServer
	sessionPath string
	out         syncBuffer
	errOut      syncBuffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, env := range os.Environ() {
		if k, _, _ := strings.Cut(env, "="); strings.HasPrefix(k, "CLI_") {
			t.Setenv(k, "")
			os.Unsetenv(k)
		}
	}

	h := &harness{
		t:           t,
		srv:         newMockServer(t),
		sessionPath: filepath.Join(t.TempDir(), "finance-cli", "tokens.json"),
	}
	h.srv.handle("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "secret" {
			errorResponse(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]any{
			"access_token":  signedToken(t, body.Email, 7, time.Hour),
			"refresh_token": "rt-" + body.Email,
			"token_type":    "bearer",
			"expires_in":    3600,
		})
	})
	h.srv.handle("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return h
}

// run executes the CLI with stdin and returns the action error.
func (h *harness) run(stdin string, args ...string) error {
	return h.runContext(context.Background(), stdin, args...)
}

func (h *harness) runContext(ctx context.Context, stdin string, args ...string) error {
	h.out.Reset()
	h.errOut.Reset()

	app := App()
	app.Writer = &h.out
	app.ErrWriter = &h.errOut
	app.Reader = strings.NewReader(stdin)
	app.ExitErrHandler = func(*cli.Context, error) {}

	full := []string{"finance-cli", "--auth-url", h.srv.URL, "--session-file", h.sessionPath}
	return app.RunContext(ctx, append(full, args...))
}

// mustRun fails the test when the command fails.
func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	if err := h.run("", args...); err != nil {
		h.t.Fatalf("%v failed: %v\nstderr: %s", args, err, h.errOut.String())
	}
	return h.out.String()
}

// exitMessage asserts err is an exit error with code 1 and returns its text.
func exitMessage(t *testing.T, err error) string {
	t.Helper()
	var exit cli.ExitCoder
	if !errors.As(err, &exit) {
		t.Fatalf("error %v is not a cli.ExitCoder", err)
	}
	if exit.ExitCode() != 1 {
		t.Errorf("exit code = %d, want 1", exit.ExitCode())
	}
	return exit.Error()
}
