package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dsa_tracker/internal/app/livesync"
	"dsa_tracker/internal/app/service"
	"dsa_tracker/internal/common/security"
	"dsa_tracker/internal/domain/model"
	"dsa_tracker/internal/domain/repository"
	"dsa_tracker/internal/platform/executor"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoRunner struct{}

func (echoRunner) Execute(_ context.Context, code, language, stdin string) (*executor.Result, error) {
	return &executor.Result{Stdout: stdin}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerWithTTL(t, time.Hour)
}

func newTestServerWithTTL(t *testing.T, tokenTTL time.Duration) *httptest.Server {
	t.Helper()
	security.InitJWT([]byte("router-test-secret"), tokenTTL)

	store := repository.NewMemoryDocumentStore()
	controller := livesync.NewController(store, nil)
	router := NewRouter(Services{
		Auth:       service.NewAuthService(repository.NewMemoryUserRepository(), security.NewMemoryDenylist(), nil),
		Tracker:    service.NewTrackerService(store, nil, nil),
		Execution:  service.NewExecutionService(echoRunner{}, service.NewLocalRunLock(), nil),
		Assistant:  service.NewAssistantService(nil, nil),
		Controller: controller,
		Gatherer:   prometheus.NewRegistry(),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func signUp(t *testing.T, srv *httptest.Server, email string) string {
	t.Helper()
	resp := call(t, srv, http.MethodPost, "/api/v1/auth/signup", "", service.SignupRequest{
		Name: "Test", Email: email, Password: "hunter22",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[service.AuthResponse](t, resp).Token
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp := call(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)
	resp := call(t, srv, http.MethodGet, "/api/v1/tree", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = call(t, srv, http.MethodGet, "/api/v1/tree", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTrackerFlow(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "flow@example.com")

	resp := call(t, srv, http.MethodPost, "/api/v1/problems", token, model.NewProblemForm{
		Title: "Two Sum", Difficulty: model.DifficultyEasy, Category: "Arrays", Tags: []string{"hash"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	problemID := decode[map[string]string](t, resp)["id"]
	require.NotEmpty(t, problemID)

	resp = call(t, srv, http.MethodPost, "/api/v1/problems", token, model.NewProblemForm{
		Title: "Bad", Difficulty: "Impossible", Category: "Arrays",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = call(t, srv, http.MethodGet, "/api/v1/tree", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	categories := decode[[]model.Category](t, resp)
	require.Len(t, categories, 1)
	assert.Equal(t, "Arrays", categories[0].Name)
	require.Len(t, categories[0].Problems.Easy, 1)
	assert.Equal(t, problemID, categories[0].Problems.Easy[0].ID)

	resp = call(t, srv, http.MethodPost, "/api/v1/problems/"+problemID+"/toggle", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[map[string]bool](t, resp)["completed"])

	resp = call(t, srv, http.MethodGet, "/api/v1/stats", token, nil)
	stats := decode[model.Stats](t, resp)
	assert.Equal(t, 1, stats.TotalProblems)
	assert.Equal(t, 1, stats.CompletedProblems)

	title := "Two Sum II"
	resp = call(t, srv, http.MethodPatch, "/api/v1/problems/"+problemID, token, model.ProblemUpdate{Title: &title})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = call(t, srv, http.MethodGet, "/api/v1/search?q=ii", token, nil)
	found := decode[[]model.Problem](t, resp)
	require.Len(t, found, 1)
	assert.Equal(t, "Two Sum II", found[0].Title)

	resp = call(t, srv, http.MethodDelete, "/api/v1/problems/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = call(t, srv, http.MethodDelete, "/api/v1/categories/"+categories[0].ID, token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = call(t, srv, http.MethodGet, "/api/v1/tree", token, nil)
	assert.Empty(t, decode[[]model.Category](t, resp))
}

func TestTenantsAreIsolated(t *testing.T) {
	srv := newTestServer(t)
	alice := signUp(t, srv, "alice@example.com")
	bob := signUp(t, srv, "bob@example.com")

	resp := call(t, srv, http.MethodPost, "/api/v1/problems", alice, model.NewProblemForm{
		Title: "Two Sum", Difficulty: model.DifficultyEasy, Category: "Arrays",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = call(t, srv, http.MethodGet, "/api/v1/tree", bob, nil)
	assert.Empty(t, decode[[]model.Category](t, resp))
}

func TestLogoutRevokesToken(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "bye@example.com")

	resp := call(t, srv, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "bye@example.com", decode[model.User](t, resp).Email)

	resp = call(t, srv, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = call(t, srv, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEditorEndpoints(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "editor@example.com")

	resp := call(t, srv, http.MethodPost, "/api/v1/execute", token, model.RunCodeRequest{
		Code: "print(input())", Language: "python", Stdin: "42",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "42", decode[model.RunCodeResult](t, resp).Stdout)

	resp = call(t, srv, http.MethodPost, "/api/v1/assistant", token, model.AssistantRequest{Message: "hint?"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

type treeStream struct {
	events <-chan string
	ctx    context.Context
}

// openTreeStream connects the way a browser EventSource does, with the token
// in the jwt cookie.
func openTreeStream(t *testing.T, srv *httptest.Server, token string) *treeStream {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/tree/stream", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: token})
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan string, 8)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
				events <- strings.TrimPrefix(line, "data: ")
			}
		}
	}()
	return &treeStream{events: events, ctx: ctx}
}

func (s *treeStream) next(t *testing.T) map[string]json.RawMessage {
	t.Helper()
	select {
	case data, ok := <-s.events:
		require.True(t, ok, "stream ended")
		var payload map[string]json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(data), &payload))
		return payload
	case <-s.ctx.Done():
		t.Fatal("timed out waiting for stream event")
		return nil
	}
}

// requireEnded waits for the server to close the stream and fails on any
// event delivered in the meantime.
func (s *treeStream) requireEnded(t *testing.T, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case data, ok := <-s.events:
			if !ok {
				return
			}
			t.Fatalf("unexpected event on ended stream: %s", data)
		case <-deadline:
			t.Fatal("stream still open")
		}
	}
}

func TestTreeStream(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "stream@example.com")
	stream := openTreeStream(t, srv, token)

	first := stream.next(t)
	assert.JSONEq(t, "[]", string(first["tree"]))

	created := call(t, srv, http.MethodPost, "/api/v1/problems", token, model.NewProblemForm{
		Title: "Valid Anagram", Difficulty: model.DifficultyEasy, Category: "Strings",
	})
	require.Equal(t, http.StatusCreated, created.StatusCode)

	for {
		var tree []model.Category
		require.NoError(t, json.Unmarshal(stream.next(t)["tree"], &tree))
		if len(tree) == 1 {
			assert.Equal(t, "Strings", tree[0].Name)
			break
		}
	}
}

func TestTreeStream_EndsOnLogout(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "leaving@example.com")
	stream := openTreeStream(t, srv, token)
	stream.next(t)

	resp := call(t, srv, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// the same user keeps writing from a fresh login
	login := call(t, srv, http.MethodPost, "/api/v1/auth/login", "", service.LoginRequest{
		Email: "leaving@example.com", Password: "hunter22",
	})
	require.Equal(t, http.StatusOK, login.StatusCode)
	fresh := decode[service.AuthResponse](t, login).Token
	created := call(t, srv, http.MethodPost, "/api/v1/problems", fresh, model.NewProblemForm{
		Title: "After Logout", Difficulty: model.DifficultyHard, Category: "X",
	})
	require.Equal(t, http.StatusCreated, created.StatusCode)

	stream.requireEnded(t, 2*time.Second)
}

func TestTreeStream_EndsWhenTokenExpires(t *testing.T) {
	srv := newTestServerWithTTL(t, 2*time.Second)
	token := signUp(t, srv, "brief@example.com")
	stream := openTreeStream(t, srv, token)
	stream.next(t)

	stream.requireEnded(t, 5*time.Second)
}

func TestTreeStream_RejectsTokenInQueryString(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "query@example.com")

	resp := call(t, srv, http.MethodGet, "/api/v1/tree/stream?access_token="+token, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
