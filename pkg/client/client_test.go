package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI answers the auth and task routes the tests need. Access tokens
// listed in expired are rejected with 401.
type fakeAPI struct {
	t         *testing.T
	expired   map[string]bool
	refreshes atomic.Int32
	refreshOK bool
	lastBody  map[string]any
	lastQuery string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	write := func(status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}

	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		f.lastBody = nil
		if len(data) > 0 {
			require.NoError(f.t, json.Unmarshal(data, &f.lastBody))
		}
	}
	f.lastQuery = r.URL.RawQuery

	switch r.URL.Path {
	case "/api/auth/login":
		if f.lastBody["password"] != "correct-horse-battery" {
			write(http.StatusUnauthorized, `{"error":"Invalid email or password","trace_id":"t1"}`)
			return
		}
		write(http.StatusOK, `{"user_id":"6ba7b810-9dad-11d1-80b4-00c04fd430c8","email":"me@example.com",
			"access_token":"access-1","refresh_token":"refresh-1","expires_at":"2024-03-10T12:15:00Z"}`)
		return
	case "/api/auth/refresh":
		f.refreshes.Add(1)
		if !f.refreshOK {
			write(http.StatusUnauthorized, `{"error":"Invalid refresh token"}`)
			return
		}
		write(http.StatusOK, `{"access_token":"access-2","refresh_token":"refresh-2","expires_at":"2024-03-10T12:30:00Z"}`)
		return
	}

	token := r.Header.Get("Authorization")
	if token == "" || f.expired[token[len("Bearer "):]] {
		write(http.StatusUnauthorized, `{"error":"Token expired"}`)
		return
	}

	switch {
	case r.URL.Path == "/api/auth/logout":
		w.WriteHeader(http.StatusNoContent)
	case r.URL.Path == "/api/tasks" && r.Method == http.MethodGet:
		write(http.StatusOK, `{"count":1,"next":null,"previous":null,"results":[{"id":1,"title":"Report","status":"todo"}]}`)
	case r.URL.Path == "/api/tasks" && r.Method == http.MethodPost:
		write(http.StatusBadRequest, `{"error":"Validation error","fields":{"title":"This field is required"}}`)
	case r.URL.Path == "/api/tasks/7" && r.Method == http.MethodPatch:
		write(http.StatusOK, `{"id":7,"title":"Gym","status":"completed","is_recurring":true,
			"completion":{"counted":true,"period_count":2,"period_target":2,"period_exhausted":true,"rolled_over":true,"next_task_id":8}}`)
	case r.URL.Path == "/api/tasks/7/restore":
		write(http.StatusConflict, `{"error":"Task is not deleted"}`)
	case r.URL.Path == "/api/tasks/9":
		write(http.StatusBadGateway, `<html>bad gateway</html>`)
	default:
		write(http.StatusNotFound, `{"error":"Not found"}`)
	}
}

func newFakeAPI(t *testing.T) (*fakeAPI, *Client, *MemoryTokenStore) {
	t.Helper()
	api := &fakeAPI{t: t, expired: map[string]bool{}, refreshOK: true}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	store := NewMemoryTokenStore()
	c, err := New(srv.URL+"/", WithTokenStore(store))
	require.NoError(t, err)
	return api, c, store
}

func login(t *testing.T, c *Client) {
	t.Helper()
	_, err := c.Login(context.Background(), "me@example.com", "correct-horse-battery")
	require.NoError(t, err)
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("localhost:8080")
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	_, c, store := newFakeAPI(t)
	ctx := context.Background()

	_, err := c.Login(ctx, "me@example.com", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid email or password", apiErr.Message)
	assert.Equal(t, "t1", apiErr.TraceID)

	user, err := c.Login(ctx, "me@example.com", "correct-horse-battery")
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", user.Email)

	tokens, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "access-1", tokens.AccessToken)
	assert.Equal(t, time.Date(2024, 3, 10, 12, 15, 0, 0, time.UTC), tokens.ExpiresAt)
}

func TestAuthenticatedCallWithoutSession(t *testing.T) {
	_, c, _ := newFakeAPI(t)
	_, err := c.ListTasks(context.Background(), ListOptions{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefreshOnceAndRetry(t *testing.T) {
	api, c, store := newFakeAPI(t)
	login(t, c)
	api.expired["access-1"] = true

	page, err := c.ListTasks(context.Background(), ListOptions{Status: "todo", Page: 2, TagIDs: []int64{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Count)
	assert.Equal(t, "page=2&status=todo&tags=1%2C2", api.lastQuery)
	assert.Equal(t, int32(1), api.refreshes.Load())

	tokens, _ := store.Load()
	assert.Equal(t, "access-2", tokens.AccessToken)
	assert.Equal(t, "refresh-2", tokens.RefreshToken)
}

func TestSecond401ClearsSession(t *testing.T) {
	api, c, store := newFakeAPI(t)
	login(t, c)
	api.expired["access-1"] = true
	api.expired["access-2"] = true

	_, err := c.ListTasks(context.Background(), ListOptions{})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), api.refreshes.Load(), "refresh is attempted only once")

	tokens, _ := store.Load()
	assert.Nil(t, tokens)
}

func TestFailedRefreshClearsSession(t *testing.T) {
	api, c, store := newFakeAPI(t)
	login(t, c)
	api.expired["access-1"] = true
	api.refreshOK = false

	_, err := c.GetTask(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnauthorized)
	tokens, _ := store.Load()
	assert.Nil(t, tokens)
}

func TestErrorMapping(t *testing.T) {
	_, c, _ := newFakeAPI(t)
	login(t, c)
	ctx := context.Background()

	_, err := c.CreateTask(ctx, TaskInput{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, map[string]string{"title": "This field is required"}, apiErr.Fields)
	assert.Equal(t, "400 Validation error (title: This field is required)", apiErr.Error())

	_, err = c.RestoreTask(ctx, 7)
	assert.True(t, IsConflict(err))

	_, err = c.GetTask(ctx, 404)
	assert.True(t, IsNotFound(err))

	_, err = c.GetTask(ctx, 9)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "The server had a problem, try again later", apiErr.Message)
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c, err := New(srv.URL)
	require.NoError(t, err)
	srv.Close()

	_, err = c.Login(context.Background(), "me@example.com", "x")
	assert.ErrorIs(t, err, ErrTransport)
	assert.NotContains(t, err.Error(), "127.0.0.1")
}

func TestUpdateTask_SendsNullsAndReturnsCompletion(t *testing.T) {
	api, c, _ := newFakeAPI(t)
	login(t, c)

	status := "completed"
	task, err := c.UpdateTask(context.Background(), 7, TaskUpdate{Status: &status, ClearDueDate: true})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"status": "completed", "due_date": nil}, api.lastBody)
	require.NotNil(t, task.Completion)
	assert.True(t, task.Completion.RolledOver)
	assert.Equal(t, int64(8), *task.Completion.NextTaskID)
}

func TestLogout(t *testing.T) {
	api, c, store := newFakeAPI(t)
	login(t, c)

	require.NoError(t, c.Logout(context.Background()))
	assert.Equal(t, "refresh-1", api.lastBody["refresh_token"])
	tokens, _ := store.Load()
	assert.Nil(t, tokens)

	// Logging out without a session is a no-op.
	require.NoError(t, c.Logout(context.Background()))
}

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")
	s := NewFileTokenStore(path)

	got, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, got)

	want := &Tokens{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, s.Save(want))

	got, err = NewFileTokenStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())
	got, err = s.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAPIErrorIsNotTransport(t *testing.T) {
	err := error(&APIError{Status: http.StatusConflict, Message: "x"})
	assert.False(t, errors.Is(err, ErrTransport))
	assert.True(t, IsConflict(err))
}
