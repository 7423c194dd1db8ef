package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steemit/sdgforum/internal/apperr"
	"github.com/steemit/sdgforum/internal/models"
	"github.com/steemit/sdgforum/internal/thread"
	"github.com/steemit/sdgforum/pkg/config"
)

const (
	testUserID   = "0190b3a0-0000-7000-8000-000000000001"
	testThreadID = "0190b3a0-0000-7000-8000-0000000000aa"
)

// fakeThreads implements only what the tests call
type fakeThreads struct {
	ThreadService
	createErr error
	created   *thread.CreateInput
	author    string
	gets      int
}

func (f *fakeThreads) Create(_ context.Context, authorID string, in thread.CreateInput) (*thread.View, error) {
	f.author = authorID
	f.created = &in
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &thread.View{ID: testThreadID, Title: in.Title}, nil
}

func (f *fakeThreads) GetByID(_ context.Context, threadID string) (*thread.View, error) {
	f.gets++
	return nil, apperr.NotFound("thread not found")
}

type fakeHealth struct{ err error }

func (f fakeHealth) Health(context.Context) error { return f.err }

type rpcResult struct {
	Status   int
	Response struct {
		ID     interface{}     `json:"id"`
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int       `json:"code"`
			Message string    `json:"message"`
			Data    ErrorData `json:"data"`
		} `json:"error"`
	}
}

func newTestRouter(t *testing.T, threads ThreadService, health map[string]HealthChecker) (*gin.Engine, *Authenticator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	auth, err := NewAuthenticator(&config.AuthConfig{JWTSecret: "test-secret-with-enough-entropy", Issuer: "sdgforum"})
	require.NoError(t, err)

	engine := gin.New()
	NewRouter(Services{Threads: threads, Health: health}, auth, []string{"*"}).SetupRoutes(engine)
	return engine, auth
}

func call(t *testing.T, engine *gin.Engine, token, method string, params interface{}) rpcResult {
	t.Helper()

	raw, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	var out rpcResult
	out.Status = rec.Code
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out.Response))
	return out
}

func TestThreadCreate_RequiresAuthentication(t *testing.T) {
	threads := &fakeThreads{}
	engine, _ := newTestRouter(t, threads, nil)

	res := call(t, engine, "", "thread.create", map[string]interface{}{"title": "t", "body": "b"})
	require.NotNil(t, res.Response.Error)
	assert.Equal(t, ErrUnauthenticated, res.Response.Error.Code)
	assert.Nil(t, threads.created)
}

func TestThreadCreate_PassesIdentityAndTags(t *testing.T) {
	threads := &fakeThreads{}
	engine, auth := newTestRouter(t, threads, nil)
	token, err := auth.IssueToken(testUserID, models.RoleUser, time.Hour)
	require.NoError(t, err)

	res := call(t, engine, token, "thread.create", map[string]interface{}{
		"title":        "Solar microgrids",
		"body":         "Village-scale storage",
		"tags":         "energy, Solar",
		"category_ids": []string{"0190b3a0-0000-7000-8000-0000000000c7"},
	})
	require.Nil(t, res.Response.Error)
	assert.Equal(t, testUserID, threads.author)
	assert.Equal(t, []string{"energy", "Solar"}, threads.created.Tags)
	assert.Contains(t, string(res.Response.Result), testThreadID)
}

func TestThreadCreate_RejectionCarriesScore(t *testing.T) {
	threads := &fakeThreads{createErr: apperr.Rejected(60, "mostly about football")}
	engine, auth := newTestRouter(t, threads, nil)
	token, err := auth.IssueToken(testUserID, models.RoleUser, time.Hour)
	require.NoError(t, err)

	res := call(t, engine, token, "thread.create", map[string]interface{}{"title": "t", "body": "b"})
	require.NotNil(t, res.Response.Error)
	assert.Equal(t, ErrRejected, res.Response.Error.Code)
	require.NotNil(t, res.Response.Error.Data.Score)
	assert.Equal(t, 60, *res.Response.Error.Data.Score)
	assert.Equal(t, "mostly about football", res.Response.Error.Data.Rationale)
	assert.False(t, res.Response.Error.Data.Retryable)
}

func TestThreadCreate_UnavailableIsRetryable(t *testing.T) {
	threads := &fakeThreads{createErr: apperr.Unavailable("thread relevance review is temporarily unavailable, please retry")}
	engine, auth := newTestRouter(t, threads, nil)
	token, err := auth.IssueToken(testUserID, models.RoleUser, time.Hour)
	require.NoError(t, err)

	res := call(t, engine, token, "thread.create", map[string]interface{}{"title": "t", "body": "b"})
	require.NotNil(t, res.Response.Error)
	assert.Equal(t, ErrUnavailable, res.Response.Error.Code)
	assert.True(t, res.Response.Error.Data.Retryable)
}

func TestParamValidation(t *testing.T) {
	tests := []struct {
		name   string
		method string
		params interface{}
	}{
		{"missing id", "thread.get", map[string]interface{}{}},
		{"malformed id", "thread.get", map[string]interface{}{"thread_id": "not-a-uuid"}},
		{"wrong type", "thread.get", map[string]interface{}{"thread_id": 42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			threads := &fakeThreads{}
			engine, _ := newTestRouter(t, threads, nil)

			res := call(t, engine, "", tt.method, tt.params)
			require.NotNil(t, res.Response.Error)
			assert.Equal(t, ErrInvalidParams, res.Response.Error.Code)
			assert.Equal(t, "validation", res.Response.Error.Data.Kind)
			assert.Zero(t, threads.gets)
		})
	}
}

func TestThreadGet_NotFound(t *testing.T) {
	engine, _ := newTestRouter(t, &fakeThreads{}, nil)

	res := call(t, engine, "", "thread.get", map[string]interface{}{"thread_id": testThreadID})
	require.NotNil(t, res.Response.Error)
	assert.Equal(t, ErrNotFound, res.Response.Error.Code)
}

func TestMethodNotFound(t *testing.T) {
	engine, _ := newTestRouter(t, &fakeThreads{}, nil)

	res := call(t, engine, "", "thread.purge", nil)
	require.NotNil(t, res.Response.Error)
	assert.Equal(t, ErrMethodNotFound, res.Response.Error.Code)
}

func TestInvalidTokenIsRejected(t *testing.T) {
	engine, _ := newTestRouter(t, &fakeThreads{}, nil)

	res := call(t, engine, "garbage", "thread.list", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Status)
	require.NotNil(t, res.Response.Error)
	assert.Equal(t, ErrUnauthenticated, res.Response.Error.Code)
}

func TestAuthenticator_Verify(t *testing.T) {
	auth, err := NewAuthenticator(&config.AuthConfig{JWTSecret: "secret-a", Issuer: "sdgforum"})
	require.NoError(t, err)
	other, err := NewAuthenticator(&config.AuthConfig{JWTSecret: "secret-b", Issuer: "sdgforum"})
	require.NoError(t, err)
	foreign, err := NewAuthenticator(&config.AuthConfig{JWTSecret: "secret-a", Issuer: "elsewhere"})
	require.NoError(t, err)

	valid, err := auth.IssueToken(testUserID, models.RoleModerator, time.Hour)
	require.NoError(t, err)
	expired, err := auth.IssueToken(testUserID, models.RoleUser, -time.Minute)
	require.NoError(t, err)
	wrongKey, err := other.IssueToken(testUserID, models.RoleUser, time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := foreign.IssueToken(testUserID, models.RoleUser, time.Hour)
	require.NoError(t, err)

	identity, err := auth.Verify(valid)
	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: testUserID, Role: models.RoleModerator}, identity)

	for name, token := range map[string]string{"expired": expired, "wrong key": wrongKey, "wrong issuer": wrongIssuer} {
		t.Run(name, func(t *testing.T) {
			_, err := auth.Verify(token)
			assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))
		})
	}

	_, err = NewAuthenticator(&config.AuthConfig{})
	assert.Error(t, err)
}

func TestNewError_HidesInternalCause(t *testing.T) {
	rpcErr := NewError(errors.New("pq: connection refused"))
	assert.Equal(t, ErrServer, rpcErr.Code)
	assert.Equal(t, "Server error", rpcErr.Message)

	rpcErr = NewError(apperr.Internal("failed to load thread", errors.New("pq: connection refused")))
	assert.Equal(t, ErrServer, rpcErr.Code)
	assert.NotContains(t, rpcErr.Message, "pq")
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		health   map[string]HealthChecker
		expected int
	}{
		{"all healthy", map[string]HealthChecker{"database": fakeHealth{}}, http.StatusOK},
		{"degraded", map[string]HealthChecker{"database": fakeHealth{}, "redis": fakeHealth{err: errors.New("down")}}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := newTestRouter(t, &fakeThreads{}, tt.health)

			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.expected, rec.Code)
		})
	}
}
