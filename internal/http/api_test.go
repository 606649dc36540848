package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"user-registry/internal/domain"
	"user-registry/internal/repository"
	"user-registry/internal/repository/sqlite"
	"user-registry/internal/service"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testApp struct {
	router *gin.Engine
	repo   repository.UserRepository
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := sqlite.NewUserRepository(db)
	require.NoError(t, repo.Init(context.Background()))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	router := gin.New()
	NewHandler(service.NewUserService(repo), db, logger).RegisterRoutes(router)
	return &testApp{router: router, repo: repo}
}

func (a *testApp) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Message
}

func TestCreateUser(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/users", `{"username":"barbie","email":"barbie@barbieland.com"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "barbie@barbieland.com was added!", decodeMessage(t, rec))
}

func TestCreateUser_InvalidPayload(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "no body", body: ""},
		{name: "empty object", body: `{}`},
		{name: "missing username", body: `{"email":"ken@mojodojocasahouse.com"}`},
		{name: "missing email", body: `{"username":"ken"}`},
		{name: "empty username", body: `{"username":"","email":"ken@mojodojocasahouse.com"}`},
		{name: "array", body: `[]`},
		{name: "string", body: `"ken"`},
		{name: "null", body: `null`},
		{name: "malformed", body: `{"username":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t)

			rec := app.do(t, http.MethodPost, "/users", tc.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, msgValidationFailed, decodeMessage(t, rec))

			users, err := app.repo.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, users)
		})
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	app := newTestApp(t)
	body := `{"username":"skipper","email":"skipper@barbieland.com"}`

	first := app.do(t, http.MethodPost, "/users", body)
	require.Equal(t, http.StatusCreated, first.Code)

	second := app.do(t, http.MethodPost, "/users", body)
	assert.Equal(t, http.StatusBadRequest, second.Code)
	assert.Equal(t, msgEmailExists, decodeMessage(t, second))

	users, err := app.repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestCreateUser_ConcurrentDuplicateEmail(t *testing.T) {
	app := newTestApp(t)
	body := `{"username":"racer","email":"race@barbieland.com"}`

	var (
		mu    sync.Mutex
		codes = map[int]int{}
		msgs  []string
	)
	var g errgroup.Group
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			rec := app.do(t, http.MethodPost, "/users", body)
			var resp messageResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			codes[rec.Code]++
			msgs = append(msgs, resp.Message)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, codes[http.StatusCreated])
	assert.Equal(t, 1, codes[http.StatusBadRequest])
	assert.Contains(t, msgs, msgEmailExists)
}

func TestGetUser(t *testing.T) {
	app := newTestApp(t)
	user, err := app.repo.Create(context.Background(), "midge", "midge@barbieland.com")
	require.NoError(t, err)

	path := fmt.Sprintf("/users/%d", user.ID)
	rec := app.do(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, UserResponse{ID: user.ID, Username: "midge", Email: "midge@barbieland.com"}, resp)

	// repeated reads without writes in between are identical
	again := app.do(t, http.MethodGet, path, "")
	assert.Equal(t, rec.Body.String(), again.Body.String())
}

func TestGetUser_NotFound(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/users/999", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User 999 does not exist", decodeMessage(t, rec))
}

func TestGetUser_NonNumericID(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/users/ken", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User ken does not exist", decodeMessage(t, rec))
}

func TestCreateThenGet(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/users", `{"username":"allan","email":"allan@barbieland.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	list := app.do(t, http.MethodGet, "/users", "")
	var users []UserResponse
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &users))
	require.Len(t, users, 1)

	got := app.do(t, http.MethodGet, fmt.Sprintf("/users/%d", users[0].ID), "")
	require.Equal(t, http.StatusOK, got.Code)
	var resp UserResponse
	require.NoError(t, json.Unmarshal(got.Body.Bytes(), &resp))
	assert.Equal(t, "allan", resp.Username)
	assert.Equal(t, "allan@barbieland.com", resp.Email)
}

func TestListUsers(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	empty := app.do(t, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, empty.Code)
	assert.JSONEq(t, `[]`, empty.Body.String())

	_, err := app.repo.Create(ctx, "allan", "allan@barbieland.com")
	require.NoError(t, err)
	_, err = app.repo.Create(ctx, "barbie", "barbie@barbieland.com")
	require.NoError(t, err)

	rec := app.do(t, http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var users []UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 2)
	assert.Equal(t, "allan", users[0].Username)
	assert.Equal(t, "allan@barbieland.com", users[0].Email)
	assert.Equal(t, "barbie", users[1].Username)
	assert.Equal(t, "barbie@barbieland.com", users[1].Email)
}

type failingUserService struct{ err error }

func (s failingUserService) CreateUser(context.Context, string, string) (*domain.User, error) {
	return nil, s.err
}
func (s failingUserService) GetUser(context.Context, int64) (*domain.User, error) {
	return nil, s.err
}
func (s failingUserService) ListUsers(context.Context) ([]domain.User, error) { return nil, s.err }

func TestStorageFailureIsOpaque(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	router := gin.New()
	NewHandler(failingUserService{err: errors.New("database is locked")}, nil, logger).RegisterRoutes(router)
	app := &testApp{router: router}

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodPost, "/users", `{"username":"ken","email":"ken@ilovehorses.com"}`},
		{http.MethodGet, "/users/1", ""},
		{http.MethodGet, "/users", ""},
	} {
		rec := app.do(t, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, tc.path)
		assert.Equal(t, msgInternalError, decodeMessage(t, rec))
		assert.NotContains(t, rec.Body.String(), "locked")
	}
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	router := gin.New()
	NewHandler(failingUserService{}, stubPinger{err: errors.New("closed")}, logger).RegisterRoutes(router)
	down := (&testApp{router: router}).do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, down.Code)
}

func TestRequestIDHeader(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/users", "")
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))

	const clientID = "3f1c2b9e-8a4d-4c6e-9b7a-1d2e3f4a5b6c"
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set(headerRequestID, clientID)
	echoed := httptest.NewRecorder()
	app.router.ServeHTTP(echoed, req)
	assert.Equal(t, clientID, echoed.Header().Get(headerRequestID))

	req = httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set(headerRequestID, strings.Repeat("x", 4096))
	replaced := httptest.NewRecorder()
	app.router.ServeHTTP(replaced, req)
	got := replaced.Header().Get(headerRequestID)
	assert.NotEqual(t, strings.Repeat("x", 4096), got)
	_, err := uuid.Parse(got)
	assert.NoError(t, err)
}

func TestUnknownRoutesAnswerJSON(t *testing.T) {
	app := newTestApp(t)

	cases := []struct {
		method, path string
		code         int
		message      string
	}{
		{http.MethodGet, "/users/1/extra", http.StatusNotFound, msgNotFound},
		{http.MethodGet, "/nowhere", http.StatusNotFound, msgNotFound},
		{http.MethodDelete, "/users/1", http.StatusMethodNotAllowed, msgMethodNotAllowed},
		{http.MethodPut, "/users", http.StatusMethodNotAllowed, msgMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := app.do(t, tc.method, tc.path, "")

			assert.Equal(t, tc.code, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
			assert.Equal(t, tc.message, decodeMessage(t, rec))
		})
	}
}

func TestPanicAnswersJSON(t *testing.T) {
	app := newTestApp(t)
	app.router.GET("/explode", func(*gin.Context) { panic("boom") })

	rec := app.do(t, http.MethodGet, "/explode", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, msgInternalError, decodeMessage(t, rec))
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)
	app.do(t, http.MethodPost, "/users", `{"username":"barbie","email":"barbie@barbieland.com"}`)

	rec := app.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "user_registry_users_created_total")
	assert.Contains(t, rec.Body.String(), "user_registry_http_request_duration_seconds")
}
