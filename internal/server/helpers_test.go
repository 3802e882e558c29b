package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"circles/internal/config"
	"circles/internal/database"
	"circles/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPassword = "Secure1!pass"

type testEnv struct {
	t   *testing.T
	srv *Server
	app *fiber.App
	db  *gorm.DB
	mr  *miniredis.Miniredis
}

func testConfig() *config.Config {
	return &config.Config{
		Port:                  "0",
		Env:                   "test",
		AllowedOrigins:        "http://localhost:5173",
		SessionTTLMinutes:     60,
		SessionCookieName:     "session_token",
		SessionSweepBatchSize: 100,
		LoginRateLimit:        10,
		RegisterRateLimit:     5,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	srv, err := NewServerWithDeps(testConfig(), db, rdb)
	require.NoError(t, err)

	return &testEnv{t: t, srv: srv, app: srv.App(), db: db, mr: mr}
}

// do sends a JSON request, authenticating with token as the session cookie
// when it is non-empty.
func (e *testEnv) do(method, path string, body any, token string) *http.Response {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(e.t, err)
			reader = bytes.NewReader(raw)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "session_token", Value: token})
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) register(username string) UserDTO {
	e.t.Helper()
	resp := e.do(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": testPassword,
	}, "")
	require.Equal(e.t, http.StatusCreated, resp.StatusCode)

	var out SessionResponse
	decode(e.t, resp, &out)
	require.NotNil(e.t, out.User)
	return *out.User
}

func (e *testEnv) login(username string) string {
	e.t.Helper()
	resp := e.do(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": username,
		"password": testPassword,
	}, "")
	require.Equal(e.t, http.StatusOK, resp.StatusCode)

	var out SessionResponse
	decode(e.t, resp, &out)
	require.NotEmpty(e.t, out.SessionToken)
	return out.SessionToken
}

// signUp registers and logs in username, returning the user and session token.
func (e *testEnv) signUp(username string) (UserDTO, string) {
	e.t.Helper()
	u := e.register(username)
	return u, e.login(username)
}

func (e *testEnv) createCircle(token, name string) CircleDTO {
	e.t.Helper()
	resp := e.do(http.MethodPost, "/api/v1/circles", map[string]string{"name": name}, token)
	require.Equal(e.t, http.StatusCreated, resp.StatusCode)
	var out CircleDTO
	decode(e.t, resp, &out)
	return out
}

func (e *testEnv) addMember(token string, circleID, userID uint) *http.Response {
	e.t.Helper()
	return e.do(http.MethodPost, fmt.Sprintf("/api/v1/circles/%d/members", circleID),
		map[string]uint{"user_id": userID}, token)
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func requireError(t *testing.T, resp *http.Response, status int, code, message string) {
	t.Helper()
	require.Equal(t, status, resp.StatusCode)
	var body models.ErrorResponse
	decode(t, resp, &body)
	assert.Equal(t, code, body.Code)
	if message != "" {
		assert.Equal(t, message, body.Error)
	}
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == "session_token" {
			return c
		}
	}
	return nil
}
