package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"community/backend/internal/config"
	authdomain "community/backend/internal/domain/auth"
	"community/backend/internal/infrastructure/memory"
	"community/backend/internal/infrastructure/password"
	"community/backend/internal/infrastructure/token"
	authusecase "community/backend/internal/usecase/auth"
	postusecase "community/backend/internal/usecase/post"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	handler http.Handler
	now     time.Time
	tokens  *token.JWTManager
	logs    *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{now: time.Now(), logs: &bytes.Buffer{}}
	store := memory.NewStore()
	env.tokens = token.NewJWTManager("test-secret", token.DefaultExpiry, "community",
		token.WithClock(func() time.Time { return env.now }))

	authService := authusecase.NewService(store.Users(), password.NewBcryptHasher(bcrypt.MinCost), env.tokens)
	postService := postusecase.NewService(store.Posts())

	cfg := config.Config{HTTPPort: "0", AllowedOrigins: []string{"*"}}
	logger := slog.New(slog.NewJSONHandler(env.logs, nil))
	env.handler = NewServer(cfg, logger, authService, postService).Handler()
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (e *testEnv) registerAndLogin(t *testing.T) (string, string) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/register", `{"email":"a@x.com","password":"secret123","name":"A"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	userID := decode[map[string]any](t, rec)["userId"].(string)

	rec = e.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"secret123"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[map[string]any](t, rec)["token"].(string), userID
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register", `{"email":"a@x.com","password":"secret123","name":"A"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "User created successfully", body["message"])
	assert.NotEmpty(t, body["userId"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "a@x.com", user["email"])
	assert.Equal(t, "A", user["name"])
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "$2a$")

	rec = env.do(t, http.MethodPost, "/api/auth/register", `{"email":"a@x.com","password":"other","name":"B"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"User already exists"}`, rec.Body.String())
}

func TestRegister_BadInput(t *testing.T) {
	env := newTestEnv(t)

	for name, body := range map[string]string{
		"not json":      `{"email":`,
		"empty body":    ``,
		"missing email": `{"password":"secret123"}`,
		"missing pass":  `{"email":"a@x.com"}`,
	} {
		rec := env.do(t, http.MethodPost, "/api/auth/register", body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}

	rec := env.do(t, http.MethodGet, "/api/auth/register", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/auth/register", `{"email":"a@x.com","password":"secret123","name":"A"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"secret123"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[struct {
		Token string                     `json:"token"`
		User  map[string]json.RawMessage `json:"user"`
	}](t, rec)
	assert.NotEmpty(t, body.Token)
	assert.Contains(t, body.User, "id")
	assert.Contains(t, body.User, "email")
	assert.Contains(t, body.User, "name")
	assert.NotContains(t, body.User, "password")
	assert.NotContains(t, body.User, "passwordHash")

	identity, err := env.tokens.Validate(body.Token)
	require.NoError(t, err)
	assert.Equal(t, strings.Trim(string(body.User["id"]), `"`), identity.UserID)
}

func TestLogin_InvalidCredentialsLookIdentical(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/auth/register", `{"email":"a@x.com","password":"secret123","name":"A"}`, "")

	wrongPass := env.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"nope"}`, "")
	noUser := env.do(t, http.MethodPost, "/api/auth/login", `{"email":"zz@x.com","password":"secret123"}`, "")

	for _, rec := range []*httptest.ResponseRecorder{wrongPass, noUser} {
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"Invalid credentials"}`, rec.Body.String())
		assert.NotContains(t, rec.Body.String(), "token")
	}
}

func TestProtected_RequiresValidToken(t *testing.T) {
	env := newTestEnv(t)
	tok, userID := env.registerAndLogin(t)

	rec := env.do(t, http.MethodPost, "/api/posts", `{"title":"t","content":"c"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/posts", `{"title":"t","content":"c"}`, tok+"x")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/auth/me", "", tok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	me := decode[map[string]map[string]any](t, rec)
	assert.Equal(t, userID, me["user"]["id"])

	env.now = env.now.Add(token.DefaultExpiry + time.Second)
	rec = env.do(t, http.MethodGet, "/api/auth/me", "", tok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/posts", `{"title":"t","content":"c"}`, tok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/posts", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String(), "rejected requests must not create posts")
}

func TestProtected_BearerSchemeRequired(t *testing.T) {
	env := newTestEnv(t)
	tok, _ := env.registerAndLogin(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Token "+tok)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "bearer "+tok)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtected_TokenForDeletedUser(t *testing.T) {
	env := newTestEnv(t)

	ghost, err := env.tokens.Generate(authdomain.Identity{UserID: "ghost"})
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/auth/me", "", ghost)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/posts", `{"title":"t","content":"c"}`, ghost)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPosts_CreateAndList(t *testing.T) {
	env := newTestEnv(t)
	tok, userID := env.registerAndLogin(t)

	rec := env.do(t, http.MethodPost, "/api/posts", `{"title":"First","content":"hello"}`, tok)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	assert.Equal(t, "First", created["title"])
	assert.Equal(t, userID, created["authorId"])

	env.now = env.now.Add(time.Second)
	rec = env.do(t, http.MethodPost, "/api/posts", `{"title":"Second","content":"again"}`, tok)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/posts", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	posts := decode[[]struct {
		Title  string `json:"title"`
		Author struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"author"`
	}](t, rec)
	require.Len(t, posts, 2)
	assert.Equal(t, "A", posts[0].Author.Name)
	assert.Equal(t, "a@x.com", posts[0].Author.Email)
	assert.Equal(t, userID, posts[1].Author.ID)
}

func TestPosts_Validation(t *testing.T) {
	env := newTestEnv(t)
	tok, _ := env.registerAndLogin(t)

	rec := env.do(t, http.MethodPost, "/api/posts", `{"title":"","content":"x"}`, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/posts", `nope`, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/posts", "", tok)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))
}

func TestRequestBodyLimit(t *testing.T) {
	env := newTestEnv(t)

	big := `{"email":"a@x.com","password":"` + strings.Repeat("p", maxBodyBytes) + `"}`
	rec := env.do(t, http.MethodPost, "/api/auth/register", big, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/posts", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestRequestIDPropagated(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
	assert.Contains(t, env.logs.String(), `"request_id":"req-42"`)
}

func TestRecoveryMiddleware(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	h := withRecovery(logger, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Something went wrong"}`, rec.Body.String())
	assert.Contains(t, logs.String(), "kaboom")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.registerAndLogin(t)
	env.do(t, http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"bad"}`, "")

	rec := env.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `community_auth_login_attempts_total{outcome="success"} 1`)
	assert.Contains(t, body, `community_auth_login_attempts_total{outcome="invalid_credentials"} 1`)
	assert.Contains(t, body, `community_http_requests_total{method="POST",route="/api/auth/register",status="201"} 1`)
}

func TestMetrics_UnknownMethodsShareOneLabel(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, "PROPFIND", "/api/posts", "", "")
	env.do(t, "WHATEVER1", "/api/posts", "", "")

	rec := env.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "PROPFIND")
	assert.NotContains(t, body, "WHATEVER1")
	assert.Contains(t, body, `community_http_requests_total{method="other",route="/api/posts",status="405"} 2`)
}

func TestMethodLabel(t *testing.T) {
	assert.Equal(t, http.MethodGet, methodLabel(http.MethodGet))
	assert.Equal(t, http.MethodPost, methodLabel(http.MethodPost))
	assert.Equal(t, http.MethodOptions, methodLabel(http.MethodOptions))
	assert.Equal(t, "other", methodLabel(http.MethodDelete))
	assert.Equal(t, "other", methodLabel("get"))
}

func TestInternalErrorsAreGeneric(t *testing.T) {
	var logs bytes.Buffer
	s := &Server{logger: slog.New(slog.NewJSONHandler(&logs, nil))}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(
		context.WithValue(context.Background(), ctxKeyRequestID{}, "rid-1"))
	s.internalError(rec, req, "op", io.ErrUnexpectedEOF)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Something went wrong"}`, rec.Body.String())
	assert.Contains(t, logs.String(), "unexpected EOF")
	assert.Contains(t, logs.String(), "rid-1")
}

func TestExtractBearerToken(t *testing.T) {
	tests := map[string]string{
		"":              "",
		"Bearer":        "",
		"Bearer ":       "",
		"Bearer abc":    "abc",
		"BEARER  abc  ": "abc",
		"Basic abc":     "",
	}
	for in, want := range tests {
		assert.Equal(t, want, extractBearerToken(in), in)
	}
}
