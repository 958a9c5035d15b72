package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/messaging-service/internal/api/http/handlers"
	"github.com/spec-kit/messaging-service/internal/auth"
	"github.com/spec-kit/messaging-service/internal/avatar"
	"github.com/spec-kit/messaging-service/internal/config"
	"github.com/spec-kit/messaging-service/internal/domain"
	"github.com/spec-kit/messaging-service/internal/events"
	"github.com/spec-kit/messaging-service/internal/netguard"
	"github.com/spec-kit/messaging-service/internal/observability"
	"github.com/spec-kit/messaging-service/internal/repository"
	"github.com/spec-kit/messaging-service/internal/service"
)

const (
	routerSecret = "router-secret"
	testHash     = "973dfe463ec85785f5f95af5ba3906eedb2d931c24e69824a89ea65dba4e813b"
	placeholder  = "/static/default-avatar.png"
)

type staticLookup map[string][]string

func (s staticLookup) LookupNetIP(_ context.Context, _, host string) ([]netip.Addr, error) {
	raw, ok := s[host]
	if !ok {
		return nil, errors.New("no such host")
	}
	addrs := make([]netip.Addr, 0, len(raw))
	for _, r := range raw {
		addrs = append(addrs, netip.MustParseAddr(r))
	}
	return addrs, nil
}

type testServer struct {
	app     *fiber.App
	metrics *observability.Metrics
	issuer  *auth.TokenIssuer
}

func newTestServer(t *testing.T, avatarAddrs []string, checks []handlers.DependencyCheck) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	lookup := staticLookup{}
	if avatarAddrs != nil {
		lookup["www.gravatar.com"] = avatarAddrs
	}
	resolver := netguard.NewResolver(lookup, netguard.ResolverOptions{Timeout: time.Second, Recorder: metrics})
	builder := avatar.NewBuilder(config.AvatarConfig{
		Host:           "www.gravatar.com",
		PathTemplate:   "/avatar/%s",
		PlaceholderURL: placeholder,
	}, resolver, logger)

	issuer := auth.NewTokenIssuer(routerSecret, time.Hour, nil)
	authService := service.NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, repository.NewMemoryUserRepository(), issuer, logger)
	messageService := service.NewMessageService(repository.NewMemoryMessageRepository(), events.NewInMemoryDispatcher(), logger)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	RegisterMiddlewares(app, logger, metrics, MiddlewareConfig{Timeout: 5 * time.Second, CORSOrigins: "*"})
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("messaging-service", "test", checks, nil),
		Users:          handlers.NewUsersHandler(authService, builder),
		Messages:       handlers.NewMessagesHandler(messageService),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: auth.NewAuthMiddleware(auth.NewTokenVerifier(routerSecret, nil), logger, metrics),
	})
	return &testServer{app: app, metrics: metrics, issuer: issuer}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	payload := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &payload), string(raw))
	} else if len(raw) > 0 {
		payload["text"] = string(raw)
	}
	return resp.StatusCode, payload
}

func (s *testServer) token(t *testing.T, identity domain.Identity) string {
	t.Helper()
	token, _, err := s.issuer.Issue(identity)
	require.NoError(t, err)
	return token
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/userLogin", "", fiber.Map{"emailValue": email, "pswd": password})
	require.Equal(t, http.StatusOK, status, body)
	return body["token"].(string)
}

func TestRouter_Root(t *testing.T) {
	srv := newTestServer(t, []string{"8.8.8.8"}, nil)
	status, body := srv.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Hello, world!", body["text"])
}

func TestRouter_RegisterLoginProfile(t *testing.T) {
	srv := newTestServer(t, []string{"8.8.8.8", "2001:4860:4860::8888"}, nil)

	status, body := srv.do(t, http.MethodPost, "/userRegistracija", "", fiber.Map{"emailValue": "Test@Example.com", "pswd": "secret"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Registration successful", body["message"])
	assert.NotContains(t, body, "temporaryPassword")

	status, body = srv.do(t, http.MethodPost, "/userRegistracija", "", fiber.Map{"emailValue": "test@example.com", "pswd": "other"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Email already registered", body["message"])

	token := srv.login(t, "test@example.com", "secret")

	status, body = srv.do(t, http.MethodGet, "/verifyToken", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Token valid", body["message"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "test@example.com", user["email"])
	assert.Equal(t, "user", user["role"])
	assert.NotEmpty(t, user["id"])

	status, body = srv.do(t, http.MethodGet, "/userInfo", token, nil)
	require.Equal(t, http.StatusOK, status)
	profile := body["user"].(map[string]any)
	assert.Equal(t, "https://www.gravatar.com/avatar/"+testHash, profile["gravatar"])
	assert.Equal(t, "test@example.com", profile["email"])
}

func TestRouter_RegisterWithoutPassword(t *testing.T) {
	srv := newTestServer(t, []string{"8.8.8.8"}, nil)

	status, body := srv.do(t, http.MethodPost, "/userRegistracija", "", fiber.Map{"emailValue": "temp@example.com"})
	require.Equal(t, http.StatusOK, status, body)
	temp, ok := body["temporaryPassword"].(string)
	require.True(t, ok)
	srv.login(t, "temp@example.com", temp)
}

func TestRouter_LoginFailures(t *testing.T) {
	srv := newTestServer(t, []string{"8.8.8.8"}, nil)
	status, _ := srv.do(t, http.MethodPost, "/userRegistracija", "", fiber.Map{"emailValue": "known@example.com", "pswd": "secret"})
	require.Equal(t, http.StatusOK, status)

	tests := []struct {
		name        string
		body        fiber.Map
		wantStatus  int
		wantMessage string
	}{
		{name: "missing password", body: fiber.Map{"emailValue": "known@example.com"}, wantStatus: http.StatusBadRequest, wantMessage: "Email and password are required"},
		{name: "missing email", body: fiber.Map{"pswd": "secret"}, wantStatus: http.StatusBadRequest, wantMessage: "Email and password are required"},
		{name: "wrong password", body: fiber.Map{"emailValue": "known@example.com", "pswd": "nope"}, wantStatus: http.StatusUnauthorized, wantMessage: "Invalid credentials"},
		{name: "unknown email", body: fiber.Map{"emailValue": "ghost@example.com", "pswd": "secret"}, wantStatus: http.StatusUnauthorized, wantMessage: "Invalid credentials"},
		{name: "password over bcrypt limit", body: fiber.Map{"emailValue": "known@example.com", "pswd": "secret" + strings.Repeat("a", 80)}, wantStatus: http.StatusUnauthorized, wantMessage: "Invalid credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := srv.do(t, http.MethodPost, "/userLogin", "", tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMessage, body["message"])
			assert.Equal(t, false, body["success"])
		})
	}

	status, body := srv.do(t, http.MethodPost, "/userRegistracija", "", fiber.Map{"emailValue": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Credentials are not valid", body["message"])
}

func TestRouter_RegisterRejectsLongPassword(t *testing.T) {
	srv := newTestServer(t, []string{"8.8.8.8"}, nil)

	status, body := srv.do(t, http.MethodPost, "/userRegistracija", "", fiber.Map{"emailValue": "long@example.com", "pswd": strings.Repeat("a", 80)})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Credentials are not valid", body["message"])
	assert.Equal(t, false, body["success"])
}

func TestRouter_UserInfoFallsBackOnUnsafeHost(t *testing.T) {
	tests := []struct {
		name  string
		addrs []string
	}{
		{name: "loopback", addrs: []string{"127.0.0.1"}},
		{name: "mixed public and private", addrs: []string{"8.8.8.8", "10.0.0.1"}},
		{name: "metadata endpoint", addrs: []string{"169.254.169.254"}},
		{name: "unresolvable", addrs: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.addrs, nil)
			token := srv.token(t, domain.Identity{ID: "u-1", Email: "test@example.com", Role: domain.RoleUser})

			status, body := srv.do(t, http.MethodGet, "/userInfo", token, nil)
			require.Equal(t, http.StatusOK, status)
			assert.Equal(t, placeholder, body["user"].(map[string]any)["gravatar"])
		})
	}
}

func TestRouter_AuthRejections(t *testing.T) {
	srv := newTestServer(t, []string{"8.8.8.8"}, nil)

	status, body := srv.do(t, http.MethodGet, "/userInfo", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "No token provided", body["message"])

	status, body = srv.do(t, http.MethodGet, "/userInfo", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid or expired token", body["message"])

	userToken := srv.token(t, domain.Identity{ID: "u-1", Role: domain.RoleUser})
	status, body = srv.do(t, http.MethodGet, "/metrics", userToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Insufficient permissions", body["message"])

	failures := srv.metrics.Snapshot().AuthFailures
	assert.Equal(t, int64(1), failures[string(auth.KindNoToken)])
	assert.Equal(t, int64(1), failures[string(auth.KindMalformed)])
	assert.Equal(t, int64(1), failures[string(auth.KindForbidden)])
}

func TestRouter_Messages(t *testing.T) {
	srv := newTestServer(t, []string{"8.8.8.8"}, nil)
	userToken := srv.token(t, domain.Identity{ID: "u-1", Email: "poster@example.com", Role: domain.RoleUser})
	adminToken := srv.token(t, domain.Identity{ID: "a-1", Email: "admin@example.com", Role: domain.RoleAdmin})

	status, body := srv.do(t, http.MethodPost, "/postMessage", userToken, fiber.Map{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Message content is required", body["message"])

	status, body = srv.do(t, http.MethodPost, "/postMessage", userToken, fiber.Map{
		"content":     "hello",
		"authorName":  "Poster",
		"authorId":    "someone-else",
		"authorEmail": "spoof@example.com",
	})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "Message created", body["message"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "u-1", data["authorId"])
	assert.Equal(t, "poster@example.com", data["authorEmail"])
	id := data["id"].(string)

	status, body = srv.do(t, http.MethodGet, "/messages?limit=10", userToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, _ = srv.do(t, http.MethodDelete, "/messages/"+id, userToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = srv.do(t, http.MethodDelete, "/messages/"+id, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = srv.do(t, http.MethodDelete, "/messages/"+id, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Message not found", body["message"])
}

func TestRouter_MetricsForAdmin(t *testing.T) {
	srv := newTestServer(t, []string{"8.8.8.8"}, nil)
	userToken := srv.token(t, domain.Identity{ID: "u-1", Email: "test@example.com", Role: domain.RoleUser})
	adminToken := srv.token(t, domain.Identity{ID: "a-1", Role: domain.RoleAdmin})

	status, _ := srv.do(t, http.MethodGet, "/userInfo", userToken, nil)
	require.Equal(t, http.StatusOK, status)

	status, body := srv.do(t, http.MethodGet, "/metrics", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	outcomes := body["resolution_outcomes"].(map[string]any)
	assert.EqualValues(t, 1, outcomes["safe"])
}

func TestRouter_Readiness(t *testing.T) {
	healthy := handlers.DependencyCheck{Name: "postgres", Pinger: handlers.PingFunc(func(context.Context) error { return nil })}
	down := handlers.DependencyCheck{Name: "redis", Pinger: handlers.PingFunc(func(context.Context) error { return errors.New("connection refused") })}

	srv := newTestServer(t, []string{"8.8.8.8"}, []handlers.DependencyCheck{healthy})
	status, body := srv.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	srv = newTestServer(t, []string{"8.8.8.8"}, []handlers.DependencyCheck{healthy, down})
	status, body = srv.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "ok", deps["postgres"])
	assert.Equal(t, "connection refused", deps["redis"])

	status, body = srv.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])
}
