package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/messaging-service/internal/observability"
	apperrors "github.com/spec-kit/messaging-service/pkg/util/errorutil"
)

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func TestMiddlewares_ErrorRendering(t *testing.T) {
	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
	RegisterMiddlewares(app, zap.NewNop(), metrics, MiddlewareConfig{Timeout: time.Second, CORSOrigins: "*"})

	app.Get("/conflict", func(c *fiber.Ctx) error { return apperrors.NewConflict("Email already registered") })
	app.Get("/plain", func(c *fiber.Ctx) error { return errors.New("db password=hunter2") })
	app.Get("/panic", func(c *fiber.Ctx) error { panic("boom") })
	app.Get("/deadline", func(c *fiber.Ctx) error {
		_, ok := c.UserContext().Deadline()
		return c.JSON(fiber.Map{"deadline": ok})
	})

	tests := []struct {
		path        string
		wantStatus  int
		wantMessage string
	}{
		{path: "/conflict", wantStatus: http.StatusConflict, wantMessage: "Email already registered"},
		{path: "/plain", wantStatus: http.StatusInternalServerError, wantMessage: "internal server error"},
		{path: "/panic", wantStatus: http.StatusInternalServerError, wantMessage: "internal server error"},
		{path: "/nowhere", wantStatus: http.StatusNotFound, wantMessage: "Cannot GET /nowhere"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil), -1)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			var body errorBody
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantMessage, body.Message)
			assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
		})
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/deadline", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var payload struct {
		Deadline bool `json:"deadline"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.True(t, payload.Deadline)

	assert.Equal(t, int64(1), metrics.Snapshot().Errors["/conflict|GET|CONFLICT"])
}
