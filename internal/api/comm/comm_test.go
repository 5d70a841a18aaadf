package comm

import (
	"io"
	"net/http/httptest"
	"testing"

	"media_pipeline/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectCheck(t *testing.T) {
	app := fiber.New()
	app.Get("/", ConnectCheck("gateway"))

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "gateway start!", string(body))
}

func TestDebugLogFlag(t *testing.T) {
	logger.SetNewNop()
	app := fiber.New()
	app.Post("/debug", DebugLogFlag)

	resp, err := app.Test(httptest.NewRequest("POST", "/debug?status=true", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("POST", "/debug?status=maybe", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
