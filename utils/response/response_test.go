package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func perform(t *testing.T, handler fiber.Handler) (*http.Response, Response) {
	t.Helper()
	app := fiber.New()
	app.Get("/", handler)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	var body Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func TestErrorHelperCodes(t *testing.T) {
	cases := []struct {
		name    string
		handler fiber.Handler
		status  int
		code    string
	}{
		{"bad request", func(c *fiber.Ctx) error { return BadRequest(c, "nope") }, http.StatusBadRequest, "BAD_REQUEST"},
		{"unauthorized", func(c *fiber.Ctx) error { return Unauthorized(c, "who") }, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", func(c *fiber.Ctx) error { return Forbidden(c, "no") }, http.StatusForbidden, "FORBIDDEN"},
		{"not found", func(c *fiber.Ctx) error { return NotFound(c, "gone") }, http.StatusNotFound, "NOT_FOUND"},
		{"conflict", func(c *fiber.Ctx) error { return Conflict(c, "taken") }, http.StatusConflict, "CONFLICT"},
		{"too many requests", func(c *fiber.Ctx) error { return TooManyRequests(c, "locked") }, http.StatusTooManyRequests, "TOO_MANY_REQUESTS"},
		{"internal", func(c *fiber.Ctx) error { return InternalServerError(c, "boom") }, http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"unavailable", func(c *fiber.Ctx) error { return ServiceUnavailable(c, "later") }, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := perform(t, tc.handler)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tc.code, body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestValidationErrorCarriesDetails(t *testing.T) {
	resp, body := perform(t, func(c *fiber.Ctx) error {
		return ValidationError(c, errors.New("name is required"))
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.NotNil(t, body.Error)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Equal(t, "name is required", body.Error.Details)
}

func TestCreatedEnvelope(t *testing.T) {
	resp, body := perform(t, func(c *fiber.Ctx) error {
		return Created(c, fiber.Map{"id": 1})
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, body.Success)
	assert.Nil(t, body.Error)
}

func TestCalculatePagination(t *testing.T) {
	meta := CalculatePagination(0, 0, 25)
	assert.Equal(t, 1, meta.CurrentPage)
	assert.Equal(t, 10, meta.PerPage)
	assert.Equal(t, 3, meta.TotalPages)

	meta = CalculatePagination(2, 500, 25)
	assert.Equal(t, 100, meta.PerPage)
	assert.Equal(t, 1, meta.TotalPages)
}
