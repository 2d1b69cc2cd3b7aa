package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCode_Wrapped(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("create post: %w", NewConflictError("Slug already in use", nil))
	assert.Equal(t, CodeConflict, ErrorCode(err))
	assert.Equal(t, "", ErrorCode(errors.New("plain")))
}

func TestRespondWithError_HidesStorageDetails(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Get("/storage", func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusServiceUnavailable, NewStorageError(errors.New("dial tcp 10.0.0.1:5432")))
	})
	app.Get("/field", func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusBadRequest, NewFieldValidationError("thumbnail", "thumbnail required"))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/storage", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	var got ErrorResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, CodeStorage, got.Code)
	assert.Empty(t, got.Details)

	resp, err = app.Test(httptest.NewRequest("GET", "/field", nil))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "thumbnail", got.Field)
	assert.Equal(t, CodeValidation, got.Code)
}
