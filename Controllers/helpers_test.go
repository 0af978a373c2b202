package Controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"FalconFreight/Models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Models.Invalid("liters", "must be positive"), http.StatusBadRequest},
		{&Models.NotFoundError{Entity: "trip", ID: 4}, http.StatusNotFound},
		{fmt.Errorf("take: %w", &Models.ConflictError{Entity: "trip", ID: 4, Reason: "not pending"}), http.StatusConflict},
		{&Models.InsufficientStockError{Requested: decimal.NewFromInt(40), Available: decimal.NewFromInt(10)}, http.StatusUnprocessableEntity},
		{&Models.AuthorizationError{Role: Models.RoleDriver, Operation: "purge trips"}, http.StatusForbidden},
		{fiber.ErrMethodNotAllowed, http.StatusMethodNotAllowed},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

type bodyRequest struct {
	Name   string `json:"name" validate:"required"`
	Source string `json:"source" validate:"omitempty,oneof=depot external"`
}

func TestParseBodyReportsFirstFailingField(t *testing.T) {
	app := fiber.New()
	app.Post("/", func(c *fiber.Ctx) error {
		var req bodyRequest
		if err := parseBody(c, &req); err != nil {
			var verr *Models.ValidationError
			if errors.As(err, &verr) {
				return c.Status(http.StatusBadRequest).SendString(verr.Field)
			}
			return err
		}
		return c.SendStatus(http.StatusNoContent)
	})

	cases := map[string]string{
		`{"source":"pipeline"}`:            "name",
		`{"name":"x","source":"pipeline"}`: "source",
		`{"name":"x"}`:                     "",
	}
	for body, field := range cases {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if field == "" {
			assert.Equal(t, http.StatusNoContent, resp.StatusCode, body)
			continue
		}
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Equal(t, field, string(raw), body)
	}
}
