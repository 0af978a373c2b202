package Controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"FalconFreight/Access"
	"FalconFreight/Models"
	"FalconFreight/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// validate reports fields by their JSON names.
var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// StatusFor maps error kinds onto HTTP status codes.
func StatusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case Models.IsValidation(err):
		return http.StatusBadRequest
	case Models.IsNotFound(err):
		return http.StatusNotFound
	case Models.IsConflict(err):
		return http.StatusConflict
	case Models.IsInsufficientStock(err):
		return http.StatusUnprocessableEntity
	case Models.IsForbidden(err):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func respondError(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(status).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}
	return c.Status(status).JSON(fiber.Map{
		"message": http.StatusText(status),
		"error":   err.Error(),
	})
}

// ErrorHandler is the app-wide fiber error handler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return respondError(c, err)
}

// parseBody decodes the JSON body into out and runs its validate tags.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return Models.Invalid("body", err.Error())
	}
	if err := validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field := verrs[0]
			return Models.Invalid(field.Field(), "failed "+field.Tag()+" check")
		}
		return Models.Invalid("body", err.Error())
	}
	return nil
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, Models.Invalid(name, "must be a positive integer")
	}
	return uint(id), nil
}

func queryUint(c *fiber.Ctx, name string) (*uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, Models.Invalid(name, "must be a positive integer")
	}
	id := uint(v)
	return &id, nil
}

// identity is the authenticated caller; an unauthenticated request gets the
// zero identity, which every capability check rejects.
func identity(c *fiber.Ctx) Access.Identity {
	who, _ := middleware.CurrentIdentity(c)
	return who
}
