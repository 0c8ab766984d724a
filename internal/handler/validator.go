package handler

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-marketplace/internal/apperr"
)

// requestTimeout bounds store calls made by one request.
const requestTimeout = 5 * time.Second

// RequestValidator adapts go-playground/validator to echo.Validator.  Field
// names in errors are the JSON names.
type RequestValidator struct {
	v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{v: v}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.v.Struct(i)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	return apperr.Validation("invalid request", fields)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "numeric":
		return "must contain only digits"
	case "len":
		return "must be " + fe.Param() + " characters"
	}
	return "is invalid"
}

// trimmer is implemented by request DTOs whose text fields are trimmed
// before the validation tags run.
type trimmer interface {
	trim()
}

// bind decodes the request into req, trims it and validates it.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperr.Validation("invalid body", nil)
	}
	if t, ok := req.(trimmer); ok {
		t.trim()
	}
	return c.Validate(req)
}

// reqCtx derives the store context for a request.
func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}
