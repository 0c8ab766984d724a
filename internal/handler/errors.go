package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-marketplace/internal/apperr"
	"github.com/iliyamo/trip-marketplace/internal/service"
)

// respondError writes err in the {error: ...} shape with the status of its
// kind.  Upstream errors are logged with the request id and hidden.
func respondError(c echo.Context, err error) error {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Upstream("unexpected error", err)
	}

	switch e.Kind {
	case apperr.KindValidation:
		body := echo.Map{"error": e.Message}
		if len(e.Fields) > 0 {
			body["fields"] = e.Fields
		}
		return c.JSON(http.StatusBadRequest, body)
	case apperr.KindAuthentication:
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": e.Message})
	case apperr.KindAuthorization:
		return c.JSON(http.StatusForbidden, echo.Map{"error": e.Message})
	case apperr.KindNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": e.Message})
	case apperr.KindRateLimited:
		mins := service.MinutesUntil(e.ResetAt, time.Now())
		if mins < 1 {
			mins = 1
		}
		c.Response().Header().Set("Retry-After", strconv.Itoa(mins*60))
		return c.JSON(http.StatusTooManyRequests, echo.Map{
			"error":             fmt.Sprintf("Too many requests. Please try again in %d minutes.", mins),
			"resetAt":           e.ResetAt.UTC(),
			"retryAfterMinutes": mins,
		})
	case apperr.KindConflict:
		body := echo.Map{"error": e.Message}
		if e.Count > 0 {
			body["count"] = e.Count
		}
		return c.JSON(http.StatusConflict, body)
	default:
		c.Logger().Errorf("request %s %s (id=%s): %v", c.Request().Method, c.Path(),
			c.Response().Header().Get(echo.HeaderXRequestID), err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}

// HTTPErrorHandler renders errors returned by handlers and by echo itself
// (404 route, 405, bind failures) in the same JSON shape.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		if he.Code >= http.StatusInternalServerError {
			c.Logger().Errorf("http error %d: %v", he.Code, err)
			msg = "internal server error"
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(he.Code)
			return
		}
		_ = c.JSON(he.Code, echo.Map{"error": msg})
		return
	}
	_ = respondError(c, err)
}
