package handler

import (
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"
)

// requestTimeout bounds every store call made by a handler.
const requestTimeout = 5 * time.Second

// getUserID extracts the id JWTAuth stored on the context.
func getUserID(c echo.Context) (uint64, error) {
    switch t := c.Get("user_id").(type) {
    case uint64:
        if t != 0 {
            return t, nil
        }
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil && n != 0 {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// roomIDParam parses the :id path segment.
func roomIDParam(c echo.Context) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return 0, false
    }
    return id, true
}

func unauthorized(c echo.Context) error {
    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// internalError logs a persistence failure and hides it from the client.
func internalError(c echo.Context, log *zap.Logger, op string, err error) error {
    log.Error(op+" failed", zap.Error(err), zap.String("path", c.Path()))
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
