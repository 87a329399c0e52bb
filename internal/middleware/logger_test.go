package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
    "go.uber.org/zap/zaptest/observer"
)

func TestRequestLogger_LevelsAndFields(t *testing.T) {
    core, logs := observer.New(zapcore.DebugLevel)
    e := echo.New()
    e.Use(RequestID(), RequestLogger(zap.New(core)))
    e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
    e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusInternalServerError, "boom") })

    e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
    assert.Equal(t, http.StatusInternalServerError, rec.Code)
    e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

    entries := logs.All()
    require.Len(t, entries, 3)
    assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
    assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
    assert.Equal(t, zapcore.WarnLevel, entries[2].Level)

    fields := entries[0].ContextMap()
    assert.Equal(t, "/ok", fields["route"])
    assert.Equal(t, int64(http.StatusOK), fields["status"])
    assert.Equal(t, "anon", fields["user_id"])
    assert.NotEmpty(t, fields["request_id"])
}
