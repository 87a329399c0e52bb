package middleware

import (
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
    "go.uber.org/zap"
)

// RequestID tags every request with a UUID in X-Request-Id, keeping one
// the client already sent.
func RequestID() echo.MiddlewareFunc {
    return echomw.RequestIDWithConfig(echomw.RequestIDConfig{
        Generator: uuid.NewString,
    })
}

// RequestLogger writes one zap entry per request.  Server errors log at
// error level, client errors at warn, everything else at info.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                c.Error(err)
            }
            status := c.Response().Status
            fields := []zap.Field{
                zap.String("method", c.Request().Method),
                zap.String("route", c.Path()),
                zap.String("uri", c.Request().RequestURI),
                zap.Int("status", status),
                zap.Duration("latency", time.Since(start)),
                zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
                zap.String("user_id", currentUserID(c)),
                zap.String("remote_ip", c.RealIP()),
            }
            if err != nil {
                fields = append(fields, zap.Error(err))
            }
            switch {
            case status >= 500:
                log.Error("request", fields...)
            case status >= 400:
                log.Warn("request", fields...)
            default:
                log.Info("request", fields...)
            }
            return nil
        }
    }
}
