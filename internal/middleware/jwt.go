package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/live-room-coordinator/internal/utils"
)

// Context keys set by JWTAuth.
const (
    ContextUserID  = "user_id"
    ContextTokenID = "token_id"
)

// JWTAuth returns an Echo middleware that validates a Bearer user token and
// stores the numeric user id under ContextUserID.  The scheme is matched
// case-insensitively since older clients send "bearer".
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            scheme, raw, ok := strings.Cut(auth, " ")
            if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            claims, err := utils.ParseAccessToken(secret, strings.TrimSpace(raw))
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            uid, err := strconv.ParseUint(claims.Subject, 10, 64)
            if err != nil || uid == 0 {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }
            c.Set(ContextUserID, uid)
            c.Set(ContextTokenID, claims.ID)
            return next(c)
        }
    }
}
