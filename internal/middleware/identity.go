package middleware

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// currentUserID renders the authenticated user id for rate-limit keys and
// request logs.  It returns "anon" before JWTAuth has run or when the
// request carries no token.
func currentUserID(c echo.Context) string {
    switch v := c.Get(ContextUserID).(type) {
    case uint64:
        return strconv.FormatUint(v, 10)
    case string:
        if v != "" {
            return v
        }
    }
    return "anon"
}
