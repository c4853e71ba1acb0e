package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinic-api/internal/utils"
)

// TokenCookie is the cookie login sets for browser clients.
const TokenCookie = "token"

// JWTAuth validates the access token from the Authorization header, or from
// the token cookie when no header is sent, and stores its subject and role
// under "user_id" and "role".
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := TokenFromRequest(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(ctxUserID, claims.UserID)
			c.Set(ctxRole, claims.Role)
			return next(c)
		}
	}
}

// TokenFromRequest returns the raw access token from the Authorization
// header or, failing that, the token cookie.
func TokenFromRequest(c echo.Context) (string, bool) {
	if auth := c.Request().Header.Get(echo.HeaderAuthorization); auth != "" {
		raw, ok := strings.CutPrefix(auth, "Bearer ")
		raw = strings.TrimSpace(raw)
		return raw, ok && raw != ""
	}
	if ck, err := c.Cookie(TokenCookie); err == nil && ck.Value != "" {
		return ck.Value, true
	}
	return "", false
}
