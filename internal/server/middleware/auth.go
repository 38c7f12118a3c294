package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// BearerToken rejects requests that do not carry token in the Authorization
// header. Websocket clients may pass it as the token query parameter.
func BearerToken(token string, skipper Skipper) echo.MiddlewareFunc {
	if skipper == nil {
		skipper = DefaultSkipper
	}
	want := []byte(token)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token == "" || skipper(c) {
				return next(c)
			}

			got := c.QueryParam("token")
			if authHeader := c.Request().Header.Get(echo.HeaderAuthorization); authHeader != "" {
				got = strings.TrimPrefix(authHeader, "Bearer ")
				if got == authHeader {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header format")
				}
			}
			if got == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			return next(c)
		}
	}
}
