package middleware

import (
	"context"
	"regexp"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nguyentranbao-ct/chat-desk/pkg/logger/log"
)

const HeaderRequestID = echo.HeaderXRequestID

type requestIDKey struct{}

// renderer supplied ids are echoed into logs and headers, so keep them short
// and printable
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,64}$`)

// RequestIDFrom returns the id RequestID attached to ctx.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID tags every request with an id, reusing the caller's X-Request-Id
// when it looks sane. The id is echoed in the response header, attached to
// every log entry made with the request context and reported in error bodies
// next to the notification id.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(HeaderRequestID)
			if !validRequestID.MatchString(id) {
				id = uuid.NewString()
			}

			ctx := context.WithValue(c.Request().Context(), requestIDKey{}, id)
			ctx = log.With(ctx, "request_id", id)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Response().Header().Set(HeaderRequestID, id)
			return next(c)
		}
	}
}
