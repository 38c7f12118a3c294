package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nguyentranbao-ct/chat-desk/internal/models"
	"google.golang.org/grpc/codes"
)

// statusClientClosed is reported when the caller went away mid request.
const statusClientClosed = 499

// ErrorHandler writes errors as a failed Response. error_data carries the
// request id and, for operation errors, the id of the notification the
// failure raised so the renderer can match the two.
func ErrorHandler(log Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if err == nil || c.Response().Committed {
			return
		}

		resp := &ResponseError{
			Status:  http.StatusInternalServerError,
			Success: false,
			Err:     err,
		}

		var (
			he     *echo.HTTPError
			re     *ResponseError
			appErr *models.Error
		)
		switch {
		case errors.As(err, &he):
			resp.Status = he.Code
			resp.ErrorMessage = fmt.Sprint(he.Message)
		case errors.As(err, &re):
			resp = re
		case errors.As(err, &appErr):
			resp.Status = HTTPStatus(models.CodeOf(appErr))
			resp.ErrorCode = string(appErr.Code)
			resp.ErrorMessage = appErr.Error()
		default:
			// detect canceled request error
			if errors.Is(err, context.Canceled) && c.Request().Context().Err() == context.Canceled {
				resp.Status = statusClientClosed
			} else {
				resp.Status = HTTPStatus(models.CodeOf(err))
			}
			resp.ErrorMessage = err.Error()
		}

		if resp.Status == http.StatusNotFound && isNotFoundHandler(c.Handler()) {
			resp.ErrorMessage = "no route matched"
		}
		if resp.ErrorData == nil {
			resp.ErrorData = errorData(c, appErr)
		}

		if err := c.JSON(resp.Status, resp); err != nil {
			log.Errorw("could not response", "code", resp.Status, "response_body", resp)
		}
	}
}

// HTTPStatus maps a grpc code onto the closest HTTP status.
func HTTPStatus(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Canceled:
		return statusClientClosed
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Unavailable:
		return http.StatusBadGateway
	case codes.Unimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func errorData(c echo.Context, appErr *models.Error) map[string]string {
	data := make(map[string]string, 2)
	if id := RequestIDFrom(c.Request().Context()); id != "" {
		data["request_id"] = id
	}
	if appErr != nil {
		data["notification_id"] = appErr.NotificationID()
	}
	if len(data) == 0 {
		return nil
	}
	return data
}
