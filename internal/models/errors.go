package models

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrNotFound is returned by storage when a document does not exist.
var ErrNotFound = status.Errorf(codes.NotFound, "not found")

// Precondition failures wrapped by the operation errors below.
var (
	ErrNotConnected  = status.Error(codes.FailedPrecondition, "not connected")
	ErrNotAttached   = status.Error(codes.FailedPrecondition, "not attached to a channel")
	ErrDetached      = status.Error(codes.Aborted, "channel detached while request was in flight")
	ErrInvalidHandle = status.Error(codes.InvalidArgument, "invalid channel handle")
	ErrEmptyBody     = status.Error(codes.InvalidArgument, "message body is empty")
	ErrForbidden     = status.Error(codes.PermissionDenied, "not allowed")
)

type ErrorCode string

const (
	CodeAuth              ErrorCode = "auth"
	CodeNotFound          ErrorCode = "not_found"
	CodeTransport         ErrorCode = "transport"
	CodeConnect           ErrorCode = "connect"
	CodeJoin              ErrorCode = "join"
	CodeSyncAttach        ErrorCode = "sync_attach"
	CodeSyncLoad          ErrorCode = "sync_load"
	CodeSyncSend          ErrorCode = "sync_send"
	CodeSyncEdit          ErrorCode = "sync_edit"
	CodeSyncDelete        ErrorCode = "sync_delete"
	CodeInvalidTransition ErrorCode = "invalid_transition"
)

// NotificationID is the notification slot an error of this code occupies.
func (c ErrorCode) NotificationID() string {
	switch c {
	case CodeConnect, CodeAuth:
		return NotifyConnect
	case CodeJoin:
		return NotifyJoinChannel
	case CodeSyncAttach:
		return NotifyLoadMessages
	case CodeSyncLoad:
		return NotifyLoadMoreMessage
	case CodeSyncSend:
		return NotifySendMessage
	case CodeSyncEdit:
		return NotifyEditMessage
	case CodeSyncDelete:
		return NotifyDeleteMessage
	default:
		return NotifyInvalidAction
	}
}

// Error is the error type returned across operation boundaries.
type Error struct {
	Code    ErrorCode
	Message string
	Status  codes.Code
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Wrapped)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is matches any *Error with the same code, so the sentinels below work
// with errors.Is at every level of wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *Error) GRPCStatus() *status.Status {
	c := e.Status
	if c == codes.OK {
		c = CodeOf(e.Wrapped)
		if c == codes.OK {
			c = codes.Unknown
		}
	}
	return status.New(c, e.Error())
}

func (e *Error) NotificationID() string {
	return e.Code.NotificationID()
}

var (
	ErrAuth              = &Error{Code: CodeAuth}
	ErrChannelNotFound   = &Error{Code: CodeNotFound}
	ErrTransport         = &Error{Code: CodeTransport}
	ErrConnect           = &Error{Code: CodeConnect}
	ErrJoin              = &Error{Code: CodeJoin}
	ErrSyncAttach        = &Error{Code: CodeSyncAttach}
	ErrSyncLoad          = &Error{Code: CodeSyncLoad}
	ErrSyncSend          = &Error{Code: CodeSyncSend}
	ErrSyncEdit          = &Error{Code: CodeSyncEdit}
	ErrSyncDelete        = &Error{Code: CodeSyncDelete}
	ErrInvalidTransition = &Error{Code: CodeInvalidTransition}
)

func NewAuthError(msg string, err error) *Error {
	return &Error{Code: CodeAuth, Message: msg, Status: codes.Unauthenticated, Wrapped: err}
}

func NewNotFoundError(msg string, err error) *Error {
	return &Error{Code: CodeNotFound, Message: msg, Status: codes.NotFound, Wrapped: err}
}

func NewTransportError(msg string, err error) *Error {
	return &Error{Code: CodeTransport, Message: msg, Status: codes.Unavailable, Wrapped: err}
}

func NewConnectError(err error) *Error {
	return &Error{Code: CodeConnect, Message: "connect", Wrapped: asBackendError(err)}
}

func NewJoinError(err error) *Error {
	return &Error{Code: CodeJoin, Message: "join channel", Wrapped: err}
}

func NewSyncAttachError(err error) *Error {
	return &Error{Code: CodeSyncAttach, Message: "load messages", Wrapped: err}
}

func NewSyncLoadError(err error) *Error {
	return &Error{Code: CodeSyncLoad, Message: "load more messages", Wrapped: err}
}

func NewSyncSendError(err error) *Error {
	return &Error{Code: CodeSyncSend, Message: "send message", Wrapped: err}
}

func NewSyncEditError(err error) *Error {
	return &Error{Code: CodeSyncEdit, Message: "edit message", Wrapped: err}
}

func NewSyncDeleteError(err error) *Error {
	return &Error{Code: CodeSyncDelete, Message: "delete message", Wrapped: err}
}

func NewInvalidTransitionError(from ConnectionState, action string) *Error {
	return &Error{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot %s while %s", action, from),
		Status:  codes.FailedPrecondition,
	}
}

// asBackendError classifies an unclassified connect failure as a transport
// error. Auth and transport errors pass through unchanged.
func asBackendError(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return NewTransportError("backend unreachable", err)
}

// CodeOf returns the grpc code that best describes err.
func CodeOf(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return codes.DeadlineExceeded
	}
	if errors.Is(err, context.Canceled) {
		return codes.Canceled
	}
	st, ok := status.FromError(err)
	if !ok {
		return codes.Unknown
	}
	return st.Code()
}
