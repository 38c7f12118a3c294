package models

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestErrorIs(t *testing.T) {
	err := NewJoinError(NewNotFoundError("channel general", nil))

	assert.ErrorIs(t, err, ErrJoin)
	assert.ErrorIs(t, err, ErrChannelNotFound)
	assert.NotErrorIs(t, err, ErrAuth)
	assert.NotErrorIs(t, err, ErrSyncLoad)
}

func TestNewConnectError(t *testing.T) {
	tests := []struct {
		name      string
		cause     error
		wantIs    error
		wantCode  codes.Code
		wantNotif string
	}{
		{
			name:      "auth failure passes through",
			cause:     NewAuthError("invalid token", nil),
			wantIs:    ErrAuth,
			wantCode:  codes.Unauthenticated,
			wantNotif: NotifyConnect,
		},
		{
			name:      "raw error becomes transport",
			cause:     errors.New("dial tcp: connection refused"),
			wantIs:    ErrTransport,
			wantCode:  codes.Unavailable,
			wantNotif: NotifyConnect,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConnectError(tt.cause)
			assert.ErrorIs(t, err, ErrConnect)
			assert.ErrorIs(t, err, tt.wantIs)
			assert.Equal(t, tt.wantCode, CodeOf(err))
			assert.Equal(t, tt.wantNotif, err.NotificationID())
		})
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"nil", nil, codes.OK},
		{"deadline", fmt.Errorf("load: %w", context.DeadlineExceeded), codes.DeadlineExceeded},
		{"canceled", context.Canceled, codes.Canceled},
		{"plain", errors.New("boom"), codes.Unknown},
		{"not attached", NewSyncSendError(ErrNotAttached), codes.FailedPrecondition},
		{"empty body", NewSyncSendError(ErrEmptyBody), codes.InvalidArgument},
		{"storage not found", fmt.Errorf("find: %w", ErrNotFound), codes.NotFound},
		{"invalid transition", NewInvalidTransitionError(StateDisconnected, "join"), codes.FailedPrecondition},
		{"unclassified cause", NewSyncEditError(errors.New("boom")), codes.Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := NewSyncLoadError(NewTransportError("backend unreachable", errors.New("timeout")))
	assert.Equal(t, "load more messages: backend unreachable: timeout", err.Error())
	assert.Equal(t, NotifyLoadMoreMessage, err.NotificationID())
}
