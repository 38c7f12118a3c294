package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/nguyentranbao-ct/chat-desk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type messageFixture struct {
	backend       *fakeBackend
	notifications NotificationUsecase
	messages      MessageUsecase
}

// newMessageFixture connects as self and attaches to a channel holding one
// message from alice and one from bob.
func newMessageFixture(t *testing.T, self string, operators ...string) *messageFixture {
	t.Helper()
	ctx := context.Background()
	backend := newFakeBackend()
	backend.operators = operators
	fromBob := msg(2, 20)
	fromBob.SenderID = "bob"
	backend.pages[""] = models.Page{Messages: []models.Message{msg(1, 10), fromBob}}

	broadcaster := &fakeBroadcaster{}
	engine := newSyncEngine(backend, newFakeLive(), broadcaster, 10)
	t.Cleanup(engine.Close)

	session := NewSessionUsecase(backend)
	_, err := session.Connect(ctx, models.Identity{UserID: self})
	require.NoError(t, err)
	membership := NewMembershipUsecase(backend, session)
	handle, _, err := membership.Join(ctx, models.ChannelRef{URL: "general"})
	require.NoError(t, err)
	require.NoError(t, engine.Attach(ctx, handle))

	notifications := NewNotificationUsecase(broadcaster)
	return &messageFixture{
		backend:       backend,
		notifications: notifications,
		messages:      NewMessageUsecase(engine, session, membership, notifications),
	}
}

func TestMessageList(t *testing.T) {
	tests := []struct {
		name       string
		self       string
		operators  []string
		wantEdit   []bool
		wantDelete []bool
	}{
		{"own messages only", "alice", nil, []bool{true, false}, []bool{true, false}},
		{"operator deletes any", "alice", []string{"alice"}, []bool{true, false}, []bool{true, true}},
		{"other operator", "carol", []string{"bob"}, []bool{false, false}, []bool{false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMessageFixture(t, tt.self, tt.operators...)
			views := f.messages.List()
			require.Len(t, views, 2)
			for i, v := range views {
				assert.Equal(t, tt.wantEdit[i], v.CanEdit, "edit %d", v.ID)
				assert.Equal(t, tt.wantDelete[i], v.CanDelete, "delete %d", v.ID)
			}
		})
	}
}

func TestMessageDisplayBody(t *testing.T) {
	f := newMessageFixture(t, "alice")
	view, err := f.messages.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", view.DisplayBody)
	assert.True(t, view.CanEdit)
}

func TestMessageSend(t *testing.T) {
	t.Run("failure is reported and cleared on success", func(t *testing.T) {
		f := newMessageFixture(t, "alice")
		f.backend.sendErr = errors.New("timeout")

		_, err := f.messages.Send(context.Background(), "hi")
		assert.ErrorIs(t, err, models.ErrSyncSend)
		assert.Equal(t, []string{models.NotifySendMessage}, notificationIDs(f.notifications))

		f.backend.sendErr = nil
		_, err = f.messages.Send(context.Background(), "hi")
		require.NoError(t, err)
		assert.Empty(t, f.notifications.List())
	})

	t.Run("empty body", func(t *testing.T) {
		f := newMessageFixture(t, "alice")
		_, err := f.messages.Send(context.Background(), "")
		assert.ErrorIs(t, err, models.ErrEmptyBody)
		assert.Zero(t, f.backend.count("send"))
	})
}

func TestMessageEdit(t *testing.T) {
	tests := []struct {
		name     string
		id       int64
		wantErr  error
		wantCall bool
	}{
		{"own message", 1, nil, true},
		{"someone else's message", 2, models.ErrForbidden, false},
		{"unknown message", 99, models.ErrChannelNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMessageFixture(t, "alice")
			view, err := f.messages.Edit(context.Background(), tt.id, "edited")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, models.ErrSyncEdit)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, []string{models.NotifyEditMessage}, notificationIDs(f.notifications))
			} else {
				require.NoError(t, err)
				assert.Equal(t, "edited", view.Body)
			}
			assert.Equal(t, tt.wantCall, f.backend.count("edit") == 1)
		})
	}
}

func TestMessageDelete(t *testing.T) {
	tests := []struct {
		name      string
		self      string
		operators []string
		id        int64
		wantErr   error
	}{
		{"own message", "alice", nil, 1, nil},
		{"operator removes other", "alice", []string{"alice"}, 2, nil},
		{"not allowed", "alice", nil, 2, models.ErrForbidden},
		{"unknown message", "alice", nil, 99, models.ErrChannelNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMessageFixture(t, tt.self, tt.operators...)
			err := f.messages.Delete(context.Background(), tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, models.ErrSyncDelete)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, f.backend.count("delete"))
				assert.Len(t, f.messages.List(), 2)
				return
			}
			require.NoError(t, err)
			assert.Len(t, f.messages.List(), 1)
		})
	}
}

func TestMessageLoadMore(t *testing.T) {
	f := newMessageFixture(t, "alice")
	n, err := f.messages.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.notifications.List())
}
