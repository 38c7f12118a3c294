package usecase

import (
	"context"

	"github.com/nguyentranbao-ct/chat-desk/internal/models"
)

// ChatBackend is the hosted chat service. Implementations classify
// failures as models auth, not-found or transport errors.
type ChatBackend interface {
	Connect(ctx context.Context, identity models.Identity) (*models.Session, error)
	Disconnect(ctx context.Context, session *models.Session) error
	JoinChannel(ctx context.Context, session *models.Session, ref models.ChannelRef) (*models.ChannelHandle, error)
	LeaveChannel(ctx context.Context, handle *models.ChannelHandle) error
	ListOperators(ctx context.Context, handle *models.ChannelHandle) ([]string, error)
	LoadMessages(ctx context.Context, handle *models.ChannelHandle, cursor models.Cursor) (models.Page, error)
	SendMessage(ctx context.Context, handle *models.ChannelHandle, body string) (models.Message, error)
	EditMessage(ctx context.Context, handle *models.ChannelHandle, id int64, body string) (models.Message, error)
	DeleteMessage(ctx context.Context, handle *models.ChannelHandle, id int64) error
}

// LiveSource delivers live channel events, in arrival order, to a handler.
type LiveSource interface {
	Subscribe(ctx context.Context, handle *models.ChannelHandle, handler models.LiveHandler) (string, error)
	Unsubscribe(subscriptionID string)
}

// Broadcaster pushes state to connected renderers. Calls must not block.
type Broadcaster interface {
	BroadcastList(update models.ListUpdate)
	BroadcastState(event models.StateEvent)
	BroadcastNotifications(list []models.Notification)
}

type SettingsRepository interface {
	ListIdentities(ctx context.Context) ([]models.SavedIdentity, error)
	ReplaceIdentities(ctx context.Context, identities []models.SavedIdentity) error
	ListChannels(ctx context.Context) ([]models.SavedChannel, error)
	ReplaceChannels(ctx context.Context, channels []models.SavedChannel) error
	GetUIState(ctx context.Context) (models.UIState, error)
	SaveUIState(ctx context.Context, state models.UIState) error
}

// TokenSealer protects auth tokens at rest.
type TokenSealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}
