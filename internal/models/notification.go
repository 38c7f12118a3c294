package models

import "time"

type NotificationLevel string

const (
	NotificationInfo    NotificationLevel = "info"
	NotificationWarning NotificationLevel = "warning"
	NotificationError   NotificationLevel = "error"
)

// Notification ids, one per operation, so retries never stack duplicates.
const (
	NotifyConnect         = "connect"
	NotifyJoinChannel     = "join-channel"
	NotifyLoadMessages    = "load-messages-error"
	NotifyLoadMoreMessage = "load-more-messages-error"
	NotifySendMessage     = "send-message-error"
	NotifyEditMessage     = "edit-message-error"
	NotifyDeleteMessage   = "delete-message-error"
	NotifyInvalidAction   = "invalid-action"
	NotifyLiveUpdates     = "live-updates-lost"
)

type Notification struct {
	ID        string            `json:"id"`
	Level     NotificationLevel `json:"level"`
	Text      string            `json:"text"`
	CreatedAt time.Time         `json:"created_at"`
}
