package models

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// AttachmentPlaceholder is the body shown for file messages without text.
const AttachmentPlaceholder = "<FILE ATTACHMENT>"

type MessageKind int

const (
	MessageKindUnknown MessageKind = iota
	MessageKindUser
	MessageKindAdmin
	MessageKindAttachment
)

func (k MessageKind) String() string {
	switch k {
	case MessageKindUser:
		return "user"
	case MessageKindAdmin:
		return "admin"
	case MessageKindAttachment:
		return "attachment"
	default:
		return "unknown"
	}
}

// ParseMessageKind maps a backend message type onto a MessageKind.
// Unrecognised types map to MessageKindUnknown.
func ParseMessageKind(s string) MessageKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "mesg":
		return MessageKindUser
	case "admin", "admm":
		return MessageKindAdmin
	case "attachment", "file":
		return MessageKindAttachment
	default:
		return MessageKindUnknown
	}
}

func (k MessageKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *MessageKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("message kind: %w", err)
	}
	*k = ParseMessageKind(s)
	return nil
}

// Message is a single chat message as confirmed by the backend.
type Message struct {
	ID                int64       `json:"id"`
	CreatedAt         int64       `json:"created_at"`
	Body              string      `json:"body"`
	SenderID          string      `json:"sender_id,omitempty"`
	SenderDisplayName string      `json:"sender_display_name"`
	Kind              MessageKind `json:"kind"`
}

// DisplayBody returns the text a UI should show for the message.
func (m Message) DisplayBody() string {
	if m.Kind == MessageKindAttachment && m.Body == "" {
		return AttachmentPlaceholder
	}
	return m.Body
}

// Less orders messages by creation time, then id.
func (m Message) Less(o Message) bool {
	if m.CreatedAt != o.CreatedAt {
		return m.CreatedAt < o.CreatedAt
	}
	return m.ID < o.ID
}

// MessageList is kept ascending by (CreatedAt, ID) with unique ids.
type MessageList []Message

func (l MessageList) Clone() MessageList {
	if l == nil {
		return MessageList{}
	}
	out := make(MessageList, len(l))
	copy(out, l)
	return out
}

func (l MessageList) IndexOf(id int64) int {
	for i, m := range l {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// Page is one batch of history returned by the backend.
type Page struct {
	Messages  []Message
	NextToken string
}

// MessageView is a message as presented to a renderer.
type MessageView struct {
	Message
	DisplayBody string `json:"display_body"`
	CanEdit     bool   `json:"can_edit"`
	CanDelete   bool   `json:"can_delete"`
}
