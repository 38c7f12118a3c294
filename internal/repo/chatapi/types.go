package chatapi

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/nguyentranbao-ct/chat-desk/internal/models"
)

type User struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname"`
}

type File struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Message is the backend's representation of a channel message.
type Message struct {
	MessageID int64  `json:"message_id"`
	CreatedAt int64  `json:"created_at"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	User      *User  `json:"user,omitempty"`
	File      *File  `json:"file,omitempty"`
}

func (m Message) toModel() models.Message {
	msg := models.Message{
		ID:        m.MessageID,
		CreatedAt: m.CreatedAt,
		Body:      m.Message,
		Kind:      models.ParseMessageKind(m.Type),
	}
	if m.User != nil {
		msg.SenderID = m.User.UserID
		msg.SenderDisplayName = m.User.Nickname
	}
	return msg
}

// DecodeMessage parses a backend message payload.
func DecodeMessage(data []byte) (models.Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return models.Message{}, err
	}
	if m.MessageID == 0 {
		return models.Message{}, fmt.Errorf("message without id")
	}
	return m.toModel(), nil
}

type createSessionRequest struct {
	UserID      string `json:"user_id"`
	Nickname    string `json:"nickname"`
	AccessToken string `json:"access_token,omitempty"`
}

type sessionResponse struct {
	SessionKey string `json:"session_key"`
	User       User   `json:"user"`
}

type enterChannelResponse struct {
	ChannelURL string `json:"channel_url"`
	Name       string `json:"name"`
}

type operatorsResponse struct {
	Operators []User `json:"operators"`
	Next      string `json:"next"`
}

type messagesResponse struct {
	Messages []Message `json:"messages"`
	Next     string    `json:"next"`
}

type sendMessageRequest struct {
	MessageType string `json:"message_type"`
	Message     string `json:"message"`
}

type updateMessageRequest struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}
