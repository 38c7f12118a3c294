package models

import (
	"fmt"

	"github.com/goccy/go-json"
)

type LiveEventType int

const (
	LiveEventAdded LiveEventType = iota + 1
	LiveEventUpdated
	LiveEventDeleted
	// LiveEventStreamLost is raised by a transport whose stream ended without
	// being unsubscribed. No further events follow on that subscription.
	LiveEventStreamLost
)

func (t LiveEventType) String() string {
	switch t {
	case LiveEventAdded:
		return "added"
	case LiveEventUpdated:
		return "updated"
	case LiveEventDeleted:
		return "deleted"
	case LiveEventStreamLost:
		return "stream_lost"
	default:
		return fmt.Sprintf("LiveEventType(%d)", int(t))
	}
}

func ParseLiveEventType(s string) (LiveEventType, error) {
	switch s {
	case "added", "message_sent", "message.sent":
		return LiveEventAdded, nil
	case "updated", "message_updated", "message.updated":
		return LiveEventUpdated, nil
	case "deleted", "message_deleted", "message.deleted":
		return LiveEventDeleted, nil
	}
	return 0, fmt.Errorf("unknown live event type %q", s)
}

// LiveEvent is a change pushed by the backend for the joined channel.
// Message is nil for deletions. Err is only set for LiveEventStreamLost.
type LiveEvent struct {
	Type      LiveEventType
	MessageID int64
	Message   *Message
	Err       error
}

// LiveHandler receives live events in arrival order.
type LiveHandler func(LiveEvent)

// LiveEnvelope is the wire shape of a live event, shared by the websocket
// and Kafka transports.
type LiveEnvelope struct {
	Type       string          `json:"type"`
	ChannelURL string          `json:"channel_url"`
	MessageID  int64           `json:"message_id"`
	Message    json.RawMessage `json:"message,omitempty"`
}

// Decode turns an envelope into a LiveEvent using decodeMessage for the
// message payload.
func (e LiveEnvelope) Decode(decodeMessage func([]byte) (Message, error)) (LiveEvent, error) {
	typ, err := ParseLiveEventType(e.Type)
	if err != nil {
		return LiveEvent{}, err
	}
	ev := LiveEvent{Type: typ, MessageID: e.MessageID}
	if typ == LiveEventDeleted {
		return ev, nil
	}
	if len(e.Message) == 0 {
		return LiveEvent{}, fmt.Errorf("%s event without message", typ)
	}
	msg, err := decodeMessage(e.Message)
	if err != nil {
		return LiveEvent{}, fmt.Errorf("decode message: %w", err)
	}
	ev.Message = &msg
	if ev.MessageID == 0 {
		ev.MessageID = msg.ID
	}
	return ev, nil
}

// MutationKind tells a renderer what kind of change produced a list.
type MutationKind string

const (
	MutationReplace  MutationKind = "replace"
	MutationAppend   MutationKind = "append"
	MutationLoadMore MutationKind = "load_more"
	MutationUpdate   MutationKind = "update"
	MutationDelete   MutationKind = "delete"
	MutationClear    MutationKind = "clear"
)

// ListUpdate is the snapshot pushed to renderers after each mutation.
type ListUpdate struct {
	Kind     MutationKind `json:"kind"`
	Messages MessageList  `json:"messages"`
}
