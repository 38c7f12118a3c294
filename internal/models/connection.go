package models

import "fmt"

type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnected
	StateJoinedChannel
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoinedChannel:
		return "joined_channel"
	default:
		return "disconnected"
	}
}

func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ConnectionState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "disconnected":
		*s = StateDisconnected
	case "connected":
		*s = StateConnected
	case "joined_channel":
		*s = StateJoinedChannel
	default:
		return fmt.Errorf("unknown connection state %q", text)
	}
	return nil
}

// StateEvent is published on every connection state change.
type StateEvent struct {
	Old   ConnectionState `json:"old"`
	New   ConnectionState `json:"new"`
	Error string          `json:"error,omitempty"`
}

// ConnectionSnapshot describes the current session for the UI.
type ConnectionSnapshot struct {
	State     ConnectionState `json:"state"`
	Identity  *Identity       `json:"identity,omitempty"`
	Channel   *ChannelHandle  `json:"channel,omitempty"`
	Operators []string        `json:"operators,omitempty"`
}
