package common

import (
	"encoding/json"
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message is the application message of the dnet demo protocol (see cmd/serve and cmd/connect).
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	From string `json:"from,omitempty"` // Used for: Chat, Join, Leave (set by the server)
	Body string `json:"body,omitempty"` // Used for: Chat
	Sent int64  `json:"sent,omitempty"` // Unix millis. Used for: Chat, Ping, Pong (echoes the ping)
	Err  string `json:"err,omitempty"`  // Used for: Error
}

// SentAt returns Sent as time
func (m *Message) SentAt() time.Time {
	return time.UnixMilli(m.Sent)
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewChatMessage creates a chat message
func NewChatMessage(from, body string) *Message {
	return &Message{
		MsgType: MsgTChat,
		From:    from,
		Body:    body,
		Sent:    time.Now().UnixMilli(),
	}
}

// NewPingMessage creates a ping stamped with the current time
func NewPingMessage() *Message {
	return &Message{
		MsgType: MsgTPing,
		Sent:    time.Now().UnixMilli(),
	}
}

// NewPongMessage creates the answer to ping, echoing its timestamp
func NewPongMessage(ping *Message) *Message {
	return &Message{
		MsgType: MsgTPong,
		Sent:    ping.Sent,
	}
}

// NewJoinMessage announces a new participant
func NewJoinMessage(who string) *Message {
	return &Message{
		MsgType: MsgTJoin,
		From:    who,
	}
}

// NewLeaveMessage announces a participant that left
func NewLeaveMessage(who string) *Message {
	return &Message{
		MsgType: MsgTLeave,
		From:    who,
	}
}

// NewErrorMessage creates an error message
func NewErrorMessage(err error) *Message {
	msg := &Message{
		MsgType: MsgTError,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// --------------------------------------------------------------------------
// Message Type
// --------------------------------------------------------------------------

// MessageType identifies the kind of a Message
type MessageType uint8

const (
	MsgTUnknown MessageType = iota
	MsgTChat                // Chat line, broadcast to all participants
	MsgTPing                // Ping, answered with a pong to the sender only
	MsgTPong                // Answer to a ping
	MsgTJoin                // A participant connected
	MsgTLeave               // A participant disconnected
	MsgTError               // Indicates an error occurred
)

// String returns the string representation of the MessageType
func (t MessageType) String() string {
	switch t {
	case MsgTChat:
		return "chat"
	case MsgTPing:
		return "ping"
	case MsgTPong:
		return "pong"
	case MsgTJoin:
		return "join"
	case MsgTLeave:
		return "leave"
	case MsgTError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch s {
	case "chat":
		*t = MsgTChat
	case "ping":
		*t = MsgTPing
	case "pong":
		*t = MsgTPong
	case "join":
		*t = MsgTJoin
	case "leave":
		*t = MsgTLeave
	case "error":
		*t = MsgTError
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}
