package dto

import (
	"time"

	"smsrelay/internal/store"
)

// Message is the canonical wire representation of a stored message, used in
// ingestion responses, initial sync payloads and live broadcasts.
type Message struct {
	ID        uint64    `json:"id"`
	DeviceID  string    `json:"deviceId"`
	From      string    `json:"from"`
	Body      string    `json:"body"`
	MediaRef  *string   `json:"mediaRef"`
	CreatedAt time.Time `json:"createdAt"`
}

// RecentMessage adds the display text derived from rich bodies; the stored
// body is always carried unchanged alongside it.
type RecentMessage struct {
	Message
	DisplayText string `json:"displayText"`
}

type IncomingRequest struct {
	DeviceID string  `json:"deviceId"`
	From     string  `json:"from"`
	Body     *string `json:"body"`
	MediaRef *string `json:"mediaRef"`
}

// Event envelopes everything sent over the realtime transport.
// Types: "all_messages" (initial sync, payload map deviceId -> []Message)
// and "new_message" (payload Message).
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

const (
	EventAllMessages = "all_messages"
	EventNewMessage  = "new_message"
)

func FromStoreMessage(m store.Message) Message {
	return Message{
		ID:        m.ID,
		DeviceID:  m.DeviceID,
		From:      m.Sender,
		Body:      m.Body,
		MediaRef:  m.MediaRef,
		CreatedAt: m.CreatedAt,
	}
}

func FromStoreMessages(msgs []store.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, FromStoreMessage(m))
	}
	return out
}

func GroupedFromStore(grouped map[string][]store.Message) map[string][]Message {
	out := make(map[string][]Message, len(grouped))
	for deviceID, msgs := range grouped {
		out[deviceID] = FromStoreMessages(msgs)
	}
	return out
}
