package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// InboundMessage is one chat message waiting to be processed by a worker.
type InboundMessage struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	SenderID   string    `json:"sender_id"`
	ChatID     string    `json:"chat_id"`
	ReceivedAt time.Time `json:"received_at"`
}

// NewInboundMessage stamps the message with a fresh id and the arrival time.
func NewInboundMessage(text, senderID, chatID string, receivedAt time.Time) *InboundMessage {
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	return &InboundMessage{
		ID:         uuid.NewString(),
		Text:       text,
		SenderID:   senderID,
		ChatID:     chatID,
		ReceivedAt: receivedAt,
	}
}

func (m *InboundMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func InboundMessageFromJSON(data []byte) (*InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReplyMessage carries the answers for one InboundMessage back to the chat
// gateway.
type ReplyMessage struct {
	ID        string    `json:"id"`
	InReplyTo string    `json:"in_reply_to"`
	ChatID    string    `json:"chat_id"`
	Messages  []string  `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

func NewReplyMessage(inReplyTo, chatID string, messages []string) *ReplyMessage {
	return &ReplyMessage{
		ID:        uuid.NewString(),
		InReplyTo: inReplyTo,
		ChatID:    chatID,
		Messages:  messages,
		CreatedAt: time.Now(),
	}
}

func (m *ReplyMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReplyMessageFromJSON(data []byte) (*ReplyMessage, error) {
	var msg ReplyMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
