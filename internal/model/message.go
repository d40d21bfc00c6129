package model

import (
	"time"

	"github.com/google/uuid"
)

// Direction tells whether a chat line was typed locally or came from the server.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// HistoryToken is the reserved control frame that asks the server for a
// history snapshot.
const HistoryToken = "history"

// ChatMessage is a single line shown in the live message list.
type ChatMessage struct {
	ID        string    `json:"id"`
	Direction Direction `json:"direction"`
	Text      string    `json:"text"`
	At        time.Time `json:"at"`
}

// NewChatMessage creates a ChatMessage stamped with a fresh ID and the current time.
func NewChatMessage(dir Direction, text string) ChatMessage {
	return ChatMessage{
		ID:        uuid.New().String(),
		Direction: dir,
		Text:      text,
		At:        time.Now(),
	}
}

// StoredMessage is a message persisted by the server's history store.
type StoredMessage struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"clientId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate validates a message before it is stored.
func (m *StoredMessage) Validate() error {
	if m.Text == "" {
		return ErrEmptyMessage
	}
	if m.Text == HistoryToken {
		return ErrReservedMessage
	}
	return nil
}
