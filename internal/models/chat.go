// Package models defines the wire types shared with the chat backend.
package models

import "time"

// Chat represents a persistent conversation with the assistant.
type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayTitle returns the title or a fallback for untitled chats.
func (c Chat) DisplayTitle() string {
	if c.Title == "" {
		return "Untitled Chat"
	}
	return c.Title
}

// Sender values for Message.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// Message represents a single turn within a chat.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// FromUser reports whether the message was written by the user.
func (m Message) FromUser() bool {
	return m.Sender == SenderUser
}
