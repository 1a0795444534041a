package models

import "testing"

func TestDisplayTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"with title", "Exam schedule", "Exam schedule"},
		{"empty title", "", "Untitled Chat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := Chat{ID: "c1", Title: tt.title}
			if got := chat.DisplayTitle(); got != tt.want {
				t.Errorf("DisplayTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromUser(t *testing.T) {
	tests := []struct {
		name   string
		sender string
		want   bool
	}{
		{"user message", SenderUser, true},
		{"assistant message", SenderAssistant, false},
		{"unknown sender", "system", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Message{Sender: tt.sender}
			if got := msg.FromUser(); got != tt.want {
				t.Errorf("FromUser() = %v, want %v", got, tt.want)
			}
		})
	}
}
