// Package models holds the provider-agnostic value types shared by adapters,
// the model registry and the orchestrator.
package models

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleFunction:
		return true
	}
	return false
}

// FunctionCall is the structured payload of a function-calling message.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ChatMessage is a single conversational turn. Treat it as immutable once built.
type ChatMessage struct {
	Role         Role          `json:"role"`
	Content      string        `json:"content"`
	Name         string        `json:"name,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
}

// SystemMessage creates a system message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}

// FunctionMessage creates a function result message attributed to name.
func FunctionMessage(name, content string) ChatMessage {
	return ChatMessage{Role: RoleFunction, Name: name, Content: content}
}

// WithTimestamp returns a copy of m stamped with t.
func (m ChatMessage) WithTimestamp(t time.Time) ChatMessage {
	m.Timestamp = &t
	return m
}
