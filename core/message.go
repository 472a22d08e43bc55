package core

import (
	"encoding/json"
	"strings"
	"time"
)

// Role identifies the author of a message within a task's history.
type Role string

const (
	// RoleUser marks content submitted by the delegating caller.
	RoleUser Role = "user"
	// RoleAssistant marks content synthesized from a capability result.
	RoleAssistant Role = "assistant"
	// RoleSystem marks framework-injected content.
	RoleSystem Role = "system"
)

// Message is a role-attributed content record. Once appended to a task's
// history it must be treated as immutable.
type Message struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Parts     []Part         `json:"parts"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewMessage constructs a message with a fresh id and UTC timestamp.
func NewMessage(role Role, parts ...Part) Message {
	return Message{ID: NewID(), Role: role, Parts: parts, CreatedAt: time.Now().UTC()}
}

// NewUserMessage is a convenience wrapper for a user-authored text message.
func NewUserMessage(text string) Message {
	return NewMessage(RoleUser, TextPart{Text: text})
}

// NewAssistantMessage is a convenience wrapper for an assistant text message.
func NewAssistantMessage(text string) Message {
	return NewMessage(RoleAssistant, TextPart{Text: text})
}

// Text returns the concatenation of all text parts preserving order.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// UnmarshalJSON decodes the part union via its type discriminator.
func (m *Message) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID        string            `json:"id"`
		Role      Role              `json:"role"`
		Parts     []json.RawMessage `json:"parts"`
		Metadata  map[string]any    `json:"metadata,omitempty"`
		CreatedAt time.Time         `json:"created_at"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	parts, err := unmarshalParts(aux.Parts)
	if err != nil {
		return err
	}
	m.ID = aux.ID
	m.Role = aux.Role
	m.Parts = parts
	m.Metadata = aux.Metadata
	m.CreatedAt = aux.CreatedAt
	return nil
}

// Artifact is a named, part-based output produced by a task. Immutable once
// appended to a task.
type Artifact struct {
	Name      string         `json:"name"`
	Parts     []Part         `json:"parts"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewArtifact constructs an artifact with a UTC timestamp.
func NewArtifact(name string, parts ...Part) Artifact {
	return Artifact{Name: name, Parts: parts, CreatedAt: time.Now().UTC()}
}

// NewTextArtifact is a convenience wrapper for a single text part artifact.
func NewTextArtifact(name, text string) Artifact {
	return NewArtifact(name, TextPart{Text: text})
}

// Text returns the concatenation of all text parts preserving order.
func (a Artifact) Text() string {
	var b strings.Builder
	for _, p := range a.Parts {
		if tp, ok := p.(TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// UnmarshalJSON decodes the part union via its type discriminator.
func (a *Artifact) UnmarshalJSON(data []byte) error {
	var aux struct {
		Name      string            `json:"name"`
		Parts     []json.RawMessage `json:"parts"`
		Metadata  map[string]any    `json:"metadata,omitempty"`
		CreatedAt time.Time         `json:"created_at"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	parts, err := unmarshalParts(aux.Parts)
	if err != nil {
		return err
	}
	a.Name = aux.Name
	a.Parts = parts
	a.Metadata = aux.Metadata
	a.CreatedAt = aux.CreatedAt
	return nil
}
