package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageJSONRoundTrip(t *testing.T) {
	msg := NewMessage(RoleUser,
		TextPart{Text: "analyze this"},
		DataPart{Data: map[string]any{"depth": "full"}},
		FilePart{Name: "report.pdf", MimeType: "application/pdf", URI: "https://example.com/report.pdf"},
	)

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var got Message
	require.NoError(t, json.Unmarshal(data, &got))

	require.Len(t, got.Parts, 3)
	text, ok := got.Parts[0].(TextPart)
	require.True(t, ok)
	assert.Equal(t, "analyze this", text.Text)

	dataPart, ok := got.Parts[1].(DataPart)
	require.True(t, ok)
	assert.Equal(t, "full", dataPart.Data["depth"])

	file, ok := got.Parts[2].(FilePart)
	require.True(t, ok)
	assert.Equal(t, "report.pdf", file.Name)
	assert.Equal(t, "https://example.com/report.pdf", file.URI)
}

func TestUnknownPartTypeRejected(t *testing.T) {
	raw := `{"id":"m1","role":"user","parts":[{"type":"hologram"}]}`

	var msg Message
	err := json.Unmarshal([]byte(raw), &msg)
	assert.ErrorContains(t, err, "unknown part type")
}

func TestMessageText(t *testing.T) {
	msg := NewMessage(RoleAssistant,
		TextPart{Text: "hello "},
		DataPart{Data: map[string]any{"ignored": true}},
		TextPart{Text: "world"},
	)
	assert.Equal(t, "hello world", msg.Text())
}

func TestTaskJSONRoundTrip(t *testing.T) {
	task := NewTask("t1", "s1", NewUserMessage("hello"))
	task.Artifacts = append(task.Artifacts, NewTextArtifact("result", "the answer"))

	data, err := json.Marshal(task)
	require.NoError(t, err)

	var got Task
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "t1", got.ID)
	assert.Equal(t, TaskStateSubmitted, got.Status.State)
	require.Len(t, got.History, 1)
	assert.Equal(t, "hello", got.History[0].Text())
	require.Len(t, got.Artifacts, 1)
	assert.Equal(t, "the answer", got.Artifacts[0].Text())
}
