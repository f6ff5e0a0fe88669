package conversation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextListAcceptsStringOrList(t *testing.T) {
	var p Payload
	require.NoError(t, json.Unmarshal([]byte(`{"output":{"text":"hello"}}`), &p))
	assert.Equal(t, TextList{"hello"}, p.Text(false))

	require.NoError(t, json.Unmarshal([]byte(`{"output":{"text":["a","","b"]}}`), &p))
	assert.Equal(t, TextList{"a", "", "b"}, p.Text(false))
	assert.Equal(t, []string{"a", "b"}, p.Text(false).NonEmpty())

	require.NoError(t, json.Unmarshal([]byte(`{"input":{"text":null}}`), &p))
	assert.Empty(t, p.Text(true))
	assert.False(t, p.HasText())
}

func TestTextListRejectsObjects(t *testing.T) {
	var p Payload
	require.Error(t, json.Unmarshal([]byte(`{"output":{"text":{"x":1}}}`), &p))
}

func TestIsUserMessage(t *testing.T) {
	isUser, ok := IsUserMessage("user")
	assert.True(t, ok)
	assert.True(t, isUser)

	isUser, ok = IsUserMessage("watson")
	assert.True(t, ok)
	assert.False(t, isUser)

	_, ok = IsUserMessage("system")
	assert.False(t, ok)
}

func TestContextKeepsUnknownKeys(t *testing.T) {
	in := `{"conversation_id":"c1","list":["a","b"],"level":"basic","system":{"dialog_turn_counter":2}}`
	var c Context
	require.NoError(t, json.Unmarshal([]byte(in), &c))

	assert.Equal(t, "c1", c.ConversationID)
	assert.Equal(t, []string{"a", "b"}, c.List)
	assert.Equal(t, "basic", c.LevelValue())
	require.Contains(t, c.Extra, "system")

	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"conversation_id":"c1","list":["a","b"],"level":["basic"],"system":{"dialog_turn_counter":2}}`, string(out))
}

func TestNewRequestClonesContext(t *testing.T) {
	ctx := &Context{List: []string{"x"}}
	req := NewRequest("Hello", ctx)
	ctx.List[0] = "changed"

	assert.Equal(t, "Hello", req.Text(true).First())
	assert.Equal(t, []string{"x"}, req.Context.List)
	assert.Nil(t, NewRequest("Hi", nil).Context)
}
