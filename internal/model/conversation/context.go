package conversation

import (
	"encoding/json"
	"maps"
)

// Context is assistant-supplied state carried between turns.
// Keys other than the known ones are kept verbatim in Extra.
type Context struct {
	ConversationID string
	List           []string
	Level          TextList
	Extra          map[string]json.RawMessage
}

const (
	keyConversationID = "conversation_id"
	keyList           = "list"
	keyLevel          = "level"
)

// LevelValue returns the first level entry, or "" when the assistant did not classify the turn.
func (c *Context) LevelValue() string {
	if c == nil {
		return ""
	}
	return c.Level.First()
}

// Clone returns a deep copy; a nil context clones to nil.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	out := &Context{
		ConversationID: c.ConversationID,
		List:           append([]string(nil), c.List...),
		Level:          append(TextList(nil), c.Level...),
	}
	if c.Extra != nil {
		out.Extra = maps.Clone(c.Extra)
	}
	return out
}

func (c Context) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(c.Extra)+3)
	for k, v := range c.Extra {
		obj[k] = v
	}
	if c.ConversationID != "" {
		obj[keyConversationID] = c.ConversationID
	}
	if c.List != nil {
		obj[keyList] = c.List
	}
	if c.Level != nil {
		obj[keyLevel] = []string(c.Level)
	}
	return json.Marshal(obj)
}

func (c *Context) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = Context{}
	if v, ok := raw[keyConversationID]; ok {
		if err := json.Unmarshal(v, &c.ConversationID); err != nil {
			return err
		}
		delete(raw, keyConversationID)
	}
	if v, ok := raw[keyList]; ok {
		if err := json.Unmarshal(v, &c.List); err != nil {
			return err
		}
		delete(raw, keyList)
	}
	if v, ok := raw[keyLevel]; ok {
		if err := json.Unmarshal(v, &c.Level); err != nil {
			return err
		}
		delete(raw, keyLevel)
	}
	if len(raw) > 0 {
		c.Extra = raw
	}
	return nil
}
