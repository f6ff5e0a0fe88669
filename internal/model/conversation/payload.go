package conversation

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Author tags used when a payload is handed to the renderer.
const (
	AuthorUser   = "user"
	AuthorWatson = "watson"
)

// IsUserMessage maps an author tag to true for the user and false for the assistant.
// ok is false when the tag is neither.
func IsUserMessage(tag string) (isUser bool, ok bool) {
	switch tag {
	case AuthorUser:
		return true, true
	case AuthorWatson:
		return false, true
	default:
		return false, false
	}
}

// TextList is a message text that may arrive as a single string or as an ordered list.
type TextList []string

// UnmarshalJSON accepts a string, a list of strings, or null.
func (t *TextList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*t = nil
		return nil
	}

	if trimmed[0] == '"' {
		var single string
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return err
		}
		*t = TextList{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(trimmed, &many); err != nil {
		return fmt.Errorf("text must be a string or a list of strings: %w", err)
	}
	*t = many
	return nil
}

// First returns the first entry or "".
func (t TextList) First() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// NonEmpty drops empty entries, keeping order.
func (t TextList) NonEmpty() []string {
	out := make([]string, 0, len(t))
	for _, s := range t {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Input is the user half of a payload.
type Input struct {
	Text TextList `json:"text"`
}

// Output is the assistant half of a payload.
type Output struct {
	Text TextList `json:"text"`
}

// Payload is a single request or response exchanged with the assistant backend.
// Payloads are not mutated once published.
type Payload struct {
	Input   *Input   `json:"input,omitempty"`
	Output  *Output  `json:"output,omitempty"`
	Context *Context `json:"context,omitempty"`
}

// NewRequest builds a request payload for the given text and carried context.
func NewRequest(text string, ctx *Context) *Payload {
	return &Payload{
		Input:   &Input{Text: TextList{text}},
		Context: ctx.Clone(),
	}
}

// Text returns the text list of the half selected by isUser.
func (p *Payload) Text(isUser bool) TextList {
	if p == nil {
		return nil
	}
	if isUser {
		if p.Input == nil {
			return nil
		}
		return p.Input.Text
	}
	if p.Output == nil {
		return nil
	}
	return p.Output.Text
}

// HasText reports whether either half carries any text entries.
func (p *Payload) HasText() bool {
	return len(p.Text(true)) > 0 || len(p.Text(false)) > 0
}

// ContextOrEmpty never returns nil.
func (p *Payload) ContextOrEmpty() *Context {
	if p == nil || p.Context == nil {
		return &Context{}
	}
	return p.Context
}
