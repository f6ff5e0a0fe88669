package widget

import (
	"context"
	"encoding/json"

	"github.com/zhouzirui/scrum-assistant/backend/internal/model/profile"
	"github.com/zhouzirui/scrum-assistant/backend/internal/service/sessionlog"
	"github.com/zhouzirui/scrum-assistant/backend/internal/sizer"
)

// Event types exchanged with the browser.
const (
	EventKeyDown    = "keydown"
	EventInput      = "input"
	EventResize     = "resize"
	EventSuggestion = "suggestion"

	EventRender = "render"
	EventReady  = "ready"
	EventError  = "error"
)

// KeyEnter is the key code that submits the input field.
const KeyEnter = 13

// Event is one message on the widget socket.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// InboundEvent is an event received from the browser; Data is decoded per type.
type InboundEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// KeyDown reports a key press in the input field.
type KeyDown struct {
	KeyCode int    `json:"keyCode"`
	Value   string `json:"value"`
}

// InputChange reports the field value and its computed style.
type InputChange struct {
	Value        string      `json:"value"`
	Style        sizer.Style `json:"style,omitempty"`
	RootFontSize string      `json:"rootFontSize"`
}

// Resize reports a window resize.
type Resize struct {
	RootFontSize string `json:"rootFontSize"`
}

// Suggestion reports a click on a suggested question.
type Suggestion struct {
	Text string `json:"text"`
}

// InputSize is pushed with EventInput. The field value stays with the page,
// so only the sizing result travels back.
type InputSize struct {
	Width     string `json:"width"`
	Underline bool   `json:"underline"`
}

// SizeOf drops everything but the sizing result of in.
func SizeOf(in sizer.Input) InputSize {
	return InputSize{Width: in.Width, Underline: in.Underline}
}

// Ready is sent once the panel is created.
type Ready struct {
	PanelID     string           `json:"panelId"`
	Profile     profile.Profile  `json:"profile"`
	Suggestions []string         `json:"suggestions"`
	Session     sessionlog.State `json:"session"`
	Input       InputSize        `json:"input"`
}

// ErrorData carries a message for EventError.
type ErrorData struct {
	Message string `json:"message"`
}

// Sink receives outbound events of a panel.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Send(ctx context.Context, ev Event) error { return f(ctx, ev) }
