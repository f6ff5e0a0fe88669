// Package widget runs one chat panel per page load: it wires the API client,
// the renderer, the session log and the input sizer together.
package widget

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/scrum-assistant/backend/internal/bus"
	"github.com/zhouzirui/scrum-assistant/backend/internal/model/conversation"
	"github.com/zhouzirui/scrum-assistant/backend/internal/model/profile"
	"github.com/zhouzirui/scrum-assistant/backend/internal/render"
	"github.com/zhouzirui/scrum-assistant/backend/internal/service/api"
	"github.com/zhouzirui/scrum-assistant/backend/internal/service/sessionlog"
	"github.com/zhouzirui/scrum-assistant/backend/internal/sizer"
	"github.com/zhouzirui/scrum-assistant/backend/internal/storage"
)

var ErrPanelClosed = errors.New("panel closed")

// ConversationEnder is implemented by backends that keep per-conversation state.
type ConversationEnder interface {
	EndConversation(ctx context.Context, conversationID string)
}

// Deps are shared by every panel of a hub.
type Deps struct {
	Backend  api.Backend
	Bus      *bus.Bus
	Store    storage.Store
	Profile  profile.Profile
	Sizer    sizer.Config
	Measurer sizer.Measurer
	Markdown bool
}

// Panel is the server side of one widget instance.
type Panel struct {
	id        string
	namespace string
	profile   profile.Profile
	backend   api.Backend

	client   *api.Client
	renderer *render.Renderer
	log      *sessionlog.Log
	sizer    *sizer.Sizer

	mu           sync.Mutex
	input        sizer.Input
	rootFontSize string
	sinks        map[int]Sink
	nextSink     int
	initialized  bool
	closed       bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewPanel opens a session log for namespace and builds an idle panel.
// Call Init to subscribe and greet.
func NewPanel(ctx context.Context, id, namespace string, deps Deps) (*Panel, error) {
	sessionLog, err := sessionlog.Open(ctx, deps.Store, namespace)
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}

	p := deps.Profile.WithDefaults()
	renderer, err := render.New(render.Options{
		Profile:  p,
		Log:      sessionLog,
		Markdown: deps.Markdown,
	})
	if err != nil {
		return nil, err
	}

	panelCtx, cancel := context.WithCancel(context.Background())
	return &Panel{
		id:        id,
		namespace: namespace,
		profile:   p,
		backend:   deps.Backend,
		client:    api.NewClient(panelCtx, id, deps.Backend, deps.Bus),
		renderer:  renderer,
		log:       sessionLog,
		sizer:     sizer.New(deps.Sizer, deps.Measurer),
		input:     sizer.Input{Style: sizer.Style{}},
		sinks:     make(map[int]Sink),
		ctx:       panelCtx,
		cancel:    cancel,
	}, nil
}

// ID returns the panel identifier.
func (p *Panel) ID() string { return p.id }

// Namespace returns the browser namespace of the session log.
func (p *Panel) Namespace() string { return p.namespace }

// Renderer exposes the panel's renderer (transcript, SSE mirrors).
func (p *Panel) Renderer() *render.Renderer { return p.renderer }

// Client exposes the panel's API client.
func (p *Panel) Client() *api.Client { return p.client }

// SessionLog exposes the panel's session log.
func (p *Panel) SessionLog() *sessionlog.Log { return p.log }

// Ready describes the panel for the browser.
func (p *Panel) Ready() Ready {
	p.mu.Lock()
	input := p.input
	p.mu.Unlock()

	return Ready{
		PanelID:     p.id,
		Profile:     p.profile,
		Suggestions: p.profile.Suggestions,
		Session:     p.log.State(),
		Input:       SizeOf(input),
	}
}

// Attach forwards renders and input updates to sink until detached.
func (p *Panel) Attach(sink Sink) (detach func()) {
	detachRender := p.renderer.Attach(render.OutputFunc(func(ctx context.Context, u render.Update) error {
		return sink.Send(ctx, Event{Type: EventRender, Data: u})
	}))

	p.mu.Lock()
	id := p.nextSink
	p.nextSink++
	p.sinks[id] = sink
	p.mu.Unlock()

	return func() {
		detachRender()
		p.mu.Lock()
		delete(p.sinks, id)
		p.mu.Unlock()
	}
}

// Init subscribes the renderer to responses, sends the initial message and only
// then subscribes to requests, so the initial message itself is never shown.
func (p *Panel) Init(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPanelClosed
	}
	if p.initialized {
		p.mu.Unlock()
		return nil
	}
	p.initialized = true
	p.mu.Unlock()

	if err := p.client.OnResponsePayload(p.ctx, p.display(conversation.AuthorWatson)); err != nil {
		return err
	}
	if err := p.client.SendRequest(ctx, p.profile.InitialMessage, nil); err != nil {
		return fmt.Errorf("send initial message: %w", err)
	}
	if err := p.client.OnRequestPayload(p.ctx, p.display(conversation.AuthorUser)); err != nil {
		return err
	}

	p.InputChanged(ctx, "", nil, "")
	log.Info().Str("component", "widget").Str("panel", p.id).Str("namespace", p.namespace).
		Int("session", p.log.State().SessionID).Msg("panel initialized")
	return nil
}

// InputKeyDown submits value on Enter. Other keys and an empty value do nothing.
func (p *Panel) InputKeyDown(ctx context.Context, keyCode int, value string) (bool, error) {
	if keyCode != KeyEnter || value == "" {
		return false, nil
	}

	state := p.log.State()
	if err := p.send(ctx, value); err != nil {
		return false, err
	}

	p.InputChanged(ctx, "", nil, "")
	if err := p.log.RecordSuggestedAt(ctx, state, sessionlog.NotSuggested); err != nil {
		log.Warn().Err(err).Str("component", "widget").Str("panel", p.id).Msg("record suggested failed")
	}
	return true, nil
}

// UseSuggestion submits a suggested question.
func (p *Panel) UseSuggestion(ctx context.Context, text string) (bool, error) {
	if text == "" {
		return false, nil
	}
	state := p.log.State()
	if err := p.send(ctx, text); err != nil {
		return false, err
	}
	if err := p.log.RecordSuggestedAt(ctx, state, sessionlog.Suggested); err != nil {
		log.Warn().Err(err).Str("component", "widget").Str("panel", p.id).Msg("record suggested failed")
	}
	return true, nil
}

// InputChanged stores the field value and re-sizes it. A nil style keeps the
// last reported style and an empty rootFontSize keeps the last one.
func (p *Panel) InputChanged(ctx context.Context, value string, style sizer.Style, rootFontSize string) sizer.Input {
	p.mu.Lock()
	p.input.Value = value
	if style != nil {
		p.input.Style = style
	}
	if rootFontSize != "" {
		p.rootFontSize = rootFontSize
	}
	p.sizer.Adjust(&p.input, p.rootFontSize)
	input := p.input
	p.mu.Unlock()

	p.broadcast(ctx, Event{Type: EventInput, Data: SizeOf(input)})
	return input
}

// Resize re-sizes the current value for a new root font size.
func (p *Panel) Resize(ctx context.Context, rootFontSize string) sizer.Input {
	p.mu.Lock()
	value := p.input.Value
	p.mu.Unlock()
	return p.InputChanged(ctx, value, nil, rootFontSize)
}

// Input returns the current field state.
func (p *Panel) Input() sizer.Input {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.input
}

// Close stops subscriptions and pending backend calls.
func (p *Panel) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.client.Close()

	if ender, ok := p.backend.(ConversationEnder); ok {
		if resp := p.client.ResponsePayload(); resp != nil && resp.Context != nil && resp.Context.ConversationID != "" {
			ender.EndConversation(context.Background(), resp.Context.ConversationID)
		}
	}
	log.Info().Str("component", "widget").Str("panel", p.id).Msg("panel closed")
}

func (p *Panel) send(ctx context.Context, text string) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPanelClosed
	}

	var carried *conversation.Context
	if resp := p.client.ResponsePayload(); resp != nil {
		carried = resp.Context
	}
	return p.client.SendRequest(ctx, text, carried)
}

func (p *Panel) display(author string) api.PayloadHandler {
	return func(ctx context.Context, payload *conversation.Payload) {
		if _, err := p.renderer.Display(ctx, payload, author); err != nil {
			log.Error().Err(err).Str("component", "widget").Str("panel", p.id).Str("author", author).Msg("display failed")
			p.broadcast(ctx, Event{Type: EventError, Data: ErrorData{Message: "could not display message"}})
		}
	}
}

func (p *Panel) broadcast(ctx context.Context, ev Event) {
	p.mu.Lock()
	sinks := make([]Sink, 0, len(p.sinks))
	for _, s := range p.sinks {
		sinks = append(sinks, s)
	}
	p.mu.Unlock()

	for _, s := range sinks {
		if err := s.Send(ctx, ev); err != nil {
			log.Debug().Err(err).Str("component", "widget").Str("panel", p.id).Str("event", ev.Type).Msg("send event failed")
		}
	}
}
