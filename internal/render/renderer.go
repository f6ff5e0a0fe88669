// Package render turns request/response payloads into transcript fragments,
// logs the exchange and pushes the result to attached outputs.
package render

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"golang.org/x/net/html"

	"github.com/zhouzirui/scrum-assistant/backend/internal/dom"
	"github.com/zhouzirui/scrum-assistant/backend/internal/model/conversation"
	"github.com/zhouzirui/scrum-assistant/backend/internal/model/profile"
	"github.com/zhouzirui/scrum-assistant/backend/internal/transcript"
)

const (
	classSegments     = "segments"
	classFromUser     = "from-user"
	classFromWatson   = "from-watson"
	classTop          = "top"
	classSub          = "sub"
	classMessageInner = "message-inner"
)

// Update is what one Display call appended to the transcript.
type Update struct {
	Author    string   `json:"author"`
	Fragments []string `json:"fragments"`
	Cleared   int      `json:"cleared"`
	ScrollTop int      `json:"scrollTop"`
}

// Output receives updates, e.g. a websocket or an SSE mirror.
type Output interface {
	Push(ctx context.Context, update Update) error
}

// OutputFunc adapts a function to Output.
type OutputFunc func(ctx context.Context, update Update) error

func (f OutputFunc) Push(ctx context.Context, update Update) error { return f(ctx, update) }

// SessionLog records the exchange; *sessionlog.Log satisfies it.
type SessionLog interface {
	RecordQuestion(ctx context.Context, text string) error
	RecordLevel(ctx context.Context, level string) error
	RecordAnswer(ctx context.Context, text string) error
}

// Options configure a Renderer.
type Options struct {
	Profile  profile.Profile
	Log      SessionLog
	Rules    []Rule
	Markdown bool
	Builder  *dom.Builder
}

// Renderer owns the transcript of one panel.
type Renderer struct {
	builder    *dom.Builder
	transcript *transcript.Transcript
	profile    profile.Profile
	rules      []Rule
	log        SessionLog
	markdown   goldmark.Markdown

	// serializes Display so log writes and commits of one payload stay together
	displayMu sync.Mutex

	mu      sync.RWMutex
	outputs map[string]Output
}

// New creates a renderer with an empty transcript.
func New(opts Options) (*Renderer, error) {
	t, err := transcript.New()
	if err != nil {
		return nil, err
	}

	p := opts.Profile.WithDefaults()
	rules := opts.Rules
	if rules == nil {
		rules = DefaultRules(p)
	}
	builder := opts.Builder
	if builder == nil {
		builder = dom.NewBuilder(nil)
	}

	r := &Renderer{
		builder:    builder,
		transcript: t,
		profile:    p,
		rules:      rules,
		log:        opts.Log,
		outputs:    make(map[string]Output),
	}
	if opts.Markdown {
		r.markdown = goldmark.New()
	}
	return r, nil
}

// Transcript exposes the rendered document.
func (r *Renderer) Transcript() *transcript.Transcript {
	return r.transcript
}

// Attach registers an output and returns a function that detaches it.
func (r *Renderer) Attach(out Output) (detach func()) {
	id := uuid.NewString()
	r.mu.Lock()
	r.outputs[id] = out
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.outputs, id)
		r.mu.Unlock()
	}
}

// Display renders payload as authorTag. Unknown tags and payloads without
// text for the author are ignored and yield an empty Update.
func (r *Renderer) Display(ctx context.Context, payload *conversation.Payload, authorTag string) (Update, error) {
	isUser, ok := conversation.IsUserMessage(authorTag)
	if !ok {
		log.Debug().Str("component", "render").Str("author", authorTag).Msg("ignore unknown author")
		return Update{}, nil
	}
	if payload == nil || !payload.HasText() {
		return Update{}, nil
	}

	segments := payload.Text(isUser).NonEmpty()
	if len(segments) == 0 {
		return Update{}, nil
	}

	r.displayMu.Lock()
	defer r.displayMu.Unlock()

	elements, err := r.buildElements(payload, segments, isUser)
	if err != nil {
		return Update{}, err
	}

	nodes := make([]*html.Node, 0, len(elements))
	for _, el := range elements {
		n, err := r.builder.Build(el)
		if err != nil {
			return Update{}, fmt.Errorf("build fragment: %w", err)
		}
		nodes = append(nodes, n)
	}

	r.record(ctx, payload, segments, isUser)

	author := authorClass(isUser)
	commit, err := r.transcript.Commit(author, nodes)
	if err != nil {
		return Update{}, err
	}

	update := Update{
		Author:    authorTag,
		Fragments: commit.Fragments,
		Cleared:   commit.Cleared,
		ScrollTop: commit.ScrollTop,
	}
	r.push(ctx, update)
	return update, nil
}

func (r *Renderer) buildElements(payload *conversation.Payload, segments []string, isUser bool) ([]dom.Element, error) {
	elements := make([]dom.Element, 0, len(segments)+1)
	for i, segment := range segments {
		inner, err := r.segmentContent(segment, isUser)
		if err != nil {
			return nil, err
		}
		elements = append(elements, fragment(isUser, len(elements) == 0, inner))

		if isUser {
			continue
		}
		last := i == len(segments)-1
		for _, rule := range r.rules {
			for _, extra := range rule.Augment(payload, segment, last) {
				elements = append(elements, fragment(isUser, len(elements) == 0, extra))
			}
		}
	}
	return elements, nil
}

func (r *Renderer) segmentContent(segment string, isUser bool) (dom.Element, error) {
	if isUser || r.markdown == nil {
		return dom.Element{TagName: "p", Text: segment}, nil
	}
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(segment), &buf); err != nil {
		return dom.Element{}, fmt.Errorf("convert markdown: %w", err)
	}
	return dom.Element{HTML: buf.String()}, nil
}

// record writes the question, or the level and answer, to the session log.
func (r *Renderer) record(ctx context.Context, payload *conversation.Payload, segments []string, isUser bool) {
	if r.log == nil {
		return
	}

	first := segments[0]
	if isUser {
		if first == r.profile.InitialMessage {
			return
		}
		if err := r.log.RecordQuestion(ctx, first); err != nil {
			log.Warn().Err(err).Str("component", "render").Msg("record question failed")
		}
		return
	}

	if first == r.profile.Greeting {
		return
	}
	if level := payload.ContextOrEmpty().LevelValue(); level != "" {
		if err := r.log.RecordLevel(ctx, level); err != nil {
			log.Warn().Err(err).Str("component", "render").Msg("record level failed")
		}
	}
	if err := r.log.RecordAnswer(ctx, first); err != nil {
		log.Warn().Err(err).Str("component", "render").Msg("record answer failed")
	}
}

func (r *Renderer) push(ctx context.Context, update Update) {
	r.mu.RLock()
	outputs := make([]Output, 0, len(r.outputs))
	for _, out := range r.outputs {
		outputs = append(outputs, out)
	}
	r.mu.RUnlock()

	for _, out := range outputs {
		if err := out.Push(ctx, update); err != nil {
			log.Warn().Err(err).Str("component", "render").Msg("push update failed")
		}
	}
}

func authorClass(isUser bool) string {
	if isUser {
		return classFromUser
	}
	return classFromWatson
}

// fragment wraps content as segments > from-* latest top|sub > message-inner.
func fragment(isUser, first bool, content dom.Element) dom.Element {
	position := classSub
	if first {
		position = classTop
	}
	return dom.Element{
		TagName:    "div",
		ClassNames: []string{classSegments},
		Children: []dom.Element{{
			TagName:    "div",
			ClassNames: []string{authorClass(isUser), transcript.ClassLatest, position},
			Children: []dom.Element{{
				TagName:    "div",
				ClassNames: []string{classMessageInner},
				Children:   []dom.Element{content},
			}},
		}},
	}
}
