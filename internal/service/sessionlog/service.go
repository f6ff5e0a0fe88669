// Package sessionlog records questions, levels, answers and suggestion usage
// of one browser under sequential session/question counters.
package sessionlog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/scrum-assistant/backend/internal/storage"
)

// Field names one column of a logged question.
type Field string

const (
	FieldQuestion  Field = "question"
	FieldLevel     Field = "level"
	FieldAnswer    Field = "answer"
	FieldSuggested Field = "suggested"
)

// Values recorded under FieldSuggested.
const (
	NotSuggested = "Not suggested"
	Suggested    = "Suggested"
)

const (
	sessionMarker  = "sessionID"
	questionMarker = "questionID"
)

// State 表示当前会话计数器。
type State struct {
	SessionID  int `json:"sessionId"`
	QuestionID int `json:"questionId"`
}

// Key builds the unqualified storage key for a field of one question.
func Key(sessionID, questionID int, field Field) string {
	return fmt.Sprintf("%d_%d_%s", sessionID, questionID, field)
}

// Log writes entries of one namespace (one browser) into a shared store.
type Log struct {
	store     storage.Store
	namespace string

	mu    sync.Mutex
	state State
}

// Open starts a new logging session for namespace. A namespace without a
// session marker starts at session 0, question 0; otherwise the previous
// session is incremented and the question counter restarts at 1. A corrupt
// marker is replaced by the highest session found among the stored entries.
func Open(ctx context.Context, store storage.Store, namespace string) (*Log, error) {
	l := &Log{store: store, namespace: namespace}

	raw, ok, err := store.Get(ctx, l.qualify(sessionMarker))
	if err != nil {
		return nil, fmt.Errorf("read session marker: %w", err)
	}

	if ok {
		prev, convErr := strconv.Atoi(strings.TrimSpace(raw))
		if convErr != nil {
			recovered, found, err := l.lastLoggedSession(ctx)
			if err != nil {
				return nil, err
			}
			log.Warn().Str("component", "sessionlog").Str("namespace", namespace).
				Str("marker", raw).Bool("recovered", found).Int("last_session", recovered).
				Msg("corrupt session marker")
			if found {
				l.state = State{SessionID: recovered + 1, QuestionID: 1}
			}
		} else {
			l.state = State{SessionID: prev + 1, QuestionID: 1}
		}
	}

	if err := l.persistState(ctx, l.state); err != nil {
		return nil, err
	}
	return l, nil
}

// Namespace returns the namespace entries are written under.
func (l *Log) Namespace() string {
	return l.namespace
}

// State returns a snapshot of the counters.
func (l *Log) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// RecordQuestion stores the user's question for the current question id.
func (l *Log) RecordQuestion(ctx context.Context, text string) error {
	return l.put(ctx, l.State(), FieldQuestion, text)
}

// RecordLevel stores the classified level for the current question id.
func (l *Log) RecordLevel(ctx context.Context, level string) error {
	return l.put(ctx, l.State(), FieldLevel, level)
}

// RecordSuggested stores whether the current question came from a suggestion.
func (l *Log) RecordSuggested(ctx context.Context, value string) error {
	return l.put(ctx, l.State(), FieldSuggested, value)
}

// RecordSuggestedAt stores the suggestion marker for a question captured earlier
// with State, so a fast answer advancing the counter cannot shift it.
func (l *Log) RecordSuggestedAt(ctx context.Context, state State, value string) error {
	return l.put(ctx, state, FieldSuggested, value)
}

// RecordAnswer stores the answer and advances the question counter.
func (l *Log) RecordAnswer(ctx context.Context, text string) error {
	l.mu.Lock()
	current := l.state
	l.state.QuestionID++
	next := l.state
	l.mu.Unlock()

	if err := l.put(ctx, current, FieldAnswer, text); err != nil {
		return err
	}
	return l.persistState(ctx, next)
}

// Entries lists every entry of the namespace with the namespace prefix removed.
func (l *Log) Entries(ctx context.Context) ([]storage.Entry, error) {
	return Entries(ctx, l.store, l.namespace)
}

// Entries lists the entries of namespace in store.
func Entries(ctx context.Context, store storage.Store, namespace string) ([]storage.Entry, error) {
	prefix := namespace + ":"
	entries, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list session log: %w", err)
	}
	for i := range entries {
		entries[i].Key = strings.TrimPrefix(entries[i].Key, prefix)
	}
	return entries, nil
}

// lastLoggedSession returns the highest session number among the entry keys
// of the namespace.
func (l *Log) lastLoggedSession(ctx context.Context) (int, bool, error) {
	entries, err := l.Entries(ctx)
	if err != nil {
		return 0, false, err
	}

	last, found := 0, false
	for _, e := range entries {
		head, _, ok := strings.Cut(e.Key, "_")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(head)
		if err != nil || n < 0 {
			continue
		}
		if !found || n > last {
			last, found = n, true
		}
	}
	return last, found, nil
}

func (l *Log) put(ctx context.Context, state State, field Field, value string) error {
	key := l.qualify(Key(state.SessionID, state.QuestionID, field))
	if err := l.store.Put(ctx, key, value); err != nil {
		return fmt.Errorf("record %s: %w", field, err)
	}
	return nil
}

func (l *Log) persistState(ctx context.Context, state State) error {
	if err := l.store.Put(ctx, l.qualify(sessionMarker), strconv.Itoa(state.SessionID)); err != nil {
		return fmt.Errorf("write session marker: %w", err)
	}
	if err := l.store.Put(ctx, l.qualify(questionMarker), strconv.Itoa(state.QuestionID)); err != nil {
		return fmt.Errorf("write question marker: %w", err)
	}
	return nil
}

func (l *Log) qualify(key string) string {
	return l.namespace + ":" + key
}
