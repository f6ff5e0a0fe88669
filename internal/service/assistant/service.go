// Package assistant implements the conversational backend the widget talks to.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/scrum-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/scrum-assistant/backend/internal/model/conversation"
	"github.com/zhouzirui/scrum-assistant/backend/internal/model/profile"
	chatservice "github.com/zhouzirui/scrum-assistant/backend/internal/service/chat"
	levelservice "github.com/zhouzirui/scrum-assistant/backend/internal/service/level"
)

var ErrEmptyQuestion = errors.New("request carries no input text")

// Service answers request payloads for one profile, keeping history per conversation id.
type Service struct {
	profile  profile.Profile
	answerer Answerer
	levels   *levelservice.Service
	history  *chatservice.Service
}

// NewService wires a backend; levels may be nil to skip classification.
func NewService(p profile.Profile, answerer Answerer, levels *levelservice.Service, history *chatservice.Service) *Service {
	return &Service{
		profile:  p.WithDefaults(),
		answerer: answerer,
		levels:   levels,
		history:  history,
	}
}

// Profile returns the profile the service answers as.
func (s *Service) Profile() profile.Profile {
	return s.profile
}

// Converse answers req. The initial message is answered with the greeting and
// no level; questions mentioning the diagram are answered with its sentinel.
func (s *Service) Converse(ctx context.Context, req *conversation.Payload) (*conversation.Payload, error) {
	question := strings.TrimSpace(req.Text(true).First())
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	carried := req.ContextOrEmpty().Clone()
	conversationID, err := s.ensureConversation(ctx, carried.ConversationID)
	if err != nil {
		return nil, err
	}
	carried.ConversationID = conversationID
	carried.List = nil
	carried.Level = nil

	if question == s.profile.InitialMessage {
		return &conversation.Payload{
			Output:  &conversation.Output{Text: conversation.TextList{s.profile.Greeting}},
			Context: carried,
		}, nil
	}

	history, err := s.history.LoadTranscript(ctx, conversationID, 0)
	if err != nil {
		return nil, err
	}

	if s.levels != nil {
		result := s.levels.Classify(ctx, &s.profile, history, question)
		carried.Level = conversation.TextList{string(result.Level)}
	}

	var reply Reply
	if s.asksForDiagram(question) {
		reply = Reply{Segments: []string{s.profile.Diagram.Sentinel}}
	} else {
		reply, err = s.answerer.Answer(ctx, &s.profile, history, question)
		if err != nil {
			return nil, fmt.Errorf("answer question: %w", err)
		}
	}
	if len(reply.Segments) == 0 && len(reply.List) == 0 {
		reply.Segments = []string{s.profile.FallbackAnswer}
	}

	s.remember(ctx, conversationID, question, reply, carried.LevelValue())

	carried.List = reply.List
	return &conversation.Payload{
		Output:  &conversation.Output{Text: conversation.TextList(reply.Segments)},
		Context: carried,
	}, nil
}

// EndConversation drops the history of a conversation.
func (s *Service) EndConversation(ctx context.Context, conversationID string) {
	s.history.DeleteSession(ctx, conversationID)
}

func (s *Service) ensureConversation(ctx context.Context, id string) (string, error) {
	if id != "" {
		if _, err := s.history.GetSession(ctx, id); err == nil {
			return id, nil
		} else if !errors.Is(err, chatservice.ErrSessionNotFound) {
			return "", err
		}
	} else {
		id = uuid.NewString()
	}

	session, err := s.history.CreateSession(ctx, id, s.profile.ID)
	if err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}
	return session.ID, nil
}

func (s *Service) asksForDiagram(question string) bool {
	normalized := strings.ToLower(question)
	for _, kw := range s.profile.Diagram.Keywords {
		if kw != "" && strings.Contains(normalized, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func (s *Service) remember(ctx context.Context, conversationID, question string, reply Reply, level string) {
	answer := strings.Join(reply.Segments, "\n\n")
	if len(reply.List) > 0 {
		answer += "\n- " + strings.Join(reply.List, "\n- ")
	}

	for _, msg := range []chat.Message{
		{SessionID: conversationID, Sender: chatservice.SenderUser, Content: question, Level: level},
		{SessionID: conversationID, Sender: chatservice.SenderAssistant, Content: answer},
	} {
		if err := s.history.SaveMessage(ctx, msg); err != nil {
			log.Warn().Err(err).Str("component", "assistant").Str("conversation", conversationID).Msg("save history failed")
		}
	}
}
