package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/scrum-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/scrum-assistant/backend/internal/model/profile"
	chatservice "github.com/zhouzirui/scrum-assistant/backend/internal/service/chat"
)

// Answerer produces a reply to a question for a profile.
type Answerer interface {
	Answer(ctx context.Context, p *profile.Profile, history []chat.Message, question string) (Reply, error)
}

// LLMAnswerer answers through an eino prompt+model chain.
type LLMAnswerer struct {
	chain        compose.Runnable[map[string]any, *schema.Message]
	historyLimit int
}

// NewLLMAnswerer compiles the chat chain for chatModel.
func NewLLMAnswerer(ctx context.Context, chatModel model.ChatModel) (*LLMAnswerer, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &LLMAnswerer{chain: runnable, historyLimit: 10}, nil
}

// Answer runs the chain and splits the model output.
func (a *LLMAnswerer) Answer(ctx context.Context, p *profile.Profile, history []chat.Message, question string) (Reply, error) {
	input := map[string]any{
		"system":  BuildSystemPrompt(p),
		"history": buildHistoryMessages(history, a.historyLimit),
		"query":   question,
	}

	response, err := a.chain.Invoke(ctx, input)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to run AI chain: %w", err)
	}

	log.Debug().Str("component", "assistant").Str("profile", p.ID).Int("length", len(response.Content)).Msg("generated response")
	return ParseReply(response.Content), nil
}

func buildHistoryMessages(messages []chat.Message, limit int) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > limit {
		startIdx = len(messages) - limit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Sender {
		case chatservice.SenderUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chatservice.SenderAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}

// FAQAnswerer answers from the profile's canned entries without a model.
type FAQAnswerer struct{}

// Answer returns the entry with the most keyword hits, or the fallback answer.
func (FAQAnswerer) Answer(_ context.Context, p *profile.Profile, _ []chat.Message, question string) (Reply, error) {
	normalized := strings.ToLower(question)

	best := -1
	bestHits := 0
	for i, entry := range p.FAQ {
		hits := 0
		for _, kw := range entry.Keywords {
			if kw != "" && strings.Contains(normalized, strings.ToLower(kw)) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = i, hits
		}
	}

	if best < 0 {
		return Reply{Segments: []string{p.FallbackAnswer}}, nil
	}
	entry := p.FAQ[best]
	return Reply{
		Segments: append([]string(nil), entry.Answer...),
		List:     append([]string(nil), entry.List...),
	}, nil
}
