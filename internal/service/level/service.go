package level

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	analysis "github.com/zhouzirui/scrum-assistant/backend/internal/analysis/level"
	"github.com/zhouzirui/scrum-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/scrum-assistant/backend/internal/model/profile"
)

// Config 控制问题等级分类服务的行为。
type Config struct {
	Enabled      bool
	HistoryLimit int
}

// Result 表示一次等级分类的结果。
type Result struct {
	Level      analysis.Label
	Confidence float32
	Reason     string
}

// Service 使用大模型对用户问题分级，失败时回退到关键词规则。
type Service struct {
	enabled      bool
	classifier   compose.Runnable[map[string]any, *schema.Message]
	fallback     func(question string) analysis.Decision
	historyLimit int
}

// NewService 创建等级分类服务。chatModel 为 nil 时只使用关键词规则。
func NewService(ctx context.Context, chatModel model.ChatModel, cfg Config) (*Service, error) {
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 6
	}

	svc := &Service{
		enabled:      cfg.Enabled && chatModel != nil,
		fallback:     analysis.Analyze,
		historyLimit: historyLimit,
	}

	if !svc.enabled {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(levelSystemPrompt),
		schema.UserMessage(levelUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile level classifier chain: %w", err)
	}

	svc.classifier = runnable
	return svc, nil
}

// Enabled 返回大模型分类是否启用。
func (s *Service) Enabled() bool {
	return s != nil && s.enabled && s.classifier != nil
}

// Classify 根据资料与历史对话判断问题等级。
func (s *Service) Classify(ctx context.Context, p *profile.Profile, history []chat.Message, question string) Result {
	if !s.Enabled() {
		return s.fallbackResult(question)
	}

	input := map[string]any{
		"profile":  summarizeProfile(p),
		"history":  formatHistory(history, s.historyLimit),
		"question": strings.TrimSpace(question),
	}

	msg, err := s.classifier.Invoke(ctx, input)
	if err != nil {
		log.Warn().Err(err).Str("component", "level").Msg("classifier invoke failed, use fallback")
		return s.fallbackResult(question)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return s.fallbackResult(question)
	}

	out, err := parseClassifierOutput(msg.Content)
	if err != nil {
		log.Warn().Err(err).Str("component", "level").Msg("classifier output parse failed, use fallback")
		return s.fallbackResult(question)
	}

	label, ok := analysis.Parse(out.Level)
	if !ok {
		return s.fallbackResult(question)
	}

	confidence := out.Confidence
	if confidence <= 0 {
		confidence = 0.6
	}
	if confidence > 1 {
		confidence = 1
	}

	return Result{Level: label, Confidence: confidence, Reason: strings.TrimSpace(out.Reason)}
}

func (s *Service) fallbackResult(question string) Result {
	decision := s.fallback(question)
	confidence := float32(0.3)
	if decision.Score > 0 {
		confidence = 0.55
	}
	return Result{Level: decision.Level, Confidence: confidence, Reason: "fallback"}
}

// parseClassifierOutput 解析大模型返回的 JSON。
func parseClassifierOutput(content string) (*classifierPayload, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("missing json object")
	}

	payload := &classifierPayload{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func summarizeProfile(p *profile.Profile) string {
	if p == nil {
		return "General Scrum tutor."
	}
	sections := []string{
		fmt.Sprintf("name:%s", strings.TrimSpace(p.Name)),
		fmt.Sprintf("title:%s", strings.TrimSpace(p.Title)),
	}
	if tone := strings.TrimSpace(p.Tone); tone != "" {
		sections = append(sections, fmt.Sprintf("tone:%s", tone))
	}
	return strings.Join(sections, " | ")
}

func formatHistory(messages []chat.Message, limit int) string {
	if len(messages) == 0 {
		return "no prior turns"
	}
	if limit < 1 {
		limit = 1
	}
	start := len(messages) - limit
	if start < 0 {
		start = 0
	}

	var builder strings.Builder
	for i := start; i < len(messages); i++ {
		msg := messages[i]
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		role := "user"
		if strings.EqualFold(msg.Sender, "assistant") {
			role = "assistant"
		}
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(role)
		builder.WriteString(": ")
		builder.WriteString(content)
	}
	if builder.Len() == 0 {
		return "no prior turns"
	}
	return builder.String()
}

type classifierPayload struct {
	Level      string  `json:"level"`
	Confidence float32 `json:"confidence"`
	Reason     string  `json:"reason"`
}

const levelSystemPrompt = "You grade questions about the Scrum framework by the experience they assume. " +
	"Read the assistant profile, the recent turns and the new question. " +
	"Return only one JSON object with the fields level (one of basic/intermediate/advanced), " +
	"confidence (a number between 0 and 1) and reason (one short sentence). Do not output any other text."

const levelUserPrompt = "Assistant profile:\n{profile}\n\nRecent turns:\n{history}\n\nQuestion:\n{question}\n\nAnswer with the JSON object."
