package assistant

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/scrum-assistant/backend/internal/model/profile"
)

// BuildSystemPrompt creates the system prompt for a profile.
func BuildSystemPrompt(p *profile.Profile) string {
	if strings.TrimSpace(p.SystemPrompt) == "" {
		return buildBasicSystemPrompt(p)
	}

	var rules string
	if len(p.Rules) > 0 {
		rules = "- " + strings.Join(p.Rules, "\n- ")
	}

	return fmt.Sprintf(`%s

Assistant profile:
- Name: %s
- Title: %s
- Tone: %s

Conversation rules:
%s

Formatting:
- Separate paragraphs with a blank line.
- Put enumerated items on their own lines starting with "- ".`,
		p.SystemPrompt,
		p.Name,
		p.Title,
		p.Tone,
		rules,
	)
}

func buildBasicSystemPrompt(p *profile.Profile) string {
	return fmt.Sprintf(`You are %s, %s.

Answer in a %s tone. Keep answers short and separate paragraphs with a blank line.`,
		p.Name,
		p.Title,
		p.Tone,
	)
}
