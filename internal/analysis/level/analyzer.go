package level

import (
	"strings"
)

// Label 表示问题的难度等级。
type Label string

const (
	Basic        Label = "basic"
	Intermediate Label = "intermediate"
	Advanced     Label = "advanced"
)

// Decision 给出等级判定结果及其得分。
type Decision struct {
	Level Label
	Score int
}

// ordered from least to most advanced; ties resolve to the later label.
var labels = []Label{Basic, Intermediate, Advanced}

var keywordBuckets = map[Label][]string{
	Basic: {
		"what is", "what's", "who is", "define", "meaning of", "explain", "scrum master", "product owner",
		"developers", "sprint", "daily scrum", "standup", "stand-up", "backlog", "diagram", "overview",
		"roles", "events", "artifacts",
	},
	Intermediate: {
		"refinement", "definition of done", "sprint goal", "product goal", "increment", "retrospective",
		"velocity", "burndown", "burn-down", "story points", "estimation", "estimate", "timebox", "time-box",
		"stakeholder", "acceptance criteria", "user story", "kanban",
	},
	Advanced: {
		"scaling", "scaled", "nexus", "less", "safe", "evidence-based", "empiricism", "technical debt",
		"flow metrics", "cycle time", "throughput", "monte carlo", "forecast", "cynefin", "multiple teams",
		"dependencies", "organizational", "transformation", "anti-pattern", "antipattern",
	},
}

// longQuestionWords is the word count past which a question leans advanced.
const longQuestionWords = 25

// Analyze 根据关键词推断用户问题的难度等级，未命中任何关键词时视为基础问题。
func Analyze(question string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(question))
	if normalized == "" {
		return Decision{Level: Basic}
	}

	words := strings.Fields(normalized)
	wordSet := make(map[string]struct{}, len(words))
	for _, w := range words {
		wordSet[strings.Trim(w, "?!.,;:()\"'")] = struct{}{}
	}

	scores := make(map[Label]int)
	for label, keywords := range keywordBuckets {
		for _, keyword := range keywords {
			if matches(normalized, wordSet, keyword) {
				scores[label] += 3
			}
		}
	}

	if len(words) > longQuestionWords {
		scores[Advanced]++
	}

	best := Basic
	bestScore := 0
	for _, label := range labels {
		if s := scores[label]; s > 0 && s >= bestScore {
			best = label
			bestScore = s
		}
	}
	return Decision{Level: best, Score: bestScore}
}

// Parse 将任意字符串规范化为等级标签。
func Parse(raw string) (Label, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "basic", "beginner":
		return Basic, true
	case "intermediate":
		return Intermediate, true
	case "advanced", "expert":
		return Advanced, true
	default:
		return "", false
	}
}

// Single-word keywords must match a whole word ("less" must not match "unless").
func matches(text string, words map[string]struct{}, keyword string) bool {
	if !strings.Contains(keyword, " ") {
		_, ok := words[keyword]
		return ok
	}
	return strings.Contains(text, keyword)
}
