package assistant

import (
	"regexp"
	"strings"
)

// Reply is an answer split into display segments and an optional item list.
type Reply struct {
	Segments []string
	List     []string
}

var bulletPattern = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)

// ParseReply splits model output into paragraphs and bullet items.
// Bullet lines become list items; the remaining lines are grouped into
// paragraphs separated by blank lines.
func ParseReply(content string) Reply {
	var reply Reply
	var paragraph []string

	flush := func() {
		if len(paragraph) == 0 {
			return
		}
		reply.Segments = append(reply.Segments, strings.Join(paragraph, " "))
		paragraph = paragraph[:0]
	}

	for _, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			flush()
		case bulletPattern.MatchString(line):
			flush()
			if item := strings.TrimSpace(bulletPattern.ReplaceAllString(line, "")); item != "" {
				reply.List = append(reply.List, item)
			}
		default:
			paragraph = append(paragraph, trimmed)
		}
	}
	flush()
	return reply
}
