package render

import (
	"github.com/zhouzirui/scrum-assistant/backend/internal/dom"
	"github.com/zhouzirui/scrum-assistant/backend/internal/model/conversation"
	"github.com/zhouzirui/scrum-assistant/backend/internal/model/profile"
)

// Rule adds extra assistant fragments after a rendered segment.
// last is true for the final non-empty segment of the payload.
type Rule interface {
	Augment(payload *conversation.Payload, segment string, last bool) []dom.Element
}

// DiagramRule shows the reference image after the sentinel sentence.
type DiagramRule struct {
	Diagram profile.Diagram
}

func (r DiagramRule) Augment(_ *conversation.Payload, segment string, _ bool) []dom.Element {
	if r.Diagram.Sentinel == "" || segment != r.Diagram.Sentinel {
		return nil
	}
	return []dom.Element{{
		TagName: "img",
		Attributes: []dom.Attribute{
			{Name: "id", Value: r.Diagram.ElemID},
			{Name: "src", Value: r.Diagram.Src},
			{Name: "alt", Value: r.Diagram.Alt},
			{Name: "style", Value: "width: 100%;"},
		},
	}}
}

// ListRule renders the response context list as a bulleted list once per payload.
type ListRule struct{}

func (ListRule) Augment(payload *conversation.Payload, _ string, last bool) []dom.Element {
	if !last {
		return nil
	}
	items := payload.ContextOrEmpty().List
	if len(items) == 0 {
		return nil
	}

	list := dom.Element{TagName: "ul", Children: make([]dom.Element, 0, len(items))}
	for _, item := range items {
		list.Children = append(list.Children, dom.Element{TagName: "li", Text: item})
	}
	return []dom.Element{list}
}

// DefaultRules returns the assistant rules in application order.
func DefaultRules(p profile.Profile) []Rule {
	return []Rule{DiagramRule{Diagram: p.Diagram}, ListRule{}}
}
