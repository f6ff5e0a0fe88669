// Package dom turns declarative element descriptions into HTML node trees.
package dom

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrEmptyElement is returned when a description has neither a tag nor HTML content.
var ErrEmptyElement = errors.New("element needs a tag name or html content")

// Attribute is a single name/value pair on an element.
type Attribute struct {
	Name  string
	Value string
}

// Element describes a node to build. Text and HTML are mutually exclusive; Text wins.
type Element struct {
	TagName    string
	ClassNames []string
	Attributes []Attribute
	Children   []Element
	Text       string
	HTML       string
}

// Builder builds node trees, sanitizing HTML content with its policy.
type Builder struct {
	policy *bluemonday.Policy
}

// NewBuilder returns a Builder using the given policy, or the UGC policy when nil.
func NewBuilder(policy *bluemonday.Policy) *Builder {
	if policy == nil {
		policy = bluemonday.UGCPolicy()
	}
	return &Builder{policy: policy}
}

// Build produces one node for the description. A description without a tag name but
// with HTML yields a <div> holding the parsed content.
func (b *Builder) Build(el Element) (*html.Node, error) {
	tag := strings.ToLower(strings.TrimSpace(el.TagName))
	if tag == "" {
		if el.HTML == "" {
			return nil, ErrEmptyElement
		}
		tag = "div"
	}

	node := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}

	if len(el.ClassNames) > 0 {
		node.Attr = append(node.Attr, html.Attribute{Key: "class", Val: strings.Join(el.ClassNames, " ")})
	}
	for _, attr := range el.Attributes {
		if attr.Name == "" {
			continue
		}
		node.Attr = append(node.Attr, html.Attribute{Key: strings.ToLower(attr.Name), Val: attr.Value})
	}

	for i, child := range el.Children {
		childNode, err := b.Build(child)
		if err != nil {
			return nil, fmt.Errorf("child %d of <%s>: %w", i, tag, err)
		}
		node.AppendChild(childNode)
	}

	switch {
	case el.Text != "":
		node.AppendChild(&html.Node{Type: html.TextNode, Data: el.Text})
	case el.HTML != "":
		nodes, err := b.parseHTML(node, el.HTML)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			node.AppendChild(n)
		}
	}

	return node, nil
}

func (b *Builder) parseHTML(context *html.Node, raw string) ([]*html.Node, error) {
	clean := b.policy.Sanitize(raw)
	nodes, err := html.ParseFragment(strings.NewReader(clean), &html.Node{
		Type:     html.ElementNode,
		Data:     context.Data,
		DataAtom: context.DataAtom,
	})
	if err != nil {
		return nil, fmt.Errorf("parse html content: %w", err)
	}
	return nodes, nil
}

// Render serializes a node and its subtree.
func Render(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ForEach calls fn for every node in the list.
func ForEach(nodes []*html.Node, fn func(i int, n *html.Node)) {
	for i, n := range nodes {
		fn(i, n)
	}
}
