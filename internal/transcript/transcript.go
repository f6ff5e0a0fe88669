// Package transcript holds the server-side copy of a widget's scrolling chat container.
package transcript

import (
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	// ContainerID is the id of the scrolling chat element.
	ContainerID = "scrollingChat"

	ClassLatest = "latest"
	ClassLoad   = "load"
)

// Commit describes what one append did to the transcript.
type Commit struct {
	Cleared   int
	Fragments []string
	ScrollTop int
}

// Transcript is a goquery document holding the #scrollingChat container.
type Transcript struct {
	mu        sync.Mutex
	doc       *goquery.Document
	chat      *goquery.Selection
	scrollTop int
}

// New returns an empty transcript.
func New() (*Transcript, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<div id="` + ContainerID + `"></div>`))
	if err != nil {
		return nil, fmt.Errorf("create transcript document: %w", err)
	}
	chat := doc.Find("#" + ContainerID)
	if chat.Length() != 1 {
		return nil, fmt.Errorf("transcript container missing")
	}
	return &Transcript{doc: doc, chat: chat}, nil
}

// Commit removes the latest marker from the author's previous fragments, appends the new
// fragments with the load class, and scrolls to the bottom.
func (t *Transcript) Commit(authorClass string, nodes []*html.Node) (Commit, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cleared := t.clearLatest(authorClass)
	fragments, err := t.append(nodes)
	if err != nil {
		return Commit{}, err
	}
	return Commit{
		Cleared:   cleared,
		Fragments: fragments,
		ScrollTop: t.scrollToBottom(),
	}, nil
}

// Latest returns the rendered fragments of the author still marked latest.
func (t *Transcript) Latest(authorClass string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	t.chat.Find("." + authorClass + "." + ClassLatest).Each(func(_ int, sel *goquery.Selection) {
		if h, err := goquery.OuterHtml(sel); err == nil {
			out = append(out, h)
		}
	})
	return out
}

// Len is the number of fragments in the transcript.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.chat.Children().Length()
}

// ScrollTop is the offset of the last scroll.
func (t *Transcript) ScrollTop() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scrollTop
}

// HTML returns the inner markup of the container.
func (t *Transcript) HTML() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.chat.Html()
}

func (t *Transcript) clearLatest(authorClass string) int {
	previous := t.chat.Find("." + authorClass + "." + ClassLatest)
	n := previous.Length()
	previous.RemoveClass(ClassLatest)
	return n
}

func (t *Transcript) append(nodes []*html.Node) ([]string, error) {
	fragments := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.Parent != nil {
			return nil, fmt.Errorf("fragment <%s> is already attached", n.Data)
		}
		t.chat.AppendNodes(n)
		added := t.chat.Children().Last()
		added.AddClass(ClassLoad)

		rendered, err := goquery.OuterHtml(added)
		if err != nil {
			return nil, fmt.Errorf("render fragment: %w", err)
		}
		fragments = append(fragments, rendered)
	}
	return fragments, nil
}

// scrollToBottom moves the offset to the container height, measured in fragments.
func (t *Transcript) scrollToBottom() int {
	t.scrollTop = t.chat.Children().Length()
	return t.scrollTop
}
