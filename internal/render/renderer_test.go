package render

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/scrum-assistant/backend/internal/model/conversation"
	"github.com/zhouzirui/scrum-assistant/backend/internal/model/profile"
)

type recordingLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordingLog) add(kind, text string) error {
	l.mu.Lock()
	l.entries = append(l.entries, kind+"="+text)
	l.mu.Unlock()
	return nil
}

func (l *recordingLog) RecordQuestion(_ context.Context, text string) error {
	return l.add("question", text)
}

func (l *recordingLog) RecordLevel(_ context.Context, text string) error {
	return l.add("level", text)
}

func (l *recordingLog) RecordAnswer(_ context.Context, text string) error {
	return l.add("answer", text)
}

func newRenderer(t *testing.T) (*Renderer, *recordingLog) {
	t.Helper()
	l := &recordingLog{}
	r, err := New(Options{Profile: profile.Seed()[0], Log: l})
	require.NoError(t, err)
	return r, l
}

func response(text []string, ctx *conversation.Context) *conversation.Payload {
	return &conversation.Payload{Output: &conversation.Output{Text: text}, Context: ctx}
}

func parse(t *testing.T, fragment string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	require.NoError(t, err)
	return doc.Find("div.segments").First()
}

func TestDisplaySingleUserText(t *testing.T) {
	r, l := newRenderer(t)

	update, err := r.Display(context.Background(), conversation.NewRequest("Hello", nil), conversation.AuthorUser)
	require.NoError(t, err)
	require.Len(t, update.Fragments, 1)

	seg := parse(t, update.Fragments[0])
	assert.True(t, seg.HasClass("load"))
	inner := seg.Children().First()
	assert.True(t, inner.HasClass("from-user"))
	assert.True(t, inner.HasClass("latest"))
	assert.True(t, inner.HasClass("top"))
	assert.Equal(t, "Hello", inner.Find(".message-inner p").Text())

	assert.Equal(t, []string{"question=Hello"}, l.entries)
	assert.Equal(t, 1, update.ScrollTop)
}

func TestDisplayMultipleSegmentsTopThenSub(t *testing.T) {
	r, _ := newRenderer(t)

	update, err := r.Display(context.Background(), response([]string{"one", "", "two", "three"}, nil), conversation.AuthorWatson)
	require.NoError(t, err)
	require.Len(t, update.Fragments, 3)

	for i, f := range update.Fragments {
		inner := parse(t, f).Children().First()
		assert.True(t, inner.HasClass("from-watson"))
		assert.True(t, inner.HasClass("latest"))
		assert.Equal(t, i == 0, inner.HasClass("top"))
		assert.Equal(t, i > 0, inner.HasClass("sub"))
	}
	assert.Equal(t, "three", parse(t, update.Fragments[2]).Find("p").Text())
}

func TestDisplayClearsPreviousLatestOfSameAuthorOnly(t *testing.T) {
	r, _ := newRenderer(t)
	ctx := context.Background()

	_, err := r.Display(ctx, response([]string{"a", "b"}, nil), conversation.AuthorWatson)
	require.NoError(t, err)
	_, err = r.Display(ctx, conversation.NewRequest("q", nil), conversation.AuthorUser)
	require.NoError(t, err)

	update, err := r.Display(ctx, response([]string{"c"}, nil), conversation.AuthorWatson)
	require.NoError(t, err)
	assert.Equal(t, 2, update.Cleared)

	tr := r.Transcript()
	assert.Len(t, tr.Latest("from-watson"), 1)
	assert.Len(t, tr.Latest("from-user"), 1)
	assert.Equal(t, 4, tr.Len())
}

func TestDisplayUnknownAuthorIsIgnored(t *testing.T) {
	r, l := newRenderer(t)

	update, err := r.Display(context.Background(), conversation.NewRequest("Hello", nil), "system")
	require.NoError(t, err)
	assert.Empty(t, update.Fragments)
	assert.Zero(t, r.Transcript().Len())
	assert.Empty(t, l.entries)
}

func TestDisplayWithoutTextIsIgnored(t *testing.T) {
	r, l := newRenderer(t)

	update, err := r.Display(context.Background(), response([]string{"", ""}, &conversation.Context{List: []string{"a"}}), conversation.AuthorWatson)
	require.NoError(t, err)
	assert.Empty(t, update.Fragments)
	assert.Empty(t, l.entries)
}

func TestDisplayGreetingIsNotLogged(t *testing.T) {
	r, l := newRenderer(t)
	ctx := &conversation.Context{Level: conversation.TextList{"basic"}}

	update, err := r.Display(context.Background(), response([]string{profile.DefaultGreeting}, ctx), conversation.AuthorWatson)
	require.NoError(t, err)
	assert.Len(t, update.Fragments, 1)
	assert.Empty(t, l.entries)
}

func TestDisplayInitialMessageIsNotLogged(t *testing.T) {
	r, l := newRenderer(t)

	_, err := r.Display(context.Background(), conversation.NewRequest(profile.DefaultInitialMessage, nil), conversation.AuthorUser)
	require.NoError(t, err)
	assert.Empty(t, l.entries)
}

func TestDisplayAnswerLogsLevelThenAnswer(t *testing.T) {
	r, l := newRenderer(t)
	ctx := &conversation.Context{Level: conversation.TextList{"advanced"}}

	_, err := r.Display(context.Background(), response([]string{"", "Nexus scales Scrum.", "More."}, ctx), conversation.AuthorWatson)
	require.NoError(t, err)
	assert.Equal(t, []string{"level=advanced", "answer=Nexus scales Scrum."}, l.entries)
}

func TestDisplayAnswerWithoutLevel(t *testing.T) {
	r, l := newRenderer(t)

	_, err := r.Display(context.Background(), response([]string{"Sure."}, nil), conversation.AuthorWatson)
	require.NoError(t, err)
	assert.Equal(t, []string{"answer=Sure."}, l.entries)
}

func TestDisplayDiagramSentinelAddsImage(t *testing.T) {
	r, _ := newRenderer(t)

	update, err := r.Display(context.Background(), response([]string{profile.DefaultDiagramSentinel}, nil), conversation.AuthorWatson)
	require.NoError(t, err)
	require.Len(t, update.Fragments, 2)

	img := parse(t, update.Fragments[1]).Find(".message-inner img")
	require.Equal(t, 1, img.Length())
	src, _ := img.Attr("src")
	id, _ := img.Attr("id")
	assert.Equal(t, "/img/scrum-framework-diagram.svg", src)
	assert.Equal(t, "scrumDiagram", id)
	assert.True(t, parse(t, update.Fragments[1]).Children().First().HasClass("sub"))
}

func TestDisplayContextListAddsOneList(t *testing.T) {
	r, _ := newRenderer(t)
	ctx := &conversation.Context{List: []string{"a", "<b>b</b>"}}

	update, err := r.Display(context.Background(), response([]string{"Items:", "More:"}, ctx), conversation.AuthorWatson)
	require.NoError(t, err)
	require.Len(t, update.Fragments, 3)

	list := parse(t, update.Fragments[2]).Find("ul li")
	require.Equal(t, 2, list.Length())
	assert.Equal(t, "a", list.Eq(0).Text())
	assert.Equal(t, "<b>b</b>", list.Eq(1).Text())
	assert.Equal(t, 0, list.Find("b").Length())
}

func TestDisplayUserPayloadIgnoresAugmentation(t *testing.T) {
	r, _ := newRenderer(t)
	req := conversation.NewRequest(profile.DefaultDiagramSentinel, &conversation.Context{List: []string{"a"}})

	update, err := r.Display(context.Background(), req, conversation.AuthorUser)
	require.NoError(t, err)
	assert.Len(t, update.Fragments, 1)
}

func TestDisplayMarkdown(t *testing.T) {
	r, err := New(Options{Profile: profile.Seed()[0], Markdown: true})
	require.NoError(t, err)

	update, err := r.Display(context.Background(), response([]string{"Use **timeboxes** <script>x</script>"}, nil), conversation.AuthorWatson)
	require.NoError(t, err)
	require.Len(t, update.Fragments, 1)

	seg := parse(t, update.Fragments[0])
	assert.Equal(t, "timeboxes", seg.Find("strong").Text())
	assert.Equal(t, 0, seg.Find("script").Length())
}

func TestDisplayPushesToAttachedOutputs(t *testing.T) {
	r, _ := newRenderer(t)

	var got []Update
	detach := r.Attach(OutputFunc(func(_ context.Context, u Update) error {
		got = append(got, u)
		return nil
	}))

	_, err := r.Display(context.Background(), conversation.NewRequest("one", nil), conversation.AuthorUser)
	require.NoError(t, err)
	detach()
	_, err = r.Display(context.Background(), conversation.NewRequest("two", nil), conversation.AuthorUser)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, conversation.AuthorUser, got[0].Author)
}
