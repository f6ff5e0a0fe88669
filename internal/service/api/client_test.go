package api_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/scrum-assistant/backend/internal/bus"
	"github.com/zhouzirui/scrum-assistant/backend/internal/model/conversation"
	"github.com/zhouzirui/scrum-assistant/backend/internal/service/api"
)

type echoBackend struct {
	err error
}

func (b echoBackend) Converse(_ context.Context, req *conversation.Payload) (*conversation.Payload, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &conversation.Payload{
		Output:  &conversation.Output{Text: conversation.TextList{"echo: " + req.Text(true).First()}},
		Context: &conversation.Context{ConversationID: "conv-1"},
	}, nil
}

func newClient(t *testing.T, backend api.Backend) *api.Client {
	t.Helper()
	b := bus.NewInMemory()
	c := api.NewClient(context.Background(), "c1", backend, b)
	t.Cleanup(func() {
		c.Close()
		b.Close()
	})
	return c
}

func collect(t *testing.T, c *api.Client, request bool) <-chan *conversation.Payload {
	t.Helper()
	out := make(chan *conversation.Payload, 8)
	fn := func(_ context.Context, p *conversation.Payload) { out <- p }
	if request {
		require.NoError(t, c.OnRequestPayload(context.Background(), fn))
	} else {
		require.NoError(t, c.OnResponsePayload(context.Background(), fn))
	}
	return out
}

func receive(t *testing.T, ch <-chan *conversation.Payload) *conversation.Payload {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload")
		return nil
	}
}

func TestSendRequestNotifiesRequestThenResponse(t *testing.T) {
	c := newClient(t, echoBackend{})
	requests := collect(t, c, true)
	responses := collect(t, c, false)

	carried := &conversation.Context{ConversationID: "conv-0", List: []string{"a"}}
	require.NoError(t, c.SendRequest(context.Background(), "Hello", carried))

	req := receive(t, requests)
	assert.Equal(t, conversation.TextList{"Hello"}, req.Text(true))
	assert.Equal(t, "conv-0", req.Context.ConversationID)

	resp := receive(t, responses)
	assert.Equal(t, conversation.TextList{"echo: Hello"}, resp.Text(false))

	require.Eventually(t, func() bool { return c.ResponsePayload() != nil }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "conv-1", c.ResponsePayload().Context.ConversationID)
	assert.Equal(t, "Hello", c.RequestPayload().Text(true).First())
}

func TestRequestsAreObservedInOrder(t *testing.T) {
	c := newClient(t, echoBackend{})
	requests := collect(t, c, true)

	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, c.SetRequestPayload(conversation.NewRequest(text, nil)))
	}
	for _, want := range []string{"one", "two", "three"} {
		assert.Equal(t, want, receive(t, requests).Text(true).First())
	}
}

func TestBackendFailurePublishesNoResponse(t *testing.T) {
	c := newClient(t, echoBackend{err: errors.New("unreachable")})
	responses := collect(t, c, false)

	require.NoError(t, c.SendRequest(context.Background(), "Hello", nil))

	select {
	case p := <-responses:
		t.Fatalf("unexpected response %+v", p)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Nil(t, c.ResponsePayload())
}

func TestPayloadWithoutObserversIsDropped(t *testing.T) {
	c := newClient(t, echoBackend{})
	require.NoError(t, c.SetRequestPayload(conversation.NewRequest("initial message", nil)))

	requests := collect(t, c, true)
	require.NoError(t, c.SetRequestPayload(conversation.NewRequest("next", nil)))

	assert.Equal(t, "next", receive(t, requests).Text(true).First())
}

func TestClosedClientRejectsPayloads(t *testing.T) {
	b := bus.NewInMemory()
	defer b.Close()
	c := api.NewClient(context.Background(), "c2", echoBackend{}, b)
	c.Close()

	err := c.SendRequest(context.Background(), "Hello", nil)
	assert.ErrorIs(t, err, api.ErrClientClosed)
}

type signalBackend struct {
	called chan string
}

func (b signalBackend) Converse(_ context.Context, req *conversation.Payload) (*conversation.Payload, error) {
	b.called <- req.Text(true).First()
	return nil, nil
}

func TestBackendWaitsForRequestObserversOnNonBlockingBus(t *testing.T) {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	backend := signalBackend{called: make(chan string, 1)}
	c := api.NewClient(context.Background(), "c1", backend, &bus.Bus{Publisher: ch, Subscriber: ch})
	t.Cleanup(func() {
		c.Close()
		ch.Close()
	})

	release := make(chan struct{})
	seen := make(chan string, 1)
	require.NoError(t, c.OnRequestPayload(context.Background(), func(_ context.Context, p *conversation.Payload) {
		seen <- p.Text(true).First()
		<-release
	}))

	require.NoError(t, c.SendRequest(context.Background(), "What is scrum?", nil))

	select {
	case text := <-seen:
		assert.Equal(t, "What is scrum?", text)
	case <-time.After(2 * time.Second):
		t.Fatal("request observer not invoked")
	}

	select {
	case <-backend.called:
		t.Fatal("backend called before the request was handled")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case text := <-backend.called:
		assert.Equal(t, "What is scrum?", text)
	case <-time.After(2 * time.Second):
		t.Fatal("backend not called after the request was handled")
	}
}

func TestBackendRunsImmediatelyWithoutRequestObservers(t *testing.T) {
	backend := signalBackend{called: make(chan string, 1)}
	c := newClient(t, backend)

	require.NoError(t, c.SendRequest(context.Background(), "initial message", nil))

	select {
	case text := <-backend.called:
		assert.Equal(t, "initial message", text)
	case <-time.After(2 * time.Second):
		t.Fatal("backend not called")
	}
}
