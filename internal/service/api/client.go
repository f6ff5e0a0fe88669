// Package api holds the conversation client of one widget panel. Every request
// and response payload it holds is published on the payload bus so that any
// number of observers (the renderer, mirrors, tests) see them in order.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/scrum-assistant/backend/internal/bus"
	"github.com/zhouzirui/scrum-assistant/backend/internal/model/conversation"
)

var ErrClientClosed = errors.New("api client closed")

// Backend answers a request payload with a response payload.
type Backend interface {
	Converse(ctx context.Context, request *conversation.Payload) (*conversation.Payload, error)
}

// PayloadHandler observes a payload after it became the client's current one.
type PayloadHandler func(ctx context.Context, payload *conversation.Payload)

// Client holds the latest request and response payloads of one panel.
type Client struct {
	id         string
	backend    Backend
	publisher  message.Publisher
	subscriber message.Subscriber

	mu       sync.RWMutex
	request  *conversation.Payload
	response *conversation.Payload
	closed   bool

	// request observers still subscribed, and requests waiting for them
	requestObservers int
	pending          map[string]*pendingRequest

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type pendingRequest struct {
	remaining int
	done      chan struct{}
}

// NewClient creates a client whose backend calls live as long as parent.
func NewClient(parent context.Context, id string, backend Backend, b *bus.Bus) *Client {
	ctx, cancel := context.WithCancel(parent)
	return &Client{
		id:         id,
		backend:    backend,
		publisher:  b.Publisher,
		subscriber: b.Subscriber,
		pending:    make(map[string]*pendingRequest),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// ID returns the client identifier used in topic names.
func (c *Client) ID() string {
	return c.id
}

// RequestTopic is the bus topic request payloads are published on.
func (c *Client) RequestTopic() string {
	return "payload.request." + c.id
}

// ResponseTopic is the bus topic response payloads are published on.
func (c *Client) ResponseTopic() string {
	return "payload.response." + c.id
}

// RequestPayload returns the last request payload, or nil.
func (c *Client) RequestPayload() *conversation.Payload {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.request
}

// ResponsePayload returns the last response payload, or nil.
func (c *Client) ResponsePayload() *conversation.Payload {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.response
}

// SetRequestPayload stores p as the current request and notifies observers.
func (c *Client) SetRequestPayload(p *conversation.Payload) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.request = p
	c.mu.Unlock()
	return c.publish(c.RequestTopic(), watermill.NewUUID(), p)
}

// SetResponsePayload stores p as the current response and notifies observers.
func (c *Client) SetResponsePayload(p *conversation.Payload) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.response = p
	c.mu.Unlock()
	return c.publish(c.ResponseTopic(), watermill.NewUUID(), p)
}

// SendRequest publishes a request for text and asks the backend for an answer
// in the background. The backend is called only after every request observer
// handled the request, so a response never overtakes its question on any
// transport. Backend failures are logged; no response is published.
func (c *Client) SendRequest(_ context.Context, text string, carried *conversation.Context) error {
	req := conversation.NewRequest(text, carried)
	msgID := watermill.NewUUID()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.request = req
	handled := c.expectHandledLocked(msgID)
	c.mu.Unlock()

	if err := c.publish(c.RequestTopic(), msgID, req); err != nil {
		c.forget(msgID)
		return err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		if handled != nil {
			select {
			case <-handled:
			case <-c.ctx.Done():
				c.forget(msgID)
				return
			}
		}

		resp, err := c.backend.Converse(c.ctx, req)
		if err != nil {
			if c.ctx.Err() == nil {
				log.Error().Err(err).Str("component", "api").Str("client", c.id).Msg("backend call failed")
			}
			return
		}
		if resp == nil {
			return
		}
		if err := c.SetResponsePayload(resp); err != nil && !errors.Is(err, ErrClientClosed) {
			log.Error().Err(err).Str("component", "api").Str("client", c.id).Msg("publish response failed")
		}
	}()
	return nil
}

// expectHandledLocked registers msgID as waiting for the current request
// observers. It returns nil when nobody observes requests. c.mu must be held.
func (c *Client) expectHandledLocked(msgID string) <-chan struct{} {
	if c.requestObservers == 0 {
		return nil
	}
	p := &pendingRequest{remaining: c.requestObservers, done: make(chan struct{})}
	c.pending[msgID] = p
	return p.done
}

func (c *Client) markHandled(msgID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[msgID]
	if !ok {
		return
	}
	p.remaining--
	if p.remaining <= 0 {
		close(p.done)
		delete(c.pending, msgID)
	}
}

func (c *Client) forget(msgID string) {
	c.mu.Lock()
	delete(c.pending, msgID)
	c.mu.Unlock()
}

// dropRequestObserver releases requests that still wait on an observer that
// stopped.
func (c *Client) dropRequestObserver() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestObservers--
	for id, p := range c.pending {
		p.remaining--
		if p.remaining <= 0 {
			close(p.done)
			delete(c.pending, id)
		}
	}
}

// OnRequestPayload invokes fn for each request payload set after the call.
// The subscription ends with ctx or Close.
func (c *Client) OnRequestPayload(ctx context.Context, fn PayloadHandler) error {
	return c.observe(ctx, c.RequestTopic(), true, fn)
}

// OnResponsePayload invokes fn for each response payload set after the call.
func (c *Client) OnResponsePayload(ctx context.Context, fn PayloadHandler) error {
	return c.observe(ctx, c.ResponseTopic(), false, fn)
}

// Close stops observers and pending backend calls and waits for them.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Client) observe(ctx context.Context, topic string, requests bool, fn PayloadHandler) error {
	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-c.ctx.Done():
		case <-subCtx.Done():
		}
		cancel()
	}()

	messages, err := c.subscriber.Subscribe(subCtx, topic)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}

	if requests {
		c.mu.Lock()
		c.requestObservers++
		c.mu.Unlock()
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if requests {
			defer c.dropRequestObserver()
		}
		for msg := range messages {
			var p conversation.Payload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				log.Warn().Err(err).Str("component", "api").Str("topic", topic).Msg("drop malformed payload")
			} else {
				fn(subCtx, &p)
			}
			if requests {
				c.markHandled(msg.UUID)
			}
			msg.Ack()
		}
	}()
	return nil
}

func (c *Client) publish(topic, msgID string, p *conversation.Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	msg := bus.NewMessage(msgID, body)
	msg.Metadata.Set("client_id", c.id)
	if err := c.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
