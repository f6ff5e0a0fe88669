package widget

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrPanelNotFound = errors.New("panel not found")

// Hub tracks live panels by id.
type Hub struct {
	deps Deps

	mu     sync.RWMutex
	panels map[string]*Panel
}

// NewHub creates a hub whose panels share deps.
func NewHub(deps Deps) *Hub {
	return &Hub{deps: deps, panels: make(map[string]*Panel)}
}

// Create builds and registers a panel for a browser namespace.
func (h *Hub) Create(ctx context.Context, namespace string) (*Panel, error) {
	p, err := NewPanel(ctx, uuid.NewString(), namespace, h.deps)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.panels[p.ID()] = p
	h.mu.Unlock()
	return p, nil
}

// Get returns a live panel.
func (h *Hub) Get(id string) (*Panel, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.panels[id]
	if !ok {
		return nil, ErrPanelNotFound
	}
	return p, nil
}

// Remove closes and forgets a panel.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	p, ok := h.panels[id]
	delete(h.panels, id)
	h.mu.Unlock()

	if ok {
		p.Close()
	}
}

// Len is the number of live panels.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.panels)
}

// Close closes every panel.
func (h *Hub) Close() {
	h.mu.Lock()
	panels := h.panels
	h.panels = make(map[string]*Panel)
	h.mu.Unlock()

	for _, p := range panels {
		p.Close()
	}
}
