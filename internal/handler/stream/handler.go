// Package stream mirrors a live panel over Server-Sent Events.
package stream

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/scrum-assistant/backend/internal/widget"
	"github.com/zhouzirui/scrum-assistant/backend/pkg/utils"
)

// Handler streams panel events.
type Handler struct {
	hub       *widget.Hub
	heartbeat time.Duration
}

// New creates a new stream handler
func New(hub *widget.Hub) *Handler {
	return &Handler{hub: hub, heartbeat: 15 * time.Second}
}

// RegisterRoutes 注册流式路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/panels/{panelID}/stream", h.handleStream)
}

// handleStream sends a snapshot, then every render and input event of the panel
// until the client goes away or the panel closes.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	panelID := chi.URLParam(r, "panelID")
	panel, err := h.hub.Get(panelID)
	if err != nil {
		if errors.Is(err, widget.ErrPanelNotFound) {
			utils.RespondError(w, http.StatusNotFound, "panel not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utils.SetupSSEHeaders(w)
	ctx := r.Context()

	events := make(chan widget.Event, 32)
	detach := panel.Attach(widget.SinkFunc(func(_ context.Context, ev widget.Event) error {
		select {
		case events <- ev:
		default:
			log.Warn().Str("component", "sse").Str("panel", panelID).Str("event", ev.Type).Msg("mirror too slow, dropping event")
		}
		return nil
	}))
	defer detach()

	markup, err := panel.Renderer().Transcript().HTML()
	if err != nil {
		markup = ""
	}
	if err := utils.SendSSEEvent(w, flusher, "snapshot", map[string]any{
		"panelId": panelID,
		"html":    markup,
	}); err != nil {
		return
	}

	log.Info().Str("component", "sse").Str("panel", panelID).Msg("opening mirror stream")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("component", "sse").Str("panel", panelID).Msg("closing mirror stream")
			return
		case ev := <-events:
			if err := utils.SendSSEEvent(w, flusher, ev.Type, ev.Data); err != nil {
				return
			}
		case t := <-ticker.C:
			if _, err := h.hub.Get(panelID); err != nil {
				utils.SendSSEEvent(w, flusher, "closed", map[string]string{"panelId": panelID})
				return
			}
			if err := utils.SendSSEEvent(w, flusher, "heartbeat", map[string]string{
				"time": t.UTC().Format(time.RFC3339),
			}); err != nil {
				return
			}
		}
	}
}
