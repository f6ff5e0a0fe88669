package widget

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/scrum-assistant/backend/internal/middleware"
	"github.com/zhouzirui/scrum-assistant/backend/internal/widget"
	"github.com/zhouzirui/scrum-assistant/backend/pkg/utils"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second
)

// Handler serves the widget socket and panel snapshots.
type Handler struct {
	hub      *widget.Hub
	upgrader websocket.Upgrader
}

// New 创建组件处理器
func New(hub *widget.Hub) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册组件相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
	r.Get("/panels/{panelID}/transcript", h.handleTranscript)
}

// socket serializes writes to one connection.
type socket struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *socket) Send(_ context.Context, ev widget.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(ev)
}

func (s *socket) sendError(message string) {
	if err := s.Send(context.Background(), widget.Event{Type: widget.EventError, Data: widget.ErrorData{Message: message}}); err != nil {
		log.Debug().Err(err).Str("component", "websocket").Msg("write error failed")
	}
}

// handleWebSocket 每个连接对应一个页面加载，也就是一个面板
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	namespace := middleware.ClientIDFrom(r.Context())
	if namespace == "" {
		namespace = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("component", "websocket").Msg("upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sock := &socket{conn: conn}

	panel, err := h.hub.Create(ctx, namespace)
	if err != nil {
		log.Error().Err(err).Str("component", "websocket").Msg("create panel failed")
		sock.sendError("could not start chat")
		return
	}
	defer h.hub.Remove(panel.ID())

	detach := panel.Attach(sock)
	defer detach()

	log.Info().Str("component", "websocket").Str("panel", panel.ID()).Str("namespace", namespace).Msg("new connection")

	if err := sock.Send(ctx, widget.Event{Type: widget.EventReady, Data: panel.Ready()}); err != nil {
		return
	}
	if err := panel.Init(ctx); err != nil {
		log.Error().Err(err).Str("component", "websocket").Str("panel", panel.ID()).Msg("init panel failed")
		sock.sendError("could not start chat")
		return
	}

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go pingLoop(ctx, conn)

	for {
		var msg widget.InboundEvent
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("component", "websocket").Str("panel", panel.ID()).Msg("read error")
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))

		if err := dispatch(ctx, panel, &msg); err != nil {
			log.Warn().Err(err).Str("component", "websocket").Str("panel", panel.ID()).Str("event", msg.Type).Msg("handle event failed")
			sock.sendError(err.Error())
		}
	}
}

var errUnknownEvent = errors.New("unknown event type")

// dispatch applies one browser event to the panel.
func dispatch(ctx context.Context, panel *widget.Panel, msg *widget.InboundEvent) error {
	switch msg.Type {
	case widget.EventKeyDown:
		var data widget.KeyDown
		if err := decode(msg.Data, &data); err != nil {
			return err
		}
		_, err := panel.InputKeyDown(ctx, data.KeyCode, data.Value)
		return err
	case widget.EventInput:
		var data widget.InputChange
		if err := decode(msg.Data, &data); err != nil {
			return err
		}
		panel.InputChanged(ctx, data.Value, data.Style, data.RootFontSize)
		return nil
	case widget.EventResize:
		var data widget.Resize
		if err := decode(msg.Data, &data); err != nil {
			return err
		}
		panel.Resize(ctx, data.RootFontSize)
		return nil
	case widget.EventSuggestion:
		var data widget.Suggestion
		if err := decode(msg.Data, &data); err != nil {
			return err
		}
		_, err := panel.UseSuggestion(ctx, data.Text)
		return err
	default:
		return errUnknownEvent
	}
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("event data is required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.New("invalid event data")
	}
	return nil
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

// handleTranscript 返回面板当前的聊天记录
func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	panel, err := h.hub.Get(chi.URLParam(r, "panelID"))
	if err != nil {
		if errors.Is(err, widget.ErrPanelNotFound) {
			utils.RespondError(w, http.StatusNotFound, "panel not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	tr := panel.Renderer().Transcript()
	markup, err := tr.HTML()
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "render transcript failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"panelId":   panel.ID(),
		"html":      markup,
		"fragments": tr.Len(),
		"scrollTop": tr.ScrollTop(),
		"session":   panel.SessionLog().State(),
		"input":     panel.Input(),
	})
}
