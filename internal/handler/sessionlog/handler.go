package sessionlog

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/scrum-assistant/backend/internal/middleware"
	"github.com/zhouzirui/scrum-assistant/backend/internal/service/sessionlog"
	"github.com/zhouzirui/scrum-assistant/backend/internal/storage"
	"github.com/zhouzirui/scrum-assistant/backend/pkg/utils"
)

// Handler 会话日志的HTTP处理器
type Handler struct {
	store storage.Store
}

// New 创建会话日志处理器
func New(store storage.Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes 注册会话日志路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/logs", h.handleListLogs)
}

// handleListLogs 导出当前浏览器的会话日志
func (h *Handler) handleListLogs(w http.ResponseWriter, r *http.Request) {
	namespace := middleware.ClientIDFrom(r.Context())
	if namespace == "" {
		utils.RespondError(w, http.StatusBadRequest, "client id is required")
		return
	}

	entries, err := sessionlog.Entries(r.Context(), h.store, namespace)
	if err != nil {
		log.Error().Err(err).Str("component", "sessionlog").Msg("list entries failed")
		utils.RespondError(w, http.StatusInternalServerError, "list session log failed")
		return
	}

	items := make(map[string]string, len(entries))
	for _, e := range entries {
		items[e.Key] = e.Value
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"namespace": namespace,
		"entries":   items,
	})
}
