package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatService "github.com/zhouzirui/scrum-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/scrum-assistant/backend/pkg/utils"
)

// Handler 对话历史的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建对话历史处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册对话历史相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/conversations/{conversationID}", h.handleGetConversation)
}

// handleGetConversation 返回会话及其消息
func (h *Handler) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")

	session, err := h.chatSvc.GetSession(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	messages, err := h.chatSvc.LoadTranscript(r.Context(), id, 0)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"session":  session,
		"messages": messages,
	})
}

func respondServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, chatService.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondError(w, http.StatusInternalServerError, err.Error())
}
