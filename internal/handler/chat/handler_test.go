package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/scrum-assistant/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/scrum-assistant/backend/internal/service/chat"
)

func setupRouter() (*chi.Mux, *chatservice.Service) {
	chatSvc := chatservice.NewService()
	handler := New(chatSvc)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, chatSvc
}

func TestGetConversation(t *testing.T) {
	r, svc := setupRouter()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "conv-1", "scrum-assistant")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	if err := svc.SaveMessage(ctx, chat.Message{SessionID: session.ID, Sender: "user", Content: "What is scrum?"}); err != nil {
		t.Fatalf("SaveMessage err: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/conversations/conv-1", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body struct {
		Messages []chat.Message `json:"messages"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Messages) != 1 || body.Messages[0].Content != "What is scrum?" {
		t.Fatalf("unexpected messages: %+v", body.Messages)
	}
}

func TestGetConversationNotFound(t *testing.T) {
	r, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/conversations/missing", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
