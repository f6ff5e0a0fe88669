package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhouzirui/scrum-assistant/backend/internal/bus"
	"github.com/zhouzirui/scrum-assistant/backend/internal/model/profile"
	"github.com/zhouzirui/scrum-assistant/backend/internal/service/assistant"
	chatService "github.com/zhouzirui/scrum-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/scrum-assistant/backend/internal/sizer"
	"github.com/zhouzirui/scrum-assistant/backend/internal/storage"
	"github.com/zhouzirui/scrum-assistant/backend/internal/widget"
	"github.com/zhouzirui/scrum-assistant/backend/web"
)

func TestRouterServesAPIAndAssets(t *testing.T) {
	b := bus.NewInMemory()
	defer b.Close()

	seed := profile.Seed()[0]
	chatSvc := chatService.NewService()
	store := storage.NewMemoryStore()
	hub := widget.NewHub(widget.Deps{
		Backend: assistant.NewService(seed, assistant.FAQAnswerer{}, nil, chatSvc),
		Bus:     b,
		Store:   store,
		Profile: seed,
		Sizer:   sizer.DefaultConfig(),
	})
	defer hub.Close()

	router := NewRouter(Deps{
		Profiles: profile.NewMemoryStore(profile.Seed()),
		Chat:     chatSvc,
		Hub:      hub,
		Store:    store,
		Assets:   web.Handler(),
	})

	cases := map[string]int{
		"/":                          http.StatusOK,
		"/api/profiles":              http.StatusOK,
		"/api/logs":                  http.StatusOK,
		"/api/panels/x/transcript":   http.StatusNotFound,
		"/api/conversations/missing": http.StatusNotFound,
	}
	for path, want := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Code, path)
	}
}
