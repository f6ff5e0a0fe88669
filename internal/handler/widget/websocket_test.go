package widget

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/scrum-assistant/backend/internal/bus"
	"github.com/zhouzirui/scrum-assistant/backend/internal/middleware"
	"github.com/zhouzirui/scrum-assistant/backend/internal/model/profile"
	"github.com/zhouzirui/scrum-assistant/backend/internal/service/assistant"
	chatservice "github.com/zhouzirui/scrum-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/scrum-assistant/backend/internal/sizer"
	"github.com/zhouzirui/scrum-assistant/backend/internal/storage"
	"github.com/zhouzirui/scrum-assistant/backend/internal/widget"
)

type outbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func setupServer(t *testing.T) (*httptest.Server, *widget.Hub) {
	t.Helper()
	b := bus.NewInMemory()
	seed := profile.Seed()[0]
	hub := widget.NewHub(widget.Deps{
		Backend: assistant.NewService(seed, assistant.FAQAnswerer{}, nil, chatservice.NewService()),
		Bus:     b,
		Store:   storage.NewMemoryStore(),
		Profile: seed,
		Sizer:   sizer.DefaultConfig(),
	})

	r := chi.NewRouter()
	r.Use(middleware.ClientID)
	New(hub).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
		b.Close()
	})
	return srv, hub
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads events until one of type want arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) outbound {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var ev outbound
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type == want {
			return ev
		}
	}
}

func TestWebSocketGreetsAndAnswers(t *testing.T) {
	srv, hub := setupServer(t)
	conn := dial(t, srv)

	ready := readUntil(t, conn, widget.EventReady)
	var readyData widget.Ready
	require.NoError(t, json.Unmarshal(ready.Data, &readyData))
	assert.NotEmpty(t, readyData.PanelID)
	assert.NotEmpty(t, readyData.Suggestions)

	greeting := readUntil(t, conn, widget.EventRender)
	assert.Contains(t, string(greeting.Data), "from-watson")
	assert.Contains(t, string(greeting.Data), "Scrum Assistant")

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "keydown",
		"data": map[string]any{"keyCode": 13, "value": "What are the scrum roles?"},
	}))

	question := readUntil(t, conn, widget.EventRender)
	assert.Contains(t, string(question.Data), "from-user")

	answer := readUntil(t, conn, widget.EventRender)
	assert.Contains(t, string(answer.Data), "Product Owner")
	assert.Contains(t, string(answer.Data), "\\u003cul\\u003e")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/panels/"+readyData.PanelID+"/transcript", nil)
	r := chi.NewRouter()
	New(hub).RegisterRoutes(r)
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "scrum roles")
}

func TestWebSocketRejectsUnknownEvent(t *testing.T) {
	srv, _ := setupServer(t)
	conn := dial(t, srv)
	readUntil(t, conn, widget.EventReady)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "explode", "data": map[string]any{}}))

	ev := readUntil(t, conn, widget.EventError)
	assert.Contains(t, string(ev.Data), "unknown event type")
}

func TestTranscriptUnknownPanel(t *testing.T) {
	srv, _ := setupServer(t)

	resp, err := http.Get(srv.URL + "/panels/missing/transcript")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDispatchInputAndResize(t *testing.T) {
	b := bus.NewInMemory()
	defer b.Close()
	hub := widget.NewHub(widget.Deps{
		Backend: assistant.NewService(profile.Seed()[0], assistant.FAQAnswerer{}, nil, chatservice.NewService()),
		Bus:     b,
		Store:   storage.NewMemoryStore(),
		Sizer:   sizer.DefaultConfig(),
	})
	defer hub.Close()

	panel, err := hub.Create(context.Background(), "ns")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, dispatch(ctx, panel, &widget.InboundEvent{
		Type: widget.EventInput,
		Data: json.RawMessage(`{"value":"abcd","style":{"font-size":"10px"},"rootFontSize":"16px"}`),
	}))
	assert.Equal(t, "28px", panel.Input().Width)

	require.NoError(t, dispatch(ctx, panel, &widget.InboundEvent{
		Type: widget.EventResize,
		Data: json.RawMessage(`{"rootFontSize":"14px"}`),
	}))
	assert.Equal(t, "26px", panel.Input().Width)

	err = dispatch(ctx, panel, &widget.InboundEvent{Type: widget.EventKeyDown})
	assert.Error(t, err)
}

func TestInputEchoCarriesOnlySizing(t *testing.T) {
	srv, _ := setupServer(t)
	conn := dial(t, srv)

	ready := readUntil(t, conn, widget.EventReady)
	assert.NotContains(t, string(ready.Data), `"value"`)

	for _, value := range []string{"ab", "abc"} {
		require.NoError(t, conn.WriteJSON(map[string]any{
			"type": "input",
			"data": map[string]any{"value": value, "style": map[string]string{"font-size": "10px"}, "rootFontSize": "16px"},
		}))
	}

	var widths []string
	for len(widths) < 2 {
		ev := readUntil(t, conn, widget.EventInput)
		assert.NotContains(t, string(ev.Data), `"value"`)

		var size widget.InputSize
		require.NoError(t, json.Unmarshal(ev.Data, &size))
		if size.Width == "100%" {
			continue
		}
		assert.True(t, size.Underline)
		widths = append(widths, size.Width)
	}
	assert.Equal(t, []string{"17px", "23px"}, widths)
}
