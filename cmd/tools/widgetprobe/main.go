package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/scrum-assistant/backend/internal/render"
	"github.com/zhouzirui/scrum-assistant/backend/internal/widget"
)

func main() {
	log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	addr := flag.String("addr", "ws://localhost:4000/api/ws", "widget websocket URL")
	question := flag.String("q", "What is scrum?", "question to send after the greeting")
	suggested := flag.Bool("suggested", false, "send the question as a suggestion click")
	timeout := flag.Duration("timeout", 45*time.Second, "time to wait for the answer")
	flag.Parse()

	if _, err := url.Parse(*addr); err != nil {
		log.Fatal().Err(err).Str("addr", *addr).Msg("invalid websocket URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := probe(ctx, *addr, *question, *suggested); err != nil {
		log.Error().Err(err).Msg("probe failed")
		os.Exit(1)
	}
}

func probe(ctx context.Context, addr, question string, suggested bool) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	sent := false
	for {
		var evt widget.InboundEvent
		if err := conn.ReadJSON(&evt); err != nil {
			return fmt.Errorf("read event: %w", err)
		}

		switch evt.Type {
		case widget.EventReady:
			log.Info().RawJSON("data", evt.Data).Msg("panel ready")
		case widget.EventError:
			log.Warn().RawJSON("data", evt.Data).Msg("server error")
		case widget.EventRender:
			var update render.Update
			if err := json.Unmarshal(evt.Data, &update); err != nil {
				return fmt.Errorf("decode render: %w", err)
			}
			log.Info().Str("author", update.Author).Int("fragments", len(update.Fragments)).Msg("render")
			for _, fragment := range update.Fragments {
				fmt.Println(fragment)
			}

			if !sent {
				if err := send(conn, question, suggested); err != nil {
					return err
				}
				sent = true
				continue
			}
			if update.Author == "watson" {
				return nil
			}
		default:
			log.Debug().Str("type", evt.Type).Msg("event")
		}
	}
}

func send(conn *websocket.Conn, question string, suggested bool) error {
	question = strings.TrimSpace(question)
	evt := widget.Event{
		Type: widget.EventKeyDown,
		Data: widget.KeyDown{KeyCode: widget.KeyEnter, Value: question},
	}
	if suggested {
		evt = widget.Event{Type: widget.EventSuggestion, Data: widget.Suggestion{Text: question}}
	}
	log.Info().Str("type", evt.Type).Str("question", question).Msg("sending")
	return conn.WriteJSON(evt)
}
