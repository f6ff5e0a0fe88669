package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/scrum-assistant/backend/internal/bus"
	"github.com/zhouzirui/scrum-assistant/backend/internal/config"
	"github.com/zhouzirui/scrum-assistant/backend/internal/handler"
	"github.com/zhouzirui/scrum-assistant/backend/internal/logging"
	"github.com/zhouzirui/scrum-assistant/backend/internal/model/profile"
	"github.com/zhouzirui/scrum-assistant/backend/internal/service/assistant"
	"github.com/zhouzirui/scrum-assistant/backend/internal/service/chat"
	levelservice "github.com/zhouzirui/scrum-assistant/backend/internal/service/level"
	"github.com/zhouzirui/scrum-assistant/backend/internal/service/sessionlog"
	"github.com/zhouzirui/scrum-assistant/backend/internal/sizer"
	"github.com/zhouzirui/scrum-assistant/backend/internal/storage"
	"github.com/zhouzirui/scrum-assistant/backend/internal/widget"
	"github.com/zhouzirui/scrum-assistant/backend/web"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "scrum-assistant",
	Short:         "Scrum Assistant chat widget server",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load .env file
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
		}

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := logging.Setup(loaded.Log, os.Stderr); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var logsNamespace string

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print session log entries of one browser namespace as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		if logsNamespace == "" {
			return errors.New("--namespace is required")
		}
		store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := sessionlog.Entries(cmd.Context(), store, logsNamespace)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logsCmd.Flags().StringVar(&logsNamespace, "namespace", "", "browser namespace (widget_client cookie value)")
	rootCmd.AddCommand(serveCmd, logsCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func serve(ctx context.Context) error {
	profiles, err := loadProfiles(cfg.Widget)
	if err != nil {
		return err
	}
	active, ok := profiles.FindByID(cfg.Widget.ProfileID)
	if !ok {
		return fmt.Errorf("profile %q not found", cfg.Widget.ProfileID)
	}

	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open session log store: %w", err)
	}
	defer store.Close()

	payloadBus, err := bus.New(cfg.Bus)
	if err != nil {
		return fmt.Errorf("create payload bus: %w", err)
	}
	defer payloadBus.Close()

	chatService := chat.NewService()

	var chatModel model.ChatModel
	var answerer assistant.Answerer = assistant.FAQAnswerer{}
	if cfg.AI.Enabled() {
		chatModel, err = cfg.AI.NewChatModel(ctx)
		if err == nil {
			answerer, err = assistant.NewLLMAnswerer(ctx, chatModel)
		}
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize AI service, answering from the profile FAQ - 请检查 Ark 模型相关环境变量")
			chatModel = nil
			answerer = assistant.FAQAnswerer{}
		} else {
			log.Info().Str("model", cfg.AI.Model).Msg("AI service initialized successfully")
		}
	} else {
		log.Info().Msg("Ark 凭证未配置，使用离线 FAQ 回答")
	}

	levelCfg := levelservice.Config{
		Enabled:      cfg.AI.LevelLLMEnabled,
		HistoryLimit: cfg.AI.LevelHistoryLimit,
	}
	levels, err := levelservice.NewService(ctx, chatModel, levelCfg)
	if err != nil {
		return fmt.Errorf("initialize level classifier: %w", err)
	}
	switch {
	case levels.Enabled():
		log.Info().Msg("Level classifier service enabled")
	case levelCfg.Enabled:
		log.Info().Msg("Level classifier requested but chat model unavailable, falling back to heuristics")
	default:
		log.Info().Msg("Level classifier uses keyword heuristics")
	}

	hub := widget.NewHub(widget.Deps{
		Backend: assistant.NewService(active, answerer, levels, chatService),
		Bus:     payloadBus,
		Store:   store,
		Profile: active,
		Sizer: sizer.Config{
			MinFontSize: cfg.Sizer.MinFontSize,
			MaxFontSize: cfg.Sizer.MaxFontSize,
			MinPadding:  cfg.Sizer.MinPadding,
			MaxPadding:  cfg.Sizer.MaxPadding,
		},
		Markdown: cfg.Widget.RenderMarkdown,
	})
	defer hub.Close()

	router := handler.NewRouter(handler.Deps{
		Profiles: profiles,
		Chat:     chatService,
		Hub:      hub,
		Store:    store,
		Assets:   web.Handler(),
	})

	return startServer(ctx, cfg.Server, router)
}

func loadProfiles(widgetCfg config.WidgetConfig) (profile.Store, error) {
	if widgetCfg.ProfileFile == "" {
		return profile.NewMemoryStore(profile.Seed()), nil
	}
	items, err := profile.LoadFile(widgetCfg.ProfileFile)
	if err != nil {
		return nil, err
	}
	log.Info().Str("file", widgetCfg.ProfileFile).Int("profiles", len(items)).Msg("loaded assistant profiles")
	return profile.NewMemoryStore(items), nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	addr := serverCfg.Addr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("Server running")
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
