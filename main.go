package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"opsdash/chat"
	"opsdash/config"
	"opsdash/database"
	"opsdash/handlers"
	"opsdash/routes"
	"opsdash/websocket"

	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("🚀 Starting Ops Dashboard Server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("❌ Invalid configuration: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ===== STORE =====
	store, err := database.Open(ctx, cfg)
	if err != nil {
		log.Fatal("❌ Failed to open store: ", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Println("❌ Store close error:", err)
		}
	}()

	// ===== GIN MODE =====
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
		log.Println("⚙️ Running in RELEASE mode")
	} else {
		gin.SetMode(gin.DebugMode)
		log.Println("⚙️ Running in DEBUG mode")
	}

	// ===== WEBSOCKET =====
	log.Println("🔌 Initializing WebSocket manager...")
	wsManager := websocket.NewManager()
	go wsManager.Start(ctx)

	// ===== ADMIN CHAT =====
	chatHandler := handlers.NewAdminChatHandler(
		chat.NewPoster(store, cfg.ChatChannel),
		chat.NewTracker(store),
		chat.NewReader(store, cfg.ChatChannel),
		handlers.WithBroadcaster(wsManager),
		handlers.WithTimeout(cfg.StoreTimeout),
		handlers.WithHistoryLimit(cfg.HistoryLimit),
	)
	log.Printf("💬 Admin chat channel: %s", chat.ChannelPath(cfg.ChatChannel))

	router := routes.SetupRouter(cfg, chatHandler, wsManager)

	// ===== SERVER =====
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server running on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Println("❌ Server error:", err)
			stop()
		}
	}()

	// ===== GRACEFUL SHUTDOWN =====
	<-ctx.Done()
	log.Println("🛑 Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println("❌ Forced shutdown:", err)
	}

	log.Println("👋 Server stopped gracefully")
}
