package routes

import (
	"net/http"
	"strings"
	"time"

	"opsdash/config"
	"opsdash/handlers"
	"opsdash/middleware"
	"opsdash/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(cfg *config.Config, chatHandler *handlers.AdminChatHandler, wsManager *websocket.Manager) *gin.Engine {
	router := gin.Default()
	router.Use(middleware.RequestID())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"message":   "Ops dashboard API is running",
			"time":      time.Now().Unix(),
			"store":     cfg.StoreDriver,
			"channel":   cfg.ChatChannel,
			"wsClients": wsManager.GetConnectedClients(),
		})
	})

	router.GET("/ws", gin.WrapF(websocket.WebSocketHandler(wsManager, cfg.JWTSecret)))

	protected := router.Group("/api")
	protected.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))

	// Admin chat
	adminChat := protected.Group("/admin-chat")
	adminChat.POST("/messages", chatHandler.PostMessage)
	adminChat.GET("/messages", chatHandler.GetMessages)
	adminChat.POST("/seen", chatHandler.MarkSeen)
	adminChat.GET("/receipt", chatHandler.GetReceipt)
	adminChat.GET("/unread", chatHandler.GetUnread)

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "Endpoint not found",
				"path":    c.Request.URL.Path,
				"message": "Check the API documentation for available endpoints",
			})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return router
}
