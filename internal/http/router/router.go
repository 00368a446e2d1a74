package router

import (
	"github.com/gin-gonic/gin"

	"mulabo.app/chatbot/internal/http/handler/webhook"
)

func SetupRoutes(router *gin.Engine, lineHandler *webhook.LineWebhookHandler) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// The platform delivers all message events to this single route.
	router.POST("/callback", lineHandler.HandleCallback)
}
