package api

import (
	"chat-relay/gateway"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, h *Handler, gw *gateway.Gateway) {
	r.Use(corsMiddleware())

	r.GET("/ws", gw.Handle)
	r.POST("/upload", h.Upload)
	r.GET("/file/:filename", h.Download)

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/messages/chatroom/:chatroomId", h.Messages)
		api.GET("/media/chatroom/:chatroomId", h.MediaHistory)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
