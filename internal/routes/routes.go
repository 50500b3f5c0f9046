package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skyiron/chartdbDiagramsSQL/internal/handlers"
)

func RegisterRoutes(router *gin.Engine, diagramHandler *handlers.DiagramHandler, sessionHandler *handlers.SessionHandler, shortcutHandler *handlers.ShortcutHandler, authenticate gin.HandlerFunc) {
	api := router.Group("/api/v1")

	diagramRoutes := NewDiagramRoutes(diagramHandler, authenticate)
	diagramRoutes.RegisterRoutes(api)

	sessionRoutes := NewSessionRoutes(sessionHandler, authenticate)
	sessionRoutes.RegisterRoutes(api)

	shortcutRoutes := NewShortcutRoutes(shortcutHandler)
	shortcutRoutes.RegisterRoutes(api)

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
}
