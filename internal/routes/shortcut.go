package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/skyiron/chartdbDiagramsSQL/internal/handlers"
)

type ShortcutRoutes struct {
	shortcutHandler *handlers.ShortcutHandler
}

func NewShortcutRoutes(shortcutHandler *handlers.ShortcutHandler) *ShortcutRoutes {
	return &ShortcutRoutes{
		shortcutHandler: shortcutHandler,
	}
}

func (r *ShortcutRoutes) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/shortcuts", r.shortcutHandler.GetShortcuts)
}
