package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skyiron/chartdbDiagramsSQL/internal/responses"
	"github.com/skyiron/chartdbDiagramsSQL/internal/shortcuts"
)

type ShortcutHandler struct{}

func NewShortcutHandler() *ShortcutHandler {
	return &ShortcutHandler{}
}

// GetShortcuts returns the keyboard bindings for the client's platform
// ("darwin", "linux", "windows").
func (h *ShortcutHandler) GetShortcuts(c *gin.Context) {
	platform := c.DefaultQuery("platform", "")
	responses.Success(c, http.StatusOK, gin.H{"shortcuts": shortcuts.For(platform)}, "Shortcuts fetched successfully")
}
