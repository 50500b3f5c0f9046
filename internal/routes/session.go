package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/skyiron/chartdbDiagramsSQL/internal/handlers"
)

type SessionRoutes struct {
	sessionHandler *handlers.SessionHandler
	authenticate   gin.HandlerFunc
}

func NewSessionRoutes(sessionHandler *handlers.SessionHandler, authenticate gin.HandlerFunc) *SessionRoutes {
	return &SessionRoutes{
		sessionHandler: sessionHandler,
		authenticate:   authenticate,
	}
}

func (r *SessionRoutes) RegisterRoutes(router *gin.RouterGroup) {
	session := router.Group("diagrams/:id/session")
	session.Use(r.authenticate)
	{
		session.POST("", r.sessionHandler.OpenSession)
		session.GET("", r.sessionHandler.GetSession)
		session.DELETE("", r.sessionHandler.CloseSession)
		session.PUT("/content", r.sessionHandler.UpdateContent)
		session.POST("/apply", r.sessionHandler.ApplySession)
		session.POST("/discard", r.sessionHandler.DiscardSession)
	}
}
