package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/skyiron/chartdbDiagramsSQL/internal/handlers"
)

type DiagramRoutes struct {
	diagramHandler *handlers.DiagramHandler
	authenticate   gin.HandlerFunc
}

func NewDiagramRoutes(diagramHandler *handlers.DiagramHandler, authenticate gin.HandlerFunc) *DiagramRoutes {
	return &DiagramRoutes{
		diagramHandler: diagramHandler,
		authenticate:   authenticate,
	}
}

func (r *DiagramRoutes) RegisterRoutes(router *gin.RouterGroup) {
	diagrams := router.Group("diagrams")
	diagrams.Use(r.authenticate)
	{
		diagrams.POST("", r.diagramHandler.CreateDiagram)
		diagrams.GET("", r.diagramHandler.ListDiagrams)
		diagrams.GET("/:id", r.diagramHandler.GetDiagram)
		diagrams.DELETE("/:id", r.diagramHandler.DeleteDiagram)
		diagrams.GET("/:id/dbml", r.diagramHandler.GenerateDBML)
		diagrams.GET("/:id/ddl", r.diagramHandler.ExportDDL)
	}
}
