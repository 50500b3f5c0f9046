package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/skyiron/chartdbDiagramsSQL/internal/responses"
	"github.com/skyiron/chartdbDiagramsSQL/internal/services"
)

type DiagramHandler struct {
	diagramService *services.DiagramService
}

func NewDiagramHandler(diagramService *services.DiagramService) *DiagramHandler {
	return &DiagramHandler{
		diagramService: diagramService,
	}
}

func (h *DiagramHandler) CreateDiagram(c *gin.Context) {
	var req services.CreateDiagramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	diagram, err := h.diagramService.Create(c.Request.Context(), &req)
	if err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Error while creating the diagram")
		return
	}

	responses.Success(c, http.StatusCreated, gin.H{"diagram": diagram}, "Diagram created successfully")
}

func (h *DiagramHandler) ListDiagrams(c *gin.Context) {
	diagrams, err := h.diagramService.List(c.Request.Context())
	if err != nil {
		responses.Fail(c, http.StatusInternalServerError, err, "Error while listing diagrams")
		return
	}

	responses.Success(c, http.StatusOK, gin.H{"diagrams": diagrams}, "Diagrams fetched successfully")
}

func (h *DiagramHandler) GetDiagram(c *gin.Context) {
	diagramID, ok := h.diagramID(c)
	if !ok {
		return
	}

	diagram, err := h.diagramService.Get(c.Request.Context(), diagramID)
	if err != nil {
		h.failFromService(c, err, "Error while fetching the diagram")
		return
	}

	responses.Success(c, http.StatusOK, gin.H{"diagram": diagram}, "Diagram fetched successfully")
}

func (h *DiagramHandler) DeleteDiagram(c *gin.Context) {
	diagramID, ok := h.diagramID(c)
	if !ok {
		return
	}

	if err := h.diagramService.Delete(c.Request.Context(), diagramID); err != nil {
		h.failFromService(c, err, "Cannot delete the given diagram")
		return
	}

	responses.Success(c, http.StatusOK, nil, "Diagram deleted successfully")
}

// GenerateDBML returns the canonical DBML text of a diagram. Pass
// normalize=true to replace whitespace in names with underscores.
func (h *DiagramHandler) GenerateDBML(c *gin.Context) {
	diagramID, ok := h.diagramID(c)
	if !ok {
		return
	}

	normalize, _ := strconv.ParseBool(c.DefaultQuery("normalize", "false"))
	text, err := h.diagramService.GenerateDBML(c.Request.Context(), diagramID, normalize)
	if err != nil {
		h.failFromService(c, err, "Error while generating DBML")
		return
	}

	responses.Success(c, http.StatusOK, gin.H{"dbml": text}, "DBML generated successfully")
}

// ExportDDL renders the diagram as a SQL baseline script in the dialect
// of its database type.
func (h *DiagramHandler) ExportDDL(c *gin.Context) {
	diagramID, ok := h.diagramID(c)
	if !ok {
		return
	}

	script, err := h.diagramService.ExportDDL(c.Request.Context(), diagramID)
	if err != nil {
		h.failFromService(c, err, "Error while exporting DDL")
		return
	}

	responses.Success(c, http.StatusOK, gin.H{"ddl": script}, "DDL exported successfully")
}

func (h *DiagramHandler) diagramID(c *gin.Context) (uuid.UUID, bool) {
	diagramID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid diagram id format")
		return uuid.Nil, false
	}
	return diagramID, true
}

func (h *DiagramHandler) failFromService(c *gin.Context, err error, message string) {
	if errors.Is(err, services.ErrDiagramNotFound) {
		responses.Fail(c, http.StatusNotFound, err, "Diagram not found")
		return
	}
	responses.Fail(c, http.StatusInternalServerError, err, message)
}
