package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/skyiron/chartdbDiagramsSQL/internal/editor"
	"github.com/skyiron/chartdbDiagramsSQL/internal/responses"
	"github.com/skyiron/chartdbDiagramsSQL/internal/services"
)

type SessionHandler struct {
	sessions *services.SessionManager
}

func NewSessionHandler(sessions *services.SessionManager) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
	}
}

// UpdateContentRequest carries the edited text. Content is a pointer so
// clearing the editor to an empty string still binds.
type UpdateContentRequest struct {
	Content  *string          `json:"content" binding:"required"`
	Position *editor.Position `json:"position"`
}

func (h *SessionHandler) OpenSession(c *gin.Context) {
	diagramID, ok := h.diagramID(c)
	if !ok {
		return
	}

	session, err := h.sessions.Open(c.Request.Context(), diagramID)
	if err != nil {
		h.failFromService(c, err, "Error while opening the session")
		return
	}

	responses.Success(c, http.StatusOK, gin.H{"state": session.State()}, "Session opened successfully")
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	responses.Success(c, http.StatusOK, gin.H{"state": session.State()}, "Session state fetched successfully")
}

func (h *SessionHandler) UpdateContent(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req UpdateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	session.HandleChange(c.Request.Context(), *req.Content, req.Position)

	responses.Success(c, http.StatusOK, gin.H{"state": session.State()}, "Content updated")
}

func (h *SessionHandler) ApplySession(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	outcome, err := session.Apply(c.Request.Context())
	if err != nil {
		h.failFromService(c, err, "Error while applying changes")
		return
	}

	message := "Changes applied successfully"
	if outcome.ParseError != nil {
		message = "Apply blocked by a DBML parse error"
	} else if !outcome.Ran {
		message = "Nothing to apply"
	}

	responses.Success(c, http.StatusOK, gin.H{
		"outcome": outcome,
		"state":   session.State(),
	}, message)
}

func (h *SessionHandler) DiscardSession(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	if err := session.Discard(c.Request.Context()); err != nil {
		h.failFromService(c, err, "Error while discarding changes")
		return
	}

	responses.Success(c, http.StatusOK, gin.H{"state": session.State()}, "Changes discarded")
}

func (h *SessionHandler) CloseSession(c *gin.Context) {
	diagramID, ok := h.diagramID(c)
	if !ok {
		return
	}

	if !h.sessions.CloseSession(diagramID) {
		responses.Fail(c, http.StatusNotFound, nil, "No open session for this diagram")
		return
	}

	responses.Success(c, http.StatusOK, nil, "Session closed")
}

func (h *SessionHandler) diagramID(c *gin.Context) (uuid.UUID, bool) {
	diagramID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid diagram id format")
		return uuid.Nil, false
	}
	return diagramID, true
}

func (h *SessionHandler) session(c *gin.Context) (*services.EditSession, bool) {
	diagramID, ok := h.diagramID(c)
	if !ok {
		return nil, false
	}
	session, ok := h.sessions.Get(diagramID)
	if !ok {
		responses.Fail(c, http.StatusNotFound, nil, "No open session for this diagram")
		return nil, false
	}
	return session, true
}

func (h *SessionHandler) failFromService(c *gin.Context, err error, message string) {
	if errors.Is(err, services.ErrDiagramNotFound) {
		responses.Fail(c, http.StatusNotFound, err, "Diagram not found")
		return
	}
	responses.Fail(c, http.StatusInternalServerError, err, message)
}
