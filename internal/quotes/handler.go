package quotes

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"broker-copilot/internal/session"
	"broker-copilot/internal/shared/server/middleware"
	"broker-copilot/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the quote service.
type Handler struct {
	Svc      *Service
	Sessions *session.Handler
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, sessions *session.Handler) *Handler {
	return &Handler{Svc: svc, Sessions: sessions}
}

// RegisterRoutes attaches quote routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sessions/:id/quotes", h.start)
	rg.GET("/sessions/:id/quotes", h.list)
	rg.GET("/quotes/:id", h.get)
	rg.GET("/quotes/:id/pack", h.archive)
}

func (h *Handler) start(c *gin.Context) {
	sess, ok := h.Sessions.Load(c)
	if !ok {
		return
	}
	exp, fileName := sess.ExportPack()
	req, err := h.Svc.Start(c.Request.Context(), sess.ID, exp, fileName)
	if err != nil {
		if errors.Is(err, ErrEmptyPack) {
			respond.Error(c, http.StatusUnprocessableEntity, "empty_pack", "Select at least one product first", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start quotes", nil)
		return
	}
	c.Set(middleware.QuoteRequestIDKey, req.ID)
	respond.JSON(c, http.StatusCreated, req)
}

func (h *Handler) list(c *gin.Context) {
	sess, ok := h.Sessions.Load(c)
	if !ok {
		return
	}
	items, err := h.Svc.ListBySession(c.Request.Context(), sess.ID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list quote requests", nil)
		return
	}
	if items == nil {
		items = []Request{}
	}
	respond.OK(c, gin.H{"items": items})
}

func (h *Handler) get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	c.Set(middleware.QuoteRequestIDKey, id)
	req, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "quote request not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load quote request", nil)
		return
	}
	respond.OK(c, req)
}

func (h *Handler) archive(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	c.Set(middleware.QuoteRequestIDKey, id)
	req, rc, err := h.Svc.Archive(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "quote request not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to open quote pack", nil)
		return
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to read quote pack", nil)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(req.StorageKey)))
	c.Data(http.StatusOK, "application/json", data)
}
