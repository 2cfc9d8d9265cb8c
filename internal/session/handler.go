package session

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"broker-copilot/internal/agent"
	"broker-copilot/internal/intake"
	"broker-copilot/internal/shared/server/middleware"
	"broker-copilot/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the session store.
type Handler struct {
	Store *Store
}

// NewHandler constructs a Handler.
func NewHandler(store *Store) *Handler {
	return &Handler{Store: store}
}

// RegisterRoutes attaches session routes. Limit, when set, guards the routes
// that reach the agent.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, limit gin.HandlerFunc) {
	guarded := []gin.HandlerFunc{}
	if limit != nil {
		guarded = append(guarded, limit)
	}
	rg.POST("/sessions", h.create)
	rg.GET("/sessions/:id", h.get)
	rg.POST("/sessions/:id/run", append(guarded, h.run)...)
	rg.POST("/sessions/:id/clarifiers", append(guarded, h.clarifiers)...)
	rg.POST("/sessions/:id/picks/:key", h.toggle)
	rg.GET("/sessions/:id/pack", h.export)
	rg.POST("/sessions/:id/reset", h.reset)
}

// Load resolves the :id route parameter, writing a 404 when it is unknown.
func (h *Handler) Load(c *gin.Context) (*Session, bool) {
	id := strings.TrimSpace(c.Param("id"))
	c.Set(middleware.SessionIDKey, id)
	sess, err := h.Store.Get(id)
	if err != nil {
		respond.Error(c, http.StatusNotFound, "not_found", "session not found", nil)
		return nil, false
	}
	return sess, true
}

func (h *Handler) create(c *gin.Context) {
	sess := h.Store.Create()
	c.Set(middleware.SessionIDKey, sess.ID)
	respond.JSON(c, http.StatusCreated, gin.H{"sessionId": sess.ID, "state": sess.State()})
}

func (h *Handler) get(c *gin.Context) {
	sess, ok := h.Load(c)
	if !ok {
		return
	}
	respond.OK(c, sess.View())
}

func (h *Handler) run(c *gin.Context) {
	sess, ok := h.Load(c)
	if !ok {
		return
	}
	var in intake.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	out, err := sess.Run(c.Request.Context(), in)
	h.writeOutcome(c, out, err)
}

type clarifierRequest struct {
	Answers map[string]string `json:"answers"`
}

func (h *Handler) clarifiers(c *gin.Context) {
	sess, ok := h.Load(c)
	if !ok {
		return
	}
	var req clarifierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	out, err := sess.SubmitClarifierAnswers(c.Request.Context(), req.Answers)
	h.writeOutcome(c, out, err)
}

func (h *Handler) writeOutcome(c *gin.Context, out Outcome, err error) {
	if out.Transition != "" {
		c.Set(middleware.StateTransitionKey, out.Transition)
	}
	if err == nil {
		respond.OK(c, out)
		return
	}
	switch {
	case intake.IsValidation(err):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrBusy):
		respond.Error(c, http.StatusConflict, "cycle_in_flight", err.Error(), nil)
	case errors.Is(err, ErrNoPendingClarifiers):
		respond.Error(c, http.StatusConflict, "no_pending_clarifiers", err.Error(), nil)
	case agent.IsTransport(err):
		respond.Error(c, http.StatusBadGateway, "agent_unavailable", err.Error(), out)
	case agent.IsProtocol(err):
		respond.Error(c, http.StatusBadGateway, "agent_malformed_response", err.Error(), out)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", err.Error(), out)
	}
}

func (h *Handler) toggle(c *gin.Context) {
	sess, ok := h.Load(c)
	if !ok {
		return
	}
	state, err := sess.TogglePick(strings.TrimSpace(c.Param("key")))
	if err != nil {
		if errors.Is(err, ErrUnknownProduct) {
			respond.Error(c, http.StatusNotFound, "unknown_product", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", err.Error(), nil)
		return
	}
	respond.OK(c, state)
}

func (h *Handler) export(c *gin.Context) {
	sess, ok := h.Load(c)
	if !ok {
		return
	}
	exp, fileName := sess.ExportPack()
	respond.Attachment(c, fileName, exp)
}

func (h *Handler) reset(c *gin.Context) {
	sess, ok := h.Load(c)
	if !ok {
		return
	}
	if err := sess.Reset(); err != nil {
		respond.Error(c, http.StatusConflict, "cycle_in_flight", err.Error(), nil)
		return
	}
	respond.OK(c, sess.View())
}
