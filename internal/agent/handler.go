package agent

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"broker-copilot/internal/intake"
	"broker-copilot/internal/shared/server/respond"
)

// Handler serves the agent contract so other copilots can delegate to this one.
type Handler struct {
	Svc Service
}

// NewHandler constructs a Handler.
func NewHandler(svc Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the analyze and recommend endpoints.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.POST(AnalyzePath, h.analyze)
	r.POST(RecommendPath, h.recommend)
}

func (h *Handler) analyze(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	resp, err := h.Svc.Analyze(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, resp)
}

func (h *Handler) recommend(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	resp, err := h.Svc.Recommend(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, resp)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case intake.IsValidation(err):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case IsTransport(err):
		respond.Error(c, http.StatusBadGateway, "agent_unavailable", err.Error(), nil)
	case IsProtocol(err):
		respond.Error(c, http.StatusBadGateway, "agent_malformed_response", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", err.Error(), nil)
	}
}
