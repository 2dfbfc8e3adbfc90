package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sentinel-cycle/engine/internal/cycle"
)

// Handler binds the Cycle Engine's operations (§4's start_cycle,
// approve_current, revise_current, cancel_cycle, pause_cycle,
// resume_cycle, get_status) to HTTP.
type Handler struct {
	engine *cycle.Engine
}

// NewHandler constructs a Handler bound to engine.
func NewHandler(engine *cycle.Engine) *Handler {
	return &Handler{engine: engine}
}

type startCycleRequest struct {
	Goal      string `json:"goal" binding:"required"`
	SessionID string `json:"session_id" binding:"required"`
}

type startCycleResponse struct {
	CycleID string `json:"cycle_id"`
}

// HandleStartCycle implements POST /api/cycles.
func (h *Handler) HandleStartCycle(c *gin.Context) {
	var req startCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	cycleID, err := h.engine.StartCycle(c.Request.Context(), req.Goal, req.SessionID)
	if err != nil {
		status, body := writeMappedError(err, http.StatusInternalServerError, "failed to start cycle")
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusAccepted, startCycleResponse{CycleID: cycleID})
}

type approvalPayloadRequest struct {
	Value any `json:"value"`
}

// HandleApproveCurrent implements POST /api/cycles/current/approve.
func (h *Handler) HandleApproveCurrent(c *gin.Context) {
	var req approvalPayloadRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	if err := h.engine.ApproveCurrent(req.Value); err != nil {
		status, body := writeMappedError(err, http.StatusInternalServerError, "failed to approve")
		c.JSON(status, body)
		return
	}
	c.Status(http.StatusNoContent)
}

type reviseRequest struct {
	Reason string `json:"reason"`
}

// HandleReviseCurrent implements POST /api/cycles/current/revise.
func (h *Handler) HandleReviseCurrent(c *gin.Context) {
	var req reviseRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.engine.ReviseCurrent(req.Reason); err != nil {
		status, body := writeMappedError(err, http.StatusInternalServerError, "failed to revise")
		c.JSON(status, body)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleCancelCycle implements POST /api/cycles/current/cancel.
func (h *Handler) HandleCancelCycle(c *gin.Context) {
	if err := h.engine.CancelCycle(); err != nil {
		status, body := writeMappedError(err, http.StatusInternalServerError, "failed to cancel")
		c.JSON(status, body)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandlePauseCycle implements POST /api/cycles/current/pause.
func (h *Handler) HandlePauseCycle(c *gin.Context) {
	if err := h.engine.PauseCycle(); err != nil {
		status, body := writeMappedError(err, http.StatusInternalServerError, "failed to pause")
		c.JSON(status, body)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleResumeCycle implements POST /api/cycles/current/resume.
func (h *Handler) HandleResumeCycle(c *gin.Context) {
	if err := h.engine.ResumeCycle(); err != nil {
		status, body := writeMappedError(err, http.StatusInternalServerError, "failed to resume")
		c.JSON(status, body)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleGetStatus implements GET /api/cycles/current.
func (h *Handler) HandleGetStatus(c *gin.Context) {
	snapshot := h.engine.GetStatus(50)
	c.JSON(http.StatusOK, snapshot)
}
