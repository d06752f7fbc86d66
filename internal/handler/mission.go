package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reliefconnect/api/internal/apperr"
	"github.com/reliefconnect/api/internal/middleware"
	"github.com/reliefconnect/api/internal/mission"
	"github.com/reliefconnect/api/internal/model"
	"github.com/reliefconnect/api/internal/realtime"
)

type MissionHandler struct {
	engine *mission.Engine
	events Publisher
}

func NewMissionHandler(engine *mission.Engine, events Publisher) *MissionHandler {
	return &MissionHandler{engine: engine, events: events}
}

type AcceptMissionRequest struct {
	RequestID string `json:"requestId" binding:"required"`
	DonorID   string `json:"donorId" binding:"required"`
}

type CompleteMissionRequest struct {
	ProofImage *string `json:"proofImage"`
}

func (h *MissionHandler) Accept(c *gin.Context) {
	var req AcceptMissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("requestId and donorId are required"))
		return
	}

	m, err := h.engine.Accept(c.Request.Context(), req.RequestID, req.DonorID)
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			middleware.RecordMissionAccept("conflict")
		} else {
			middleware.RecordMissionAccept("error")
		}
		respondError(c, err)
		return
	}

	middleware.RecordMissionAccept("accepted")
	h.events.Publish(realtime.MissionAccepted, m)
	h.events.Publish(realtime.RequestStatus, gin.H{"id": m.RequestID, "status": model.StatusInProgress})
	c.JSON(http.StatusCreated, m)
}

// Complete handles PATCH /missions?id= with an optional proof image.
func (h *MissionHandler) Complete(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		respondError(c, apperr.Validation("missing mission id"))
		return
	}

	var req CompleteMissionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apperr.Validation("invalid request body: %v", err))
			return
		}
	}

	m, err := h.engine.Complete(c.Request.Context(), id, req.ProofImage)
	if err != nil {
		middleware.RecordMissionCompletion(string(apperr.KindOf(err)))
		respondError(c, err)
		return
	}

	middleware.RecordMissionCompletion("completed")
	h.events.Publish(realtime.MissionCompleted, m)
	h.events.Publish(realtime.RequestStatus, gin.H{"id": m.RequestID, "status": model.StatusCompleted})
	c.JSON(http.StatusOK, m)
}

// Retry re-applies the request side of a partially failed completion.
func (h *MissionHandler) Retry(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		respondError(c, apperr.Validation("missing mission id"))
		return
	}
	if err := h.engine.RetryRequestCompletion(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
