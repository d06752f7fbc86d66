package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reliefconnect/api/internal/apperr"
	"github.com/reliefconnect/api/internal/middleware"
	"github.com/reliefconnect/api/internal/model"
	"github.com/reliefconnect/api/internal/realtime"
	"github.com/reliefconnect/api/internal/report"
)

type ReportHandler struct {
	reports *report.Aggregator
	events  Publisher
}

func NewReportHandler(reports *report.Aggregator, events Publisher) *ReportHandler {
	return &ReportHandler{reports: reports, events: events}
}

type reportResponse struct {
	*model.Report
	Message     string `json:"message"`
	ReportCount *int64 `json:"reportCount,omitempty"`
	Cancelled   bool   `json:"requestCancelled"`
}

func (h *ReportHandler) Create(c *gin.Context) {
	var in report.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperr.Validation("invalid request body: %v", err))
		return
	}

	res, err := h.reports.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.RecordReport(string(res.Report.Reason), res.Cancelled)
	h.events.Publish(realtime.ReportCreated, gin.H{"requestId": res.Report.RequestID, "reportCount": res.Count})
	if res.Cancelled {
		h.events.Publish(realtime.RequestStatus, gin.H{"id": res.Report.RequestID, "status": model.StatusCancelled})
	}

	out := reportResponse{Report: res.Report, Message: res.Message, Cancelled: res.Cancelled}
	if res.Count >= 0 {
		out.ReportCount = &res.Count
	}
	c.JSON(http.StatusCreated, out)
}

func (h *ReportHandler) List(c *gin.Context) {
	requestID := c.Query("requestId")
	if requestID == "" {
		respondError(c, apperr.Validation("missing requestId"))
		return
	}

	reports, total, err := h.reports.List(c.Request.Context(), requestID)
	if err != nil {
		respondDegraded(c, err, gin.H{"reports": []model.Report{}, "total": 0})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "total": total})
}
