package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/reliefconnect/api/internal/client"
	"github.com/reliefconnect/api/internal/middleware"
)

type Analyzer interface {
	Analyze(ctx context.Context, audio, mimeType string) (*client.Extraction, error)
}

type AnalyzeHandler struct {
	analyzer Analyzer
}

func NewAnalyzeHandler(a Analyzer) *AnalyzeHandler {
	return &AnalyzeHandler{analyzer: a}
}

type AnalyzeRequest struct {
	Audio    string `json:"audio" binding:"required"`
	MimeType string `json:"mimeType"`
}

// Analyze turns a voice recording into a draft request. Nothing is stored.
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No audio data provided", "kind": "validation"})
		return
	}

	start := time.Now()
	draft, err := h.analyzer.Analyze(c.Request.Context(), req.Audio, req.MimeType)
	middleware.RecordExtractorCall(err == nil || errors.Is(err, client.ErrUnintelligible), time.Since(start))

	if errors.Is(err, client.ErrUnintelligible) {
		c.JSON(http.StatusOK, gin.H{"error": client.ErrUnintelligible.Error()})
		return
	}
	if err != nil {
		log.WithError(err).Error("voice extraction failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to analyze audio", "kind": "upstream"})
		return
	}
	c.JSON(http.StatusOK, draft)
}
