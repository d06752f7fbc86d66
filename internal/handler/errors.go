package handler

import (
	"errors"
	"net/http"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/reliefconnect/api/internal/apperr"
)

// Publisher receives change events for the realtime feed.
type Publisher interface {
	Publish(eventType string, data any)
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError writes the error kind and its client message.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	body := gin.H{"error": apperr.Message(err), "kind": kind}

	var e *apperr.Error
	if kind == apperr.KindPartialFailure && errors.As(err, &e) {
		body["missionId"] = e.MissionID
	}
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.AbortWithStatusJSON(status, body)
}

// respondDegraded answers a read with an empty result when the store failed,
// so clients keep rendering. Client errors are still reported as such.
func respondDegraded(c *gin.Context, err error, empty gin.H) {
	kind := apperr.KindOf(err)
	if kind != apperr.KindStore {
		respondError(c, err)
		return
	}
	log.WithError(err).WithField("path", c.FullPath()).Warn("serving degraded read")
	empty["error"] = apperr.Message(err)
	empty["kind"] = kind
	c.JSON(http.StatusOK, empty)
}
