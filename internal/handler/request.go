package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/reliefconnect/api/internal/apperr"
	"github.com/reliefconnect/api/internal/lifecycle"
	"github.com/reliefconnect/api/internal/model"
	"github.com/reliefconnect/api/internal/query"
	"github.com/reliefconnect/api/internal/realtime"
)

// DefaultRadiusKm applies when a listing has coordinates but no radius.
const DefaultRadiusKm = 10.0

type RequestHandler struct {
	requests *lifecycle.Manager
	views    *query.Service
	events   Publisher
}

func NewRequestHandler(requests *lifecycle.Manager, views *query.Service, events Publisher) *RequestHandler {
	return &RequestHandler{requests: requests, views: views, events: events}
}

func (h *RequestHandler) Create(c *gin.Context) {
	var in lifecycle.CreateRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperr.Validation("invalid request body: %v", err))
		return
	}

	r, err := h.requests.CreateRequest(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	h.events.Publish(realtime.RequestCreated, query.Project(*r, nil, nil))
	c.JSON(http.StatusCreated, r)
}

func (h *RequestHandler) List(c *gin.Context) {
	f, err := parseListFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := h.views.ListWithSummaries(c.Request.Context(), f)
	if err != nil {
		f = f.Normalize()
		respondDegraded(c, err, gin.H{
			"data":       []query.RequestView{},
			"total":      0,
			"page":       f.Page,
			"limit":      f.Limit,
			"totalPages": 0,
		})
		return
	}
	c.JSON(http.StatusOK, page)
}

func parseListFilter(c *gin.Context) (lifecycle.Filter, error) {
	var f lifecycle.Filter

	status, err := lifecycle.ParseStatusFilter(c.Query("status"))
	if err != nil {
		return f, err
	}
	f.Status = status

	if f.Page, err = queryInt(c, "page", 1); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(c, "limit", lifecycle.DefaultLimit); err != nil {
		return f, err
	}

	latRaw, lngRaw := c.Query("lat"), c.Query("lng")
	if latRaw == "" && lngRaw == "" {
		return f, nil
	}
	if latRaw == "" || lngRaw == "" {
		return f, apperr.Validation("lat and lng must be given together")
	}
	geo := &lifecycle.GeoFilter{RadiusKm: DefaultRadiusKm}
	if geo.Lat, err = strconv.ParseFloat(latRaw, 64); err != nil {
		return f, apperr.Validation("invalid lat %q", latRaw)
	}
	if geo.Lng, err = strconv.ParseFloat(lngRaw, 64); err != nil {
		return f, apperr.Validation("invalid lng %q", lngRaw)
	}
	if raw := c.Query("radius"); raw != "" {
		if geo.RadiusKm, err = strconv.ParseFloat(raw, 64); err != nil {
			return f, apperr.Validation("invalid radius %q", raw)
		}
	}
	f.Geo = geo
	return f, nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("invalid %s %q", key, raw)
	}
	return n, nil
}

func (h *RequestHandler) Get(c *gin.Context) {
	view, err := h.views.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateStatus is the administrative override: PATCH /requests?id=&status=.
func (h *RequestHandler) UpdateStatus(c *gin.Context) {
	id, raw := c.Query("id"), c.Query("status")
	if id == "" || raw == "" {
		respondError(c, apperr.Validation("missing id or status"))
		return
	}
	status, err := model.ParseRequestStatus(raw)
	if err != nil {
		respondError(c, apperr.Validation("%v", err))
		return
	}

	if err := h.requests.SetStatus(c.Request.Context(), id, status); err != nil {
		respondError(c, err)
		return
	}

	h.events.Publish(realtime.RequestStatus, gin.H{"id": id, "status": status})
	c.Status(http.StatusNoContent)
}

func (h *RequestHandler) Stats(c *gin.Context) {
	st, err := h.views.Stats(c.Request.Context())
	if err != nil {
		respondDegraded(c, err, gin.H{"total": 0, "open": 0, "inProgress": 0, "completed": 0, "cancelled": 0})
		return
	}
	c.JSON(http.StatusOK, st)
}
