// Package lifecycle owns the relief request state machine: creation, reads
// and the administrative status override. The guarded transitions live in
// the mission and report packages.
package lifecycle

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/reliefconnect/api/internal/apperr"
	"github.com/reliefconnect/api/internal/model"
	"github.com/reliefconnect/api/internal/store"
)

const (
	DefaultLimit = 20
	MaxLimit     = 1000
)

type Manager struct {
	store store.Store
	now   func() time.Time
}

func NewManager(s store.Store) *Manager {
	return &Manager{store: s, now: func() time.Time { return time.Now().UTC() }}
}

type ItemInput struct {
	ItemName       string `json:"itemName"`
	QuantityNeeded int    `json:"quantityNeeded"`
	Unit           string `json:"unit"`
}

type CreateRequestInput struct {
	RequesterID  string              `json:"requesterId"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	Address      string              `json:"address"`
	Latitude     float64             `json:"latitude"`
	Longitude    float64             `json:"longitude"`
	ContactPhone *string             `json:"contactPhone"`
	UrgencyLevel *model.UrgencyLevel `json:"urgencyLevel"`
	Items        []ItemInput         `json:"items"`
}

func (in *CreateRequestInput) validate() error {
	var missing []string
	if strings.TrimSpace(in.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(in.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(in.Address) == "" {
		missing = append(missing, "address")
	}
	if in.Latitude == 0 {
		missing = append(missing, "latitude")
	}
	if in.Longitude == 0 {
		missing = append(missing, "longitude")
	}
	if len(missing) > 0 {
		return apperr.Validation("missing required fields: %s", strings.Join(missing, ", "))
	}

	if math.IsNaN(in.Latitude) || in.Latitude < -90 || in.Latitude > 90 {
		return apperr.Validation("latitude must be between -90 and 90")
	}
	if math.IsNaN(in.Longitude) || in.Longitude < -180 || in.Longitude > 180 {
		return apperr.Validation("longitude must be between -180 and 180")
	}
	if in.UrgencyLevel != nil && !in.UrgencyLevel.Valid() {
		return apperr.Validation("urgencyLevel %d out of range", int(*in.UrgencyLevel))
	}
	for _, item := range in.Items {
		if strings.TrimSpace(item.ItemName) == "" || item.QuantityNeeded <= 0 {
			return apperr.Validation("items need a name and a positive quantity")
		}
	}
	return nil
}

// CreateRequest stores a new Open request stamped with the current time.
func (m *Manager) CreateRequest(ctx context.Context, in CreateRequestInput) (*model.ReliefRequest, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	urgency := model.UrgencyMedium
	if in.UrgencyLevel != nil {
		urgency = *in.UrgencyLevel
	}
	var phone *string
	if in.ContactPhone != nil && strings.TrimSpace(*in.ContactPhone) != "" {
		p := strings.TrimSpace(*in.ContactPhone)
		phone = &p
	}

	r := &model.ReliefRequest{
		ID:           uuid.NewString(),
		RequesterID:  strings.TrimSpace(in.RequesterID),
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		Address:      strings.TrimSpace(in.Address),
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		ContactPhone: phone,
		UrgencyLevel: urgency,
		Status:       model.StatusOpen,
		CreatedAt:    m.now(),
	}
	for _, item := range in.Items {
		r.Items = append(r.Items, model.RequestItem{
			ID:             uuid.NewString(),
			RequestID:      r.ID,
			ItemName:       strings.TrimSpace(item.ItemName),
			QuantityNeeded: item.QuantityNeeded,
			Unit:           strings.TrimSpace(item.Unit),
		})
	}

	if err := m.store.InsertRequest(ctx, r); err != nil {
		return nil, apperr.Store("failed to create request", err)
	}

	log.WithFields(log.Fields{
		"request_id": r.ID,
		"urgency":    r.UrgencyLevel.String(),
	}).Info("relief request created")
	return r, nil
}

// GeoFilter restricts a listing to a great-circle radius.
type GeoFilter struct {
	Lat      float64
	Lng      float64
	RadiusKm float64
}

func (g *GeoFilter) validate() error {
	if math.IsNaN(g.Lat) || g.Lat < -90 || g.Lat > 90 {
		return apperr.Validation("lat must be between -90 and 90")
	}
	if math.IsNaN(g.Lng) || g.Lng < -180 || g.Lng > 180 {
		return apperr.Validation("lng must be between -180 and 180")
	}
	if math.IsNaN(g.RadiusKm) || math.IsInf(g.RadiusKm, 0) || g.RadiusKm <= 0 {
		return apperr.Validation("radius must be a positive number")
	}
	return nil
}

// Filter selects a page of requests. A nil Status means every status.
type Filter struct {
	Status *model.RequestStatus
	Page   int
	Limit  int
	Geo    *GeoFilter
}

// Normalize clamps page and limit into their accepted ranges.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	// keeps (Page-1)*Limit representable; such a page is always past the end
	if maxPage := math.MaxInt / f.Limit; f.Page > maxPage {
		f.Page = maxPage
	}
	return f
}

func (f Filter) offset() int {
	return (f.Page - 1) * f.Limit
}

// GetRequests returns a page of requests, newest first, and the number of
// requests matching the filter. With a geo filter, distance only decides
// membership; the order stays by recency.
func (m *Manager) GetRequests(ctx context.Context, f Filter) ([]model.ReliefRequest, int64, error) {
	f = f.Normalize()

	if f.Geo != nil {
		if err := f.Geo.validate(); err != nil {
			return nil, 0, err
		}
		nearby, err := m.store.NearbyRequests(ctx, store.NearbyFilter{
			Status:   f.Status,
			Lat:      f.Geo.Lat,
			Lng:      f.Geo.Lng,
			RadiusKm: f.Geo.RadiusKm,
		})
		if err != nil {
			return nil, 0, apperr.Store("failed to list nearby requests", err)
		}
		return paginate(nearby, f.offset(), f.Limit), int64(len(nearby)), nil
	}

	requests, total, err := m.store.ListRequests(ctx, store.RequestFilter{
		Status: f.Status,
		Offset: f.offset(),
		Limit:  f.Limit,
	})
	if err != nil {
		return nil, 0, apperr.Store("failed to list requests", err)
	}
	return requests, total, nil
}

func paginate(rows []model.ReliefRequest, offset, limit int) []model.ReliefRequest {
	if offset < 0 || offset >= len(rows) {
		return []model.ReliefRequest{}
	}
	end := offset + limit
	if end > len(rows) || end < offset {
		end = len(rows)
	}
	return rows[offset:end]
}

func (m *Manager) GetRequest(ctx context.Context, id string) (*model.ReliefRequest, error) {
	r, err := m.store.GetRequest(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("request %s not found", id)
	}
	if err != nil {
		return nil, apperr.Store("failed to load request", err)
	}
	return r, nil
}

// SetStatus is the administrative override: any valid status may be written
// to an existing request.
func (m *Manager) SetStatus(ctx context.Context, id string, status model.RequestStatus) error {
	if !status.Valid() {
		return apperr.Validation("status %d out of range", int(status))
	}
	current, err := m.GetRequest(ctx, id)
	if err != nil {
		return err
	}

	ok, err := m.store.UpdateRequestStatus(ctx, id, status)
	if err != nil {
		return apperr.Store("failed to update request status", err)
	}
	if !ok {
		return apperr.NotFound("request %s not found", id)
	}

	log.WithFields(log.Fields{
		"request_id": id,
		"from":       current.Status.String(),
		"to":         status.String(),
	}).Warn("request status overridden")
	return nil
}

// ParseStatusFilter reads the status query parameter. "", "all" and "-1"
// select every status.
func ParseStatusFilter(raw string) (*model.RequestStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all", "-1":
		return nil, nil
	}
	s, err := model.ParseRequestStatus(raw)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}
	return &s, nil
}
