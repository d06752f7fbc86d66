// Package store is the adapter between the relief components and the
// relational tables relief_requests, request_items, relief_missions and
// reports. Every mutation is a single-row operation; the conditional ones
// report whether their predicate matched.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/reliefconnect/api/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// RequestFilter selects a page of requests ordered by created_at descending.
// A nil Status matches every status.
type RequestFilter struct {
	Status *model.RequestStatus
	Offset int
	Limit  int
}

// NearbyFilter selects every request within RadiusKm of (Lat, Lng).
type NearbyFilter struct {
	Status   *model.RequestStatus
	Lat      float64
	Lng      float64
	RadiusKm float64
}

type Store interface {
	InsertRequest(ctx context.Context, r *model.ReliefRequest) error
	GetRequest(ctx context.Context, id string) (*model.ReliefRequest, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]model.ReliefRequest, int64, error)
	NearbyRequests(ctx context.Context, f NearbyFilter) ([]model.ReliefRequest, error)
	// UpdateRequestStatus sets the status of one request. When from is not
	// empty the write only applies if the current status is one of them.
	UpdateRequestStatus(ctx context.Context, id string, to model.RequestStatus, from ...model.RequestStatus) (bool, error)
	CountRequestsByStatus(ctx context.Context) (map[model.RequestStatus]int64, error)

	InsertMission(ctx context.Context, m *model.ReliefMission) error
	GetMission(ctx context.Context, id string) (*model.ReliefMission, error)
	DeleteMission(ctx context.Context, id string) error
	// CompleteMission stamps completion only if the mission is not yet
	// completed. proof is left untouched when nil.
	CompleteMission(ctx context.Context, id string, at time.Time, proof *string) (bool, error)
	LatestMissions(ctx context.Context, requestIDs []string) (map[string]model.ReliefMission, error)
	CompletedMissionsWithOpenRequest(ctx context.Context, limit int) ([]model.ReliefMission, error)

	InsertReport(ctx context.Context, r *model.Report) error
	ListReports(ctx context.Context, requestID string) ([]model.Report, error)
	CountReports(ctx context.Context, requestID string) (int64, error)
	ReporterIDs(ctx context.Context, requestIDs []string) (map[string][]string, error)
	RequestsAtReportThreshold(ctx context.Context, threshold int) ([]string, error)

	Ping(ctx context.Context) error
}
