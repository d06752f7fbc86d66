package query

import (
	"context"
	"time"

	"github.com/apex/log"
	"github.com/reliefconnect/api/internal/apperr"
	"github.com/reliefconnect/api/internal/lifecycle"
	"github.com/reliefconnect/api/internal/model"
	"github.com/reliefconnect/api/internal/store"
)

const statsKey = "stats:requests"

// JSONCache is the part of the redis cache the stats view uses.
type JSONCache interface {
	GetJSON(ctx context.Context, key string, dst any) error
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

// Page is one page of request views.
type Page struct {
	Data       []RequestView `json:"data"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int           `json:"totalPages"`
	// TotalExact is false when Total counts more rows than the filter
	// matches. Geo totals are computed inside the radius, so it is always
	// true today.
	TotalExact bool `json:"totalExact"`
}

type Stats struct {
	Total      int64 `json:"total"`
	Open       int64 `json:"open"`
	InProgress int64 `json:"inProgress"`
	Completed  int64 `json:"completed"`
	Cancelled  int64 `json:"cancelled"`
}

type Service struct {
	requests *lifecycle.Manager
	store    store.Store
	cache    JSONCache
	statsTTL time.Duration
}

// NewService builds the query layer. cache may be nil.
func NewService(requests *lifecycle.Manager, s store.Store, cache JSONCache, statsTTL time.Duration) *Service {
	return &Service{requests: requests, store: s, cache: cache, statsTTL: statsTTL}
}

// TotalPages is ceil(total/limit).
func TotalPages(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

func (s *Service) ListWithSummaries(ctx context.Context, f lifecycle.Filter) (*Page, error) {
	f = f.Normalize()
	rows, total, err := s.requests.GetRequests(ctx, f)
	if err != nil {
		return nil, err
	}

	views, err := s.join(ctx, rows)
	if err != nil {
		return nil, err
	}
	return &Page{
		Data:       views,
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: TotalPages(total, f.Limit),
		TotalExact: true,
	}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*RequestView, error) {
	r, err := s.requests.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.join(ctx, []model.ReliefRequest{*r})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *Service) join(ctx context.Context, rows []model.ReliefRequest) ([]RequestView, error) {
	views := make([]RequestView, 0, len(rows))
	if len(rows) == 0 {
		return views, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	missions, err := s.store.LatestMissions(ctx, ids)
	if err != nil {
		return nil, apperr.Store("failed to load missions", err)
	}
	reporters, err := s.store.ReporterIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Store("failed to load reports", err)
	}

	for _, r := range rows {
		var m *model.ReliefMission
		if latest, ok := missions[r.ID]; ok {
			m = &latest
		}
		views = append(views, Project(r, m, reporters[r.ID]))
	}
	return views, nil
}

// Stats counts requests per status. Results are cached for statsTTL when a
// cache is configured; cache errors fall through to the store.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	if s.cache != nil {
		var cached Stats
		if err := s.cache.GetJSON(ctx, statsKey, &cached); err == nil {
			return &cached, nil
		}
	}

	counts, err := s.store.CountRequestsByStatus(ctx)
	if err != nil {
		return nil, apperr.Store("failed to count requests", err)
	}
	st := &Stats{
		Open:       counts[model.StatusOpen],
		InProgress: counts[model.StatusInProgress],
		Completed:  counts[model.StatusCompleted],
		Cancelled:  counts[model.StatusCancelled],
	}
	st.Total = st.Open + st.InProgress + st.Completed + st.Cancelled

	if s.cache != nil && s.statsTTL > 0 {
		if err := s.cache.SetJSON(ctx, statsKey, st, s.statsTTL); err != nil {
			log.WithError(err).Debug("stats cache write failed")
		}
	}
	return st, nil
}
