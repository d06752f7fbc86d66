package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/reliefconnect/api/internal/geo"
	"github.com/reliefconnect/api/internal/model"
	"gorm.io/gorm"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var _ Store = (*GormStore)(nil)

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// isUniqueViolation catches drivers that were opened without TranslateError.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

// --- Requests ---

func (s *GormStore) InsertRequest(ctx context.Context, r *model.ReliefRequest) error {
	return translate(s.db.WithContext(ctx).Create(r).Error)
}

func (s *GormStore) GetRequest(ctx context.Context, id string) (*model.ReliefRequest, error) {
	var r model.ReliefRequest
	err := s.db.WithContext(ctx).Preload("Items").First(&r, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (s *GormStore) ListRequests(ctx context.Context, f RequestFilter) ([]model.ReliefRequest, int64, error) {
	scoped := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&model.ReliefRequest{})
		if f.Status != nil {
			q = q.Where("status = ?", *f.Status)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	requests := []model.ReliefRequest{}
	err := scoped().
		Order("created_at DESC").
		Order("id DESC").
		Offset(f.Offset).
		Limit(f.Limit).
		Find(&requests).Error
	if err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

// NearbyRequests narrows candidates with a bounding box on the indexed
// lat/lng columns, then keeps the ones inside the great-circle radius.
func (s *GormStore) NearbyRequests(ctx context.Context, f NearbyFilter) ([]model.ReliefRequest, error) {
	box := geo.BoundingBox(f.Lat, f.Lng, f.RadiusKm)

	q := s.db.WithContext(ctx).
		Where("latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat)
	if !box.WrapsLng {
		q = q.Where("longitude BETWEEN ? AND ?", box.MinLng, box.MaxLng)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}

	var candidates []model.ReliefRequest
	if err := q.Order("created_at DESC").Order("id DESC").Find(&candidates).Error; err != nil {
		return nil, err
	}

	nearby := make([]model.ReliefRequest, 0, len(candidates))
	for _, r := range candidates {
		if geo.Within(f.Lat, f.Lng, f.RadiusKm, r.Latitude, r.Longitude) {
			nearby = append(nearby, r)
		}
	}
	return nearby, nil
}

func (s *GormStore) UpdateRequestStatus(ctx context.Context, id string, to model.RequestStatus, from ...model.RequestStatus) (bool, error) {
	q := s.db.WithContext(ctx).Model(&model.ReliefRequest{}).Where("id = ?", id)
	if len(from) > 0 {
		q = q.Where("status IN ?", from)
	}
	result := q.Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *GormStore) CountRequestsByStatus(ctx context.Context) (map[model.RequestStatus]int64, error) {
	type statusCount struct {
		Status model.RequestStatus
		Count  int64
	}
	var rows []statusCount
	err := s.db.WithContext(ctx).Model(&model.ReliefRequest{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.RequestStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// --- Missions ---

func (s *GormStore) InsertMission(ctx context.Context, m *model.ReliefMission) error {
	return translate(s.db.WithContext(ctx).Create(m).Error)
}

func (s *GormStore) GetMission(ctx context.Context, id string) (*model.ReliefMission, error) {
	var m model.ReliefMission
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *GormStore) DeleteMission(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.ReliefMission{}).Error
}

func (s *GormStore) CompleteMission(ctx context.Context, id string, at time.Time, proof *string) (bool, error) {
	updates := map[string]interface{}{"completed_at": at}
	if proof != nil {
		updates["proof_image"] = *proof
	}
	result := s.db.WithContext(ctx).Model(&model.ReliefMission{}).
		Where("id = ? AND completed_at IS NULL", id).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// LatestMissions returns, per request, the most recently started mission.
func (s *GormStore) LatestMissions(ctx context.Context, requestIDs []string) (map[string]model.ReliefMission, error) {
	latest := make(map[string]model.ReliefMission, len(requestIDs))
	if len(requestIDs) == 0 {
		return latest, nil
	}

	var missions []model.ReliefMission
	err := s.db.WithContext(ctx).
		Where("request_id IN ?", requestIDs).
		Order("started_at ASC").
		Find(&missions).Error
	if err != nil {
		return nil, err
	}
	for _, m := range missions {
		latest[m.RequestID] = m
	}
	return latest, nil
}

// CompletedMissionsWithOpenRequest finds completions whose request update
// never landed.
func (s *GormStore) CompletedMissionsWithOpenRequest(ctx context.Context, limit int) ([]model.ReliefMission, error) {
	var missions []model.ReliefMission
	err := s.db.WithContext(ctx).Model(&model.ReliefMission{}).
		Select("relief_missions.*").
		Joins("JOIN relief_requests ON relief_requests.id = relief_missions.request_id").
		Where("relief_missions.completed_at IS NOT NULL AND relief_requests.status = ?", model.StatusInProgress).
		Order("relief_missions.completed_at ASC").
		Limit(limit).
		Find(&missions).Error
	return missions, err
}

// --- Reports ---

func (s *GormStore) InsertReport(ctx context.Context, r *model.Report) error {
	return translate(s.db.WithContext(ctx).Create(r).Error)
}

func (s *GormStore) ListReports(ctx context.Context, requestID string) ([]model.Report, error) {
	reports := []model.Report{}
	err := s.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&reports).Error
	return reports, err
}

func (s *GormStore) CountReports(ctx context.Context, requestID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Report{}).
		Where("request_id = ?", requestID).
		Count(&count).Error
	return count, err
}

func (s *GormStore) ReporterIDs(ctx context.Context, requestIDs []string) (map[string][]string, error) {
	reporters := make(map[string][]string, len(requestIDs))
	if len(requestIDs) == 0 {
		return reporters, nil
	}

	var reports []model.Report
	err := s.db.WithContext(ctx).
		Select("request_id", "reporter_id").
		Where("request_id IN ?", requestIDs).
		Order("created_at ASC").
		Find(&reports).Error
	if err != nil {
		return nil, err
	}
	for _, r := range reports {
		reporters[r.RequestID] = append(reporters[r.RequestID], r.ReporterID)
	}
	return reporters, nil
}

// RequestsAtReportThreshold lists open or in-progress requests that have
// collected at least threshold reports.
func (s *GormStore) RequestsAtReportThreshold(ctx context.Context, threshold int) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&model.Report{}).
		Joins("JOIN relief_requests ON relief_requests.id = reports.request_id").
		Where("relief_requests.status IN ?", []model.RequestStatus{model.StatusOpen, model.StatusInProgress}).
		Group("reports.request_id").
		Having("COUNT(*) >= ?", threshold).
		Pluck("reports.request_id", &ids).Error
	return ids, err
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
