// Package report collects abuse reports and pulls requests that reach the
// report threshold.
package report

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/reliefconnect/api/internal/apperr"
	"github.com/reliefconnect/api/internal/model"
	"github.com/reliefconnect/api/internal/store"
)

// AutoCancelThreshold is the report count at which a request is cancelled.
const AutoCancelThreshold = 3

const Acknowledgement = "Đã ghi nhận báo cáo. Cảm ơn bạn đã giúp giữ hệ thống an toàn."

type Aggregator struct {
	store store.Store
	now   func() time.Time
}

func NewAggregator(s store.Store) *Aggregator {
	return &Aggregator{store: s, now: func() time.Time { return time.Now().UTC() }}
}

type CreateInput struct {
	RequestID   string             `json:"requestId"`
	ReporterID  string             `json:"reporterId"`
	Reason      model.ReportReason `json:"reason"`
	Description *string            `json:"description"`
}

type Result struct {
	Report  *model.Report
	Message string
	// Count is -1 when the recount failed.
	Count     int64
	Cancelled bool
}

// Create stores a report. Once a request has AutoCancelThreshold reports it
// is cancelled, whether it was Open or already InProgress; its mission row is
// not touched. Requests already Completed or Cancelled keep their status.
func (a *Aggregator) Create(ctx context.Context, in CreateInput) (*Result, error) {
	in.RequestID = strings.TrimSpace(in.RequestID)
	in.ReporterID = strings.TrimSpace(in.ReporterID)
	if in.RequestID == "" || in.ReporterID == "" || in.Reason == "" {
		return nil, apperr.Validation("requestId, reporterId and reason are required")
	}

	if _, err := a.store.GetRequest(ctx, in.RequestID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("request %s not found", in.RequestID)
		}
		return nil, apperr.Store("failed to load request", err)
	}
	if !in.Reason.Valid() {
		return nil, apperr.Validation("invalid reason %q", in.Reason)
	}

	var desc *string
	if in.Description != nil && strings.TrimSpace(*in.Description) != "" {
		d := strings.TrimSpace(*in.Description)
		desc = &d
	}
	r := &model.Report{
		ID:          uuid.NewString(),
		RequestID:   in.RequestID,
		ReporterID:  in.ReporterID,
		Reason:      in.Reason,
		Description: desc,
		CreatedAt:   a.now(),
	}
	if err := a.store.InsertReport(ctx, r); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("you have already reported this request")
		}
		return nil, apperr.Store("failed to create report", err)
	}

	res := &Result{Report: r, Message: Acknowledgement, Count: -1}
	logger := log.WithFields(log.Fields{
		"request_id": r.RequestID,
		"report_id":  r.ID,
		"reason":     string(r.Reason),
	})

	count, err := a.store.CountReports(ctx, r.RequestID)
	if err != nil {
		logger.WithError(err).Warn("report recount failed, skipping auto-cancel")
		return res, nil
	}
	res.Count = count

	if count >= AutoCancelThreshold {
		cancelled, err := a.cancel(ctx, r.RequestID)
		if err != nil {
			logger.WithError(err).Warn("auto-cancel failed")
			return res, nil
		}
		res.Cancelled = cancelled
		if cancelled {
			logger.WithField("reports", count).Warn("request auto-cancelled")
		}
	}

	logger.WithField("reports", count).Info("report recorded")
	return res, nil
}

func (a *Aggregator) cancel(ctx context.Context, requestID string) (bool, error) {
	return a.store.UpdateRequestStatus(ctx, requestID, model.StatusCancelled, model.StatusOpen, model.StatusInProgress)
}

// List returns the reports of a request, newest first, with their total.
func (a *Aggregator) List(ctx context.Context, requestID string) ([]model.Report, int64, error) {
	if strings.TrimSpace(requestID) == "" {
		return nil, 0, apperr.Validation("requestId is required")
	}
	reports, err := a.store.ListReports(ctx, requestID)
	if err != nil {
		return nil, 0, apperr.Store("failed to list reports", err)
	}
	return reports, int64(len(reports)), nil
}

// Sweep cancels every active request that holds enough reports but missed its
// auto-cancel, and returns the ids it cancelled. With dryRun it only lists
// them.
func (a *Aggregator) Sweep(ctx context.Context, dryRun bool) ([]string, error) {
	ids, err := a.store.RequestsAtReportThreshold(ctx, AutoCancelThreshold)
	if err != nil {
		return nil, apperr.Store("failed to find reported requests", err)
	}
	if dryRun {
		return ids, nil
	}

	var cancelled []string
	for _, id := range ids {
		ok, err := a.cancel(ctx, id)
		if err != nil {
			log.WithError(err).WithField("request_id", id).Error("sweep cancel failed")
			continue
		}
		if ok {
			cancelled = append(cancelled, id)
		}
	}
	return cancelled, nil
}
