// Package mission implements donor acceptance and completion of relief
// requests. Acceptance is guarded by a conditional status update in the store,
// so it holds across any number of server processes.
package mission

import (
	"context"
	"errors"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/reliefconnect/api/internal/apperr"
	"github.com/reliefconnect/api/internal/model"
	"github.com/reliefconnect/api/internal/store"
)

const msgUnavailable = "request no longer available"

type Engine struct {
	store store.Store
	now   func() time.Time
}

func NewEngine(s store.Store) *Engine {
	return &Engine{store: s, now: func() time.Time { return time.Now().UTC() }}
}

// Accept assigns an Open request to a donor. Of any number of concurrent
// accepts for the same request exactly one returns a mission; the others get
// a conflict and leave no mission row behind.
func (e *Engine) Accept(ctx context.Context, requestID, donorID string) (*model.ReliefMission, error) {
	if requestID == "" || donorID == "" {
		return nil, apperr.Validation("requestId and donorId are required")
	}

	req, err := e.store.GetRequest(ctx, requestID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("request %s not found", requestID)
	}
	if err != nil {
		return nil, apperr.Store("failed to load request", err)
	}
	if req.Status != model.StatusOpen {
		return nil, apperr.Conflict(msgUnavailable)
	}

	m := &model.ReliefMission{
		ID:        uuid.NewString(),
		RequestID: requestID,
		DonorID:   donorID,
		StartedAt: e.now(),
	}
	if err := e.store.InsertMission(ctx, m); err != nil {
		return nil, apperr.Store("failed to create mission", err)
	}

	won, err := e.store.UpdateRequestStatus(ctx, requestID, model.StatusInProgress, model.StatusOpen)
	if err != nil {
		e.rollback(ctx, m)
		return nil, apperr.Store("failed to claim request", err)
	}
	if !won {
		e.rollback(ctx, m)
		log.WithFields(log.Fields{
			"request_id": requestID,
			"donor_id":   donorID,
		}).Info("mission accept lost the race")
		return nil, apperr.Conflict(msgUnavailable)
	}

	log.WithFields(log.Fields{
		"request_id": requestID,
		"mission_id": m.ID,
		"donor_id":   donorID,
	}).Info("mission accepted")
	return m, nil
}

// rollback removes a mission whose claim did not land. It runs on a context
// detached from the caller so an abandoned request still cleans up.
func (e *Engine) rollback(ctx context.Context, m *model.ReliefMission) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.store.DeleteMission(ctx, m.ID); err != nil {
		log.WithError(err).WithField("mission_id", m.ID).Error("failed to roll back mission")
	}
}

// Complete stamps the mission completed and moves its request to Completed.
// A mission completes once; a second call is a conflict and keeps the
// original completedAt. When the mission write lands but the request write
// does not, the error is a partial failure naming the mission so the caller
// can retry with RetryRequestCompletion.
func (e *Engine) Complete(ctx context.Context, missionID string, proofImage *string) (*model.ReliefMission, error) {
	if missionID == "" {
		return nil, apperr.Validation("mission id is required")
	}

	m, err := e.loadMission(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if m.Completed() {
		return nil, apperr.Conflict("mission already completed")
	}

	req, err := e.store.GetRequest(ctx, m.RequestID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("request for mission %s not found", missionID)
	}
	if err != nil {
		return nil, apperr.Store("failed to load request", err)
	}
	switch req.Status {
	case model.StatusInProgress:
	case model.StatusCancelled:
		return nil, apperr.Conflict("request was cancelled")
	default:
		return nil, apperr.Conflict("request is %s, not in progress", req.Status)
	}

	if proofImage != nil && *proofImage == "" {
		proofImage = nil
	}
	at := e.now()
	done, err := e.store.CompleteMission(ctx, missionID, at, proofImage)
	if err != nil {
		return nil, apperr.Store("failed to complete mission", err)
	}
	if !done {
		return nil, apperr.Conflict("mission already completed")
	}
	m.CompletedAt = &at
	if proofImage != nil {
		m.ProofImage = proofImage
	}

	if err := e.finishRequest(ctx, m.RequestID); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"mission_id": missionID,
			"request_id": m.RequestID,
		}).Error("mission completed but request update failed")
		return m, apperr.PartialFailure(missionID, err)
	}

	log.WithFields(log.Fields{
		"mission_id": missionID,
		"request_id": m.RequestID,
		"has_proof":  m.ProofImage != nil,
	}).Info("mission completed")
	return m, nil
}

// RetryRequestCompletion re-applies the request side of a completion. It is
// safe to call any number of times.
func (e *Engine) RetryRequestCompletion(ctx context.Context, missionID string) error {
	m, err := e.loadMission(ctx, missionID)
	if err != nil {
		return err
	}
	if !m.Completed() {
		return apperr.Conflict("mission %s is not completed", missionID)
	}
	return e.finishRequest(ctx, m.RequestID)
}

// finishRequest moves the request InProgress -> Completed. An already
// Completed request counts as done; any other state is a Conflict.
func (e *Engine) finishRequest(ctx context.Context, requestID string) error {
	applied, err := e.store.UpdateRequestStatus(ctx, requestID, model.StatusCompleted, model.StatusInProgress)
	if err != nil {
		return apperr.Store("failed to update request status", err)
	}
	if applied {
		return nil
	}

	req, err := e.store.GetRequest(ctx, requestID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("request %s not found", requestID)
	}
	if err != nil {
		return apperr.Store("failed to reload request", err)
	}
	if req.Status == model.StatusCompleted {
		return nil
	}
	return apperr.Conflict("request %s is %s, not in progress", requestID, req.Status)
}

func (e *Engine) loadMission(ctx context.Context, id string) (*model.ReliefMission, error) {
	m, err := e.store.GetMission(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("mission %s not found", id)
	}
	if err != nil {
		return nil, apperr.Store("failed to load mission", err)
	}
	if m.RequestID == "" {
		return nil, apperr.NotFound("mission %s has no request", id)
	}
	return m, nil
}
