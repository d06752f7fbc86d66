package report

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/reliefconnect/api/internal/apperr"
	"github.com/reliefconnect/api/internal/model"
	"github.com/reliefconnect/api/internal/store"
	"github.com/reliefconnect/api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s store.Store, id string, status model.RequestStatus) {
	t.Helper()
	require.NoError(t, s.InsertRequest(context.Background(), &model.ReliefRequest{
		ID:           id,
		RequesterID:  "requester-1",
		Title:        "Cần thuốc",
		Description:  "Người già cần thuốc huyết áp",
		Address:      "Huyện Cái Bè",
		Latitude:     10.33,
		Longitude:    106.03,
		UrgencyLevel: model.UrgencyCritical,
		Status:       status,
		CreatedAt:    time.Now().UTC(),
	}))
}

func report(t *testing.T, a *Aggregator, requestID string, n int) *Result {
	t.Helper()
	res, err := a.Create(context.Background(), CreateInput{
		RequestID:  requestID,
		ReporterID: fmt.Sprintf("reporter-%d", n),
		Reason:     model.ReasonSpam,
	})
	require.NoError(t, err)
	return res
}

func status(t *testing.T, s store.Store, id string) model.RequestStatus {
	t.Helper()
	r, err := s.GetRequest(context.Background(), id)
	require.NoError(t, err)
	return r.Status
}

func TestThresholdFromOpen(t *testing.T) {
	s := testutil.NewStore(t)
	a := NewAggregator(s)
	seed(t, s, "req-1", model.StatusOpen)

	for k := 1; k < AutoCancelThreshold; k++ {
		res := report(t, a, "req-1", k)
		assert.Equal(t, int64(k), res.Count)
		assert.False(t, res.Cancelled)
		assert.Equal(t, model.StatusOpen, status(t, s, "req-1"), "k=%d", k)
	}

	res := report(t, a, "req-1", AutoCancelThreshold)
	assert.Equal(t, int64(3), res.Count)
	assert.True(t, res.Cancelled)
	assert.Equal(t, Acknowledgement, res.Message)
	assert.Equal(t, model.StatusCancelled, status(t, s, "req-1"))
}

func TestThresholdFromInProgressKeepsMission(t *testing.T) {
	s := testutil.NewStore(t)
	a := NewAggregator(s)
	ctx := context.Background()
	seed(t, s, "req-1", model.StatusInProgress)
	require.NoError(t, s.InsertMission(ctx, &model.ReliefMission{ID: "m-1", RequestID: "req-1", DonorID: "donor-1", StartedAt: time.Now()}))

	for k := 1; k <= AutoCancelThreshold; k++ {
		report(t, a, "req-1", k)
	}
	assert.Equal(t, model.StatusCancelled, status(t, s, "req-1"))

	m, err := s.GetMission(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "donor-1", m.DonorID)
	assert.Nil(t, m.CompletedAt)
}

func TestThresholdLeavesCompletedRequest(t *testing.T) {
	s := testutil.NewStore(t)
	a := NewAggregator(s)
	seed(t, s, "req-1", model.StatusCompleted)

	var res *Result
	for k := 1; k <= AutoCancelThreshold; k++ {
		res = report(t, a, "req-1", k)
	}
	assert.False(t, res.Cancelled)
	assert.Equal(t, model.StatusCompleted, status(t, s, "req-1"))
}

func TestCreateValidation(t *testing.T) {
	s := testutil.NewStore(t)
	a := NewAggregator(s)
	ctx := context.Background()
	seed(t, s, "req-1", model.StatusOpen)

	_, err := a.Create(ctx, CreateInput{RequestID: "missing", ReporterID: "u", Reason: model.ReasonFake})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = a.Create(ctx, CreateInput{RequestID: "req-1", ReporterID: "u", Reason: "boring"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = a.Create(ctx, CreateInput{RequestID: "req-1", Reason: model.ReasonFake})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestDuplicateReportIsConflict(t *testing.T) {
	s := testutil.NewStore(t)
	a := NewAggregator(s)
	ctx := context.Background()
	seed(t, s, "req-1", model.StatusOpen)

	desc := "  số điện thoại giả  "
	first, err := a.Create(ctx, CreateInput{RequestID: "req-1", ReporterID: "u-1", Reason: model.ReasonFake, Description: &desc})
	require.NoError(t, err)
	require.NotNil(t, first.Report.Description)
	assert.Equal(t, "số điện thoại giả", *first.Report.Description)

	_, err = a.Create(ctx, CreateInput{RequestID: "req-1", ReporterID: "u-1", Reason: model.ReasonSpam})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	reports, total, err := a.List(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, reports, 1)
}

// countFailStore fails every report recount.
type countFailStore struct {
	store.Store
}

func (countFailStore) CountReports(context.Context, string) (int64, error) {
	return 0, errors.New("timeout")
}

func TestRecountFailureIsSkipped(t *testing.T) {
	s := testutil.NewStore(t)
	a := NewAggregator(countFailStore{s})
	seed(t, s, "req-1", model.StatusOpen)

	for k := 1; k <= AutoCancelThreshold; k++ {
		res := report(t, a, "req-1", k)
		assert.Equal(t, int64(-1), res.Count)
		assert.NotNil(t, res.Report)
	}
	assert.Equal(t, model.StatusOpen, status(t, s, "req-1"))

	// the sweep picks up what the recount missed
	swept, err := NewAggregator(s).Sweep(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"req-1"}, swept)
	assert.Equal(t, model.StatusOpen, status(t, s, "req-1"), "dry run")

	swept, err = NewAggregator(s).Sweep(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"req-1"}, swept)
	assert.Equal(t, model.StatusCancelled, status(t, s, "req-1"))
}

func TestListNewestFirst(t *testing.T) {
	s := testutil.NewStore(t)
	a := NewAggregator(s)
	seed(t, s, "req-1", model.StatusOpen)

	clock := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	report(t, a, "req-1", 1)
	report(t, a, "req-1", 2)

	reports, total, err := a.List(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "reporter-2", reports[0].ReporterID)

	_, _, err = a.List(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
