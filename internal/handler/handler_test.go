package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/reliefconnect/api/internal/client"
	"github.com/reliefconnect/api/internal/lifecycle"
	"github.com/reliefconnect/api/internal/mission"
	"github.com/reliefconnect/api/internal/model"
	"github.com/reliefconnect/api/internal/query"
	"github.com/reliefconnect/api/internal/report"
	"github.com/reliefconnect/api/internal/store"
	"github.com/reliefconnect/api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// brokenStore fails selected operations the way an unreachable database
// would.
type brokenStore struct {
	store.Store
	reads          bool
	finishRequests bool
}

func (b *brokenStore) ListRequests(ctx context.Context, f store.RequestFilter) ([]model.ReliefRequest, int64, error) {
	if b.reads {
		return nil, 0, errors.New("connection refused")
	}
	return b.Store.ListRequests(ctx, f)
}

func (b *brokenStore) ListReports(ctx context.Context, id string) ([]model.Report, error) {
	if b.reads {
		return nil, errors.New("connection refused")
	}
	return b.Store.ListReports(ctx, id)
}

func (b *brokenStore) UpdateRequestStatus(ctx context.Context, id string, to model.RequestStatus, from ...model.RequestStatus) (bool, error) {
	if b.finishRequests && to == model.StatusCompleted {
		return false, errors.New("connection reset")
	}
	return b.Store.UpdateRequestStatus(ctx, id, to, from...)
}

type fakeAnalyzer struct {
	draft *client.Extraction
	err   error
}

func (f fakeAnalyzer) Analyze(context.Context, string, string) (*client.Extraction, error) {
	return f.draft, f.err
}

func newTestRouter(t *testing.T, s store.Store, analyzer Analyzer) *gin.Engine {
	t.Helper()
	requests := lifecycle.NewManager(s)
	return NewRouter(Deps{
		Requests: requests,
		Views:    query.NewService(requests, s, nil, 0),
		Missions: mission.NewEngine(s),
		Reports:  report.NewAggregator(s),
		Analyzer: analyzer,
		Store:    s,
	})
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func createBody(title string) gin.H {
	return gin.H{
		"requesterId":  "requester-1",
		"title":        title,
		"description":  "Nhà bị ngập, cần nước sạch",
		"address":      "Quận 8, TP.HCM",
		"latitude":     10.76,
		"longitude":    106.66,
		"urgencyLevel": 2,
	}
}

func TestRequestFlow(t *testing.T) {
	r := newTestRouter(t, testutil.NewStore(t), nil)

	w := do(t, r, http.MethodPost, "/api/requests", createBody("Cần nước"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[model.ReliefRequest](t, w)
	assert.Equal(t, model.StatusOpen, created.Status)
	assert.Equal(t, model.UrgencyHigh, created.UrgencyLevel)

	w = do(t, r, http.MethodPost, "/api/missions", gin.H{"requestId": created.ID, "donorId": "donor-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	m := decode[model.ReliefMission](t, w)

	w = do(t, r, http.MethodPost, "/api/missions", gin.H{"requestId": created.ID, "donorId": "donor-2"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "request no longer available", decode[map[string]any](t, w)["error"])

	w = do(t, r, http.MethodPatch, "/api/missions?id="+m.ID, gin.H{"proofImage": "https://img/proof.jpg"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, r, http.MethodPatch, "/api/missions?id="+m.ID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodGet, "/api/requests/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[query.RequestView](t, w)
	assert.Equal(t, model.StatusCompleted, view.Status)
	require.NotNil(t, view.ProofImage)
	assert.Equal(t, "https://img/proof.jpg", *view.ProofImage)
	require.NotNil(t, view.Mission)
	assert.Equal(t, "donor-1", view.Mission.DonorID)
}

func TestCreateRequestValidation(t *testing.T) {
	r := newTestRouter(t, testutil.NewStore(t), nil)

	body := createBody("")
	w := do(t, r, http.MethodPost, "/api/requests", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", decode[map[string]any](t, w)["kind"])

	body = createBody("ok")
	body["urgencyLevel"] = 9
	w = do(t, r, http.MethodPost, "/api/requests", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListRequests(t *testing.T) {
	r := newTestRouter(t, testutil.NewStore(t), nil)
	for i := 0; i < 7; i++ {
		w := do(t, r, http.MethodPost, "/api/requests", createBody(fmt.Sprintf("request %d", i)))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := do(t, r, http.MethodGet, "/api/requests?status=all&page=2&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[query.Page](t, w)
	assert.Equal(t, int64(7), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Data, 2)

	w = do(t, r, http.MethodGet, "/api/requests?lat=10.76&lng=106.66&radius=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(7), decode[query.Page](t, w).Total)

	w = do(t, r, http.MethodGet, "/api/requests?lat=21.03&lng=105.83&radius=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), decode[query.Page](t, w).Total)

	w = do(t, r, http.MethodGet, "/api/requests?lat=10.76", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/requests?status=9", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, q := range []string{"lat=NaN&lng=106.66", "lat=10.76&lng=106.66&radius=Inf", "lat=95&lng=106.66"} {
		w = do(t, r, http.MethodGet, "/api/requests?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}

	for _, q := range []string{"page=9223372036854775807", "page=9223372036854775807&lat=10.76&lng=106.66"} {
		w = do(t, r, http.MethodGet, "/api/requests?"+q, nil)
		require.Equal(t, http.StatusOK, w.Code, q)
		page := decode[query.Page](t, w)
		assert.Equal(t, int64(7), page.Total, q)
		assert.Empty(t, page.Data, q)
	}
}

func TestReadsDegrade(t *testing.T) {
	s := &brokenStore{Store: testutil.NewStore(t), reads: true}
	r := newTestRouter(t, s, nil)

	w := do(t, r, http.MethodGet, "/api/requests", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Empty(t, body["data"])
	assert.NotEmpty(t, body["error"])

	w = do(t, r, http.MethodGet, "/api/reports?requestId=req-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode[map[string]any](t, w)
	assert.Empty(t, body["reports"])
	assert.NotEmpty(t, body["error"])
}

func TestUpdateStatus(t *testing.T) {
	r := newTestRouter(t, testutil.NewStore(t), nil)
	created := decode[model.ReliefRequest](t, do(t, r, http.MethodPost, "/api/requests", createBody("x")))

	w := do(t, r, http.MethodPatch, "/api/requests?id="+created.ID+"&status=3", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, http.MethodPatch, "/api/requests?id=missing&status=3", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPatch, "/api/requests?id="+created.ID, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, query.Stats{Total: 1, Cancelled: 1}, decode[query.Stats](t, w))
}

func TestMissionErrors(t *testing.T) {
	r := newTestRouter(t, testutil.NewStore(t), nil)

	w := do(t, r, http.MethodPost, "/api/missions", gin.H{"requestId": "req-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/missions", gin.H{"requestId": "missing", "donorId": "d"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPatch, "/api/missions?id=missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPartialFailureResponse(t *testing.T) {
	s := &brokenStore{Store: testutil.NewStore(t)}
	r := newTestRouter(t, s, nil)

	created := decode[model.ReliefRequest](t, do(t, r, http.MethodPost, "/api/requests", createBody("x")))
	m := decode[model.ReliefMission](t, do(t, r, http.MethodPost, "/api/missions", gin.H{"requestId": created.ID, "donorId": "d"}))

	s.finishRequests = true
	w := do(t, r, http.MethodPatch, "/api/missions?id="+m.ID, nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "partial_failure", body["kind"])
	assert.Equal(t, m.ID, body["missionId"])

	s.finishRequests = false
	w = do(t, r, http.MethodPost, "/api/missions/retry?id="+m.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	view := decode[query.RequestView](t, do(t, r, http.MethodGet, "/api/requests/"+created.ID, nil))
	assert.Equal(t, model.StatusCompleted, view.Status)
}

func TestReports(t *testing.T) {
	r := newTestRouter(t, testutil.NewStore(t), nil)
	created := decode[model.ReliefRequest](t, do(t, r, http.MethodPost, "/api/requests", createBody("x")))

	for i := 1; i <= 3; i++ {
		w := do(t, r, http.MethodPost, "/api/reports", gin.H{
			"requestId":  created.ID,
			"reporterId": fmt.Sprintf("u-%d", i),
			"reason":     "spam",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		body := decode[map[string]any](t, w)
		assert.Equal(t, report.Acknowledgement, body["message"])
		assert.Equal(t, i == 3, body["requestCancelled"])
	}

	w := do(t, r, http.MethodPost, "/api/reports", gin.H{"requestId": created.ID, "reporterId": "u-1", "reason": "fake"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodPost, "/api/reports", gin.H{"requestId": created.ID, "reporterId": "u-9", "reason": "boring"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/reports", gin.H{"requestId": "missing", "reporterId": "u-9", "reason": "spam"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/api/reports?requestId="+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decode[map[string]any](t, w)["total"])

	w = do(t, r, http.MethodGet, "/api/reports", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	view := decode[query.RequestView](t, do(t, r, http.MethodGet, "/api/requests/"+created.ID, nil))
	assert.Equal(t, model.StatusCancelled, view.Status)
	assert.Equal(t, 3, view.ReportCount)
	assert.ElementsMatch(t, []string{"u-1", "u-2", "u-3"}, view.ReporterIDs)
}

func TestAnalyze(t *testing.T) {
	draft := &client.Extraction{Title: "Cần lương thực tại Quận 1", Urgency: model.UrgencyCritical}
	r := newTestRouter(t, testutil.NewStore(t), fakeAnalyzer{draft: draft})

	w := do(t, r, http.MethodPost, "/api/analyze-request", gin.H{"audio": "UklGRg==", "mimeType": "audio/webm"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Cần lương thực tại Quận 1", decode[client.Extraction](t, w).Title)

	w = do(t, r, http.MethodPost, "/api/analyze-request", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r = newTestRouter(t, testutil.NewStore(t), fakeAnalyzer{err: client.ErrUnintelligible})
	w = do(t, r, http.MethodPost, "/api/analyze-request", gin.H{"audio": "UklGRg=="})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "unintelligible", decode[map[string]any](t, w)["error"])

	r = newTestRouter(t, testutil.NewStore(t), fakeAnalyzer{err: errors.New("timeout")})
	w = do(t, r, http.MethodPost, "/api/analyze-request", gin.H{"audio": "UklGRg=="})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, testutil.NewStore(t), nil)
	w := do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
