package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 요청 총 수
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTP 요청 처리 시간 (히스토그램)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// 현재 처리 중인 HTTP 요청 수
	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// 미션 수락 시도 수 (결과별)
	missionAcceptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relief_mission_accepts_total",
			Help: "Mission accept attempts by outcome",
		},
		[]string{"outcome"},
	)

	// 미션 완료 시도 수 (결과별)
	missionCompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relief_mission_completions_total",
			Help: "Mission completion attempts by outcome",
		},
		[]string{"outcome"},
	)

	// 신고 수 (사유별)
	reportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relief_reports_total",
			Help: "Abuse reports by reason",
		},
		[]string{"reason"},
	)

	// 신고 누적으로 자동 취소된 요청 수
	autoCancelsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relief_request_auto_cancels_total",
			Help: "Requests cancelled after reaching the report threshold",
		},
	)

	// 레이트 리밋으로 거부된 요청 수
	rateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relief_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"action"},
	)

	// 음성 분석 서비스 호출 수
	extractorCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relief_extractor_calls_total",
			Help: "Calls to the voice extraction service",
		},
		[]string{"status"},
	)

	// 음성 분석 서비스 응답 시간
	extractorDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relief_extractor_duration_seconds",
			Help:    "Voice extraction call duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)
)

// MetricsMiddleware는 HTTP 요청에 대한 Prometheus 메트릭을 수집합니다.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 요청 시작 시간
		start := time.Now()

		// 처리 중인 요청 수 증가
		httpRequestsInFlight.Inc()

		// 라우트 패턴 사용 (/api/requests/:id), 매칭 실패 시 unknown
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}

		// 요청 처리
		c.Next()

		// 처리 중인 요청 수 감소
		httpRequestsInFlight.Dec()

		// 메트릭 기록
		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// RecordMissionAccept는 미션 수락 시도를 기록합니다.
// outcome: "accepted", "conflict", "error"
func RecordMissionAccept(outcome string) {
	missionAcceptsTotal.WithLabelValues(outcome).Inc()
}

// RecordMissionCompletion은 미션 완료 시도를 기록합니다.
func RecordMissionCompletion(outcome string) {
	missionCompletionsTotal.WithLabelValues(outcome).Inc()
}

// RecordReport는 신고와 자동 취소 여부를 기록합니다.
func RecordReport(reason string, autoCancelled bool) {
	reportsTotal.WithLabelValues(reason).Inc()
	if autoCancelled {
		autoCancelsTotal.Inc()
	}
}

// RecordExtractorCall은 음성 분석 서비스 호출 메트릭을 기록합니다.
func RecordExtractorCall(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	extractorCallsTotal.WithLabelValues(status).Inc()
	extractorDuration.Observe(duration.Seconds())
}
