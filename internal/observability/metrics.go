package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ImagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facepass",
		Name:      "images_processed_total",
		Help:      "Total number of submitted images by encoding outcome",
	}, []string{"outcome"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facepass",
		Name:      "inference_duration_seconds",
		Help:      "Duration of pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facepass",
		Name:      "registrations_total",
		Help:      "Total number of registration attempts by result",
	}, []string{"result"})

	AttendanceMarks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facepass",
		Name:      "attendance_marks_total",
		Help:      "Total number of attendance attempts by mode and result",
	}, []string{"mode", "result"})

	MatchScore = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facepass",
		Name:      "match_score",
		Help:      "Confidence of accepted matches",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	}, []string{"metric"})

	SessionsInUse = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "facepass",
		Name:      "model_sessions_in_use",
		Help:      "Number of ONNX sessions currently checked out",
	}, []string{"model"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facepass",
		Name:      "queue_depth",
		Help:      "Number of attendance events pending in the stream",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facepass",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facepass",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
