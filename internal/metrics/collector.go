// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 感知指标
	capturesTotal   *prometheus.CounterVec
	captureDuration *prometheus.HistogramVec
	captureAttempts *prometheus.HistogramVec
	artifactBytes   *prometheus.CounterVec

	// 协作指标
	dispatchesTotal *prometheus.CounterVec
	repliesTotal    *prometheus.CounterVec
	pendingMessages *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器，所有指标注册到 reg
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
		},
		[]string{"method", "path"},
	)

	// 感知指标
	c.capturesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_total",
			Help:      "Total number of sensor captures by terminal status",
		},
		[]string{"channel", "status"},
	)

	c.captureDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capture_duration_seconds",
			Help:      "Wall time of one capture operation including retries",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"channel"},
	)

	c.captureAttempts = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capture_attempts",
			Help:      "Attempts needed until a capture reached a terminal status",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
		[]string{"channel"},
	)

	c.artifactBytes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_bytes_total",
			Help:      "Total bytes written to the artifact store",
		},
		[]string{"channel"},
	)

	// 协作指标
	c.dispatchesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Total outbound collaboration dispatches by outcome",
		},
		[]string{"target", "outcome"},
	)

	c.repliesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_total",
			Help:      "Total inbound replies by correlation outcome",
		},
		[]string{"target", "outcome"},
	)

	c.pendingMessages = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_messages",
			Help:      "Currently pending collaboration messages per target",
		},
		[]string{"target"},
	)

	return c
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// RecordCapture 记录一次完成的捕获操作
func (c *Collector) RecordCapture(channel, status string, attempts int, duration time.Duration) {
	c.capturesTotal.WithLabelValues(channel, status).Inc()
	c.captureDuration.WithLabelValues(channel).Observe(duration.Seconds())
	if attempts > 0 {
		c.captureAttempts.WithLabelValues(channel).Observe(float64(attempts))
	}
}

// RecordArtifact 记录写入工件存储的字节数
func (c *Collector) RecordArtifact(channel string, bytes int) {
	c.artifactBytes.WithLabelValues(channel).Add(float64(bytes))
}

// RecordDispatch 记录一次外发投递
func (c *Collector) RecordDispatch(target, outcome string) {
	c.dispatchesTotal.WithLabelValues(target, outcome).Inc()
}

// RecordReply 记录一次回复归因
func (c *Collector) RecordReply(target, outcome string) {
	c.repliesTotal.WithLabelValues(target, outcome).Inc()
}

// SetPending 更新指定目标的 pending 数量
func (c *Collector) SetPending(target string, n int) {
	c.pendingMessages.WithLabelValues(target).Set(float64(n))
}
