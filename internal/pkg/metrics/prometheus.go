package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Kargones/nwrfc/internal/pkg/logging"
	"github.com/Kargones/nwrfc/internal/pkg/urlutil"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "nwrfc"

// PrometheusCollector реализует Collector с Prometheus метриками.
// Отправляет метрики в Pushgateway при вызове Push().
type PrometheusCollector struct {
	config   Config
	logger   logging.Logger
	registry *prometheus.Registry

	callDuration *prometheus.HistogramVec
	callErrors   *prometheus.CounterVec
	acquireWait  *prometheus.HistogramVec
	poolSize     *prometheus.GaugeVec
	discards     *prometheus.CounterVec

	instance string
}

// NewPrometheusCollector создаёт PrometheusCollector и регистрирует метрики:
//   - nwrfc_call_duration_seconds (histogram: function, sysid, outcome)
//   - nwrfc_call_errors_total (counter: function, outcome)
//   - nwrfc_pool_acquire_wait_seconds (histogram: outcome)
//   - nwrfc_pool_connections (gauge: state)
//   - nwrfc_pool_discards_total (counter: reason)
func NewPrometheusCollector(config Config, logger logging.Logger) (*PrometheusCollector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	instance := config.instance(logger)

	registry := prometheus.NewRegistry()

	// RFC-вызовы обычно укладываются в десятки миллисекунд, тяжёлые отчёты идут минутами.
	callDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Duration of RFC function module calls in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 60, 300},
		},
		[]string{"function", "sysid", "outcome"},
	)
	callErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_errors_total",
			Help:      "Total number of failed RFC calls by error code",
		},
		[]string{"function", "outcome"},
	)
	acquireWait := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "acquire_wait_seconds",
			Help:      "Time spent waiting for a pooled connection",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"outcome"},
	)
	poolSize := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "connections",
			Help:      "Pooled connections by state",
		},
		[]string{"state"},
	)
	discards := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "discards_total",
			Help:      "Connections removed from the pool by reason",
		},
		[]string{"reason"},
	)

	collectors := []prometheus.Collector{callDuration, callErrors, acquireWait, poolSize, discards}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("ошибка регистрации метрики: %w", err)
		}
	}

	return &PrometheusCollector{
		config:       config,
		logger:       logger,
		registry:     registry,
		callDuration: callDuration,
		callErrors:   callErrors,
		acquireWait:  acquireWait,
		poolSize:     poolSize,
		discards:     discards,
		instance:     instance,
	}, nil
}

// maxLabelLength защищает от cardinality explosion.
const maxLabelLength = 128

// sanitizeLabel обрезает значение label по рунам и заменяет контрольные символы,
// которые нарушают Prometheus text format.
func sanitizeLabel(value string) string {
	clean := strings.Map(func(r rune) rune {
		if r < 0x20 {
			return '_'
		}
		return r
	}, value)

	runes := []rune(clean)
	if len(runes) > maxLabelLength {
		return string(runes[:maxLabelLength])
	}
	return clean
}

// RecordCall записывает длительность и исход вызова.
func (c *PrometheusCollector) RecordCall(function, sysID string, duration time.Duration, outcome string) {
	function = sanitizeLabel(function)
	sysID = sanitizeLabel(sysID)
	c.callDuration.WithLabelValues(function, sysID, outcome).Observe(duration.Seconds())
	if outcome != OutcomeOK {
		c.callErrors.WithLabelValues(function, outcome).Inc()
	}
}

// RecordAcquire записывает время ожидания соединения.
func (c *PrometheusCollector) RecordAcquire(wait time.Duration, outcome string) {
	c.acquireWait.WithLabelValues(outcome).Observe(wait.Seconds())
}

// RecordPoolSize обновляет gauge соединений пула.
func (c *PrometheusCollector) RecordPoolSize(inUse, idle int) {
	c.poolSize.WithLabelValues("in_use").Set(float64(inUse))
	c.poolSize.WithLabelValues("idle").Set(float64(idle))
}

// RecordDiscard увеличивает счётчик удалённых соединений.
func (c *PrometheusCollector) RecordDiscard(reason string) {
	c.discards.WithLabelValues(reason).Inc()
}

// Push отправляет метрики в Pushgateway. Ошибка отправки не критична
// для вызовов RFC: она логируется, а метод возвращает nil.
func (c *PrometheusCollector) Push(ctx context.Context) error {
	if c.config.PushgatewayURL == "" {
		c.logger.Debug("metrics: pushgateway URL not configured, skipping push")
		return nil
	}

	select {
	case <-ctx.Done():
		c.logger.Debug("metrics push отменён")
		return nil
	default:
	}

	pusher := push.New(c.config.PushgatewayURL, c.config.JobName).
		Gatherer(c.registry).
		Grouping("instance", c.instance)

	pushCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := pusher.PushContext(pushCtx); err != nil {
		c.logger.Error("ошибка отправки метрик в Pushgateway",
			"error", err.Error(),
			"url", urlutil.MaskURL(c.config.PushgatewayURL),
			"job", c.config.JobName,
		)
		return nil
	}

	c.logger.Info("метрики отправлены в Pushgateway",
		"url", urlutil.MaskURL(c.config.PushgatewayURL),
		"job", c.config.JobName,
		"instance", c.instance,
	)
	return nil
}

// GetRegistry возвращает внутренний registry. Для unit-тестов.
func (c *PrometheusCollector) GetRegistry() *prometheus.Registry {
	return c.registry
}
