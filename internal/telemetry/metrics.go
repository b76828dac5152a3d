package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics собирает метрики публикаций и run.
//
// Методы допускают nil-получатель: компоненты, которым метрики не переданы,
// просто ничего не считают.
type Metrics struct {
	registry *prometheus.Registry

	endpointPublish *prometheus.CounterVec
	runsSubmitted   *prometheus.CounterVec
	runsFinished    *prometheus.CounterVec
	runsCancelled   *prometheus.CounterVec
	runWait         prometheus.Histogram
}

// NewMetrics создаёт метрики в собственном registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		endpointPublish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_endpoint_publish_total",
			Help: "Pipeline endpoint publications by operation (create, add_version)",
		}, []string{"op"}),
		runsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_runs_submitted_total",
			Help: "Pipeline runs submitted to the service",
		}, []string{"experiment"}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_runs_finished_total",
			Help: "Pipeline runs observed in a final or timed out status",
		}, []string{"status"}),
		runsCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_runs_cancelled_total",
			Help: "Pipeline runs cancelled by this process",
		}, []string{"reason"}),
		runWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "forecast_run_wait_seconds",
			Help:    "Time spent waiting for a run to finish",
			Buckets: prometheus.ExponentialBuckets(30, 2, 12),
		}),
	}

	m.registry.MustRegister(
		m.endpointPublish,
		m.runsSubmitted,
		m.runsFinished,
		m.runsCancelled,
		m.runWait,
	)
	return m
}

// Registry возвращает registry с метриками.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// EndpointPublished учитывает публикацию endpoint.
func (m *Metrics) EndpointPublished(op string) {
	if m == nil {
		return
	}
	m.endpointPublish.WithLabelValues(op).Inc()
}

// RunSubmitted учитывает отправленный run.
func (m *Metrics) RunSubmitted(experiment string) {
	if m == nil {
		return
	}
	m.runsSubmitted.WithLabelValues(experiment).Inc()
}

// RunFinished учитывает статус, с которым закончилось ожидание run.
func (m *Metrics) RunFinished(status string, waited time.Duration) {
	if m == nil {
		return
	}
	m.runsFinished.WithLabelValues(status).Inc()
	m.runWait.Observe(waited.Seconds())
}

// RunCancelled учитывает отмену run с причиной (timeout, interrupt).
func (m *Metrics) RunCancelled(reason string) {
	if m == nil {
		return
	}
	m.runsCancelled.WithLabelValues(reason).Inc()
}

// Push отправляет метрики в Pushgateway под заданным job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
