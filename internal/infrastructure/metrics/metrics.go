// Package metrics метрики Prometheus для сценария проверки.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"anemia-screen/internal/domain/port"
)

// ScreeningMetrics счётчики приёма файлов, анализов и событий камеры.
type ScreeningMetrics struct {
	intakeTotal      *prometheus.CounterVec
	analysisTotal    *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	captureTotal     *prometheus.CounterVec
}

// NewScreeningMetrics регистрирует метрики в registry.
func NewScreeningMetrics(registry prometheus.Registerer) (*ScreeningMetrics, error) {
	m := &ScreeningMetrics{
		intakeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screen_intake_total",
			Help: "Images offered for analysis by source and validation result",
		}, []string{"source", "accepted"}),
		analysisTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screen_analysis_total",
			Help: "Analysis requests by outcome",
		}, []string{"outcome"}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "screen_analysis_duration_seconds",
			Help:    "Time spent waiting for the inference backend",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9),
		}),
		captureTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screen_capture_events_total",
			Help: "Live camera events",
		}, []string{"event"}),
	}

	for _, c := range []prometheus.Collector{m.intakeTotal, m.analysisTotal, m.analysisDuration, m.captureTotal} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register screening metrics: %w", err)
		}
	}
	return m, nil
}

// RecordIntake учитывает один предложенный файл.
func (m *ScreeningMetrics) RecordIntake(source string, accepted bool) {
	m.intakeTotal.WithLabelValues(source, strconv.FormatBool(accepted)).Inc()
}

// RecordAnalysis учитывает завершённый запрос анализа.
func (m *ScreeningMetrics) RecordAnalysis(outcome string, elapsed time.Duration) {
	m.analysisTotal.WithLabelValues(outcome).Inc()
	m.analysisDuration.Observe(elapsed.Seconds())
}

// RecordCapture учитывает событие камеры.
func (m *ScreeningMetrics) RecordCapture(event string) {
	m.captureTotal.WithLabelValues(event).Inc()
}

var _ port.ScreeningRecorder = (*ScreeningMetrics)(nil)
