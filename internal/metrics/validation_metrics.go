package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ValidationMetrics содержит метрики протокола валидации заказов.
type ValidationMetrics struct {
	// Счётчики публикаций и ответов
	dispatched        prometheus.Counter
	responsesRecorded *prometheus.CounterVec
	resolved          *prometheus.CounterVec

	// Счётчики отброшенных сообщений
	unknownDropped     prometheus.Counter
	lateDropped        prometheus.Counter
	duplicateResponses prometheus.Counter
	malformedDropped   *prometheus.CounterVec

	// Гистограммы времени
	awaitDuration    prometheus.Histogram
	evaluateDuration *prometheus.HistogramVec

	// Состояние реестра
	inflight prometheus.Gauge
	evicted  prometheus.Counter
}

// NewValidationMetrics создаёт метрики с DefaultRegisterer.
func NewValidationMetrics() *ValidationMetrics {
	return newValidationMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newValidationMetricsWithRegisterer(registerer prometheus.Registerer) *ValidationMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &ValidationMetrics{
		dispatched: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ovs_validation_dispatched_total",
			Help: "Total number of order validations dispatched",
		}),
		responsesRecorded: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ovs_validation_responses_total",
			Help: "Total number of validation responses recorded by participant and outcome",
		}, []string{"participant", "outcome"}),
		resolved: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ovs_validation_resolved_total",
			Help: "Total number of correlations resolved by verdict",
		}, []string{"verdict"}),
		unknownDropped: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ovs_validation_unknown_correlation_dropped_total",
			Help: "Total number of responses dropped because the correlation id is unknown",
		}),
		lateDropped: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ovs_validation_late_response_dropped_total",
			Help: "Total number of responses dropped because the correlation was already resolved or expired",
		}),
		duplicateResponses: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ovs_validation_duplicate_responses_total",
			Help: "Total number of duplicate responses for an already recorded participant",
		}),
		malformedDropped: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ovs_validation_malformed_messages_total",
			Help: "Total number of malformed broker messages dropped by consumer",
		}, []string{"consumer"}),
		awaitDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "ovs_validation_await_duration_seconds",
			Help:    "Duration of await operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		evaluateDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "ovs_participant_evaluate_duration_seconds",
			Help:    "Duration of participant lookups in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"participant"}),
		inflight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "ovs_validation_inflight_correlations",
			Help: "Number of correlations currently pending in the registry",
		}),
		evicted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ovs_validation_entries_evicted_total",
			Help: "Total number of correlation entries removed by the background sweep",
		}),
	}
}

// RecordDispatched фиксирует отправку набора запросов валидации.
func (m *ValidationMetrics) RecordDispatched() {
	m.dispatched.Inc()
}

// RecordResponse фиксирует принятый в реестр ответ участника.
func (m *ValidationMetrics) RecordResponse(participant, outcome string) {
	m.responsesRecorded.WithLabelValues(participant, outcome).Inc()
}

// RecordResolved фиксирует итоговый вердикт по correlation id.
func (m *ValidationMetrics) RecordResolved(verdict string) {
	m.resolved.WithLabelValues(verdict).Inc()
}

// RecordUnknownDropped фиксирует ответ для неизвестного correlation id.
func (m *ValidationMetrics) RecordUnknownDropped() {
	m.unknownDropped.Inc()
}

// RecordLateDropped фиксирует ответ, пришедший после резолюции или экспирации.
func (m *ValidationMetrics) RecordLateDropped() {
	m.lateDropped.Inc()
}

// RecordDuplicate фиксирует повторный ответ того же участника.
func (m *ValidationMetrics) RecordDuplicate() {
	m.duplicateResponses.Inc()
}

// RecordMalformed фиксирует отброшенное нечитаемое сообщение.
func (m *ValidationMetrics) RecordMalformed(consumer string) {
	m.malformedDropped.WithLabelValues(consumer).Inc()
}

// RecordAwaitDuration фиксирует длительность ожидания кворума.
func (m *ValidationMetrics) RecordAwaitDuration(d time.Duration) {
	m.awaitDuration.Observe(d.Seconds())
}

// RecordEvaluateDuration фиксирует длительность проверки участником.
func (m *ValidationMetrics) RecordEvaluateDuration(participant string, d time.Duration) {
	m.evaluateDuration.WithLabelValues(participant).Observe(d.Seconds())
}

// AddInflight изменяет число активных correlation записей.
func (m *ValidationMetrics) AddInflight(delta float64) {
	m.inflight.Add(delta)
}

// RecordEvicted фиксирует удаление записей фоновой очисткой.
func (m *ValidationMetrics) RecordEvicted(count int) {
	if count > 0 {
		m.evicted.Add(float64(count))
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}
