package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "leadchat"

// ChatMetrics exposes counters/histograms for the chat flow.
type ChatMetrics struct {
	turnsTotal     *prometheus.CounterVec
	completedTotal *prometheus.CounterVec
	llmLatency     *prometheus.HistogramVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Chat turns processed by step and outcome",
		}, []string{"step", "outcome"}),
		completedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "intakes_completed_total",
			Help:      "Intakes that collected every answer",
		}, []string{"facility_type"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "llm_latency_seconds",
			Help:      "Latency of language model completions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.completedTotal, m.llmLatency)
	return m
}

func (m *ChatMetrics) ObserveTurn(step, outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(step, outcome).Inc()
}

func (m *ChatMetrics) ObserveCompleted(facilityType string) {
	if m == nil {
		return
	}
	if facilityType == "" {
		facilityType = "unknown"
	}
	m.completedTotal.WithLabelValues(facilityType).Inc()
}

func (m *ChatMetrics) ObserveLLMLatency(status string, seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(status).Observe(seconds)
}

// DeliveryMetrics counts outcomes of the lead delivery pipeline.
type DeliveryMetrics struct {
	stepsTotal *prometheus.CounterVec
	jobsTotal  *prometheus.CounterVec
}

func NewDeliveryMetrics(reg prometheus.Registerer) *DeliveryMetrics {
	m := &DeliveryMetrics{
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "steps_total",
			Help:      "Delivery steps by name and status",
		}, []string{"step", "status"}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "jobs_total",
			Help:      "Queue jobs handled by the dispatch worker",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.stepsTotal, m.jobsTotal)
	return m
}

func (m *DeliveryMetrics) ObserveStep(step, status string) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(step, status).Inc()
}

func (m *DeliveryMetrics) ObserveJob(status string) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(status).Inc()
}
