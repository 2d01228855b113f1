// Package metrics exposes opnwatch state as Prometheus collectors.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "opnwatch"

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all opnwatch metrics.
type Registry struct {
	reg *prometheus.Registry

	// Policy metrics
	PolicyDesired    *prometheus.GaugeVec
	PolicyApplied    *prometheus.GaugeVec
	ReconcileOutcome *prometheus.CounterVec

	// Gateway metrics
	GatewayUp       *prometheus.GaugeVec
	GatewayDelay    *prometheus.GaugeVec
	GatewayLoss     *prometheus.GaugeVec
	HealthProblems  *prometheus.GaugeVec
	HealthLastCheck *prometheus.GaugeVec

	// Appliance metrics
	CPUUsage       *prometheus.GaugeVec
	MemoryUsage    *prometheus.GaugeVec
	Uptime         *prometheus.GaugeVec
	CPUTemperature *prometheus.GaugeVec
	InterfaceRx    *prometheus.GaugeVec
	InterfaceTx    *prometheus.GaugeVec

	// Process metrics
	APIRequests   *prometheus.CounterVec
	APILatency    *prometheus.HistogramVec
	Notifications *prometheus.CounterVec
	TaskRuns      *prometheus.CounterVec
	TaskDuration  *prometheus.HistogramVec
	Panics        prometheus.Counter
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = NewRegistry()
	})
	return registry
}

// NewRegistry creates a registry with its own prometheus.Registry, so
// tests can build independent instances.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	r := &Registry{reg: reg}

	r.PolicyDesired = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "policy_desired_state",
		Help:      "Desired policy state per instance (1 = blocked, 2 = allowed)",
	}, []string{"instance"})

	r.PolicyApplied = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "policy_applied_state",
		Help:      "Last policy state confirmed applied per instance (0 = unknown)",
	}, []string{"instance"})

	r.ReconcileOutcome = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_total",
		Help:      "Reconciliation attempts by outcome",
	}, []string{"instance", "outcome"})

	r.GatewayUp = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "gateway_up",
		Help:      "Whether the gateway reports online (1) or not (0)",
	}, []string{"instance", "gateway"})

	r.GatewayDelay = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "gateway_delay_milliseconds",
		Help:      "Gateway round trip time as reported by dpinger",
	}, []string{"instance", "gateway"})

	r.GatewayLoss = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "gateway_loss_percent",
		Help:      "Gateway packet loss as reported by dpinger",
	}, []string{"instance", "gateway"})

	r.HealthProblems = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "health_problems",
		Help:      "Number of problems found by the last health check",
	}, []string{"instance"})

	r.HealthLastCheck = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "health_last_check_timestamp_seconds",
		Help:      "Unix time of the last health check",
	}, []string{"instance"})

	r.CPUUsage = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cpu_usage_percent",
		Help:      "CPU usage derived from the idle percentage",
	}, []string{"instance"})

	r.MemoryUsage = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "memory_usage_percent",
		Help:      "Active+Inact+Wired over total memory",
	}, []string{"instance"})

	r.Uptime = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Appliance uptime",
	}, []string{"instance"})

	r.CPUTemperature = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cpu_temperature_celsius",
		Help:      "Mean CPU sensor temperature",
	}, []string{"instance"})

	r.InterfaceRx = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "interface_received_bytes",
		Help:      "Bytes received per interface since boot",
	}, []string{"instance", "interface"})

	r.InterfaceTx = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "interface_transmitted_bytes",
		Help:      "Bytes transmitted per interface since boot",
	}, []string{"instance", "interface"})

	r.APIRequests = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_requests_total",
		Help:      "OPNsense API requests by endpoint and result",
	}, []string{"instance", "endpoint", "result"})

	r.APILatency = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "api_request_duration_seconds",
		Help:      "OPNsense API request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"instance", "endpoint"})

	r.Notifications = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notification delivery attempts by channel, level and result",
	}, []string{"channel", "level", "result"})

	r.TaskRuns = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_runs_total",
		Help:      "Scheduler task runs by result",
	}, []string{"task", "result"})

	r.TaskDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Scheduler task run time",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
	}, []string{"task"})

	r.Panics = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recovered_panics_total",
		Help:      "Panics recovered by the polling loop",
	})

	return r
}

// Gatherer exposes the underlying registry (tests, custom exporters).
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns the /metrics handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// RecordAPIRequest records an OPNsense API call.
func (r *Registry) RecordAPIRequest(instance, endpoint string, err error, elapsed time.Duration) {
	r.APIRequests.WithLabelValues(instance, endpoint, result(err)).Inc()
	r.APILatency.WithLabelValues(instance, endpoint).Observe(elapsed.Seconds())
}

// RecordNotification records a delivery attempt.
func (r *Registry) RecordNotification(channel, level string, err error) {
	r.Notifications.WithLabelValues(channel, level, result(err)).Inc()
}

// RecordTask records a scheduler task run.
func (r *Registry) RecordTask(task string, err error, elapsed time.Duration) {
	r.TaskRuns.WithLabelValues(task, result(err)).Inc()
	r.TaskDuration.WithLabelValues(task).Observe(elapsed.Seconds())
}

// RecordReconcile records a reconciliation outcome and, when known, the
// desired and applied states as their numeric values.
func (r *Registry) RecordReconcile(instance, outcome string, desired, applied int) {
	r.ReconcileOutcome.WithLabelValues(instance, outcome).Inc()
	r.PolicyDesired.WithLabelValues(instance).Set(float64(desired))
	r.PolicyApplied.WithLabelValues(instance).Set(float64(applied))
}

// RecordHealth records the outcome of a health check.
func (r *Registry) RecordHealth(instance string, problems int, at time.Time) {
	r.HealthProblems.WithLabelValues(instance).Set(float64(problems))
	r.HealthLastCheck.WithLabelValues(instance).Set(float64(at.Unix()))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
