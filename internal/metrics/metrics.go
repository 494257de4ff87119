package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the portal counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	signins       *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	otpIssued     prometheus.Counter
	notifications *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		signins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_signin_total",
			Help: "Sign-in attempts by result.",
		}, []string{"result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_account_transitions_total",
			Help: "Account lifecycle transitions by action.",
		}, []string{"action"}),
		otpIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_otp_issued_total",
			Help: "Password reset codes issued.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_notifications_total",
			Help: "Outbound notifications by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.signins,
		m.transitions,
		m.otpIssued,
		m.notifications,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SignIn(result string) {
	if m == nil {
		return
	}
	m.signins.WithLabelValues(result).Inc()
}

func (m *Metrics) Transition(action string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action).Inc()
}

func (m *Metrics) OTPIssued() {
	if m == nil {
		return
	}
	m.otpIssued.Inc()
}

func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}
