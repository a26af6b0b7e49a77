package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zbridge/zbridge/pkg/zabbix"
)

var (
	LoginsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zbridge_zabbix_logins_total",
			Help: "Total number of user.login calls issued to the Zabbix API",
		},
	)

	InvokesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zbridge_zabbix_invokes_total",
			Help: "Total number of Zabbix API invocations",
		},
		[]string{"method", "result"}, // result: success, failure
	)

	InvokeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zbridge_zabbix_invoke_errors_total",
			Help: "Zabbix invocation failures by kind",
		},
		[]string{"kind"}, // transport, remote, timeout, not_configured, other
	)

	InvokeDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zbridge_zabbix_invoke_duration_seconds",
			Help:    "Duration of Zabbix API invocations in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"method"},
	)
)

// ClientObserver feeds zabbix.Client activity into the collectors above.
type ClientObserver struct{}

func (ClientObserver) OnLogin() {
	LoginsTotal.Inc()
}

func (ClientObserver) OnInvoke(method string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
		InvokeErrorsTotal.WithLabelValues(errorKind(err)).Inc()
	}
	InvokesTotal.WithLabelValues(method, result).Inc()
	InvokeDurationSeconds.WithLabelValues(method).Observe(duration.Seconds())
}

func errorKind(err error) string {
	var transportErr *zabbix.TransportError
	var apiErr *zabbix.APIError
	switch {
	case errors.Is(err, zabbix.ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, zabbix.ErrTimeout):
		return "timeout"
	case errors.As(err, &apiErr):
		return "remote"
	case errors.As(err, &transportErr):
		return "transport"
	default:
		return "other"
	}
}
