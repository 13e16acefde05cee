package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the bridge's Prometheus instruments. Registration goes
// through an explicit registry so tests can construct bridges freely.
type Metrics struct {
	KeysSent      prometheus.Counter
	KeySendErrors prometheus.Counter
	AuthAttempts  *prometheus.CounterVec
	RateLimited   prometheus.Counter
	HTTPRequests  *prometheus.CounterVec
}

// NewMetrics creates and registers all bridge metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		KeysSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "samremote_keys_sent_total",
			Help: "Total number of key presses delivered to the television",
		}),
		KeySendErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "samremote_key_send_errors_total",
			Help: "Total number of key presses that failed to send",
		}),
		AuthAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "samremote_auth_attempts_total",
			Help: "Authentication handshakes by result",
		}, []string{"result"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "samremote_rate_limited_total",
			Help: "Requests rejected by the per-IP rate limiter",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "samremote_http_requests_total",
			Help: "HTTP requests by method and status code",
		}, []string{"method", "code"}),
	}
}
