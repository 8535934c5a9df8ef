package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Webhook outcomes.
const (
	WebhookApproved           = "approved"
	WebhookDuplicate          = "duplicate"
	WebhookIgnored            = "ignored"
	WebhookOrderNotFound      = "order_not_found"
	WebhookAlreadyApplied     = "already_applied"
	WebhookPaymentAfterCancel = "payment_after_cancel"
	WebhookFailed             = "failed"
)

// Storefront holds the request-path metrics. A nil *Storefront is a no-op.
type Storefront struct {
	webhookEvents   *prometheus.CounterVec
	stockShortfalls prometheus.Counter
	hookFailures    *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

func NewStorefront(reg prometheus.Registerer) *Storefront {
	if reg == nil {
		return nil
	}
	s := &Storefront{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stripe_webhook_events_total",
			Help: "Stripe webhook deliveries by outcome.",
		}, []string{"outcome"}),
		stockShortfalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stock_shortfalls_total",
			Help: "Paid order lines that drove product stock below zero.",
		}),
		hookFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "post_commit_hook_failures_total",
			Help: "Post-commit notification hooks that failed.",
		}, []string{"hook"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_status_transitions_total",
			Help: "Committed order status transitions.",
		}, []string{"to"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	reg.MustRegister(s.webhookEvents, s.stockShortfalls, s.hookFailures, s.transitions, s.httpRequests, s.httpDuration)
	return s
}

func (s *Storefront) WebhookOutcome(outcome string) {
	if s == nil {
		return
	}
	s.webhookEvents.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (s *Storefront) StockShortfall() {
	if s == nil {
		return
	}
	s.stockShortfalls.Inc()
}

func (s *Storefront) HookFailure(hook string) {
	if s == nil {
		return
	}
	s.hookFailures.WithLabelValues(normalizeLabel(hook)).Inc()
}

func (s *Storefront) Transition(to string) {
	if s == nil {
		return
	}
	s.transitions.WithLabelValues(normalizeLabel(to)).Inc()
}

func (s *Storefront) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if s == nil {
		return
	}
	route = normalizeLabel(route)
	s.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	s.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
