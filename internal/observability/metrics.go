package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// webhook の処理結果ラベル
const (
	WebhookProcessed        = "processed"
	WebhookDuplicate        = "duplicate"
	WebhookInvalidSignature = "invalid_signature"
	WebhookMalformed        = "malformed"
	WebhookNotFound         = "not_found"
	WebhookError            = "error"
)

// 期限切れの検出経路
const (
	ExpiryTriggerRead  = "read"
	ExpiryTriggerSweep = "sweep"
)

// Metrics は注文・決済まわりの指標。
type Metrics struct {
	OrdersCreated          prometheus.Counter
	OrderTransitions       *prometheus.CounterVec
	PaymentSessionsCreated *prometheus.CounterVec
	WebhookEvents          *prometheus.CounterVec
	SessionsExpired        *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
}

// NewMetrics は reg に登録する。テストでは prometheus.NewRegistry() を渡す。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OrdersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders created",
		}),
		OrderTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Order status transitions",
		}, []string{"from", "to"}),
		PaymentSessionsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_sessions_created_total",
			Help: "Payment sessions created by kind",
		}, []string{"kind"}),
		WebhookEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Webhook deliveries by provider and result",
		}, []string{"provider", "result"}),
		SessionsExpired: f.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_sessions_expired_total",
			Help: "Payment sessions expired by trigger",
		}, []string{"trigger"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// NopMetrics は捨てるだけの登録先を使う。
func NopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
