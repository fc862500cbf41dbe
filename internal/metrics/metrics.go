package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BookingMetrics are the counters of the booking core. A nil
// *BookingMetrics is valid and records nothing.
type BookingMetrics struct {
	SettleTotal        *prometheus.CounterVec // outcome: paid/partial/failed/rejected
	SettleDuration     prometheus.Histogram
	ReservationTotal   *prometheus.CounterVec // kind, result: held/conflict
	PaymentAuthFailure *prometheus.CounterVec // reason: mismatch/locked
	RefundTotal        prometheus.Counter
	RechargeTotal      prometheus.Counter
	StatusTransitions  *prometheus.CounterVec // status
	SettleLockBusy     prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	f := promauto.With(reg)
	return &BookingMetrics{
		SettleTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_settle_total",
				Help: "Settlement attempts by outcome",
			},
			[]string{"outcome"},
		),
		SettleDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "booking_settle_duration_seconds",
				Help:    "Duration of settlement store transactions",
				Buckets: prometheus.DefBuckets,
			},
		),
		ReservationTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_reservation_total",
				Help: "Inventory reservations by order kind and result",
			},
			[]string{"kind", "result"},
		),
		PaymentAuthFailure: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_payment_auth_failures_total",
				Help: "Rejected payment authorizations",
			},
			[]string{"reason"},
		),
		RefundTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "booking_refund_total",
				Help: "Refund transactions issued",
			},
		),
		RechargeTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "booking_recharge_total",
				Help: "Balance recharges",
			},
		),
		StatusTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_order_status_transitions_total",
				Help: "Order status changes by target status",
			},
			[]string{"status"},
		),
		SettleLockBusy: f.NewCounter(
			prometheus.CounterOpts{
				Name: "booking_settle_lock_busy_total",
				Help: "Pay requests rejected because the transaction was already settling",
			},
		),
	}
}

func (m *BookingMetrics) ObserveSettle(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.SettleTotal.WithLabelValues(outcome).Inc()
	m.SettleDuration.Observe(d.Seconds())
}

func (m *BookingMetrics) Reservation(kind, result string) {
	if m == nil {
		return
	}
	m.ReservationTotal.WithLabelValues(kind, result).Inc()
}

func (m *BookingMetrics) AuthFailure(reason string) {
	if m == nil {
		return
	}
	m.PaymentAuthFailure.WithLabelValues(reason).Inc()
}

func (m *BookingMetrics) Refund() {
	if m == nil {
		return
	}
	m.RefundTotal.Inc()
}

func (m *BookingMetrics) Recharge() {
	if m == nil {
		return
	}
	m.RechargeTotal.Inc()
}

func (m *BookingMetrics) Transition(status string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) LockBusy() {
	if m == nil {
		return
	}
	m.SettleLockBusy.Inc()
}

// Handler exposes the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
