package billing

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rgehrsitz/rentgo/internal/domain"
	apperrors "github.com/rgehrsitz/rentgo/internal/domain/errors"
)

// Metrics holds the billing engine's Prometheus metrics. A nil *Metrics
// records nothing.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	RunDuration        prometheus.Histogram
	ChargesTotal       *prometheus.CounterVec
	ChargedAmountTotal *prometheus.CounterVec
	PaymentsTotal      *prometheus.CounterVec
	TransitionsTotal   *prometheus.CounterVec
	LastSuccessfulRun  prometheus.Gauge
	EntryRequestsTotal *prometheus.CounterVec
}

// NewMetrics creates the billing metrics and registers them with registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rentgo_billing_runs_total",
				Help: "Total number of monthly billing runs by result",
			},
			[]string{"result"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rentgo_billing_run_duration_seconds",
				Help:    "Monthly billing run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		ChargesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rentgo_charges_created_total",
				Help: "Total number of charges created by portion and description",
			},
			[]string{"portion", "description"},
		),
		ChargedAmountTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rentgo_charged_amount_total",
				Help: "Total amount charged by portion",
			},
			[]string{"portion"},
		),
		PaymentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rentgo_payments_created_total",
				Help: "Total number of payments created by payer category",
			},
			[]string{"payer_category"},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rentgo_term_transitions_total",
				Help: "Total number of rent and subsidy term changes applied",
			},
			[]string{"kind"},
		),
		LastSuccessfulRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rentgo_last_successful_run_timestamp_seconds",
				Help: "Unix time of the last committed billing run",
			},
		),
		EntryRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rentgo_entry_requests_total",
				Help: "Total number of one-time entries by kind and result",
			},
			[]string{"kind", "result"},
		),
	}

	registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.ChargesTotal,
		m.ChargedAmountTotal,
		m.PaymentsTotal,
		m.TransitionsTotal,
		m.LastSuccessfulRun,
		m.EntryRequestsTotal,
	)
	return m
}

func (m *Metrics) observeRun(result *RunResult, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(elapsed.Seconds())

	label := resultLabel(err)
	if err == nil && result != nil {
		switch {
		case result.AlreadyBilled:
			label = "already_billed"
		case result.DryRun:
			label = "dry_run"
		}
	}
	m.RunsTotal.WithLabelValues(label).Inc()
	if label != "success" {
		return
	}

	m.LastSuccessfulRun.SetToCurrentTime()
	for _, c := range result.Charges {
		m.ChargesTotal.WithLabelValues(string(c.Portion), string(c.Description)).Inc()
		amount, _ := c.Amount.Float64()
		if amount > 0 {
			m.ChargedAmountTotal.WithLabelValues(string(c.Portion)).Add(amount)
		}
	}
	for _, p := range result.Payments {
		m.PaymentsTotal.WithLabelValues(string(p.PayerCategory)).Inc()
	}
	if result.Transitions != nil {
		m.TransitionsTotal.WithLabelValues("household").Add(float64(len(result.Transitions.Households)))
		m.TransitionsTotal.WithLabelValues("subsidy_contract").Add(float64(len(result.Transitions.Contracts)))
	}
}

func (m *Metrics) observeEntry(kind string, err error) {
	if m == nil {
		return
	}
	m.EntryRequestsTotal.WithLabelValues(kind, resultLabel(err)).Inc()
}

func (m *Metrics) observePayment(p *domain.Payment) {
	if m == nil || p == nil {
		return
	}
	m.PaymentsTotal.WithLabelValues(string(p.PayerCategory)).Inc()
}

func resultLabel(err error) string {
	var appErr apperrors.AppError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &appErr) && appErr.Code == apperrors.CodeConflict:
		return "conflict"
	case errors.As(err, &appErr) && appErr.Code == apperrors.CodeValidation:
		return "invalid"
	case errors.As(err, &appErr) && appErr.Code == apperrors.CodeNotFound:
		return "not_found"
	default:
		return "error"
	}
}
