// Package metrics exposes voucher engine counters to Prometheus.
package metrics

import (
	"errors"

	"vouchers/internal/model"

	"github.com/prometheus/client_golang/prometheus"
)

// Redemption outcome labels.
const (
	OutcomeRedeemed = "redeemed"
	OutcomeError    = "error"
)

// Metrics holds the engine's collectors. A nil *Metrics records nothing.
type Metrics struct {
	vouchersCreated prometheus.Counter
	codeCollisions  prometheus.Counter
	redemptions     *prometheus.CounterVec
	checks          *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		vouchersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vouchers",
			Name:      "created_total",
			Help:      "Vouchers created.",
		}),
		codeCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vouchers",
			Name:      "code_collisions_total",
			Help:      "Generated code candidates rejected because they were reserved or in use.",
		}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vouchers",
			Name:      "redemptions_total",
			Help:      "Redemption attempts by outcome.",
		}, []string{"outcome"}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vouchers",
			Name:      "checks_total",
			Help:      "Validation checks by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.vouchersCreated, m.codeCollisions, m.redemptions, m.checks)

	return m
}

// VoucherCreated counts a stored voucher.
func (m *Metrics) VoucherCreated() {
	if m == nil {
		return
	}
	m.vouchersCreated.Inc()
}

// CodeCollision counts a rejected code candidate.
func (m *Metrics) CodeCollision() {
	if m == nil {
		return
	}
	m.codeCollisions.Inc()
}

// Redemption counts a redemption attempt by its result.
func (m *Metrics) Redemption(err error) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(Outcome(err, OutcomeRedeemed)).Inc()
}

// Check counts a validation check by its result.
func (m *Metrics) Check(err error) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(Outcome(err, "valid")).Inc()
}

// Outcome maps an engine result to a label value: success when err is nil,
// the business error code for voucher outcomes, OutcomeError otherwise.
func Outcome(err error, success string) string {
	if err == nil {
		return success
	}
	var de *model.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return OutcomeError
}
