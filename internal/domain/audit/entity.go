// Package audit provides domain logic for monitored route (audit) health metrics.
package audit

import (
	"math"
	"time"
)

// Status is the health classification of an audit.
type Status string

// Status constants.
const (
	StatusOK    Status = "ok"
	StatusFail  Status = "fail"
	StatusError Status = "error"
)

// Classification thresholds on the success rate.
const (
	okThreshold   = 0.95
	failThreshold = 0.80
)

// successRateDecimals is the precision of the success rate exposed to clients.
const successRateDecimals = 3

// CalculateStatus classifies a success rate.
func CalculateStatus(successRate float64) Status {
	if successRate >= okThreshold {
		return StatusOK
	}
	if successRate >= failThreshold {
		return StatusFail
	}
	return StatusError
}

// SuccessRate returns the fraction of executions that did not fail.
// No executions means no evidence of failure, so the rate is 1.
func SuccessRate(executions, failures int) float64 {
	if executions <= 0 {
		return 1
	}
	if failures < 0 {
		failures = 0
	}
	if failures > executions {
		failures = executions
	}
	return float64(executions-failures) / float64(executions)
}

// RoundToDecimals rounds value half away from zero to the given number of decimals.
func RoundToDecimals(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(value*factor) / factor
}

// Metrics holds execution counters for one audit over a time window.
type Metrics struct {
	Executions int
	Failures   int
}

// Ref identifies an audit towards a metrics source.
// Real backends key records by Name; the synthetic generator derives its shape from ID.
type Ref struct {
	ID   string
	Name string
}

// Audit is the per-request view of a monitored route and its health.
type Audit struct {
	ID          string
	Name        string
	Status      Status
	SuccessRate float64
	Executions  int
	Failures    int
	LastUpdate  time.Time
}

// NewAudit creates an audit with placeholder metrics (no data yet).
func NewAudit(id, name string, lastUpdate time.Time) Audit {
	return Audit{
		ID:          id,
		Name:        name,
		Status:      StatusOK,
		SuccessRate: 1,
		LastUpdate:  lastUpdate,
	}
}

// Ref returns the metrics lookup reference of the audit.
func (a Audit) Ref() Ref {
	return Ref{ID: a.ID, Name: a.Name}
}

// WithMetrics returns a copy of the audit populated from the given counters.
// The status is derived from the unrounded rate; the exposed rate is rounded.
func (a Audit) WithMetrics(m Metrics) Audit {
	failures := m.Failures
	if failures < 0 {
		failures = 0
	}
	executions := m.Executions
	if executions < 0 {
		executions = 0
	}
	if failures > executions {
		failures = executions
	}

	rate := SuccessRate(executions, failures)
	a.Executions = executions
	a.Failures = failures
	a.SuccessRate = RoundToDecimals(rate, successRateDecimals)
	a.Status = CalculateStatus(rate)
	return a
}

// WithDefaultMetrics returns a copy of the audit with the no-data defaults.
func (a Audit) WithDefaultMetrics() Audit {
	return a.WithMetrics(Metrics{})
}
