package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// LicenseMetrics 记录许可证校验与席位操作
type LicenseMetrics struct {
	verifications *prometheus.CounterVec
	seatOps       *prometheus.CounterVec
	logFailures   prometheus.Counter
}

// NewLicenseMetrics registers the license metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewLicenseMetrics(reg prometheus.Registerer) *LicenseMetrics {
	if reg == nil {
		return &LicenseMetrics{}
	}
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "license_verifications_total",
		Help: "License verification attempts by resulting status.",
	}, []string{"status"})
	seatOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "license_seat_operations_total",
		Help: "Seat counter operations by operation and outcome.",
	}, []string{"op", "result"})
	logFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "license_verification_log_failures_total",
		Help: "Verification log entries that could not be stored.",
	})
	reg.MustRegister(verifications, seatOps, logFailures)
	return &LicenseMetrics{
		verifications: verifications,
		seatOps:       seatOps,
		logFailures:   logFailures,
	}
}

func (m *LicenseMetrics) IncVerification(status string) {
	if m == nil || m.verifications == nil {
		return
	}
	m.verifications.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *LicenseMetrics) IncSeatOp(op, result string) {
	if m == nil || m.seatOps == nil {
		return
	}
	m.seatOps.WithLabelValues(normalizeLabel(op), normalizeLabel(result)).Inc()
}

func (m *LicenseMetrics) IncLogFailure() {
	if m == nil || m.logFailures == nil {
		return
	}
	m.logFailures.Inc()
}

func normalizeLabel(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "unknown"
	}
	return value
}
