package netrunauth

import "sync/atomic"

// MetricID enumerates the Engine's counters.
type MetricID int

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginRateLimited
	MetricPairsIssued
	MetricInvitesIssued
	MetricValidateSuccess
	MetricValidateExpired
	MetricValidateInvalid
	MetricValidateRevoked
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshReuse
	MetricRefreshRateLimited
	MetricTokensRevoked
	MetricSessionsRevoked
	MetricAuthorizeAllowed
	MetricAuthorizeDenied
	MetricRateLimitExceeded
	MetricStoreUnavailable
	MetricAuditDropped

	metricCount
)

var metricNames = [metricCount]string{
	MetricLoginSuccess:       "login_success",
	MetricLoginFailure:       "login_failure",
	MetricLoginRateLimited:   "login_rate_limited",
	MetricPairsIssued:        "pairs_issued",
	MetricInvitesIssued:      "invites_issued",
	MetricValidateSuccess:    "validate_success",
	MetricValidateExpired:    "validate_expired",
	MetricValidateInvalid:    "validate_invalid",
	MetricValidateRevoked:    "validate_revoked",
	MetricRefreshSuccess:     "refresh_success",
	MetricRefreshFailure:     "refresh_failure",
	MetricRefreshReuse:       "refresh_reuse",
	MetricRefreshRateLimited: "refresh_rate_limited",
	MetricTokensRevoked:      "tokens_revoked",
	MetricSessionsRevoked:    "sessions_revoked",
	MetricAuthorizeAllowed:   "authorize_allowed",
	MetricAuthorizeDenied:    "authorize_denied",
	MetricRateLimitExceeded:  "rate_limit_exceeded",
	MetricStoreUnavailable:   "store_unavailable",
	MetricAuditDropped:       "audit_dropped",
}

var metricHelp = [metricCount]string{
	MetricLoginSuccess:       "Successful credential logins.",
	MetricLoginFailure:       "Failed credential logins.",
	MetricLoginRateLimited:   "Logins rejected by the per-identifier limiter.",
	MetricPairsIssued:        "Access/refresh token pairs issued.",
	MetricInvitesIssued:      "Invite tokens issued.",
	MetricValidateSuccess:    "Tokens validated successfully.",
	MetricValidateExpired:    "Validations rejected for expiry.",
	MetricValidateInvalid:    "Validations rejected for bad signature or structure.",
	MetricValidateRevoked:    "Validations rejected by a revocation record.",
	MetricRefreshSuccess:     "Successful refresh rotations.",
	MetricRefreshFailure:     "Failed refresh attempts.",
	MetricRefreshReuse:       "Refresh reuse detections.",
	MetricRefreshRateLimited: "Refresh attempts rejected by the per-session limiter.",
	MetricTokensRevoked:      "Individual tokens revoked.",
	MetricSessionsRevoked:    "Sessions revoked.",
	MetricAuthorizeAllowed:   "Authorization checks that passed.",
	MetricAuthorizeDenied:    "Authorization checks that failed.",
	MetricRateLimitExceeded:  "Application limiter keys that hit their window.",
	MetricStoreUnavailable:   "Operations that saw a store outage.",
	MetricAuditDropped:       "Audit events dropped under backpressure.",
}

// String returns the snake_case metric name used by the exporters.
func (m MetricID) String() string {
	if m < 0 || m >= metricCount {
		return "unknown"
	}
	return metricNames[m]
}

// Help returns a one-line description suitable for exporter metadata.
func (m MetricID) Help() string {
	if m < 0 || m >= metricCount {
		return ""
	}
	return metricHelp[m]
}

// MetricIDs returns every counter ID in declaration order.
func MetricIDs() []MetricID {
	ids := make([]MetricID, metricCount)
	for i := range ids {
		ids[i] = MetricID(i)
	}
	return ids
}

// metrics is the lock-free counter set shared by the Engine and the
// exporters.
type metrics struct {
	counters [metricCount]atomic.Uint64
}

func (m *metrics) inc(id MetricID) {
	if m == nil {
		return
	}
	m.counters[id].Add(1)
}

func (m *metrics) get(id MetricID) uint64 {
	return m.counters[id].Load()
}

// MetricsSnapshot is a point-in-time copy of all counters, keyed by
// metric name.
type MetricsSnapshot map[string]uint64

func (m *metrics) snapshot() MetricsSnapshot {
	out := make(MetricsSnapshot, metricCount)
	for i := MetricID(0); i < metricCount; i++ {
		out[i.String()] = m.counters[i].Load()
	}
	return out
}
