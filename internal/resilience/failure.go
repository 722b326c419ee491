package resilience

import (
	"github.com/policyscout/discovery-cli/internal/model"
)

// ClassifyError categorizes a discovery failure for requeue decisions.
// Transient failures (network flaps, timeouts, 429/5xx responses) are worth
// retrying; everything else is permanent.
func ClassifyError(err error) string {
	if IsTransient(err) {
		return model.ErrorTypeTransient
	}
	return model.ErrorTypePermanent
}

// CanRetry reports whether a failed job is eligible for another attempt.
// Permanent failures are never retried regardless of attempt count.
func CanRetry(job model.DiscoveryJob, maxAttempts int) bool {
	return job.ErrorType == model.ErrorTypeTransient && job.Attempts < maxAttempts
}
