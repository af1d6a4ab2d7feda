package conversation

import "github.com/copp1723/seorylie-sub005/platform/breaker"

// Health statuses reported by the orchestrator.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// DetermineHealth maps breaker state and queue depth onto an overall status.
// An open breaker means the AI provider is down, which is unhealthy; a
// backlog past the threshold means the system is falling behind, which is
// degraded.
func DetermineHealth(breakerState breaker.State, waiting, backlogThreshold int) string {
	if breakerState == breaker.StateOpen {
		return StatusUnhealthy
	}
	if waiting > backlogThreshold {
		return StatusDegraded
	}
	return StatusHealthy
}
