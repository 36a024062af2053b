package obs

import "context"

// HealthStatus is the aggregate health report returned by HealthChecker.
type HealthStatus struct {
	Status string                  `json:"status"`
	Checks map[string]*CheckResult `json:"checks"`
}

// CheckResult is a single named health check outcome.
type CheckResult struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message"`
}

// Subject is the minimal engine surface HealthChecker inspects. Satisfied
// by the top-level Engine without importing it, avoiding an import cycle.
type Subject interface {
	StorePoisoned() bool
	IVFTrainedFraction() float64
	AgentCheckpointStale() bool
}

// HealthChecker reports on engine health: a poisoned store is unhealthy;
// a stale agent checkpoint is degraded, not unhealthy. The index check
// only reports whether the index is trained; it is always marked healthy
// and never changes the overall status.
type HealthChecker struct {
	subject Subject
}

// NewHealthChecker creates a health checker bound to subject.
func NewHealthChecker(subject Subject) *HealthChecker {
	return &HealthChecker{subject: subject}
}

// Check runs every named check and rolls them up into an overall status.
func (hc *HealthChecker) Check(ctx context.Context) (*HealthStatus, error) {
	checks := map[string]*CheckResult{
		"store": {
			Healthy: !hc.subject.StorePoisoned(),
			Message: storeMessage(hc.subject.StorePoisoned()),
		},
		"index": {
			Healthy: true,
			Message: indexMessage(hc.subject.IVFTrainedFraction()),
		},
		"agent_checkpoint": {
			Healthy: !hc.subject.AgentCheckpointStale(),
			Message: agentMessage(hc.subject.AgentCheckpointStale()),
		},
	}

	status := "healthy"
	if !checks["store"].Healthy {
		status = "unhealthy"
	} else if !checks["agent_checkpoint"].Healthy {
		status = "degraded"
	}

	return &HealthStatus{Status: status, Checks: checks}, nil
}

func storeMessage(poisoned bool) string {
	if poisoned {
		return "store is poisoned; process restart required"
	}
	return "store is writable"
}

func indexMessage(fraction float64) string {
	if fraction <= 0 {
		return "index untrained; falling back to flat scan"
	}
	return "index trained"
}

func agentMessage(stale bool) string {
	if stale {
		return "agent checkpoint stale; in-memory statistics still valid"
	}
	return "agent checkpoint current"
}
