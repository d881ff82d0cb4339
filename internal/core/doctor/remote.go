package doctor

import (
	"context"
	"fmt"
	"time"
)

// RemoteCheck probes the remote health endpoint.
type RemoteCheck struct {
	baseURL string
	probe   func(ctx context.Context) error
}

// NewRemoteCheck creates a new remote check. The probe function hits
// the remote health endpoint and returns nil when reachable.
func NewRemoteCheck(baseURL string, probe func(ctx context.Context) error) *RemoteCheck {
	return &RemoteCheck{baseURL: baseURL, probe: probe}
}

func (c *RemoteCheck) Name() string {
	return "Remote"
}

func (c *RemoteCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if c.baseURL == "" {
		result.Items = append(result.Items, CheckItem{
			Label:  "reachability",
			Status: StatusWarn,
			Detail: "no remote configured",
		})
		return result
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := c.probe(probeCtx); err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "reachability",
			Status: StatusWarn,
			Detail: fmt.Sprintf("unreachable, mutations will queue locally: %s", err),
		})
		return result
	}

	result.Items = append(result.Items, CheckItem{
		Label:  "reachability",
		Status: StatusPass,
		Detail: fmt.Sprintf("%s (%s)", c.baseURL, time.Since(start).Round(time.Millisecond)),
	})
	return result
}
