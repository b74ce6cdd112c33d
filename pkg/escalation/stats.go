package escalation

import (
	"context"
	"time"

	"github.com/Mindburn-Labs/plangate/pkg/contracts"
)

// Stats summarizes escalations created within a trailing window.
type Stats struct {
	Window     time.Duration                        `json:"window"`
	Total      int                                  `json:"total"`
	Resolved   int                                  `json:"resolved"`
	ByStatus   map[contracts.EscalationStatus]int   `json:"by_status"`
	ByPriority map[contracts.EscalationPriority]int `json:"by_priority"`

	// AverageResolutionHours is the mean of resolvedAt - createdAt over
	// resolved escalations only; zero when none are resolved.
	AverageResolutionHours float64 `json:"average_resolution_hours"`
}

// Stats computes statistics over escalations of a tenant created in the last
// window. A non-positive window covers all escalations.
func (m *Manager) Stats(ctx context.Context, tenantID string, window time.Duration) (*Stats, error) {
	f := Filter{TenantID: tenantID}
	if window > 0 {
		f.CreatedAfter = m.clock().UTC().Add(-window)
	}
	list, err := m.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return computeStats(list, window), nil
}

func computeStats(list []*contracts.Escalation, window time.Duration) *Stats {
	s := &Stats{
		Window:     window,
		Total:      len(list),
		ByStatus:   make(map[contracts.EscalationStatus]int),
		ByPriority: make(map[contracts.EscalationPriority]int),
	}
	var total time.Duration
	for _, e := range list {
		s.ByStatus[e.Status]++
		s.ByPriority[e.Priority]++
		if d, ok := e.ResolutionTime(); ok {
			total += d
			s.Resolved++
		}
	}
	if s.Resolved > 0 {
		s.AverageResolutionHours = total.Hours() / float64(s.Resolved)
	}
	return s
}
