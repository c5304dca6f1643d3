package dto

import (
	"time"

	"github.com/pratik-mahalle/ec2inventory/internal/ec2sync"
)

// OutcomeDTO summarizes one fetcher run
type OutcomeDTO struct {
	Kind       string `json:"kind"`
	Fetched    int    `json:"fetched"`
	Upserted   int    `json:"upserted"`
	Created    int    `json:"created"`
	Failed     int    `json:"failed"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// RunDTO is a started or finished sync run
type RunDTO struct {
	ID        string                   `json:"id"`
	Scope     string                   `json:"scope"`
	Trigger   string                   `json:"trigger"`
	StartedAt time.Time                `json:"started_at"`
	Finished  bool                     `json:"finished"`
	Error     string                   `json:"error,omitempty"`
	Outcomes  []OutcomeDTO             `json:"outcomes"`
	Prices    *ec2sync.PriceSyncResult `json:"prices,omitempty"`
}

// ToRunDTO converts a run; outcomes are those recorded so far
func ToRunDTO(run *ec2sync.Run) *RunDTO {
	if run == nil {
		return nil
	}
	outcomes, prices := run.Results()
	out := &RunDTO{
		ID:        run.ID,
		Scope:     run.Scope,
		Trigger:   run.Trigger,
		StartedAt: run.StartedAt,
		Outcomes:  make([]OutcomeDTO, len(outcomes)),
		Prices:    prices,
	}
	select {
	case <-run.Done():
		out.Finished = true
		if err := run.Err(); err != nil {
			out.Error = err.Error()
		}
	default:
	}
	for i, o := range outcomes {
		out.Outcomes[i] = OutcomeDTO{
			Kind:       string(o.Kind),
			Fetched:    o.Fetched,
			Upserted:   o.Upserted,
			Created:    o.Created,
			Failed:     o.Failed,
			DurationMs: o.Duration.Milliseconds(),
		}
		if o.Err != nil {
			out.Outcomes[i].Error = o.Err.Error()
		}
	}
	return out
}

// SyncResponse answers a sync trigger. Run is nil when nothing was due.
type SyncResponse struct {
	Started bool    `json:"started"`
	Run     *RunDTO `json:"run,omitempty"`
}

// SyncStatusDTO reports the sync state of the caller
type SyncStatusDTO struct {
	ResourcesLastUpdated     time.Time  `json:"resources_last_updated"`
	PricesLastUpdated        time.Time  `json:"prices_last_updated"`
	ResourcesIntervalSeconds int64      `json:"resources_interval_seconds"`
	PricesIntervalSeconds    int64      `json:"prices_interval_seconds"`
	ResourcesDue             bool       `json:"resources_due"`
	PricesDue                bool       `json:"prices_due"`
	InProgress               bool       `json:"in_progress"`
	ClaimedAt                *time.Time `json:"claimed_at,omitempty"`
	Running                  []*RunDTO  `json:"running"`
}

// ToSyncStatusDTO converts a status
func ToSyncStatusDTO(s *ec2sync.Status) SyncStatusDTO {
	out := SyncStatusDTO{
		ResourcesLastUpdated:     s.State.ResourcesLastUpdated,
		PricesLastUpdated:        s.State.PricesLastUpdated,
		ResourcesIntervalSeconds: int64(s.State.ResourcesUpdateInterval.Seconds()),
		PricesIntervalSeconds:    int64(s.PricesInterval.Seconds()),
		ResourcesDue:             s.ResourcesDue,
		PricesDue:                s.PricesDue,
		InProgress:               s.InProgress,
		ClaimedAt:                s.State.ResourcesClaimedAt,
		Running:                  make([]*RunDTO, 0, len(s.Running)),
	}
	for _, run := range s.Running {
		out.Running = append(out.Running, ToRunDTO(run))
	}
	return out
}
