package syncstate

import "time"

// Epoch is the last-updated value of a user that never synced
var Epoch = time.Unix(0, 0).UTC()

// DefaultResourcesInterval applies to users without a custom interval
const DefaultResourcesInterval = 60 * time.Minute

// State holds the per-user timestamps driving the staleness policy
type State struct {
	UserID                  int64         `json:"user_id"`
	ResourcesLastUpdated    time.Time     `json:"resources_last_updated"`
	PricesLastUpdated       time.Time     `json:"prices_last_updated"`
	ResourcesUpdateInterval time.Duration `json:"resources_update_interval"`
	// ResourcesClaimedAt is set while a resources run holds the in-progress claim
	ResourcesClaimedAt *time.Time `json:"resources_claimed_at,omitempty"`
}

// New returns the state of a user that never synced
func New(userID int64) *State {
	return &State{
		UserID:                  userID,
		ResourcesLastUpdated:    Epoch,
		PricesLastUpdated:       Epoch,
		ResourcesUpdateInterval: DefaultResourcesInterval,
	}
}

// InProgress reports whether a resources run claim is still within its lease
func (s *State) InProgress(now time.Time, lease time.Duration) bool {
	return s.ResourcesClaimedAt != nil && now.Sub(*s.ResourcesClaimedAt) < lease
}
