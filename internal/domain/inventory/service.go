package inventory

import "context"

// InstanceCost is the on-demand cost of one priced instance
type InstanceCost struct {
	InstanceID   string  `json:"instance_id"`
	AccountID    string  `json:"account_id"`
	InstanceType string  `json:"instance_type"`
	EC2Platform  string  `json:"ec2_platform"`
	Region       string  `json:"region"`
	State        string  `json:"state"`
	Hourly       float64 `json:"hourly"`
	Daily        float64 `json:"daily"`
	Monthly      float64 `json:"monthly"`
	PriceClass   int     `json:"price_class"`
}

// AccountCost sums the running instances of one account
type AccountCost struct {
	AccountID string  `json:"account_id"`
	Running   int     `json:"running"`
	Hourly    float64 `json:"hourly"`
	Daily     float64 `json:"daily"`
	Monthly   float64 `json:"monthly"`
}

// CostReport is the cost view of a user
type CostReport struct {
	Accounts    []AccountCost  `json:"accounts"`
	Instances   []InstanceCost `json:"instances"`
	Total       AccountCost    `json:"total"`
	DaysInMonth int            `json:"days_in_month"`
	MaxHourly   float64        `json:"max_hourly"`
}

// Service exposes the stored inventory of a user and the actions on it
type Service interface {
	Reader

	// StopInstance stops an instance at the provider and marks it stopped
	StopInstance(ctx context.Context, userID int64, id string) error

	// TerminateInstance terminates an instance, removes it and deletes the volumes
	// flagged delete-on-termination. It returns the deleted volume ids.
	TerminateInstance(ctx context.Context, userID int64, id string) ([]string, error)

	// DetachVolume detaches a volume from its instance
	DetachVolume(ctx context.Context, userID int64, id string) error

	// DeleteVolume deletes a volume at the provider and locally
	DeleteVolume(ctx context.Context, userID int64, id string) error

	// Costs computes the on-demand cost of the user's instances
	Costs(ctx context.Context, userID int64, f ListFilter) (*CostReport, error)
}
