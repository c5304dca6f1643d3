package price

import "context"

// Repository defines the interface for price data access
type Repository interface {
	// Upsert stores a quote keyed by (instance type, platform, region)
	Upsert(ctx context.Context, q Quote) (*Price, error)

	// Find looks up the price of an instance type on a platform in a region
	Find(ctx context.Context, instanceType, platform, region string) (*Price, error)

	// All returns every stored price indexed by Key
	All(ctx context.Context) (map[Key]*Price, error)

	// Max returns the highest stored hourly price
	Max(ctx context.Context) (float64, error)
}

// Key identifies a price row
type Key struct {
	InstanceType string
	Platform     string
	Region       string
}
