package inventory

import "context"

// RegionRepository stores the static region and zone reference data
type RegionRepository interface {
	// CountRegions returns how many regions have been discovered
	CountRegions(ctx context.Context) (int, error)

	// ListRegions returns every discovered region name
	ListRegions(ctx context.Context) ([]string, error)

	// SaveRegion stores a region and its zones; saving twice is a no-op
	SaveRegion(ctx context.Context, region string, zones []string) error

	// GetAvailabilityZone looks up a zone by name
	GetAvailabilityZone(ctx context.Context, name string) (*AvailabilityZone, error)
}

// Store is the write side used by the resource fetchers. Upserts report whether a
// new row was created. Relation columns absent from the value keep their stored value.
type Store interface {
	UpsertKeypair(ctx context.Context, k *Keypair) (bool, error)
	KeypairExists(ctx context.Context, accountID, region, keyName string) (bool, error)

	UpsertSecurityGroup(ctx context.Context, sg *SecurityGroup) (bool, error)
	// EnsureSecurityGroup inserts a minimal row when the group is unknown
	EnsureSecurityGroup(ctx context.Context, sg *SecurityGroup) error

	UpsertAMI(ctx context.Context, a *AMI) (bool, error)
	GetAMI(ctx context.Context, id string) (*AMI, error)

	UpsertSnapshot(ctx context.Context, s *Snapshot) (bool, error)
	// EnsureSnapshot creates a placeholder row that a later snapshot fetch fills in
	EnsureSnapshot(ctx context.Context, id, accountID, region string) error

	UpsertVolume(ctx context.Context, v *Volume) (bool, error)
	// EnsureVolume creates a placeholder row that a later volume fetch fills in
	EnsureVolume(ctx context.Context, id, accountID string) error
	AttachVolume(ctx context.Context, accountID string, a Attachment) error

	UpsertInstance(ctx context.Context, i *Instance) (bool, error)
	InstanceExists(ctx context.Context, id string) (bool, error)
	// AddInstanceSecurityGroups links groups additively
	AddInstanceSecurityGroups(ctx context.Context, instanceID string, groupIDs []string) error

	UpsertElasticIP(ctx context.Context, e *ElasticIP) (bool, error)

	// UpsertLoadBalancer fills lb.ID with the surrogate id of the stored row
	UpsertLoadBalancer(ctx context.Context, lb *LoadBalancer) (bool, error)
	// AddLoadBalancerLinks links instances, groups and zones additively
	AddLoadBalancerLinks(ctx context.Context, lbID string, instanceIDs, groupIDs, zones []string) error

	// ListPricedInstances returns every instance with the keys needed to look up a price
	ListPricedInstances(ctx context.Context) ([]*PricedInstance, error)
	SetInstancePrice(ctx context.Context, instanceID, priceID string) error
}

// TagRepository stores tags and their resource associations
type TagRepository interface {
	// GetOrCreate returns the tag identified by (key, value, account, region)
	GetOrCreate(ctx context.Context, key, value, accountID, region string) (*Tag, error)

	// Attach associates a tag with a resource; attaching twice is a no-op
	Attach(ctx context.Context, tagID string, kind Kind, resourceID string) error

	// ListForResource returns the tags of one resource
	ListForResource(ctx context.Context, kind Kind, resourceID string) ([]*Tag, error)
}

// ListFilter narrows a listing to one account or region and orders it
type ListFilter struct {
	AccountID string
	Region    string
	State     string
	SortBy    string
	Desc      bool
	Limit     int
	Offset    int
}

// Reader is the read side used by listings and actions. Every method is scoped to
// the accounts of one user.
type Reader interface {
	ListInstances(ctx context.Context, userID int64, f ListFilter) ([]*Instance, int64, error)
	GetInstance(ctx context.Context, userID int64, id string) (*Instance, error)
	ListVolumes(ctx context.Context, userID int64, f ListFilter) ([]*Volume, int64, error)
	GetVolume(ctx context.Context, userID int64, id string) (*Volume, error)
	ListSnapshots(ctx context.Context, userID int64, f ListFilter) ([]*Snapshot, int64, error)
	ListAMIs(ctx context.Context, userID int64, f ListFilter) ([]*AMI, int64, error)
	ListKeypairs(ctx context.Context, userID int64, f ListFilter) ([]*Keypair, int64, error)
	ListSecurityGroups(ctx context.Context, userID int64, f ListFilter) ([]*SecurityGroup, int64, error)
	ListElasticIPs(ctx context.Context, userID int64, f ListFilter) ([]*ElasticIP, int64, error)
	ListLoadBalancers(ctx context.Context, userID int64, f ListFilter) ([]*LoadBalancer, int64, error)
}

// Mutator applies the local side of user actions
type Mutator interface {
	// MarkInstanceStopped sets state to stopped and clears the public DNS name
	MarkInstanceStopped(ctx context.Context, id string) error

	// DeleteInstance removes the row; attached volumes are detached by the store
	DeleteInstance(ctx context.Context, id string) error

	// ListDeleteOnTermination returns the volumes deleted together with an instance
	ListDeleteOnTermination(ctx context.Context, instanceID string) ([]string, error)

	// DetachVolume clears the instance and attach time of a volume
	DetachVolume(ctx context.Context, id string) error

	// DeleteVolume removes the row
	DeleteVolume(ctx context.Context, id string) error
}

// Repository groups the inventory data access interfaces
type Repository interface {
	Store
	Reader
	Mutator
}
