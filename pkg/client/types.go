package client

import "time"

// ListOptions contains common listing options
type ListOptions struct {
	Page      int    `json:"page,omitempty"`
	PageSize  int    `json:"page_size,omitempty"`
	Sort      string `json:"sort,omitempty"`
	Desc      bool   `json:"desc,omitempty"`
	AccountID string `json:"account_id,omitempty"`
	Region    string `json:"region,omitempty"`
	State     string `json:"state,omitempty"`
}

// Page is one page of a listing
type Page[T any] struct {
	Data       []T   `json:"data"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Account is a registered AWS key pair; the access key is masked
type Account struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	AccessKeyID string    `json:"access_key_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// AddAccountRequest registers an AWS key pair for the caller
type AddAccountRequest struct {
	Name            string `json:"name"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// Outcome summarizes one fetcher of a run
type Outcome struct {
	Kind       string `json:"kind"`
	Fetched    int    `json:"fetched"`
	Upserted   int    `json:"upserted"`
	Created    int    `json:"created"`
	Failed     int    `json:"failed"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// PriceResult summarizes the price stage of a run
type PriceResult struct {
	Fetched  int  `json:"fetched"`
	Skipped  int  `json:"skipped"`
	Failed   int  `json:"failed"`
	Attached int  `json:"attached"`
	Complete bool `json:"complete"`
}

// Run is a background sync run
type Run struct {
	ID        string       `json:"id"`
	Scope     string       `json:"scope"`
	Trigger   string       `json:"trigger"`
	StartedAt time.Time    `json:"started_at"`
	Finished  bool         `json:"finished"`
	Error     string       `json:"error,omitempty"`
	Outcomes  []Outcome    `json:"outcomes"`
	Prices    *PriceResult `json:"prices,omitempty"`
}

// SyncResponse answers a sync trigger; Run is nil when nothing was due
type SyncResponse struct {
	Started bool `json:"started"`
	Run     *Run `json:"run,omitempty"`
}

// SyncStatus reports the sync state of the caller
type SyncStatus struct {
	ResourcesLastUpdated     time.Time  `json:"resources_last_updated"`
	PricesLastUpdated        time.Time  `json:"prices_last_updated"`
	ResourcesIntervalSeconds int64      `json:"resources_interval_seconds"`
	PricesIntervalSeconds    int64      `json:"prices_interval_seconds"`
	ResourcesDue             bool       `json:"resources_due"`
	PricesDue                bool       `json:"prices_due"`
	InProgress               bool       `json:"in_progress"`
	ClaimedAt                *time.Time `json:"claimed_at,omitempty"`
	Running                  []*Run     `json:"running"`
}

// Ref is a cross-reference to another resource. Kind is "single" with Value set,
// or "collection" with Values set.
type Ref struct {
	Kind   string   `json:"kind"`
	Target string   `json:"target"`
	Value  string   `json:"value,omitempty"`
	Values []string `json:"values,omitempty"`
}

// Instance is an EC2 instance
type Instance struct {
	ID               string         `json:"id"`
	AccountID        string         `json:"account_id"`
	AvailabilityZone string         `json:"availability_zone"`
	Region           string         `json:"region,omitempty"`
	Architecture     string         `json:"architecture"`
	EC2Platform      string         `json:"ec2_platform"`
	InstanceType     string         `json:"instance_type"`
	LaunchTime       *time.Time     `json:"launch_time,omitempty"`
	PublicDNSName    string         `json:"public_dns_name,omitempty"`
	PrivateIPAddress string         `json:"private_ip_address,omitempty"`
	State            string         `json:"state"`
	HourlyPrice      *float64       `json:"hourly_price,omitempty"`
	Links            map[string]Ref `json:"links"`
}

// Volume is an EBS volume
type Volume struct {
	ID                  string         `json:"id"`
	AccountID           string         `json:"account_id"`
	AvailabilityZone    *string        `json:"availability_zone,omitempty"`
	InstanceID          *string        `json:"instance_id,omitempty"`
	DeleteOnTermination bool           `json:"delete_on_termination"`
	Size                int32          `json:"size"`
	Type                string         `json:"type"`
	State               string         `json:"state"`
	Links               map[string]Ref `json:"links"`
}

// Snapshot is an EBS snapshot
type Snapshot struct {
	ID          string         `json:"id"`
	AccountID   string         `json:"account_id"`
	Region      string         `json:"region"`
	Description string         `json:"description"`
	Size        int32          `json:"size"`
	Status      string         `json:"status"`
	StartTime   *time.Time     `json:"start_time,omitempty"`
	Links       map[string]Ref `json:"links"`
}

// AMI is a machine image
type AMI struct {
	ID           string         `json:"id"`
	AccountID    string         `json:"account_id"`
	Region       string         `json:"region"`
	Name         string         `json:"name"`
	OwnerID      string         `json:"owner_id"`
	Architecture string         `json:"architecture"`
	State        string         `json:"state"`
	Links        map[string]Ref `json:"links"`
}

// Keypair is an EC2 key pair
type Keypair struct {
	KeyName     string `json:"key_name"`
	Fingerprint string `json:"fingerprint"`
	AccountID   string `json:"account_id"`
	Region      string `json:"region"`
}

// SecurityGroup is an EC2 security group
type SecurityGroup struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	VpcID       string `json:"vpc_id,omitempty"`
	AccountID   string `json:"account_id"`
	Region      string `json:"region"`
}

// ElasticIP is an allocated public address
type ElasticIP struct {
	PublicIP     string         `json:"public_ip"`
	AccountID    string         `json:"account_id"`
	Region       string         `json:"region"`
	AllocationID string         `json:"allocation_id,omitempty"`
	Domain       string         `json:"domain"`
	Links        map[string]Ref `json:"links"`
}

// LoadBalancer is an elastic load balancer
type LoadBalancer struct {
	ID        string         `json:"id"`
	AccountID string         `json:"account_id"`
	Region    string         `json:"region"`
	Name      string         `json:"name"`
	DNSName   string         `json:"dns_name"`
	Scheme    string         `json:"scheme"`
	Type      string         `json:"type"`
	Links     map[string]Ref `json:"links"`
}

// TerminateResult lists the volumes removed with a terminated instance
type TerminateResult struct {
	InstanceID     string   `json:"instance_id"`
	DeletedVolumes []string `json:"deleted_volumes"`
}

// InstanceCost is the cost of one priced instance
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

// AccountCost sums the running instances of an account
type AccountCost struct {
	AccountID string  `json:"account_id"`
	Running   int     `json:"running"`
	Hourly    float64 `json:"hourly"`
	Daily     float64 `json:"daily"`
	Monthly   float64 `json:"monthly"`
}

// CostReport is the cost view of the caller
type CostReport struct {
	Accounts    []AccountCost  `json:"accounts"`
	Instances   []InstanceCost `json:"instances"`
	Total       AccountCost    `json:"total"`
	DaysInMonth int            `json:"days_in_month"`
	MaxHourly   float64        `json:"max_hourly"`
}
