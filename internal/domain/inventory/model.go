package inventory

import "time"

// Kind identifies a synchronized EC2 resource kind
type Kind string

// Resource kinds
const (
	KindInstance      Kind = "instance"
	KindVolume        Kind = "volume"
	KindSnapshot      Kind = "snapshot"
	KindAMI           Kind = "ami"
	KindKeypair       Kind = "keypair"
	KindSecurityGroup Kind = "security_group"
	KindElasticIP     Kind = "elastic_ip"
	KindLoadBalancer  Kind = "load_balancer"
)

// Kinds lists every resource kind in dependency order
var Kinds = []Kind{
	KindKeypair, KindSecurityGroup, KindAMI,
	KindInstance,
	KindVolume, KindSnapshot, KindElasticIP, KindLoadBalancer,
}

// Instance states
const (
	StatePending      = "pending"
	StateRunning      = "running"
	StateShuttingDown = "shutting-down"
	StateTerminated   = "terminated"
	StateStopping     = "stopping"
	StateStopped      = "stopped"
)

// Region is a provider region discovered for the deployment
type Region struct {
	Name string `json:"name"`
}

// AvailabilityZone belongs to exactly one region
type AvailabilityZone struct {
	Name   string `json:"name"`
	Region string `json:"region"`
}

// Keypair is identified by its name within an account and region
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
	OwnerID     string `json:"owner_id"`
	VpcID       string `json:"vpc_id,omitempty"`
	AccountID   string `json:"account_id"`
	Region      string `json:"region"`
}

// AMI is a machine image either owned by the account or used by one of its instances
type AMI struct {
	ID                  string  `json:"id"`
	AccountID           string  `json:"account_id"`
	Region              string  `json:"region"`
	Name                string  `json:"name"`
	Description         string  `json:"description"`
	OwnerID             string  `json:"owner_id"`
	OwnerAlias          string  `json:"owner_alias,omitempty"`
	Platform            string  `json:"platform,omitempty"`
	Architecture        string  `json:"architecture"`
	RootDeviceName      string  `json:"root_device_name"`
	RootDeviceType      string  `json:"root_device_type"`
	State               string  `json:"state"`
	CreatedFromSnapshot *string `json:"created_from_snapshot,omitempty"`
}

// Snapshot is an EBS snapshot. CreatedFromVolume may reference a volume that is
// only known as a placeholder.
type Snapshot struct {
	ID                string     `json:"id"`
	AccountID         string     `json:"account_id"`
	Region            string     `json:"region"`
	Description       string     `json:"description"`
	Encrypted         bool       `json:"encrypted"`
	OwnerID           string     `json:"owner_id"`
	OwnerAlias        string     `json:"owner_alias,omitempty"`
	Size              int32      `json:"size"`
	StartTime         *time.Time `json:"start_time,omitempty"`
	Status            string     `json:"status"`
	CreatedFromVolume *string    `json:"created_from_volume,omitempty"`
}

// Volume is an EBS volume. CreatedFromSnapshot may reference a snapshot that is
// only known as a placeholder.
type Volume struct {
	ID                  string     `json:"id"`
	AccountID           string     `json:"account_id"`
	AvailabilityZone    *string    `json:"availability_zone,omitempty"`
	InstanceID          *string    `json:"instance_id,omitempty"`
	AttachTime          *time.Time `json:"attach_time,omitempty"`
	DeleteOnTermination bool       `json:"delete_on_termination"`
	CreateTime          *time.Time `json:"create_time,omitempty"`
	Encrypted           bool       `json:"encrypted"`
	Size                int32      `json:"size"`
	Type                string     `json:"type"`
	State               string     `json:"state"`
	CreatedFromSnapshot *string    `json:"created_from_snapshot,omitempty"`
}

// Attachment is a volume to instance link reported by an instance block device mapping
type Attachment struct {
	VolumeID            string
	InstanceID          string
	AttachTime          *time.Time
	DeleteOnTermination bool
}

// Instance is an EC2 instance
type Instance struct {
	ID               string     `json:"id"`
	AccountID        string     `json:"account_id"`
	AvailabilityZone string     `json:"availability_zone"`
	Architecture     string     `json:"architecture"`
	EC2Platform      string     `json:"ec2_platform"`
	Platform         string     `json:"platform,omitempty"`
	InstanceType     string     `json:"instance_type"`
	Kernel           string     `json:"kernel,omitempty"`
	LaunchTime       *time.Time `json:"launch_time,omitempty"`
	PublicDNSName    string     `json:"public_dns_name,omitempty"`
	PrivateIPAddress string     `json:"private_ip_address,omitempty"`
	State            string     `json:"state"`
	ImageID          *string    `json:"image_id,omitempty"`
	KeyName          *string    `json:"key_name,omitempty"`
	PriceID          *string    `json:"price_id,omitempty"`

	// Read side only
	Region           string   `json:"region,omitempty"`
	HourlyPrice      *float64 `json:"hourly_price,omitempty"`
	SecurityGroupIDs []string `json:"security_group_ids,omitempty"`
}

// ElasticIP is identified by its public address
type ElasticIP struct {
	PublicIP                string  `json:"public_ip"`
	AccountID               string  `json:"account_id"`
	Region                  string  `json:"region"`
	AllocationID            string  `json:"allocation_id,omitempty"`
	AssociationID           string  `json:"association_id,omitempty"`
	Domain                  string  `json:"domain"`
	InstanceID              *string `json:"instance_id,omitempty"`
	NetworkInterfaceID      string  `json:"network_interface_id,omitempty"`
	NetworkInterfaceOwnerID string  `json:"network_interface_owner_id,omitempty"`
	PrivateIPAddress        string  `json:"private_ip_address,omitempty"`
}

// LoadBalancer has a surrogate id and is unique by (name, account, region)
type LoadBalancer struct {
	ID          string     `json:"id"`
	AccountID   string     `json:"account_id"`
	Region      string     `json:"region"`
	Name        string     `json:"name"`
	ARN         string     `json:"arn"`
	DNSName     string     `json:"dns_name"`
	Scheme      string     `json:"scheme"`
	Type        string     `json:"type"`
	CreatedTime *time.Time `json:"created_time,omitempty"`

	InstanceIDs       []string `json:"instance_ids,omitempty"`
	SecurityGroupIDs  []string `json:"security_group_ids,omitempty"`
	AvailabilityZones []string `json:"availability_zones,omitempty"`
}

// Tag identity is (key, value, account, region); many resources share one row
type Tag struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	AccountID string `json:"account_id"`
	Region    string `json:"region"`
}

// ResourceRef addresses one local row for tag association
type ResourceRef struct {
	Kind      Kind
	ID        string
	AccountID string
	// Region is the direct region of the resource, empty when it only has a zone
	Region string
	// AvailabilityZone is used to derive the region when Region is empty
	AvailabilityZone string
}

// PricedInstance is the projection used to attach prices
type PricedInstance struct {
	ID           string
	EC2Platform  string
	InstanceType string
	Region       string
	State        string
}
