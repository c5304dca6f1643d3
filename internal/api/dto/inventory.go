package dto

import (
	"encoding/json"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
)

// Reference kinds
const (
	RefSingle     = "single"
	RefCollection = "collection"
)

// Ref is a cross-reference rendered as a tagged variant: a single reference
// carries value, a collection carries values
type Ref struct {
	Kind   string
	Target string
	Value  string
	Values []string
}

// MarshalJSON emits {kind, target, value} or {kind, target, values}
func (r Ref) MarshalJSON() ([]byte, error) {
	if r.Kind == RefSingle {
		return json.Marshal(struct {
			Kind   string `json:"kind"`
			Target string `json:"target"`
			Value  string `json:"value"`
		}{r.Kind, r.Target, r.Value})
	}
	values := r.Values
	if values == nil {
		values = []string{}
	}
	return json.Marshal(struct {
		Kind   string   `json:"kind"`
		Target string   `json:"target"`
		Values []string `json:"values"`
	}{r.Kind, r.Target, values})
}

// UnmarshalJSON reads either variant
func (r *Ref) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind   string   `json:"kind"`
		Target string   `json:"target"`
		Value  string   `json:"value"`
		Values []string `json:"values"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Ref{Kind: raw.Kind, Target: raw.Target, Value: raw.Value, Values: raw.Values}
	return nil
}

// Links renders the cross-references of a row by name
func Links(links []inventory.Link) map[string]Ref {
	out := make(map[string]Ref, len(links))
	for _, l := range links {
		ref := Ref{Target: string(l.Target)}
		switch l.Kind {
		case inventory.LinkSingle:
			ref.Kind = RefSingle
			ref.Value = l.Value
		case inventory.LinkCollection:
			ref.Kind = RefCollection
			ref.Values = l.Values
		}
		out[l.Name] = ref
	}
	return out
}

// InstanceDTO is an instance with its links
type InstanceDTO struct {
	*inventory.Instance
	Links map[string]Ref `json:"links"`
}

// VolumeDTO is a volume with its links
type VolumeDTO struct {
	*inventory.Volume
	Links map[string]Ref `json:"links"`
}

// SnapshotDTO is a snapshot with its links
type SnapshotDTO struct {
	*inventory.Snapshot
	Links map[string]Ref `json:"links"`
}

// AMIDTO is an image with its links
type AMIDTO struct {
	*inventory.AMI
	Links map[string]Ref `json:"links"`
}

// ElasticIPDTO is an elastic IP with its links
type ElasticIPDTO struct {
	*inventory.ElasticIP
	Links map[string]Ref `json:"links"`
}

// LoadBalancerDTO is a load balancer with its links
type LoadBalancerDTO struct {
	*inventory.LoadBalancer
	Links map[string]Ref `json:"links"`
}

// ToInstanceDTOs converts instances
func ToInstanceDTOs(in []*inventory.Instance) []InstanceDTO {
	out := make([]InstanceDTO, len(in))
	for i, v := range in {
		out[i] = InstanceDTO{Instance: v, Links: Links(inventory.InstanceLinks(v))}
	}
	return out
}

// ToVolumeDTOs converts volumes
func ToVolumeDTOs(in []*inventory.Volume) []VolumeDTO {
	out := make([]VolumeDTO, len(in))
	for i, v := range in {
		out[i] = VolumeDTO{Volume: v, Links: Links(inventory.VolumeLinks(v))}
	}
	return out
}

// ToSnapshotDTOs converts snapshots
func ToSnapshotDTOs(in []*inventory.Snapshot) []SnapshotDTO {
	out := make([]SnapshotDTO, len(in))
	for i, v := range in {
		out[i] = SnapshotDTO{Snapshot: v, Links: Links(inventory.SnapshotLinks(v))}
	}
	return out
}

// ToAMIDTOs converts images
func ToAMIDTOs(in []*inventory.AMI) []AMIDTO {
	out := make([]AMIDTO, len(in))
	for i, v := range in {
		out[i] = AMIDTO{AMI: v, Links: Links(inventory.AMILinks(v))}
	}
	return out
}

// ToElasticIPDTOs converts elastic IPs
func ToElasticIPDTOs(in []*inventory.ElasticIP) []ElasticIPDTO {
	out := make([]ElasticIPDTO, len(in))
	for i, v := range in {
		out[i] = ElasticIPDTO{ElasticIP: v, Links: Links(inventory.ElasticIPLinks(v))}
	}
	return out
}

// ToLoadBalancerDTOs converts load balancers
func ToLoadBalancerDTOs(in []*inventory.LoadBalancer) []LoadBalancerDTO {
	out := make([]LoadBalancerDTO, len(in))
	for i, v := range in {
		out[i] = LoadBalancerDTO{LoadBalancer: v, Links: Links(inventory.LoadBalancerLinks(v))}
	}
	return out
}

// TerminateResponse lists the volumes removed with a terminated instance
type TerminateResponse struct {
	InstanceID     string   `json:"instance_id"`
	DeletedVolumes []string `json:"deleted_volumes"`
}
