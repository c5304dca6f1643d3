package inventory

// LinkKind tells whether a cross-reference points at one row or at several
type LinkKind int

const (
	// LinkSingle references exactly one related row
	LinkSingle LinkKind = iota
	// LinkCollection references zero or more related rows
	LinkCollection
)

// Link is a cross-reference from one resource row to related rows
type Link struct {
	Name   string
	Kind   LinkKind
	Target Kind
	Value  string
	Values []string
}

// Single builds a single-valued link; it returns false when the reference is unset
func Single(name string, target Kind, value *string) (Link, bool) {
	if value == nil || *value == "" {
		return Link{}, false
	}
	return Link{Name: name, Kind: LinkSingle, Target: target, Value: *value}, true
}

// Collection builds a link over a set of related rows
func Collection(name string, target Kind, values []string) Link {
	return Link{Name: name, Kind: LinkCollection, Target: target, Values: values}
}

func appendSingle(links []Link, name string, target Kind, value *string) []Link {
	if l, ok := Single(name, target, value); ok {
		return append(links, l)
	}
	return links
}

// InstanceLinks returns the cross-references of an instance
func InstanceLinks(i *Instance) []Link {
	var links []Link
	links = appendSingle(links, "image", KindAMI, i.ImageID)
	links = appendSingle(links, "key_pair", KindKeypair, i.KeyName)
	return append(links, Collection("security_groups", KindSecurityGroup, i.SecurityGroupIDs))
}

// VolumeLinks returns the cross-references of a volume
func VolumeLinks(v *Volume) []Link {
	var links []Link
	links = appendSingle(links, "instance", KindInstance, v.InstanceID)
	return appendSingle(links, "created_from_snapshot", KindSnapshot, v.CreatedFromSnapshot)
}

// SnapshotLinks returns the cross-references of a snapshot
func SnapshotLinks(s *Snapshot) []Link {
	return appendSingle(nil, "created_from_volume", KindVolume, s.CreatedFromVolume)
}

// AMILinks returns the cross-references of an image
func AMILinks(a *AMI) []Link {
	return appendSingle(nil, "created_from_snapshot", KindSnapshot, a.CreatedFromSnapshot)
}

// ElasticIPLinks returns the cross-references of an elastic IP
func ElasticIPLinks(e *ElasticIP) []Link {
	return appendSingle(nil, "instance", KindInstance, e.InstanceID)
}

// LoadBalancerLinks returns the cross-references of a load balancer
func LoadBalancerLinks(lb *LoadBalancer) []Link {
	return []Link{
		Collection("instances", KindInstance, lb.InstanceIDs),
		Collection("security_groups", KindSecurityGroup, lb.SecurityGroupIDs),
	}
}
