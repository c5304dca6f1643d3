package ec2sync

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
)

// The functions below copy the descriptive fields of a provider object. Relations
// (account, region, zone, cross-references) are set by the fetchers.

func mapKeypair(k ec2types.KeyPairInfo) *inventory.Keypair {
	return &inventory.Keypair{
		KeyName:     aws.ToString(k.KeyName),
		Fingerprint: aws.ToString(k.KeyFingerprint),
	}
}

func mapSecurityGroup(sg ec2types.SecurityGroup) *inventory.SecurityGroup {
	return &inventory.SecurityGroup{
		ID:          aws.ToString(sg.GroupId),
		Name:        aws.ToString(sg.GroupName),
		Description: aws.ToString(sg.Description),
		OwnerID:     aws.ToString(sg.OwnerId),
		VpcID:       aws.ToString(sg.VpcId),
	}
}

func mapAMI(img ec2types.Image) *inventory.AMI {
	return &inventory.AMI{
		ID:             aws.ToString(img.ImageId),
		Name:           aws.ToString(img.Name),
		Description:    aws.ToString(img.Description),
		OwnerID:        aws.ToString(img.OwnerId),
		OwnerAlias:     aws.ToString(img.ImageOwnerAlias),
		Platform:       string(img.Platform),
		Architecture:   string(img.Architecture),
		RootDeviceName: aws.ToString(img.RootDeviceName),
		RootDeviceType: string(img.RootDeviceType),
		State:          string(img.State),
	}
}

// rootSnapshotID returns the snapshot backing the first EBS device of an image
func rootSnapshotID(img ec2types.Image) string {
	for _, bdm := range img.BlockDeviceMappings {
		if bdm.Ebs != nil && aws.ToString(bdm.Ebs.SnapshotId) != "" {
			return aws.ToString(bdm.Ebs.SnapshotId)
		}
	}
	return ""
}

func mapSnapshot(s ec2types.Snapshot) *inventory.Snapshot {
	return &inventory.Snapshot{
		ID:          aws.ToString(s.SnapshotId),
		Description: aws.ToString(s.Description),
		Encrypted:   aws.ToBool(s.Encrypted),
		OwnerID:     aws.ToString(s.OwnerId),
		OwnerAlias:  aws.ToString(s.OwnerAlias),
		Size:        aws.ToInt32(s.VolumeSize),
		StartTime:   s.StartTime,
		Status:      string(s.State),
	}
}

func mapVolume(v ec2types.Volume) *inventory.Volume {
	vol := &inventory.Volume{
		ID:         aws.ToString(v.VolumeId),
		CreateTime: v.CreateTime,
		Encrypted:  aws.ToBool(v.Encrypted),
		Size:       aws.ToInt32(v.Size),
		Type:       string(v.VolumeType),
		State:      string(v.State),
	}
	if len(v.Attachments) > 0 {
		a := v.Attachments[0]
		vol.AttachTime = a.AttachTime
		vol.DeleteOnTermination = aws.ToBool(a.DeleteOnTermination)
	}
	return vol
}

func mapInstance(i ec2types.Instance) *inventory.Instance {
	inst := &inventory.Instance{
		ID:               aws.ToString(i.InstanceId),
		Architecture:     string(i.Architecture),
		Platform:         string(i.Platform),
		InstanceType:     string(i.InstanceType),
		Kernel:           aws.ToString(i.KernelId),
		LaunchTime:       i.LaunchTime,
		PublicDNSName:    aws.ToString(i.PublicDnsName),
		PrivateIPAddress: aws.ToString(i.PrivateIpAddress),
	}
	if i.State != nil {
		inst.State = string(i.State.Name)
	}
	return inst
}

// instanceAttachments lists the EBS volumes of an instance block device mapping
func instanceAttachments(i ec2types.Instance) []inventory.Attachment {
	var out []inventory.Attachment
	for _, bdm := range i.BlockDeviceMappings {
		if bdm.Ebs == nil || aws.ToString(bdm.Ebs.VolumeId) == "" {
			continue
		}
		out = append(out, inventory.Attachment{
			VolumeID:            aws.ToString(bdm.Ebs.VolumeId),
			InstanceID:          aws.ToString(i.InstanceId),
			AttachTime:          bdm.Ebs.AttachTime,
			DeleteOnTermination: aws.ToBool(bdm.Ebs.DeleteOnTermination),
		})
	}
	return out
}

func mapElasticIP(a ec2types.Address) *inventory.ElasticIP {
	return &inventory.ElasticIP{
		PublicIP:                aws.ToString(a.PublicIp),
		AllocationID:            aws.ToString(a.AllocationId),
		AssociationID:           aws.ToString(a.AssociationId),
		Domain:                  string(a.Domain),
		NetworkInterfaceID:      aws.ToString(a.NetworkInterfaceId),
		NetworkInterfaceOwnerID: aws.ToString(a.NetworkInterfaceOwnerId),
		PrivateIPAddress:        aws.ToString(a.PrivateIpAddress),
	}
}

func mapLoadBalancer(lb elbtypes.LoadBalancer) *inventory.LoadBalancer {
	out := &inventory.LoadBalancer{
		Name:    aws.ToString(lb.LoadBalancerName),
		ARN:     aws.ToString(lb.LoadBalancerArn),
		DNSName: aws.ToString(lb.DNSName),
		Scheme:  string(lb.Scheme),
		Type:    string(lb.Type),
	}
	if lb.CreatedTime != nil {
		t := lb.CreatedTime.UTC().Truncate(time.Second)
		out.CreatedTime = &t
	}
	return out
}

func ec2Tags(tags []ec2types.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		out[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return out
}

func elbTags(tags []elbtypes.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		out[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return out
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
