package ec2sync

import (
	"context"
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/price"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
)

func TestFetchers_ResourceGraph(t *testing.T) {
	h := newHarness(t)
	populate(h.cloud.EC2(testRegion), h.cloud.ELB(testRegion))
	pool, accounts := h.clientPool(t)
	ctx := context.Background()

	outcomes := h.fetchAll(t, pool, accounts)

	inst := outcomes[inventory.KindInstance]
	if inst.Fetched != 2 || inst.Upserted != 1 || inst.Failed != 1 {
		t.Errorf("instance outcome = %+v, want 2 fetched, 1 upserted, 1 failed", inst)
	}

	i, err := h.repo.GetInstance(ctx, testUser, "i-web")
	if err != nil {
		t.Fatalf("GetInstance() error = %v", err)
	}
	if i.EC2Platform != price.PlatformWindowsSQLWeb {
		t.Errorf("EC2Platform = %q, want %q", i.EC2Platform, price.PlatformWindowsSQLWeb)
	}
	if aws.ToString(i.ImageID) != "ami-sql" || aws.ToString(i.KeyName) != "deploy" {
		t.Errorf("references = (%v, %v), want (ami-sql, deploy)", aws.ToString(i.ImageID), aws.ToString(i.KeyName))
	}
	if i.Region != testRegion {
		t.Errorf("Region = %q, want %q", i.Region, testRegion)
	}
	if want := []string{"sg-extra", "sg-web"}; !reflect.DeepEqual(i.SecurityGroupIDs, want) {
		t.Errorf("SecurityGroupIDs = %v, want %v", i.SecurityGroupIDs, want)
	}

	if _, err := h.repo.GetInstance(ctx, testUser, "i-lost"); !errors.IsNotFound(err) {
		t.Errorf("GetInstance(i-lost) error = %v, want NotFound", err)
	}

	v, err := h.repo.GetVolume(ctx, testUser, "vol-root")
	if err != nil {
		t.Fatalf("GetVolume() error = %v", err)
	}
	if aws.ToString(v.InstanceID) != "i-web" || !v.DeleteOnTermination {
		t.Errorf("volume attachment = (%v, %v), want (i-web, true)", aws.ToString(v.InstanceID), v.DeleteOnTermination)
	}
	if aws.ToString(v.CreatedFromSnapshot) != "snap-base" {
		t.Errorf("CreatedFromSnapshot = %v, want snap-base", aws.ToString(v.CreatedFromSnapshot))
	}

	snapshots, _, err := h.repo.ListSnapshots(ctx, testUser, inventory.ListFilter{})
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	fromVolume := make(map[string]string)
	for _, s := range snapshots {
		fromVolume[s.ID] = aws.ToString(s.CreatedFromVolume)
	}
	if fromVolume["snap-base"] != "vol-old" || fromVolume["snap-backup"] != "vol-root" {
		t.Errorf("snapshot sources = %v", fromVolume)
	}

	eips, _, err := h.repo.ListElasticIPs(ctx, testUser, inventory.ListFilter{})
	if err != nil {
		t.Fatalf("ListElasticIPs() error = %v", err)
	}
	if len(eips) != 1 || aws.ToString(eips[0].InstanceID) != "i-web" {
		t.Errorf("elastic ips = %+v, want one attached to i-web", eips)
	}

	lbs, _, err := h.repo.ListLoadBalancers(ctx, testUser, inventory.ListFilter{})
	if err != nil {
		t.Fatalf("ListLoadBalancers() error = %v", err)
	}
	if len(lbs) != 1 {
		t.Fatalf("ListLoadBalancers() = %d rows, want 1", len(lbs))
	}
	lb := lbs[0]
	if !reflect.DeepEqual(lb.InstanceIDs, []string{"i-web"}) ||
		!reflect.DeepEqual(lb.SecurityGroupIDs, []string{"sg-web"}) ||
		!reflect.DeepEqual(lb.AvailabilityZones, []string{"us-east-1a"}) {
		t.Errorf("load balancer links = %v %v %v", lb.InstanceIDs, lb.SecurityGroupIDs, lb.AvailabilityZones)
	}

	tags, err := h.tags.ListForResource(ctx, inventory.KindInstance, "i-web")
	if err != nil {
		t.Fatalf("ListForResource() error = %v", err)
	}
	if len(tags) != 2 || tags[0].Region != testRegion {
		t.Errorf("instance tags = %+v, want 2 in %s", tags, testRegion)
	}
	lbTags, err := h.tags.ListForResource(ctx, inventory.KindLoadBalancer, lb.ID)
	if err != nil {
		t.Fatalf("ListForResource() error = %v", err)
	}
	if len(lbTags) != 1 || lbTags[0].Key != "env" {
		t.Errorf("load balancer tags = %+v, want env", lbTags)
	}
}

func TestFetchers_Idempotent(t *testing.T) {
	h := newHarness(t)
	populate(h.cloud.EC2(testRegion), h.cloud.ELB(testRegion))
	pool, accounts := h.clientPool(t)
	ctx := context.Background()

	first := h.fetchAll(t, pool, accounts)
	before, _, _ := h.repo.ListInstances(ctx, testUser, inventory.ListFilter{})
	second := h.fetchAll(t, pool, accounts)
	after, _, _ := h.repo.ListInstances(ctx, testUser, inventory.ListFilter{})

	for kind, o := range second {
		if o.Created != 0 {
			t.Errorf("%s second run created %d rows, want 0", kind, o.Created)
		}
		if o.Upserted != first[kind].Upserted {
			t.Errorf("%s second run upserted %d, first %d", kind, o.Upserted, first[kind].Upserted)
		}
	}
	if !reflect.DeepEqual(before, after) {
		t.Errorf("instances changed between identical runs")
	}

	var count int
	if err := h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM resource_tags").Scan(&count); err != nil {
		t.Fatalf("count tags: %v", err)
	}
	// deploy:1 sg-web:1 i-web:2 vol-root:1 lb-web:1
	if count != 6 {
		t.Errorf("resource tags = %d, want 6", count)
	}

	sgTags, _ := h.tags.ListForResource(ctx, inventory.KindSecurityGroup, "sg-web")
	instTags, _ := h.tags.ListForResource(ctx, inventory.KindInstance, "i-web")
	shared := false
	for _, a := range sgTags {
		for _, b := range instTags {
			shared = shared || a.ID == b.ID
		}
	}
	if !shared {
		t.Errorf("env=prod should be one tag row shared by the group and the instance")
	}
}

func TestFetchers_ForwardReferences(t *testing.T) {
	h := newHarness(t)
	populate(h.cloud.EC2(testRegion), h.cloud.ELB(testRegion))
	pool, accounts := h.clientPool(t)
	ctx := context.Background()
	regions := []string{testRegion}

	// Volumes first: snap-base only exists as a placeholder
	vols := NewVolumeFetcher(h.deps()).Fetch(ctx, pool, regions, accounts)
	if vols.Created != 1 {
		t.Errorf("volume outcome = %+v, want 1 created", vols)
	}
	v, err := h.repo.GetVolume(ctx, testUser, "vol-root")
	if err != nil {
		t.Fatalf("GetVolume() error = %v", err)
	}
	if v.InstanceID != nil || v.AttachTime != nil {
		t.Errorf("unknown instance should leave the attachment unset, got %v", aws.ToString(v.InstanceID))
	}

	snaps := NewSnapshotFetcher(h.deps()).Fetch(ctx, pool, regions, accounts)
	if snaps.Created != 2 {
		t.Errorf("snapshot outcome = %+v, want placeholder fill counted as created", snaps)
	}

	v, err = h.repo.GetVolume(ctx, testUser, "vol-root")
	if err != nil {
		t.Fatalf("GetVolume() error = %v", err)
	}
	if aws.ToString(v.CreatedFromSnapshot) != "snap-base" {
		t.Errorf("CreatedFromSnapshot = %v, want snap-base", aws.ToString(v.CreatedFromSnapshot))
	}

	// A later volume run without the snapshot id keeps the stored source
	h.cloud.EC2(testRegion).Volumes[0].SnapshotId = nil
	NewVolumeFetcher(h.deps()).Fetch(ctx, pool, regions, accounts)
	v, _ = h.repo.GetVolume(ctx, testUser, "vol-root")
	if aws.ToString(v.CreatedFromSnapshot) != "snap-base" {
		t.Errorf("CreatedFromSnapshot after refetch = %v, want snap-base", aws.ToString(v.CreatedFromSnapshot))
	}
}

func TestInstanceFetcher_MissingReferences(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*harness)
		wantKey  string
		wantAMI  string
		wantPlat string
	}{
		{
			name: "unknown key pair",
			mutate: func(h *harness) {
				h.cloud.EC2(testRegion).Instances[0].KeyName = aws.String("ghost")
			},
			wantAMI:  "ami-sql",
			wantPlat: price.PlatformWindowsSQLWeb,
		},
		{
			name: "unknown image",
			mutate: func(h *harness) {
				h.cloud.EC2(testRegion).Images = nil
			},
			wantKey:  "deploy",
			wantPlat: price.PlatformLinux,
		},
		{
			name: "billing platform wins over image name",
			mutate: func(h *harness) {
				h.cloud.EC2(testRegion).Instances[0].PlatformDetails = aws.String("Red Hat Enterprise Linux")
			},
			wantKey:  "deploy",
			wantAMI:  "ami-sql",
			wantPlat: price.PlatformRHEL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			populate(h.cloud.EC2(testRegion), h.cloud.ELB(testRegion))
			tt.mutate(h)
			pool, accounts := h.clientPool(t)
			h.fetchAll(t, pool, accounts)

			i, err := h.repo.GetInstance(context.Background(), testUser, "i-web")
			if err != nil {
				t.Fatalf("GetInstance() error = %v", err)
			}
			if got := aws.ToString(i.KeyName); got != tt.wantKey {
				t.Errorf("KeyName = %q, want %q", got, tt.wantKey)
			}
			if got := aws.ToString(i.ImageID); got != tt.wantAMI {
				t.Errorf("ImageID = %q, want %q", got, tt.wantAMI)
			}
			if i.EC2Platform != tt.wantPlat {
				t.Errorf("EC2Platform = %q, want %q", i.EC2Platform, tt.wantPlat)
			}
		})
	}
}

func TestFetcher_ListingFailure(t *testing.T) {
	h := newHarness(t)
	populate(h.cloud.EC2(testRegion), h.cloud.ELB(testRegion))
	h.cloud.EC2(testRegion).Fail("DescribeKeyPairs", stderrors.New("boom"))
	pool, accounts := h.clientPool(t)

	out := NewKeypairFetcher(h.deps()).Fetch(context.Background(), pool, []string{testRegion, "eu-west-1"}, accounts)
	if out.Err == nil {
		t.Fatal("Fetch() error = nil, want listing error")
	}
	// eu-west-1 is still visited after us-east-1 failed
	calls := 0
	for _, c := range h.cloud.Calls() {
		if c == "DescribeKeyPairs" {
			calls++
		}
	}
	if calls != 2 {
		t.Errorf("DescribeKeyPairs calls = %d, want 2", calls)
	}
}

func TestFetcher_CancelledContext(t *testing.T) {
	h := newHarness(t)
	populate(h.cloud.EC2(testRegion), h.cloud.ELB(testRegion))
	pool, accounts := h.clientPool(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := NewSecurityGroupFetcher(h.deps()).Fetch(ctx, pool, []string{testRegion}, accounts)
	if !stderrors.Is(out.Err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled", out.Err)
	}
	if out.Upserted != 0 {
		t.Errorf("Upserted = %d, want 0", out.Upserted)
	}
}
