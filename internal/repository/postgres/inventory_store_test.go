package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/price"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
	"github.com/pratik-mahalle/ec2inventory/internal/testutil"
)

const (
	testUser    = int64(1)
	testAccount = "111122223333"
	testRegion  = "eu-west-1"
	testZone    = "eu-west-1a"
)

func newStoreFixture(t *testing.T) (*sql.DB, inventory.Repository) {
	t.Helper()
	db := testutil.NewTestDB(t)
	t.Cleanup(func() { testutil.CleanupDB(db) })
	testutil.SeedAccount(t, db, testUser, testAccount, "AKIATEST0000000001")
	testutil.SeedRegion(t, db, testRegion, testZone)
	return db, NewInventoryRepository(db)
}

func strPtr(s string) *string { return &s }

func TestInventoryRepository_PlaceholderFilledIn(t *testing.T) {
	_, repo := newStoreFixture(t)
	ctx := context.Background()

	if err := repo.EnsureSnapshot(ctx, "snap-1", testAccount, testRegion); err != nil {
		t.Fatalf("EnsureSnapshot() error = %v", err)
	}
	if err := repo.EnsureSnapshot(ctx, "snap-1", testAccount, testRegion); err != nil {
		t.Fatalf("EnsureSnapshot() twice error = %v", err)
	}

	snaps, total, err := repo.ListSnapshots(ctx, testUser, inventory.ListFilter{})
	if err != nil || total != 1 {
		t.Fatalf("ListSnapshots() = %d, %v, want the placeholder listed", total, err)
	}
	if snaps[0].Status != "" {
		t.Errorf("placeholder status = %q, want empty", snaps[0].Status)
	}

	created, err := repo.UpsertSnapshot(ctx, &inventory.Snapshot{
		ID: "snap-1", AccountID: testAccount, Region: testRegion, Size: 8, Status: "completed",
	})
	if err != nil {
		t.Fatalf("UpsertSnapshot() error = %v", err)
	}
	if !created {
		t.Error("UpsertSnapshot() filling a placeholder reported an update, want created")
	}

	created, err = repo.UpsertSnapshot(ctx, &inventory.Snapshot{
		ID: "snap-1", AccountID: testAccount, Region: testRegion, Size: 8, Status: "completed",
	})
	if err != nil || created {
		t.Errorf("UpsertSnapshot() again = %v, %v, want an update", created, err)
	}
}

func TestInventoryRepository_InstanceKeepsReferences(t *testing.T) {
	_, repo := newStoreFixture(t)
	ctx := context.Background()

	if _, err := repo.UpsertAMI(ctx, &inventory.AMI{ID: "ami-1", AccountID: testAccount, Region: testRegion, State: "available"}); err != nil {
		t.Fatalf("UpsertAMI() error = %v", err)
	}

	inst := &inventory.Instance{
		ID: "i-1", AccountID: testAccount, AvailabilityZone: testZone, InstanceType: "t3.micro",
		EC2Platform: price.PlatformLinux, State: inventory.StateRunning, PublicDNSName: "ec2-1.example",
		ImageID: strPtr("ami-1"),
	}
	created, err := repo.UpsertInstance(ctx, inst)
	if err != nil || !created {
		t.Fatalf("UpsertInstance() = %v, %v, want created", created, err)
	}

	// A later fetch without the image reference keeps the stored one
	inst.ImageID = nil
	inst.InstanceType = "t3.small"
	if created, err := repo.UpsertInstance(ctx, inst); err != nil || created {
		t.Fatalf("UpsertInstance() again = %v, %v, want an update", created, err)
	}

	got, err := repo.GetInstance(ctx, testUser, "i-1")
	if err != nil {
		t.Fatalf("GetInstance() error = %v", err)
	}
	if got.ImageID == nil || *got.ImageID != "ami-1" {
		t.Errorf("ImageID = %v, want ami-1 kept", got.ImageID)
	}
	if got.InstanceType != "t3.small" || got.Region != testRegion {
		t.Errorf("GetInstance() = %+v", got)
	}

	if _, err := repo.GetInstance(ctx, 2, "i-1"); !errors.IsNotFound(err) {
		t.Errorf("GetInstance() by another user error = %v, want NotFound", err)
	}

	if err := repo.MarkInstanceStopped(ctx, "i-1"); err != nil {
		t.Fatalf("MarkInstanceStopped() error = %v", err)
	}
	got, _ = repo.GetInstance(ctx, testUser, "i-1")
	if got.State != inventory.StateStopped || got.PublicDNSName != "" {
		t.Errorf("stopped instance = %+v, want stopped without public DNS", got)
	}
}

func TestInventoryRepository_MissingZone(t *testing.T) {
	_, repo := newStoreFixture(t)

	_, err := repo.UpsertInstance(context.Background(), &inventory.Instance{
		ID: "i-lost", AccountID: testAccount, AvailabilityZone: "mars-1a", State: inventory.StateRunning,
	})
	if !errors.IsMissingDependency(err) {
		t.Errorf("UpsertInstance() unknown zone error = %v, want missing dependency", err)
	}
}

func TestInventoryRepository_DeleteInstanceDetachesVolumes(t *testing.T) {
	_, repo := newStoreFixture(t)
	ctx := context.Background()

	if _, err := repo.UpsertInstance(ctx, &inventory.Instance{
		ID: "i-1", AccountID: testAccount, AvailabilityZone: testZone, State: inventory.StateRunning,
	}); err != nil {
		t.Fatalf("UpsertInstance() error = %v", err)
	}
	for _, a := range []inventory.Attachment{
		{VolumeID: "vol-root", InstanceID: "i-1", DeleteOnTermination: true},
		{VolumeID: "vol-data", InstanceID: "i-1"},
	} {
		if err := repo.AttachVolume(ctx, testAccount, a); err != nil {
			t.Fatalf("AttachVolume(%s) error = %v", a.VolumeID, err)
		}
	}

	ids, err := repo.ListDeleteOnTermination(ctx, "i-1")
	if err != nil || len(ids) != 1 || ids[0] != "vol-root" {
		t.Fatalf("ListDeleteOnTermination() = %v, %v, want [vol-root]", ids, err)
	}

	if err := repo.DeleteInstance(ctx, "i-1"); err != nil {
		t.Fatalf("DeleteInstance() error = %v", err)
	}
	vol, err := repo.GetVolume(ctx, testUser, "vol-data")
	if err != nil {
		t.Fatalf("GetVolume() error = %v", err)
	}
	if vol.InstanceID != nil {
		t.Errorf("volume still attached to %s", *vol.InstanceID)
	}
	if err := repo.DeleteInstance(ctx, "i-1"); !errors.IsNotFound(err) {
		t.Errorf("DeleteInstance() twice error = %v, want NotFound", err)
	}
}

func TestInventoryRepository_LoadBalancerSurrogateID(t *testing.T) {
	_, repo := newStoreFixture(t)
	ctx := context.Background()

	lb := &inventory.LoadBalancer{AccountID: testAccount, Region: testRegion, Name: "web", Type: "application"}
	created, err := repo.UpsertLoadBalancer(ctx, lb)
	if err != nil || !created || lb.ID == "" {
		t.Fatalf("UpsertLoadBalancer() = %v, %v, id %q", created, err, lb.ID)
	}
	first := lb.ID

	again := &inventory.LoadBalancer{AccountID: testAccount, Region: testRegion, Name: "web", Type: "network"}
	created, err = repo.UpsertLoadBalancer(ctx, again)
	if err != nil || created {
		t.Fatalf("UpsertLoadBalancer() again = %v, %v, want an update", created, err)
	}
	if again.ID != first {
		t.Errorf("surrogate id changed from %s to %s", first, again.ID)
	}

	if err := repo.AddLoadBalancerLinks(ctx, first, nil, nil, []string{testZone}); err != nil {
		t.Fatalf("AddLoadBalancerLinks() error = %v", err)
	}
	if err := repo.AddLoadBalancerLinks(ctx, first, nil, nil, []string{testZone}); err != nil {
		t.Errorf("AddLoadBalancerLinks() twice error = %v, want additive no-op", err)
	}

	lbs, total, err := repo.ListLoadBalancers(ctx, testUser, inventory.ListFilter{})
	if err != nil || total != 1 {
		t.Fatalf("ListLoadBalancers() = %d, %v", total, err)
	}
	if lbs[0].Type != "network" || len(lbs[0].AvailabilityZones) != 1 {
		t.Errorf("ListLoadBalancers() = %+v", lbs[0])
	}
}

func TestInventoryRepository_AccountDeletionCascades(t *testing.T) {
	db, repo := newStoreFixture(t)
	ctx := context.Background()

	if _, err := repo.UpsertKeypair(ctx, &inventory.Keypair{KeyName: "deploy", AccountID: testAccount, Region: testRegion}); err != nil {
		t.Fatalf("UpsertKeypair() error = %v", err)
	}
	if _, err := repo.UpsertInstance(ctx, &inventory.Instance{
		ID: "i-1", AccountID: testAccount, AvailabilityZone: testZone, State: inventory.StateRunning,
	}); err != nil {
		t.Fatalf("UpsertInstance() error = %v", err)
	}

	if err := NewAccountRepository(db, testutil.NewTestBox()).Delete(ctx, testAccount); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if found, _ := repo.KeypairExists(ctx, testAccount, testRegion, "deploy"); found {
		t.Error("key pair survived account deletion")
	}
	if found, _ := repo.InstanceExists(ctx, "i-1"); found {
		t.Error("instance survived account deletion")
	}
}

func TestInventoryRepository_Prices(t *testing.T) {
	db, repo := newStoreFixture(t)
	ctx := context.Background()
	prices := NewPriceRepository(db)

	p, err := prices.Upsert(ctx, price.Quote{Region: testRegion, InstanceType: "t3.micro", Platform: price.PlatformLinux, HourlyPrice: 0.01041})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if p.HourlyPrice != 0.010 {
		t.Errorf("HourlyPrice = %v, want rounded to 0.010", p.HourlyPrice)
	}

	again, err := prices.Upsert(ctx, price.Quote{Region: testRegion, InstanceType: "t3.micro", Platform: price.PlatformLinux, HourlyPrice: 0.0114})
	if err != nil {
		t.Fatalf("Upsert() again error = %v", err)
	}
	if again.ID != p.ID {
		t.Errorf("price id changed from %s to %s", p.ID, again.ID)
	}

	if _, err := repo.UpsertInstance(ctx, &inventory.Instance{
		ID: "i-1", AccountID: testAccount, AvailabilityZone: testZone, InstanceType: "t3.micro",
		EC2Platform: price.PlatformLinux, State: inventory.StateRunning,
	}); err != nil {
		t.Fatalf("UpsertInstance() error = %v", err)
	}
	priced, err := repo.ListPricedInstances(ctx)
	if err != nil || len(priced) != 1 {
		t.Fatalf("ListPricedInstances() = %v, %v", priced, err)
	}
	if err := repo.SetInstancePrice(ctx, "i-1", p.ID); err != nil {
		t.Fatalf("SetInstancePrice() error = %v", err)
	}

	got, _ := repo.GetInstance(ctx, testUser, "i-1")
	if got.HourlyPrice == nil || *got.HourlyPrice != 0.011 {
		t.Errorf("HourlyPrice = %v, want 0.011", got.HourlyPrice)
	}
	if highest, err := prices.Max(ctx); err != nil || highest != 0.011 {
		t.Errorf("Max() = %v, %v, want 0.011", highest, err)
	}
}

func TestTagRepository_SharedTags(t *testing.T) {
	db, _ := newStoreFixture(t)
	ctx := context.Background()
	tags := NewTagRepository(db)

	a, err := tags.GetOrCreate(ctx, "env", "prod", testAccount, testRegion)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	b, err := tags.GetOrCreate(ctx, "env", "prod", testAccount, testRegion)
	if err != nil || b.ID != a.ID {
		t.Fatalf("GetOrCreate() again = %v, %v, want the same row %s", b, err, a.ID)
	}

	for _, id := range []string{"vol-1", "vol-2", "vol-1"} {
		if err := tags.Attach(ctx, a.ID, inventory.KindVolume, id); err != nil {
			t.Fatalf("Attach(%s) error = %v", id, err)
		}
	}
	list, err := tags.ListForResource(ctx, inventory.KindVolume, "vol-1")
	if err != nil || len(list) != 1 || list[0].Key != "env" {
		t.Errorf("ListForResource() = %v, %v, want one env tag", list, err)
	}
}

func TestRegionRepository_SaveRegion(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	ctx := context.Background()
	repo := NewRegionRepository(db)
	for i := 0; i < 2; i++ {
		if err := repo.SaveRegion(ctx, "us-east-1", []string{"us-east-1a", "us-east-1b"}); err != nil {
			t.Fatalf("SaveRegion() pass %d error = %v", i, err)
		}
	}

	count, err := repo.CountRegions(ctx)
	if err != nil || count != 1 {
		t.Errorf("CountRegions() = %d, %v, want 1", count, err)
	}
	az, err := repo.GetAvailabilityZone(ctx, "us-east-1b")
	if err != nil || az.Region != "us-east-1" {
		t.Errorf("GetAvailabilityZone() = %v, %v", az, err)
	}
	if _, err := repo.GetAvailabilityZone(ctx, "us-east-1z"); !errors.IsNotFound(err) {
		t.Errorf("GetAvailabilityZone() unknown error = %v, want NotFound", err)
	}
}
