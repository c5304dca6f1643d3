package ec2sync

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/pratik-mahalle/ec2inventory/internal/config"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/account"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/price"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/syncstate"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/logger"
	"github.com/pratik-mahalle/ec2inventory/internal/providers"
	"github.com/pratik-mahalle/ec2inventory/internal/repository/postgres"
	"github.com/pratik-mahalle/ec2inventory/internal/testutil"
)

const (
	testUser    int64 = 1
	testAccount       = "111122223333"
	testRegion        = "us-east-1"
)

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		ResourcesInterval:    60 * time.Minute,
		PricesInterval:       7 * 24 * time.Hour,
		Workers:              4,
		QueueSize:            16,
		CallTimeout:          5 * time.Second,
		RetryMaxTries:        1,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     time.Millisecond,
		TimestampPolicy:      config.TimestampPolicyOnSuccess,
		InProgressLease:      30 * time.Minute,
		DeniedRegions:        []string{"cn-north-1"},
	}
}

type harness struct {
	db       *sql.DB
	cloud    *testutil.FakeCloud
	repo     inventory.Repository
	regions  inventory.RegionRepository
	tags     inventory.TagRepository
	prices   price.Repository
	state    syncstate.Repository
	accounts account.Repository
	sync     config.SyncConfig
	log      *logger.Logger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewTestDB(t)
	t.Cleanup(func() { testutil.CleanupDB(db) })

	return &harness{
		db:       db,
		cloud:    testutil.NewFakeCloud(),
		repo:     postgres.NewInventoryRepository(db),
		regions:  postgres.NewRegionRepository(db),
		tags:     postgres.NewTagRepository(db),
		prices:   postgres.NewPriceRepository(db),
		state:    postgres.NewSyncStateRepository(db),
		accounts: postgres.NewAccountRepository(db, testutil.NewTestBox()),
		sync:     testSyncConfig(),
		log:      logger.Nop(),
	}
}

func (h *harness) deps() Deps {
	return Deps{
		Store:   h.repo,
		Regions: h.regions,
		Tags:    NewTagAttacher(h.tags, h.regions, h.log),
		Retry:   providers.RetryPolicyFromConfig(h.sync),
		Log:     h.log,
	}
}

func (h *harness) fetchers() []Fetcher {
	deps := h.deps()
	return []Fetcher{
		NewKeypairFetcher(deps),
		NewSecurityGroupFetcher(deps),
		NewAMIFetcher(deps),
		NewInstanceFetcher(deps),
		NewVolumeFetcher(deps),
		NewSnapshotFetcher(deps),
		NewElasticIPFetcher(deps),
		NewLoadBalancerFetcher(deps),
	}
}

// clientPool seeds the account and zones and returns a pool over the fake cloud
func (h *harness) clientPool(t *testing.T) (*providers.ClientPool, []*account.Account) {
	t.Helper()
	testutil.SeedAccount(t, h.db, testUser, testAccount, "AKIATESTKEY0001")
	testutil.SeedRegion(t, h.db, testRegion, "us-east-1a", "us-east-1b")

	accounts, err := h.accounts.ListByUser(context.Background(), testUser)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	pool, err := providers.NewClientPool(accounts, h.cloud.Factory())
	if err != nil {
		t.Fatalf("NewClientPool() error = %v", err)
	}
	return pool, accounts
}

// fetchAll runs every fetcher in stage order and returns the outcomes by kind
func (h *harness) fetchAll(t *testing.T, pool *providers.ClientPool, accounts []*account.Account) map[inventory.Kind]FetchOutcome {
	t.Helper()
	out := make(map[inventory.Kind]FetchOutcome)
	for _, f := range h.fetchers() {
		o := f.Fetch(context.Background(), pool, []string{testRegion}, accounts)
		if o.Err != nil {
			t.Fatalf("%s fetch error = %v", f.Kind(), o.Err)
		}
		out[f.Kind()] = o
	}
	return out
}

func ec2Tag(k, v string) ec2types.Tag {
	return ec2types.Tag{Key: aws.String(k), Value: aws.String(v)}
}

// populate fills a region with one resource graph:
//
//	i-web (us-east-1a, ami-sql, deploy, sg-web + sg-extra, vol-root)
//	i-lost (unknown zone, skipped)
//	vol-root <- snap-base <- vol-old (placeholder), snap-backup <- vol-root
//	203.0.113.10 -> i-web, lb-web -> i-web
func populate(f *testutil.FakeEC2, lb *testutil.FakeELB) {
	launched := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	f.Zones = []string{"us-east-1a", "us-east-1b"}
	f.KeyPairs = []ec2types.KeyPairInfo{
		{KeyName: aws.String("deploy"), KeyFingerprint: aws.String("aa:bb:cc"), Tags: []ec2types.Tag{ec2Tag("team", "ops")}},
	}
	f.SecurityGroups = []ec2types.SecurityGroup{
		{
			GroupId:     aws.String("sg-web"),
			GroupName:   aws.String("web"),
			Description: aws.String("web tier"),
			OwnerId:     aws.String(testAccount),
			VpcId:       aws.String("vpc-1"),
			Tags:        []ec2types.Tag{ec2Tag("env", "prod")},
		},
	}
	f.Images = []ec2types.Image{
		{
			ImageId:        aws.String("ami-sql"),
			Name:           aws.String("my-sql-web-ami"),
			OwnerId:        aws.String("self"),
			RootDeviceName: aws.String("/dev/sda1"),
			BlockDeviceMappings: []ec2types.BlockDeviceMapping{
				{DeviceName: aws.String("/dev/sda1"), Ebs: &ec2types.EbsBlockDevice{SnapshotId: aws.String("snap-base")}},
			},
		},
	}
	f.Instances = []ec2types.Instance{
		{
			InstanceId:   aws.String("i-web"),
			InstanceType: ec2types.InstanceTypeT3Micro,
			ImageId:      aws.String("ami-sql"),
			KeyName:      aws.String("deploy"),
			LaunchTime:   &launched,
			Placement:    &ec2types.Placement{AvailabilityZone: aws.String("us-east-1a")},
			State:        &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
			SecurityGroups: []ec2types.GroupIdentifier{
				{GroupId: aws.String("sg-web"), GroupName: aws.String("web")},
				{GroupId: aws.String("sg-extra"), GroupName: aws.String("extra")},
			},
			BlockDeviceMappings: []ec2types.InstanceBlockDeviceMapping{
				{DeviceName: aws.String("/dev/sda1"), Ebs: &ec2types.EbsInstanceBlockDevice{
					VolumeId:            aws.String("vol-root"),
					AttachTime:          &launched,
					DeleteOnTermination: aws.Bool(true),
				}},
			},
			Tags: []ec2types.Tag{ec2Tag("Name", "web-1"), ec2Tag("env", "prod")},
		},
		{
			InstanceId:   aws.String("i-lost"),
			InstanceType: ec2types.InstanceTypeT3Micro,
			Placement:    &ec2types.Placement{AvailabilityZone: aws.String("zz-nowhere-1a")},
			State:        &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning},
		},
	}
	f.Volumes = []ec2types.Volume{
		{
			VolumeId:         aws.String("vol-root"),
			AvailabilityZone: aws.String("us-east-1a"),
			Size:             aws.Int32(8),
			VolumeType:       ec2types.VolumeTypeGp3,
			State:            ec2types.VolumeStateInUse,
			SnapshotId:       aws.String("snap-base"),
			Attachments: []ec2types.VolumeAttachment{
				{InstanceId: aws.String("i-web"), AttachTime: &launched, DeleteOnTermination: aws.Bool(true)},
			},
			Tags: []ec2types.Tag{ec2Tag("env", "prod")},
		},
	}
	f.Snapshots = []ec2types.Snapshot{
		{SnapshotId: aws.String("snap-base"), VolumeId: aws.String("vol-old"), VolumeSize: aws.Int32(8), State: ec2types.SnapshotStateCompleted},
		{SnapshotId: aws.String("snap-backup"), VolumeId: aws.String("vol-root"), VolumeSize: aws.Int32(8), State: ec2types.SnapshotStateCompleted},
	}
	f.Addresses = []ec2types.Address{
		{PublicIp: aws.String("203.0.113.10"), AllocationId: aws.String("eipalloc-1"), InstanceId: aws.String("i-web"), Domain: ec2types.DomainTypeVpc},
	}

	lb.LoadBalancers = []elbtypes.LoadBalancer{
		{
			LoadBalancerName:  aws.String("lb-web"),
			LoadBalancerArn:   aws.String("arn:lb-web"),
			DNSName:           aws.String("lb-web.example.com"),
			Scheme:            elbtypes.LoadBalancerSchemeEnumInternetFacing,
			Type:              elbtypes.LoadBalancerTypeEnumApplication,
			AvailabilityZones: []elbtypes.AvailabilityZone{{ZoneName: aws.String("us-east-1a")}},
			SecurityGroups:    []string{"sg-web"},
		},
	}
	lb.TargetGroups = []elbtypes.TargetGroup{
		{TargetGroupArn: aws.String("arn:tg-web"), LoadBalancerArns: []string{"arn:lb-web"}, TargetType: elbtypes.TargetTypeEnumInstance},
	}
	lb.TargetHealth["arn:tg-web"] = []string{"i-web", "i-web"}
	lb.Tags["arn:lb-web"] = map[string]string{"env": "prod"}
}

func providerCreds() providers.Credentials {
	return providers.Credentials{AccessKeyID: "AKIATESTKEY0001", SecretAccessKey: "secret-" + testAccount}
}
