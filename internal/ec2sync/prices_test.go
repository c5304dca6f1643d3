package ec2sync

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/price"
	"github.com/pratik-mahalle/ec2inventory/internal/testutil"
)

func TestPriceSynchronizer_ApplyAndMarkUpdated(t *testing.T) {
	h := newHarness(t)
	populate(h.cloud.EC2(testRegion), h.cloud.ELB(testRegion))
	pool, accounts := h.clientPool(t)
	h.fetchAll(t, pool, accounts)

	h.cloud.Pricing.PriceList = []string{
		testutil.PriceEntry("t3.micro", "Windows", "SQL Web", testRegion, 0.0521),
		testutil.PriceEntry("t3.micro", "Linux", "NA", testRegion, 0.0104),
		testutil.PriceEntry("t3.micro", "Linux", "NA", "cn-north-1", 0.02),
		testutil.PriceEntry("t3.micro", "Linux", "Some Other Sw", testRegion, 0.5),
		`{"product": `,
	}

	s := NewPriceSynchronizer(h.prices, h.repo, h.state, h.cloud.PricingFactory(), h.sync, h.log)
	fixed := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	ctx := context.Background()
	res, err := s.Apply(ctx, providerCreds())
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	want := PriceSyncResult{Applied: 2, Denied: 1, Skipped: 1, Failed: 1, Attached: 1, Complete: true}
	if res != want {
		t.Errorf("Apply() = %+v, want %+v", res, want)
	}
	if err := s.MarkUpdated(ctx, testUser); err != nil {
		t.Fatalf("MarkUpdated() error = %v", err)
	}

	i, err := h.repo.GetInstance(ctx, testUser, "i-web")
	if err != nil {
		t.Fatalf("GetInstance() error = %v", err)
	}
	if i.HourlyPrice == nil || *i.HourlyPrice != 0.052 {
		t.Errorf("HourlyPrice = %v, want 0.052", i.HourlyPrice)
	}

	st, err := h.state.Get(ctx, testUser)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !st.PricesLastUpdated.Equal(fixed) {
		t.Errorf("PricesLastUpdated = %v, want %v", st.PricesLastUpdated, fixed)
	}
}

func TestPriceSynchronizer_AttachNeverClears(t *testing.T) {
	h := newHarness(t)
	populate(h.cloud.EC2(testRegion), h.cloud.ELB(testRegion))
	pool, accounts := h.clientPool(t)
	h.fetchAll(t, pool, accounts)
	ctx := context.Background()

	p, err := h.prices.Upsert(ctx, price.Quote{
		Region: testRegion, InstanceType: "t3.micro", Platform: price.PlatformWindowsSQLWeb, HourlyPrice: 0.0521,
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	s := NewPriceSynchronizer(h.prices, h.repo, h.state, h.cloud.PricingFactory(), h.sync, h.log)
	if n, err := s.AttachInstancePrices(ctx); err != nil || n != 1 {
		t.Fatalf("AttachInstancePrices() = %d, %v", n, err)
	}

	// The instance now runs on a platform without a price
	h.cloud.EC2(testRegion).Instances[0].PlatformDetails = aws.String("SUSE Linux")
	h.fetchAll(t, pool, accounts)

	if n, err := s.AttachInstancePrices(ctx); err != nil || n != 0 {
		t.Fatalf("AttachInstancePrices() = %d, %v, want 0", n, err)
	}
	i, err := h.repo.GetInstance(ctx, testUser, "i-web")
	if err != nil {
		t.Fatalf("GetInstance() error = %v", err)
	}
	if aws.ToString(i.PriceID) != p.ID {
		t.Errorf("PriceID = %v, want the previous price %s", aws.ToString(i.PriceID), p.ID)
	}
}

func TestPriceSynchronizer_FeedFailure(t *testing.T) {
	h := newHarness(t)
	h.clientPool(t)
	h.cloud.Pricing.Err = stderrors.New("pricing unavailable")

	s := NewPriceSynchronizer(h.prices, h.repo, h.state, h.cloud.PricingFactory(), h.sync, h.log)
	ctx := context.Background()

	res, err := s.Apply(ctx, providerCreds())
	if err == nil {
		t.Fatal("Apply() error = nil, want feed error")
	}
	if res.Complete {
		t.Errorf("Complete = true after a failed feed")
	}

	st, err := h.state.Get(ctx, testUser)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if st.PricesLastUpdated.Unix() != 0 {
		t.Errorf("PricesLastUpdated = %v, want the epoch", st.PricesLastUpdated)
	}
}
