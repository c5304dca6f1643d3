package ec2sync

import (
	"context"
	"time"

	"github.com/pratik-mahalle/ec2inventory/internal/config"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/price"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/syncstate"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/logger"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/metrics"
	"github.com/pratik-mahalle/ec2inventory/internal/providers"
)

// PriceSyncResult counts what a price sync did
type PriceSyncResult struct {
	Applied  int  `json:"applied"`
	Denied   int  `json:"denied"`
	Skipped  int  `json:"skipped"`
	Failed   int  `json:"failed"`
	Attached int  `json:"attached"`
	Complete bool `json:"complete"`
}

// PriceSynchronizer applies the public on-demand price list and links instances
// to their price
type PriceSynchronizer struct {
	prices  price.Repository
	store   inventory.Store
	state   syncstate.Repository
	factory providers.PricingFactory
	sync    config.SyncConfig
	retry   providers.RetryPolicy
	log     *logger.Logger
	now     func() time.Time
}

// NewPriceSynchronizer creates a PriceSynchronizer
func NewPriceSynchronizer(
	prices price.Repository,
	store inventory.Store,
	state syncstate.Repository,
	factory providers.PricingFactory,
	sync config.SyncConfig,
	log *logger.Logger,
) *PriceSynchronizer {
	return &PriceSynchronizer{
		prices:  prices,
		store:   store,
		state:   state,
		factory: factory,
		sync:    sync,
		retry:   providers.RetryPolicyFromConfig(sync),
		log:     log.Component("prices"),
		now:     time.Now,
	}
}

// Apply reads the price feed with creds, stores every quote outside the deny-list
// and runs AttachInstancePrices. Prices are shared by all tenants.
func (s *PriceSynchronizer) Apply(ctx context.Context, creds providers.Credentials) (PriceSyncResult, error) {
	var res PriceSyncResult

	client, err := s.factory(ctx, creds)
	if err != nil {
		return res, err
	}

	feedErr := providers.NewPriceFeed(client, s.retry).Each(ctx, func(raw string) {
		s.apply(ctx, raw, &res)
	})
	if feedErr != nil {
		s.log.ErrorWithErr(feedErr, "Price feed ended early")
	}

	attached, err := s.AttachInstancePrices(ctx)
	res.Attached = attached
	if err != nil {
		return res, err
	}

	s.log.WithFields(map[string]interface{}{
		"applied":  res.Applied,
		"denied":   res.Denied,
		"skipped":  res.Skipped,
		"failed":   res.Failed,
		"attached": res.Attached,
	}).Info("Price sync finished")

	if feedErr != nil {
		return res, feedErr
	}
	res.Complete = true
	return res, nil
}

// MarkUpdated advances the prices timestamp of a user. Callers only invoke it
// after Apply read the whole feed.
func (s *PriceSynchronizer) MarkUpdated(ctx context.Context, userID int64) error {
	return s.state.MarkPricesUpdated(ctx, userID, s.now())
}

func (s *PriceSynchronizer) apply(ctx context.Context, raw string, res *PriceSyncResult) {
	q, ok, err := providers.ParseProduct(raw)
	switch {
	case err != nil:
		res.Failed++
		metrics.RecordPrice("failed")
		s.log.WarnWithErr(err, "Skipping unreadable price entry")
		return
	case !ok:
		res.Skipped++
		return
	case s.sync.IsDenied(q.Region):
		res.Denied++
		metrics.RecordPrice("denied")
		return
	}

	if _, err := s.prices.Upsert(ctx, q); err != nil {
		res.Failed++
		metrics.RecordPrice("failed")
		s.log.WithFields(map[string]interface{}{
			"instance_type": q.InstanceType,
			"platform":      q.Platform,
			"region":        q.Region,
		}).WarnWithErr(err, "Failed to store price")
		return
	}
	res.Applied++
	metrics.RecordPrice("applied")
}

// AttachInstancePrices points every instance at the price of its type, platform
// and region. Instances without a matching price keep their current reference.
func (s *PriceSynchronizer) AttachInstancePrices(ctx context.Context) (int, error) {
	all, err := s.prices.All(ctx)
	if err != nil {
		return 0, err
	}
	instances, err := s.store.ListPricedInstances(ctx)
	if err != nil {
		return 0, err
	}

	attached := 0
	for _, inst := range instances {
		p, ok := all[price.Key{InstanceType: inst.InstanceType, Platform: inst.EC2Platform, Region: inst.Region}]
		if !ok {
			continue
		}
		if err := s.store.SetInstancePrice(ctx, inst.ID, p.ID); err != nil {
			s.log.With("resource_id", inst.ID).WarnWithErr(err, "Failed to attach price")
			continue
		}
		attached++
	}
	return attached, nil
}
