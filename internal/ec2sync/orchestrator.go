package ec2sync

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/pratik-mahalle/ec2inventory/internal/config"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/account"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/syncstate"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/logger"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/metrics"
	"github.com/pratik-mahalle/ec2inventory/internal/providers"
	"github.com/pratik-mahalle/ec2inventory/internal/worker"
)

// Run scopes
const (
	ScopeResources = "resources"
	ScopePrices    = "prices"
)

// Run triggers
const (
	TriggerStale  = "stale"
	TriggerManual = "manual"
)

// Stages lists the resource kinds of each fetch stage. A stage starts once every
// kind of the previous stage has finished.
var Stages = [][]inventory.Kind{
	{inventory.KindKeypair, inventory.KindSecurityGroup, inventory.KindAMI},
	{inventory.KindInstance},
	{inventory.KindVolume, inventory.KindSnapshot, inventory.KindElasticIP, inventory.KindLoadBalancer},
}

// Run is a background sync run
type Run struct {
	ID        string           `json:"id"`
	UserID    int64            `json:"user_id"`
	Scope     string           `json:"scope"`
	Trigger   string           `json:"trigger"`
	StartedAt time.Time        `json:"started_at"`
	Outcomes  []FetchOutcome   `json:"-"`
	Prices    *PriceSyncResult `json:"prices,omitempty"`

	mu   sync.Mutex
	done chan struct{}
	err  error
}

func newRun(userID int64, scope, trigger string, now time.Time) *Run {
	return &Run{
		ID:        uuid.New().String(),
		UserID:    userID,
		Scope:     scope,
		Trigger:   trigger,
		StartedAt: now,
		done:      make(chan struct{}),
	}
}

func (r *Run) record(out FetchOutcome) {
	r.mu.Lock()
	r.Outcomes = append(r.Outcomes, out)
	r.mu.Unlock()
}

func (r *Run) setPrices(res PriceSyncResult) {
	r.mu.Lock()
	r.Prices = &res
	r.mu.Unlock()
}

func (r *Run) finish(err error) {
	r.err = err
	close(r.done)
}

// Done is closed when the run has finished
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Err returns the run error once Done is closed
func (r *Run) Err() error {
	return r.err
}

// Wait blocks until the run finishes or ctx is done
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results returns the outcomes recorded so far and the price result, if any
func (r *Run) Results() ([]FetchOutcome, *PriceSyncResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]FetchOutcome(nil), r.Outcomes...), r.Prices
}

// Outcome returns the outcome of one kind, if it ran
func (r *Run) Outcome(kind inventory.Kind) (FetchOutcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.Outcomes {
		if o.Kind == kind {
			return o, true
		}
	}
	return FetchOutcome{}, false
}

// Status describes the sync state of a user
type Status struct {
	State          *syncstate.State `json:"state"`
	ResourcesDue   bool             `json:"resources_due"`
	PricesDue      bool             `json:"prices_due"`
	InProgress     bool             `json:"in_progress"`
	Running        []*Run           `json:"running"`
	PricesInterval time.Duration    `json:"prices_interval"`
}

// Orchestrator decides when resources and prices are refreshed and runs the
// fetchers in dependency order on the worker pool
type Orchestrator struct {
	accounts  account.Repository
	regions   inventory.RegionRepository
	state     syncstate.Repository
	discovery *RegionDiscovery
	prices    *PriceSynchronizer
	fetchers  map[inventory.Kind]Fetcher
	pool      *worker.Pool
	factory   providers.Factory
	sync      config.SyncConfig
	logger    *logger.Logger
	now       func() time.Time
	base      context.Context

	flight singleflight.Group

	mu       sync.Mutex
	inflight map[string]*Run
	wg       sync.WaitGroup
}

// Options wires an Orchestrator
type Options struct {
	Accounts  account.Repository
	Regions   inventory.RegionRepository
	State     syncstate.Repository
	Discovery *RegionDiscovery
	Prices    *PriceSynchronizer
	Fetchers  []Fetcher
	Pool      *worker.Pool
	Factory   providers.Factory
	Sync      config.SyncConfig
	Logger    *logger.Logger
	// Base is the parent context of every run; runs outlive the triggering request
	Base context.Context
	Now  func() time.Time
}

// NewOrchestrator creates an Orchestrator
func NewOrchestrator(opts Options) *Orchestrator {
	fetchers := make(map[inventory.Kind]Fetcher, len(opts.Fetchers))
	for _, f := range opts.Fetchers {
		fetchers[f.Kind()] = f
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Base == nil {
		opts.Base = context.Background()
	}
	return &Orchestrator{
		accounts:  opts.Accounts,
		regions:   opts.Regions,
		state:     opts.State,
		discovery: opts.Discovery,
		prices:    opts.Prices,
		fetchers:  fetchers,
		pool:      opts.Pool,
		factory:   opts.Factory,
		sync:      opts.Sync,
		logger:    opts.Logger.Component("orchestrator"),
		now:       opts.Now,
		base:      opts.Base,
		inflight:  make(map[string]*Run),
	}
}

// EnsureFresh starts the refresh a user's data needs, if any. Resources take
// precedence and are always followed by a price sync. It returns nil when nothing
// is due or the due run is already in progress elsewhere.
func (o *Orchestrator) EnsureFresh(ctx context.Context, userID int64) (*Run, error) {
	pool, err := o.prepare(ctx, userID)
	if err != nil {
		return nil, err
	}

	st, err := o.state.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := o.now()

	if IsDue(now, st.ResourcesLastUpdated, st.ResourcesUpdateInterval) {
		claimed, err := o.claim(ctx, st, now, false)
		if err != nil || !claimed {
			return o.running(ScopeResources, userID), err
		}
		return o.start(userID, ScopeResources, TriggerStale, pool), nil
	}

	if IsDue(now, st.PricesLastUpdated, o.sync.PricesInterval) {
		return o.start(userID, ScopePrices, TriggerStale, pool), nil
	}
	return nil, nil
}

// RefreshResources starts a resources run regardless of staleness
func (o *Orchestrator) RefreshResources(ctx context.Context, userID int64) (*Run, error) {
	pool, err := o.prepare(ctx, userID)
	if err != nil {
		return nil, err
	}
	if run := o.running(ScopeResources, userID); run != nil {
		return run, nil
	}

	st, err := o.state.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	claimed, err := o.claim(ctx, st, o.now(), true)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, errors.Conflict("A resources sync is already running for this user")
	}
	return o.start(userID, ScopeResources, TriggerManual, pool), nil
}

// RefreshPrices starts a price run regardless of staleness
func (o *Orchestrator) RefreshPrices(ctx context.Context, userID int64) (*Run, error) {
	pool, err := o.prepare(ctx, userID)
	if err != nil {
		return nil, err
	}
	return o.start(userID, ScopePrices, TriggerManual, pool), nil
}

// Status reports the timestamps, due flags and running syncs of a user
func (o *Orchestrator) Status(ctx context.Context, userID int64) (*Status, error) {
	st, err := o.state.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := o.now()

	status := &Status{
		State:          st,
		ResourcesDue:   IsDue(now, st.ResourcesLastUpdated, st.ResourcesUpdateInterval),
		PricesDue:      IsDue(now, st.PricesLastUpdated, o.sync.PricesInterval),
		InProgress:     st.InProgress(now, o.sync.InProgressLease),
		PricesInterval: o.sync.PricesInterval,
		Running:        []*Run{},
	}
	for _, scope := range []string{ScopeResources, ScopePrices} {
		if run := o.running(scope, userID); run != nil {
			status.Running = append(status.Running, run)
			status.InProgress = true
		}
	}
	return status, nil
}

// SetResourcesInterval changes how often a user's resources are refreshed
func (o *Orchestrator) SetResourcesInterval(ctx context.Context, userID int64, interval time.Duration) error {
	if interval < time.Minute {
		return errors.BadRequest("The resources interval must be at least one minute")
	}
	return o.state.SetResourcesInterval(ctx, userID, interval)
}

// Wait blocks until every started run has finished
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// prepare builds the client pool of a user and seeds the regions on first use
func (o *Orchestrator) prepare(ctx context.Context, userID int64) (*providers.ClientPool, error) {
	accounts, err := o.accounts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	pool, err := providers.NewClientPool(accounts, o.factory)
	if err != nil {
		return nil, err
	}

	count, err := o.regions.CountRegions(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return pool, nil
	}

	_, err, _ = o.flight.Do("regions", func() (interface{}, error) {
		// a previous flight may have finished since the count above
		if n, err := o.regions.CountRegions(ctx); err != nil || n > 0 {
			return n, err
		}
		return o.discovery.Discover(ctx, pool)
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// claim applies the timestamp policy before a resources run. The optimistic policy
// moves resources_last_updated to now; on_success takes the persisted claim.
func (o *Orchestrator) claim(ctx context.Context, st *syncstate.State, now time.Time, force bool) (bool, error) {
	if o.sync.TimestampPolicy == config.TimestampPolicyOptimistic {
		advanced, err := o.state.AdvanceResources(ctx, st.UserID, st.ResourcesLastUpdated, now)
		if err != nil {
			return false, err
		}
		return advanced || force, nil
	}
	return o.state.ClaimResources(ctx, st.UserID, now, o.sync.InProgressLease)
}

func flightKey(scope string, userID int64) string {
	return fmt.Sprintf("%s:%d", scope, userID)
}

func (o *Orchestrator) running(scope string, userID int64) *Run {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inflight[flightKey(scope, userID)]
}

// start launches a run in the background, or returns the run of the same scope
// already in flight for the user
func (o *Orchestrator) start(userID int64, scope, trigger string, pool *providers.ClientPool) *Run {
	key := flightKey(scope, userID)

	o.mu.Lock()
	if run, ok := o.inflight[key]; ok {
		o.mu.Unlock()
		return run
	}
	run := newRun(userID, scope, trigger, o.now())
	o.inflight[key] = run
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()
		err := o.execute(run, pool)

		o.mu.Lock()
		delete(o.inflight, key)
		o.mu.Unlock()
		run.finish(err)
	}()
	return run
}

func (o *Orchestrator) execute(run *Run, pool *providers.ClientPool) error {
	ctx := o.base
	log := o.logger.WithFields(map[string]interface{}{
		"run_id":  run.ID,
		"user_id": run.UserID,
		"scope":   run.Scope,
		"trigger": run.Trigger,
	})
	log.Info("Sync run started")
	defer metrics.SyncRunStarted()()

	start := time.Now()
	var err error
	if run.Scope == ScopeResources {
		err = o.syncResources(ctx, run, pool, log)
	}
	if priceErr := o.syncPrices(ctx, run, pool); priceErr != nil {
		err = stderrors.Join(err, priceErr)
	}

	status := "success"
	if err != nil {
		status = "error"
		log.ErrorWithErr(err, "Sync run finished with errors")
	} else {
		log.Infof("Sync run finished in %s", time.Since(start).Round(time.Millisecond))
	}
	metrics.RecordSyncRun(run.Scope, status, time.Since(start))
	return err
}

// syncResources runs the fetch stages. Every stage runs even when an earlier one
// failed; records whose dependencies are missing are skipped individually.
func (o *Orchestrator) syncResources(ctx context.Context, run *Run, pool *providers.ClientPool, log *logger.Logger) error {
	regions, err := o.discovery.Allowed(ctx)
	if err != nil {
		o.release(ctx, run.UserID, false, log)
		return err
	}
	accounts := pool.Accounts()

	var (
		mu   sync.Mutex
		errs []error
	)
	for i, stage := range Stages {
		var g errgroup.Group
		for _, kind := range stage {
			f, ok := o.fetchers[kind]
			if !ok {
				continue
			}
			future := o.pool.Submit(ctx, "fetch:"+string(kind), func(ctx context.Context) error {
				out := f.Fetch(ctx, pool, regions, accounts)
				run.record(out)
				return out.Err
			})
			g.Go(func() error {
				err := future.Wait(ctx)
				if err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
				return err
			})
		}
		if err := g.Wait(); err != nil {
			log.With("stage", i+1).ErrorWithErr(err, "Fetch stage finished with errors")
		}
	}

	err = stderrors.Join(errs...)
	completed := err == nil || onlyAuthFailures(err)
	if err != nil && completed {
		log.WarnWithErr(err, "Only credential failures, releasing the claim as completed")
	}
	o.release(ctx, run.UserID, completed, log)
	return err
}

// onlyAuthFailures reports whether every error joined into err is a provider
// authentication failure
func onlyAuthFailures(err error) bool {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if !onlyAuthFailures(e) {
				return false
			}
		}
		return true
	}
	return errors.IsProviderAuth(err)
}

func (o *Orchestrator) release(ctx context.Context, userID int64, succeeded bool, log *logger.Logger) {
	if o.sync.TimestampPolicy == config.TimestampPolicyOptimistic {
		return
	}
	// The claim is released even when the run was cancelled
	if err := o.state.ReleaseResources(context.WithoutCancel(ctx), userID, succeeded, o.now()); err != nil {
		log.ErrorWithErr(err, "Failed to release resources claim")
	}
}

// syncPrices applies the shared price feed once for concurrent callers and then
// advances the prices timestamp of the run's user
func (o *Orchestrator) syncPrices(ctx context.Context, run *Run, pool *providers.ClientPool) error {
	first := pool.Accounts()[0]
	creds := providers.Credentials{AccessKeyID: first.AccessKeyID, SecretAccessKey: first.SecretAccessKey}

	v, err, _ := o.flight.Do("prices", func() (interface{}, error) {
		return o.prices.Apply(ctx, creds)
	})
	if res, ok := v.(PriceSyncResult); ok {
		run.setPrices(res)
	}
	if err != nil {
		return err
	}
	return o.prices.MarkUpdated(ctx, run.UserID)
}
