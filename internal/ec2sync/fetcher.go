package ec2sync

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/account"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/logger"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/metrics"
	"github.com/pratik-mahalle/ec2inventory/internal/providers"
)

// Fetcher synchronizes one resource kind over every (region, account) pair
type Fetcher interface {
	Kind() inventory.Kind
	Fetch(ctx context.Context, pool *providers.ClientPool, regions []string, accounts []*account.Account) FetchOutcome
}

// FetchOutcome summarizes one fetcher run. Err is set when a listing call for at
// least one (region, account) pair failed; per-record failures only count in Failed.
type FetchOutcome struct {
	Kind     inventory.Kind
	Fetched  int
	Upserted int
	Created  int
	Failed   int
	Duration time.Duration
	Err      error
}

// AnyCreated reports whether the run created at least one new row
func (o FetchOutcome) AnyCreated() bool {
	return o.Created > 0
}

// Deps are the collaborators shared by every fetcher
type Deps struct {
	Store   inventory.Store
	Regions inventory.RegionRepository
	Tags    *TagAttacher
	Retry   providers.RetryPolicy
	Log     *logger.Logger
}

// scope is one (region, account) pair of a fetch
type scope struct {
	conn      *providers.Connection
	accountID string
	region    string
}

// fetcher holds the loop shared by the per-kind fetchers
type fetcher struct {
	Deps
	kind inventory.Kind
}

func newFetcher(kind inventory.Kind, deps Deps) fetcher {
	deps.Log = deps.Log.Component("fetcher").With("kind", string(kind))
	return fetcher{Deps: deps, kind: kind}
}

// Kind returns the resource kind synchronized by the fetcher
func (f *fetcher) Kind() inventory.Kind {
	return f.kind
}

// run calls fn for every (region, account) pair. A failing pair is logged and the
// remaining pairs still run.
func (f *fetcher) run(ctx context.Context, pool *providers.ClientPool, regions []string, accounts []*account.Account,
	fn func(ctx context.Context, s scope, out *FetchOutcome) error) FetchOutcome {
	start := time.Now()
	out := FetchOutcome{Kind: f.kind}

	var errs []error
	for _, region := range regions {
		for _, a := range accounts {
			if err := ctx.Err(); err != nil {
				errs = append(errs, err)
				break
			}

			conn, err := pool.Connection(ctx, a.ID, region)
			if err == nil {
				err = fn(ctx, scope{conn: conn, accountID: a.ID, region: region}, &out)
			}
			if err != nil {
				f.Log.WithFields(map[string]interface{}{
					"account_id": a.ID,
					"region":     region,
				}).ErrorWithErr(err, "Failed to list resources")
				errs = append(errs, err)
			}
		}
	}

	out.Duration = time.Since(start)
	out.Err = stderrors.Join(errs...)
	metrics.RecordFetch(string(f.kind), out.Upserted, out.Created, out.Failed, out.Duration)
	f.Log.WithFields(map[string]interface{}{
		"fetched":     out.Fetched,
		"upserted":    out.Upserted,
		"created":     out.Created,
		"failed":      out.Failed,
		"duration_ms": out.Duration.Milliseconds(),
	}).Info("Fetch finished")
	return out
}

// saved records a successful upsert
func (f *fetcher) saved(out *FetchOutcome, created bool) {
	out.Upserted++
	if created {
		out.Created++
	}
}

// skip records a record that could not be stored
func (f *fetcher) skip(out *FetchOutcome, s scope, id string, err error) {
	out.Failed++
	f.Log.WithFields(map[string]interface{}{
		"resource_id": id,
		"account_id":  s.accountID,
		"region":      s.region,
	}).WarnWithErr(err, "Skipping record")
}

// note logs an unresolved optional reference; the record itself is still stored
func (f *fetcher) note(s scope, id, reference string, err error) {
	f.Log.WithFields(map[string]interface{}{
		"resource_id": id,
		"account_id":  s.accountID,
		"region":      s.region,
		"reference":   reference,
	}).WarnWithErr(err, "Leaving reference unset")
}

// zone resolves an availability zone that must already be known locally
func (f *fetcher) zone(ctx context.Context, name string) (*inventory.AvailabilityZone, error) {
	if name == "" {
		return nil, errors.MissingDependency("availability zone", "")
	}
	az, err := f.Regions.GetAvailabilityZone(ctx, name)
	if errors.IsNotFound(err) {
		return nil, errors.MissingDependency("availability zone", name)
	}
	return az, err
}

// instanceRef returns id when the instance is stored locally
func (f *fetcher) instanceRef(ctx context.Context, s scope, ownerID, id string) *string {
	if id == "" {
		return nil
	}
	ok, err := f.Store.InstanceExists(ctx, id)
	if err == nil && !ok {
		err = errors.MissingDependency(string(inventory.KindInstance), id)
	}
	if err != nil {
		f.note(s, ownerID, "instance", err)
		return nil
	}
	return &id
}

// pages drives a provider paginator, retrying each page with the fetch policy
func pages[O any](ctx context.Context, retry providers.RetryPolicy, op string,
	more func() bool, next func(ctx context.Context) (O, error), each func(O)) error {
	for more() {
		page, err := providers.Call(ctx, retry, op, next)
		if err != nil {
			return err
		}
		each(page)
	}
	return nil
}
