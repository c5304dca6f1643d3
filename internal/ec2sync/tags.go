package ec2sync

import (
	"context"
	"sort"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/logger"
)

// TagAttacher associates provider tags with stored resources. Tag rows are shared
// by every resource of an account and region carrying the same key and value.
type TagAttacher struct {
	tags    inventory.TagRepository
	regions inventory.RegionRepository
	log     *logger.Logger
}

// NewTagAttacher creates a TagAttacher
func NewTagAttacher(tags inventory.TagRepository, regions inventory.RegionRepository, log *logger.Logger) *TagAttacher {
	return &TagAttacher{tags: tags, regions: regions, log: log.Component("tags")}
}

// Attach links every raw tag to ref and returns how many associations were made.
// The tag region is the resource region, or the region of its availability zone.
// When neither is known the tags are skipped.
func (a *TagAttacher) Attach(ctx context.Context, raw map[string]string, ref inventory.ResourceRef) int {
	if len(raw) == 0 {
		return 0
	}

	region := a.resolveRegion(ctx, ref)
	if region == "" {
		a.log.WithFields(map[string]interface{}{
			"kind":        ref.Kind,
			"resource_id": ref.ID,
			"account_id":  ref.AccountID,
		}).Warn("Skipping tags of a resource without region")
		return 0
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attached := 0
	for _, key := range keys {
		tag, err := a.tags.GetOrCreate(ctx, key, raw[key], ref.AccountID, region)
		if err == nil {
			err = a.tags.Attach(ctx, tag.ID, ref.Kind, ref.ID)
		}
		if err != nil {
			a.log.WithFields(map[string]interface{}{
				"kind":        ref.Kind,
				"resource_id": ref.ID,
				"account_id":  ref.AccountID,
				"region":      region,
				"tag":         key,
			}).WarnWithErr(err, "Failed to attach tag")
			continue
		}
		attached++
	}
	return attached
}

func (a *TagAttacher) resolveRegion(ctx context.Context, ref inventory.ResourceRef) string {
	if ref.Region != "" {
		return ref.Region
	}
	if ref.AvailabilityZone == "" {
		return ""
	}
	az, err := a.regions.GetAvailabilityZone(ctx, ref.AvailabilityZone)
	if err != nil {
		return ""
	}
	return az.Region
}
