package handlers

import (
	"context"
	"net/http"

	"github.com/pratik-mahalle/ec2inventory/internal/api/dto"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
	"github.com/pratik-mahalle/ec2inventory/internal/ec2sync"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/logger"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/utils"
)

// Freshener starts a background sync for a user whose data is due
type Freshener interface {
	EnsureFresh(ctx context.Context, userID int64) (*ec2sync.Run, error)
}

// InventoryHandler serves the resource listings, the actions and the costs of the caller
type InventoryHandler struct {
	service inventory.Service
	fresh   Freshener
	logger  *logger.Logger
}

// NewInventoryHandler creates a new inventory handler. Listings call fresh before
// reading, fresh may be nil.
func NewInventoryHandler(service inventory.Service, fresh Freshener, log *logger.Logger) *InventoryHandler {
	return &InventoryHandler{
		service: service,
		fresh:   fresh,
		logger:  log,
	}
}

// ensureFresh starts a sync when the caller's data is due. The listing is served
// from what is stored, so only a missing account stops it.
func (h *InventoryHandler) ensureFresh(w http.ResponseWriter, r *http.Request, userID int64) bool {
	if h.fresh == nil {
		return true
	}
	if _, err := h.fresh.EnsureFresh(r.Context(), userID); err != nil {
		if errors.IsNoAccount(err) {
			writeServiceError(w, h.logger, err, "Failed to ensure fresh data")
			return false
		}
		h.logger.With("user_id", userID).WarnWithErr(err, "Failed to ensure fresh data")
	}
	return true
}

// list writes one page of a listing converted by conv
func list[T any, D any](h *InventoryHandler, w http.ResponseWriter, r *http.Request, fetch func(context.Context, int64, inventory.ListFilter) ([]T, int64, error), conv func([]T) []D) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if !h.ensureFresh(w, r, userID) {
		return
	}

	f, page := listFilter(r)
	rows, total, err := fetch(r.Context(), userID, f)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list resources")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, utils.NewPaginatedResponse(conv(rows), page.Page, page.PageSize, total))
}

func same[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}

// Instances lists instances
func (h *InventoryHandler) Instances(w http.ResponseWriter, r *http.Request) {
	list(h, w, r, h.service.ListInstances, dto.ToInstanceDTOs)
}

// Volumes lists volumes
func (h *InventoryHandler) Volumes(w http.ResponseWriter, r *http.Request) {
	list(h, w, r, h.service.ListVolumes, dto.ToVolumeDTOs)
}

// Snapshots lists snapshots
func (h *InventoryHandler) Snapshots(w http.ResponseWriter, r *http.Request) {
	list(h, w, r, h.service.ListSnapshots, dto.ToSnapshotDTOs)
}

// AMIs lists images
func (h *InventoryHandler) AMIs(w http.ResponseWriter, r *http.Request) {
	list(h, w, r, h.service.ListAMIs, dto.ToAMIDTOs)
}

// Keypairs lists key pairs
func (h *InventoryHandler) Keypairs(w http.ResponseWriter, r *http.Request) {
	list(h, w, r, h.service.ListKeypairs, same[*inventory.Keypair])
}

// SecurityGroups lists security groups
func (h *InventoryHandler) SecurityGroups(w http.ResponseWriter, r *http.Request) {
	list(h, w, r, h.service.ListSecurityGroups, same[*inventory.SecurityGroup])
}

// ElasticIPs lists elastic IPs
func (h *InventoryHandler) ElasticIPs(w http.ResponseWriter, r *http.Request) {
	list(h, w, r, h.service.ListElasticIPs, dto.ToElasticIPDTOs)
}

// LoadBalancers lists load balancers
func (h *InventoryHandler) LoadBalancers(w http.ResponseWriter, r *http.Request) {
	list(h, w, r, h.service.ListLoadBalancers, dto.ToLoadBalancerDTOs)
}
