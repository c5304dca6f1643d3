package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/pratik-mahalle/ec2inventory/internal/api/dto"
	"github.com/pratik-mahalle/ec2inventory/internal/ec2sync"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/logger"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/utils"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/validator"
)

// SyncService is the part of the orchestrator the API drives
type SyncService interface {
	EnsureFresh(ctx context.Context, userID int64) (*ec2sync.Run, error)
	RefreshResources(ctx context.Context, userID int64) (*ec2sync.Run, error)
	RefreshPrices(ctx context.Context, userID int64) (*ec2sync.Run, error)
	Status(ctx context.Context, userID int64) (*ec2sync.Status, error)
	SetResourcesInterval(ctx context.Context, userID int64, interval time.Duration) error
}

// SetIntervalRequest changes the resources refresh interval
type SetIntervalRequest struct {
	Minutes int `json:"minutes" validate:"required,min=1,max=10080"`
}

// SyncHandler triggers and reports synchronization
type SyncHandler struct {
	service   SyncService
	logger    *logger.Logger
	validator *validator.Validator
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(service SyncService, log *logger.Logger, val *validator.Validator) *SyncHandler {
	return &SyncHandler{
		service:   service,
		logger:    log,
		validator: val,
	}
}

// Status reports the timestamps, due flags and running syncs of the caller
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	status, err := h.service.Status(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to get sync status")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, dto.ToSyncStatusDTO(status))
}

// Ensure starts whatever refresh the caller's data needs
func (h *SyncHandler) Ensure(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, h.service.EnsureFresh)
}

// Resources forces a resources sync
func (h *SyncHandler) Resources(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, h.service.RefreshResources)
}

// Prices forces a price sync
func (h *SyncHandler) Prices(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, h.service.RefreshPrices)
}

// SetInterval changes the caller's resources refresh interval
func (h *SyncHandler) SetInterval(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req SetIntervalRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}
	if err := h.service.SetResourcesInterval(r.Context(), userID, time.Duration(req.Minutes)*time.Minute); err != nil {
		writeServiceError(w, h.logger, err, "Failed to set resources interval")
		return
	}
	utils.WriteSuccessWithMessage(w, http.StatusOK, "Resources interval updated", req)
}

func (h *SyncHandler) trigger(w http.ResponseWriter, r *http.Request, start func(context.Context, int64) (*ec2sync.Run, error)) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	run, err := start(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to start sync")
		return
	}
	if run == nil {
		utils.WriteSuccess(w, http.StatusOK, dto.SyncResponse{})
		return
	}
	utils.WriteSuccess(w, http.StatusAccepted, dto.SyncResponse{Started: true, Run: dto.ToRunDTO(run)})
}
