package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pratik-mahalle/ec2inventory/internal/api/dto"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/utils"
)

// StopInstance stops an instance of the caller
func (h *InventoryHandler) StopInstance(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.StopInstance(r.Context(), userID, id); err != nil {
		writeServiceError(w, h.logger, err, "Failed to stop instance")
		return
	}
	utils.WriteSuccessWithMessage(w, http.StatusOK, "Instance stopped", map[string]string{"instance_id": id})
}

// TerminateInstance terminates an instance of the caller
func (h *InventoryHandler) TerminateInstance(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	volumes, err := h.service.TerminateInstance(r.Context(), userID, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to terminate instance")
		return
	}
	if volumes == nil {
		volumes = []string{}
	}
	utils.WriteSuccessWithMessage(w, http.StatusOK, "Instance terminated",
		dto.TerminateResponse{InstanceID: id, DeletedVolumes: volumes})
}

// DetachVolume detaches a volume of the caller
func (h *InventoryHandler) DetachVolume(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.DetachVolume(r.Context(), userID, id); err != nil {
		writeServiceError(w, h.logger, err, "Failed to detach volume")
		return
	}
	utils.WriteSuccessWithMessage(w, http.StatusOK, "Volume detached", map[string]string{"volume_id": id})
}

// DeleteVolume deletes a volume of the caller
func (h *InventoryHandler) DeleteVolume(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.DeleteVolume(r.Context(), userID, id); err != nil {
		writeServiceError(w, h.logger, err, "Failed to delete volume")
		return
	}
	utils.WriteSuccessWithMessage(w, http.StatusOK, "Volume deleted", map[string]string{"volume_id": id})
}

// Costs reports the on-demand cost of the caller's instances
func (h *InventoryHandler) Costs(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	f, _ := listFilter(r)
	report, err := h.service.Costs(r.Context(), userID, f)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to compute costs")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, report)
}
