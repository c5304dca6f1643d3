package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pratik-mahalle/ec2inventory/internal/api/dto"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/account"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/logger"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/utils"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/validator"
)

// AccountHandler manages the AWS accounts of the caller
type AccountHandler struct {
	service   account.Service
	logger    *logger.Logger
	validator *validator.Validator
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(service account.Service, log *logger.Logger, val *validator.Validator) *AccountHandler {
	return &AccountHandler{
		service:   service,
		logger:    log,
		validator: val,
	}
}

// List returns the accounts of the caller
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	accounts, err := h.service.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list accounts")
		return
	}

	dtos := make([]dto.AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = dto.ToAccountDTO(a)
	}
	utils.WriteSuccess(w, http.StatusOK, dtos)
}

// Add registers a key pair for the caller
func (h *AccountHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.AddAccountRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	a, err := h.service.Add(r.Context(), userID, req.Name, req.AccessKeyID, req.SecretAccessKey)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to add account")
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, dto.ToAccountDTO(a))
}

// Remove unlinks an account from the caller
func (h *AccountHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.service.Remove(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.logger, err, "Failed to remove account")
		return
	}
	utils.WriteSuccessWithMessage(w, http.StatusOK, "Account removed", nil)
}
