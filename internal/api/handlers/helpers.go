package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pratik-mahalle/ec2inventory/internal/api/middleware"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/inventory"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/logger"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/utils"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/validator"
)

// requireUser returns the authenticated user or writes a 401
func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		utils.WriteError(w, errors.Unauthorized("Authentication required"))
	}
	return userID, ok
}

// writeServiceError writes err, logging it when it is a server side failure
func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error, msg string) {
	appErr := errors.AsAppError(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		log.ErrorWithErr(err, msg)
	}
	utils.WriteError(w, appErr)
}

// decodeAndValidate reads a JSON body into dst and validates it
func decodeAndValidate(w http.ResponseWriter, r *http.Request, val *validator.Validator, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.WriteError(w, errors.BadRequest("Invalid request body"))
		return false
	}
	if errs := val.Validate(dst); len(errs) > 0 {
		utils.WriteError(w, errors.ValidationError("Validation failed", errs))
		return false
	}
	return true
}

// listFilter reads the account_id, region, state, page, page_size and sort query parameters
func listFilter(r *http.Request) (inventory.ListFilter, utils.PaginationParams) {
	p := utils.ParsePaginationParams(r)
	q := r.URL.Query()
	return inventory.ListFilter{
		AccountID: q.Get("account_id"),
		Region:    q.Get("region"),
		State:     q.Get("state"),
		SortBy:    p.SortBy,
		Desc:      p.Desc,
		Limit:     p.PageSize,
		Offset:    p.Offset,
	}, p
}
