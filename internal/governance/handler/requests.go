package handler

import (
	"knomee/internal/governance/models"
	dErrors "knomee/pkg/domain-errors"
)

// ParamsRequest is the body of POST /governance and PUT /governance/params.
// The full parameter set is required.
type ParamsRequest struct {
	models.Params
}

// Validate implements httputil.Validatable.
func (r *ParamsRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return r.Params.Validate()
}

// TimeWarpRequest is the body of POST /governance/time-warp.
type TimeWarpRequest struct {
	Seconds int64 `json:"seconds"`
}

func (r *TimeWarpRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Seconds == 0 {
		return dErrors.New(dErrors.CodeValidation, "seconds must be non-zero")
	}
	return nil
}
