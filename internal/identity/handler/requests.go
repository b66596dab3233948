package handler

import (
	"strings"

	"knomee/internal/identity/models"
	"knomee/internal/identity/service"
	"knomee/pkg/domain"
	dErrors "knomee/pkg/domain-errors"
)

// LinkRequest is the body of POST /links.
type LinkRequest struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	Platform  string `json:"platform"`
	ClaimID   uint64 `json:"claim_id"`

	primary   domain.Address
	secondary domain.Address
}

// Validate implements httputil.Validatable.
func (r *LinkRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	var err error
	if r.primary, err = domain.ParseAddress(r.Primary); err != nil {
		return err
	}
	if r.secondary, err = domain.ParseAddress(r.Secondary); err != nil {
		return err
	}
	r.Platform = strings.TrimSpace(r.Platform)
	if r.ClaimID == 0 {
		return dErrors.New(dErrors.CodeValidation, "claim_id is required")
	}
	return nil
}

// ToService converts a validated request.
func (r *LinkRequest) ToService() service.LinkRequest {
	return service.LinkRequest{
		Primary:   r.primary,
		Secondary: r.secondary,
		Platform:  r.Platform,
		ClaimID:   r.ClaimID,
	}
}

// LinksResponse is the body of GET /identities/{address}/links.
type LinksResponse struct {
	Primary domain.Address           `json:"primary"`
	Links   []*models.LinkedIdentity `json:"links"`
}
