package handler

import (
	"strings"

	"knomee/internal/claims/models"
	"knomee/internal/claims/service"
	"knomee/pkg/domain"
	dErrors "knomee/pkg/domain-errors"
)

// ProposeRequest is the body of POST /claims.
type ProposeRequest struct {
	Type          string `json:"type"`
	Subject       string `json:"subject"`
	Related       string `json:"related_address,omitempty"`
	Platform      string `json:"platform,omitempty"`
	Justification string `json:"justification,omitempty"`
	Stake         uint64 `json:"stake"`

	parsedType models.Type
	subject    domain.Address
	related    domain.Address
}

// Validate implements httputil.Validatable. Protocol rules that depend on
// stored state are left to the engine.
func (r *ProposeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	var err error
	if r.parsedType, err = models.ParseType(strings.TrimSpace(r.Type)); err != nil {
		return err
	}
	if r.subject, err = domain.ParseAddress(r.Subject); err != nil {
		return err
	}
	if strings.TrimSpace(r.Related) != "" {
		if r.related, err = domain.ParseAddress(r.Related); err != nil {
			return err
		}
	}
	r.Platform = strings.TrimSpace(r.Platform)
	return nil
}

// ToService converts a validated request.
func (r *ProposeRequest) ToService() service.ProposeRequest {
	return service.ProposeRequest{
		Type:     r.parsedType,
		Subject:  r.subject,
		Related:  r.related,
		Platform: r.Platform,
		Text:     r.Justification,
		Stake:    r.Stake,
	}
}

// VouchRequest is the body of POST /claims/{id}/vouches. Supports is required
// so a missing field is never read as a vote against.
type VouchRequest struct {
	Supports *bool  `json:"supports"`
	Stake    uint64 `json:"stake"`
}

func (r *VouchRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Supports == nil {
		return dErrors.New(dErrors.CodeValidation, "supports is required")
	}
	return nil
}

// VouchesResponse is the body of GET /claims/{id}/vouches.
type VouchesResponse struct {
	ClaimID uint64          `json:"claim_id"`
	Vouches []*models.Vouch `json:"vouches"`
}
