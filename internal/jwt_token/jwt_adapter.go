package jwttoken

import (
	"knomee/internal/platform/middleware"
	"knomee/pkg/domain"
)

// JWTServiceAdapter exposes JWTService to the caller middleware.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.CallerClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.CallerClaims{
		Caller:  domain.Address(claims.Subject),
		TokenID: claims.ID,
	}, nil
}
