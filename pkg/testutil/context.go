package testutil

import (
	"net/http"

	"knomee/internal/platform/middleware"
	"knomee/pkg/domain"
	dErrors "knomee/pkg/domain-errors"
)

// CallerTokens is a CallerValidator for tests: each bearer token maps
// directly to the address it authenticates.
type CallerTokens map[string]domain.Address

func (c CallerTokens) ValidateToken(token string) (*middleware.CallerClaims, error) {
	addr, ok := c[token]
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return &middleware.CallerClaims{Caller: addr, TokenID: token}, nil
}

// WithBearer sets the Authorization header.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
