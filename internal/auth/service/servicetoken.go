package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/tollgate/internal/auth/domain"
	"github.com/aussiebroadwan/tollgate/pkg/jwtx"
)

// Service token claims and limits.
const (
	ServiceTokenScope = "internal-api"
	ServiceTokenType  = "service-token"

	DefaultServiceTokenTTL = 60 * time.Minute
	MinServiceTokenTTL     = time.Minute
	MaxServiceTokenTTL     = 24 * time.Hour
)

var ErrServiceTokenTTL = errors.New("service: service token ttl must be between 1 and 1440 minutes")

// ServiceTokens mints and checks the tokens backend services use on the
// internal endpoints.
type ServiceTokens struct {
	Issuer    *jwtx.TokenIssuer
	Validator *jwtx.Validator
}

// Mint issues a token for serviceName. A zero ttl means one hour.
func (s *ServiceTokens) Mint(serviceName string, ttl time.Duration) (jwtx.IssuedToken, error) {
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" {
		return jwtx.IssuedToken{}, fmt.Errorf("%w: empty service name", jwtx.ErrInvalidClaim)
	}
	if ttl == 0 {
		ttl = DefaultServiceTokenTTL
	}
	if ttl < MinServiceTokenTTL || ttl > MaxServiceTokenTTL {
		return jwtx.IssuedToken{}, ErrServiceTokenTTL
	}

	return s.Issuer.Issue(jwtx.TokenSpec{
		Subject: serviceName,
		Kind:    jwtx.KindAccess,
		Roles:   []string{domain.RoleInternal},
		TTL:     ttl,
		Extra: map[string]any{
			"service": serviceName,
			"scope":   ServiceTokenScope,
			"type":    ServiceTokenType,
		},
	})
}

// Authenticate accepts only valid service tokens, so it can guard the
// internal routes.
func (s *ServiceTokens) Authenticate(_ context.Context, token string) (*jwtx.Claims, error) {
	c, err := s.Validator.Validate(token)
	if err != nil {
		return nil, err
	}
	if c.ExtraString("scope") != ServiceTokenScope || c.ExtraString("type") != ServiceTokenType {
		return nil, ErrNotServiceToken
	}
	return c, nil
}

// ServiceName is the calling service, taken from the service claim or the
// subject.
func ServiceName(c *jwtx.Claims) string {
	if name := c.ExtraString("service"); name != "" {
		return name
	}
	return c.Subject
}
