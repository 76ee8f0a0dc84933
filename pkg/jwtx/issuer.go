package jwtx

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default lifetimes.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// IssuerConfig holds the values stamped into every token.
type IssuerConfig struct {
	Issuer   string
	Audience []string

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// TokenSpec describes one token to mint. A zero TTL picks the default for
// the kind.
type TokenSpec struct {
	Subject  string
	Kind     TokenKind
	Roles    []string
	DeviceID string
	Extra    map[string]any
	TTL      time.Duration
}

// IssuedToken is a signed token together with the claims inside it, so
// callers can record jti and exp without parsing the token again.
type IssuedToken struct {
	Token  string
	Claims Claims
}

// TokenIssuer mints tokens with the active key of a SigningKeys source.
// Issuing has no side effects beyond the returned value.
type TokenIssuer struct {
	keys  SigningKeys
	codec *Codec
	cfg   IssuerConfig
}

// NewIssuer fills in defaults for zero config values.
func NewIssuer(keys SigningKeys, cfg IssuerConfig) *TokenIssuer {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTokenTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TokenIssuer{keys: keys, codec: NewCodec(keys), cfg: cfg}
}

func (i *TokenIssuer) AccessTTL() time.Duration  { return i.cfg.AccessTTL }
func (i *TokenIssuer) RefreshTTL() time.Duration { return i.cfg.RefreshTTL }

// Issue mints a token described by spec. iat and nbf are both now.
func (i *TokenIssuer) Issue(spec TokenSpec) (IssuedToken, error) {
	if spec.Subject == "" {
		return IssuedToken{}, fmt.Errorf("%w: empty subject", ErrInvalidClaim)
	}

	ttl := spec.TTL
	if ttl <= 0 {
		switch spec.Kind {
		case KindAccess:
			ttl = i.cfg.AccessTTL
		case KindRefresh:
			ttl = i.cfg.RefreshTTL
		default:
			return IssuedToken{}, fmt.Errorf("%w: ttl required for kind %q", ErrInvalidClaim, spec.Kind)
		}
	}

	now := i.cfg.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   spec.Subject,
			Audience:  jwt.ClaimStrings(i.cfg.Audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Kind:     spec.Kind,
		Roles:    spec.Roles,
		DeviceID: spec.DeviceID,
		Extra:    spec.Extra,
	}

	token, err := i.codec.Encode(claims, i.keys.ActiveKID())
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Token: token, Claims: claims}, nil
}

// IssueAccess mints an access token with the configured access lifetime.
func (i *TokenIssuer) IssueAccess(subject string, roles []string, deviceID string) (IssuedToken, error) {
	return i.Issue(TokenSpec{Subject: subject, Kind: KindAccess, Roles: roles, DeviceID: deviceID})
}

// IssueRefresh mints a refresh token. Refresh tokens carry no roles; they
// are looked up again on every rotation.
func (i *TokenIssuer) IssueRefresh(subject, deviceID string) (IssuedToken, error) {
	return i.Issue(TokenSpec{Subject: subject, Kind: KindRefresh, DeviceID: deviceID})
}
