package authsdk

import (
	"context"
	"crypto"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/aussiebroadwan/tollgate/pkg/jwtx"
)

// GetJWKS retrieves the JSON Web Key Set for token verification.
func (c *SDKClient) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/.well-known/jwks.json", nil, nil)
	if err != nil {
		return nil, err
	}

	var jwks JWKSResponse
	if err := decodeJSON(resp, &jwks, http.StatusOK); err != nil {
		return nil, err
	}

	return &jwks, nil
}

// DefaultJWKSRefetchInterval bounds how often an unknown kid triggers a
// JWKS fetch.
const DefaultJWKSRefetchInterval = time.Minute

// RemoteKeySet is a jwtx.KeyResolver backed by the service's JWKS, for
// services that verify tokens locally. An unknown kid triggers a refetch,
// at most once per MinRefetch.
type RemoteKeySet struct {
	client     *SDKClient
	keys       *jwtx.KeySet
	MinRefetch time.Duration

	mu          sync.Mutex
	lastFetched time.Time
}

// NewRemoteKeySet fetches the JWKS once and returns the resolver.
func NewRemoteKeySet(ctx context.Context, client *SDKClient) (*RemoteKeySet, error) {
	rks := &RemoteKeySet{
		client:     client,
		keys:       jwtx.NewKeySet(),
		MinRefetch: DefaultJWKSRefetchInterval,
	}
	if err := rks.Refresh(ctx); err != nil {
		return nil, err
	}
	return rks, nil
}

// Refresh replaces the key set with the current JWKS.
func (r *RemoteKeySet) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refreshLocked(ctx)
}

func (r *RemoteKeySet) refreshLocked(ctx context.Context) error {
	jwks, err := r.client.GetJWKS(ctx)
	if err != nil {
		return err
	}
	r.lastFetched = time.Now()
	return r.keys.ResetFromJWKS(*jwks)
}

// PublicKey implements jwtx.KeyResolver.
func (r *RemoteKeySet) PublicKey(kid string) (crypto.PublicKey, error) {
	pk, err := r.keys.PublicKey(kid)
	if err == nil || !errors.Is(err, jwtx.ErrUnknownKID) {
		return pk, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastFetched) < r.MinRefetch {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if ferr := r.refreshLocked(ctx); ferr != nil {
		return nil, errors.Join(err, ferr)
	}
	return r.keys.PublicKey(kid)
}

// IsReady reports whether at least one key is loaded.
func (r *RemoteKeySet) IsReady() bool { return r.keys.IsReady() }
