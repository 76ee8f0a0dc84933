package jwtx

import (
	"crypto"
	"fmt"
	"sync"
)

// KeySet holds public verification keys decoded from a JWKS document. It is
// what a downstream service uses in place of a KeyStore: the Validator works
// with either.
type KeySet struct {
	mu  sync.RWMutex
	jks JWKS
	pub map[string]crypto.PublicKey
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{pub: make(map[string]crypto.PublicKey)}
}

// NewKeySetFromJWKS is NewKeySet followed by ResetFromJWKS.
func NewKeySetFromJWKS(jwks JWKS) (*KeySet, error) {
	ks := NewKeySet()
	if err := ks.ResetFromJWKS(jwks); err != nil {
		return nil, err
	}
	return ks, nil
}

// AddJWK decodes j and registers it under its kid.
func (k *KeySet) AddJWK(j JWK) error {
	key, err := j.PublicKey()
	if err != nil {
		return fmt.Errorf("%w: kid %q: %v", ErrKeyMaterial, j.Kid, err)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pub[j.Kid] = key
	k.jks.Keys = append(k.jks.Keys, j)
	return nil
}

// PublicKey returns the key for kid.
func (k *KeySet) PublicKey(kid string) (crypto.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if pk, ok := k.pub[kid]; ok {
		return pk, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownKID, kid)
}

// PublicJWKS returns a snapshot of the set.
func (k *KeySet) PublicJWKS() JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return JWKS{Keys: append([]JWK(nil), k.jks.Keys...)}
}

// IsReady reports whether at least one key is loaded.
func (k *KeySet) IsReady() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.pub) > 0
}

// ResetFromJWKS replaces every key, e.g. after refetching the issuer's JWKS.
// Nothing changes if any key in jwks fails to decode.
func (k *KeySet) ResetFromJWKS(jwks JWKS) error {
	next := make(map[string]crypto.PublicKey, len(jwks.Keys))
	for _, j := range jwks.Keys {
		key, err := j.PublicKey()
		if err != nil {
			return fmt.Errorf("%w: kid %q: %v", ErrKeyMaterial, j.Kid, err)
		}
		next[j.Kid] = key
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.pub = next
	k.jks = jwks
	return nil
}
