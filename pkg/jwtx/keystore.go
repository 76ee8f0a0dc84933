package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Supported JWS algorithms. The algorithm of a key is derived from its type.
const (
	AlgorithmRS256 = "RS256"
	AlgorithmES256 = "ES256"
	AlgorithmEdDSA = "EdDSA"
)

// Separators of the signing key configuration string:
//
//	kid1::base64(pkcs8)|kid2::base64(pkcs8)
const (
	KeyEntrySeparator = "|"
	KeyKIDSeparator   = "::"
)

// KeyResolver finds the verification key for a kid.
type KeyResolver interface {
	PublicKey(kid string) (crypto.PublicKey, error)
}

// SigningKeys is a KeyResolver that can also sign.
type SigningKeys interface {
	KeyResolver
	ActiveKID() string
	PrivateKey(kid string) (crypto.Signer, error)
}

type parsedKey struct {
	priv crypto.Signer
	alg  string
	err  error
}

// KeyStore holds the configured private keys by kid. Key material is parsed
// the first time a kid is used and the outcome, good or bad, is cached for
// the life of the process.
type KeyStore struct {
	active string
	kids   []string
	raw    map[string]string

	mu     sync.Mutex
	parsed map[string]parsedKey
}

// NewKeyStore parses the key configuration. An empty activeKID selects the
// first configured kid. Only the shape of the configuration is checked here;
// the key bytes themselves are decoded lazily.
func NewKeyStore(config, activeKID string) (*KeyStore, error) {
	ks := &KeyStore{
		raw:    make(map[string]string),
		parsed: make(map[string]parsedKey),
	}

	for i, entry := range strings.Split(config, KeyEntrySeparator) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		kid, material, ok := strings.Cut(entry, KeyKIDSeparator)
		kid = strings.TrimSpace(kid)
		if !ok || kid == "" {
			return nil, fmt.Errorf("jwtx: key entry %d is not kid%sbase64", i, KeyKIDSeparator)
		}
		if _, dup := ks.raw[kid]; dup {
			return nil, fmt.Errorf("jwtx: duplicate kid %q", kid)
		}
		ks.kids = append(ks.kids, kid)
		ks.raw[kid] = material
	}

	if len(ks.kids) == 0 {
		return nil, errors.New("jwtx: no signing keys configured")
	}

	ks.active = strings.TrimSpace(activeKID)
	if ks.active == "" {
		ks.active = ks.kids[0]
	}
	if _, ok := ks.raw[ks.active]; !ok {
		return nil, fmt.Errorf("jwtx: active kid %q is not configured", ks.active)
	}

	return ks, nil
}

// FormatKeyEntry renders one configuration entry for PKCS8 DER bytes.
func FormatKeyEntry(kid string, der []byte) string {
	return kid + KeyKIDSeparator + base64.StdEncoding.EncodeToString(der)
}

// ActiveKID is the kid new tokens are signed with.
func (ks *KeyStore) ActiveKID() string { return ks.active }

// KIDs lists every configured kid in configuration order.
func (ks *KeyStore) KIDs() []string {
	out := make([]string, len(ks.kids))
	copy(out, ks.kids)
	return out
}

// PrivateKey returns the signing key for kid.
func (ks *KeyStore) PrivateKey(kid string) (crypto.Signer, error) {
	p, err := ks.load(kid)
	if err != nil {
		return nil, err
	}
	return p.priv, nil
}

// PublicKey returns the verification key derived from kid's private key.
func (ks *KeyStore) PublicKey(kid string) (crypto.PublicKey, error) {
	p, err := ks.load(kid)
	if err != nil {
		return nil, err
	}
	return p.priv.Public(), nil
}

// Algorithm returns the JWS algorithm for kid.
func (ks *KeyStore) Algorithm(kid string) (string, error) {
	p, err := ks.load(kid)
	if err != nil {
		return "", err
	}
	return p.alg, nil
}

// IsReady reports whether the active key is usable.
func (ks *KeyStore) IsReady() bool {
	_, err := ks.load(ks.active)
	return err == nil
}

// JWKS publishes every configured key that parses. Broken kids are left out
// rather than failing the whole document.
func (ks *KeyStore) JWKS() JWKS {
	out := JWKS{Keys: make([]JWK, 0, len(ks.kids))}
	for _, kid := range ks.kids {
		p, err := ks.load(kid)
		if err != nil {
			continue
		}
		jwk, err := NewJWK(kid, p.priv.Public())
		if err != nil {
			continue
		}
		out.Keys = append(out.Keys, jwk)
	}
	return out
}

func (ks *KeyStore) load(kid string) (parsedKey, error) {
	material, ok := ks.raw[kid]
	if !ok {
		return parsedKey{}, fmt.Errorf("%w %q", ErrUnknownKID, kid)
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	p, ok := ks.parsed[kid]
	if !ok {
		p = parseKeyMaterial(material)
		ks.parsed[kid] = p
	}
	if p.err != nil {
		return parsedKey{}, fmt.Errorf("%w: kid %q: %v", ErrKeyMaterial, kid, p.err)
	}
	return p, nil
}

func parseKeyMaterial(material string) parsedKey {
	// Config values are often wrapped by deployment tooling.
	material = strings.Join(strings.Fields(material), "")

	der, err := base64.StdEncoding.DecodeString(material)
	if err != nil {
		return parsedKey{err: fmt.Errorf("decode base64: %w", err)}
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return parsedKey{err: fmt.Errorf("parse PKCS8: %w", err)}
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return parsedKey{err: fmt.Errorf("key type %T cannot sign", key)}
	}
	alg, err := algorithmFor(signer.Public())
	if err != nil {
		return parsedKey{err: err}
	}
	return parsedKey{priv: signer, alg: alg}
}

// algorithmFor maps a public key to the single algorithm we use with it.
func algorithmFor(pub crypto.PublicKey) (string, error) {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return AlgorithmRS256, nil
	case *ecdsa.PublicKey:
		if k.Curve != elliptic.P256() {
			return "", fmt.Errorf("unsupported EC curve %s", k.Curve.Params().Name)
		}
		return AlgorithmES256, nil
	case ed25519.PublicKey:
		return AlgorithmEdDSA, nil
	default:
		return "", fmt.Errorf("unsupported key type %T", pub)
	}
}
