package cryptox

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// Key kinds understood by GenerateSigningKey. They match the JWS algorithm
// names the key will be used with.
const (
	KeyRS256 = "RS256"
	KeyES256 = "ES256"
	KeyEdDSA = "EdDSA"
)

// MinRSABits is the smallest RSA modulus we are willing to generate.
const MinRSABits = 2048

var ErrUnsupportedKey = errors.New("cryptox: unsupported key kind")

// GenerateSigningKey creates a fresh private key of the given kind and
// returns it as PKCS8 DER. rsaBits is only consulted for RS256; zero means
// MinRSABits.
func GenerateSigningKey(kind string, rsaBits int) ([]byte, error) {
	var (
		key any
		err error
	)

	switch kind {
	case KeyRS256:
		if rsaBits == 0 {
			rsaBits = MinRSABits
		}
		if rsaBits < MinRSABits {
			return nil, fmt.Errorf("cryptox: RSA key size must be at least %d bits", MinRSABits)
		}
		key, err = rsa.GenerateKey(rand.Reader, rsaBits)
	case KeyES256:
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case KeyEdDSA:
		_, key, err = ed25519.GenerateKey(rand.Reader)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKey, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("cryptox: generate %s key: %w", kind, err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: marshal PKCS8 key: %w", err)
	}
	return der, nil
}

// PrivateKeyPEM wraps PKCS8 DER in a "PRIVATE KEY" PEM block.
func PrivateKeyPEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}
