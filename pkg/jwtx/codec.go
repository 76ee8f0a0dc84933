package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var validMethods = []string{AlgorithmRS256, AlgorithmES256, AlgorithmEdDSA}

// Codec turns Claims into compact JWS strings and back. It only deals with
// signatures; time, issuer and audience rules live in Validator.
type Codec struct {
	keys KeyResolver
}

// NewCodec returns a Codec over keys. Encoding additionally needs keys to
// implement SigningKeys.
func NewCodec(keys KeyResolver) *Codec {
	return &Codec{keys: keys}
}

// Encode signs claims with the private key registered under kid. The header
// carries alg and kid.
func (c *Codec) Encode(claims Claims, kid string) (string, error) {
	sk, ok := c.keys.(SigningKeys)
	if !ok {
		return "", fmt.Errorf("%w: key resolver cannot sign", ErrKeyMaterial)
	}
	if err := claims.CheckExtra(); err != nil {
		return "", err
	}

	priv, err := sk.PrivateKey(kid)
	if err != nil {
		return "", err
	}
	alg, err := algorithmFor(priv.Public())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyMaterial, err)
	}

	t := jwt.NewWithClaims(jwt.GetSigningMethod(alg), claims)
	t.Header["kid"] = kid
	s, err := t.SignedString(priv)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return s, nil
}

// Decode verifies the signature against the key named by the header kid and
// returns the claims without checking their contents.
func (c *Codec) Decode(token string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods(validMethods),
		jwt.WithoutClaimsValidation(),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing kid header", ErrUnknownKID)
		}

		pub, err := c.keys.PublicKey(kid)
		if err != nil {
			return nil, err
		}

		// A token may only claim the algorithm its key was made for.
		alg, err := algorithmFor(pub)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKeyMaterial, err)
		}
		if t.Method.Alg() != alg {
			return nil, fmt.Errorf("%w: header says %s, key %q is %s", ErrAlgMismatch, t.Method.Alg(), kid, alg)
		}
		return pub, nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}
	return claims, nil
}

func classifyParseError(err error) error {
	for _, known := range []error{ErrUnknownKID, ErrAlgMismatch, ErrKeyMaterial} {
		if errors.Is(err, known) {
			return err
		}
	}

	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSig, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
