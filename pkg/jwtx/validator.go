package jwtx

import "time"

// ValidatorOptions configures which tokens a Validator accepts. Empty
// allow-lists are not enforced.
type ValidatorOptions struct {
	Issuers   []string
	Audiences []string

	// Leeway allows for clock skew on exp and nbf.
	Leeway time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Validator checks signature, lifetime, issuer and audience of a token.
// It holds no state besides its keys, so one instance serves every request.
type Validator struct {
	codec *Codec
	opts  ValidatorOptions
}

// NewValidator builds a Validator on top of any key source: the local
// KeyStore, or a KeySet fetched from a JWKS endpoint.
func NewValidator(keys KeyResolver, opts ValidatorOptions) *Validator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Validator{codec: NewCodec(keys), opts: opts}
}

// Validate returns the verified claims of token or the first rule it breaks.
func (v *Validator) Validate(token string) (*Claims, error) {
	claims, err := v.codec.Decode(token)
	if err != nil {
		return nil, err
	}

	if err := claims.ValidateTimes(v.opts.Now(), v.opts.Leeway); err != nil {
		return nil, err
	}
	if err := claims.ValidateIssuer(v.opts.Issuers); err != nil {
		return nil, err
	}
	if err := claims.ValidateAudience(v.opts.Audiences); err != nil {
		return nil, err
	}
	return claims, nil
}
