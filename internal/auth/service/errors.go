package service

import "errors"

// Token lifecycle failures.
var (
	ErrNotAllowed     = errors.New("service: refresh token not allowed")
	ErrBlacklisted    = errors.New("service: token blacklisted")
	ErrRevoked        = errors.New("service: token revoked")
	ErrWrongTokenKind = errors.New("service: wrong token kind")
)

// Account and gate failures.
var (
	ErrCaptchaRequired    = errors.New("service: captcha required")
	ErrCaptchaInvalid     = errors.New("service: captcha invalid")
	ErrInvalidCredentials = errors.New("service: invalid credentials")
	ErrUserExists         = errors.New("service: user exists")
	ErrNotServiceToken    = errors.New("service: not a service token")
)

// Outcome is the decision an auth step resolves to.
type Outcome int

const (
	Accepted Outcome = iota
	Rejected
	Challenge
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Challenge:
		return "challenge"
	default:
		return "rejected"
	}
}

// Classify folds any auth error into an Outcome. Only captcha failures ask
// the client to try again with a challenge; everything else is a rejection.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Accepted
	case errors.Is(err, ErrCaptchaRequired), errors.Is(err, ErrCaptchaInvalid):
		return Challenge
	default:
		return Rejected
	}
}
