package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/tollgate/internal/auth/domain"
	"github.com/aussiebroadwan/tollgate/internal/auth/revocation"
	"github.com/aussiebroadwan/tollgate/internal/auth/store"
	"github.com/aussiebroadwan/tollgate/pkg/httpx"
	"github.com/aussiebroadwan/tollgate/pkg/jwtx"
	"github.com/aussiebroadwan/tollgate/pkg/slogx"
)

// SubjectDirectory resolves the roles a subject currently holds. Unknown
// subjects yield store.ErrNotFound.
type SubjectDirectory interface {
	SubjectRoles(ctx context.Context, subject string) ([]string, error)
}

// SessionService runs the refresh token protocol: every refresh token is
// redeemable once, and only while it is the subject's current one.
type SessionService struct {
	Issuer     *jwtx.TokenIssuer
	Validator  *jwtx.Validator
	Revocation *revocation.Store
	Subjects   SubjectDirectory

	// Leeway must match the validator's; revocation entries outlive their
	// token by this much so a token inside its grace period stays revoked.
	Leeway time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

type RefreshRequest struct {
	RefreshToken string

	// PriorAccessToken is the access token the client is replacing. The
	// "Bearer " prefix is optional.
	PriorAccessToken string

	// DeviceID overrides the device recorded in the refresh token.
	DeviceID string
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// revocationTTL is how long a revocation entry for c must live.
func (s *SessionService) revocationTTL(c *jwtx.Claims, now time.Time) time.Duration {
	return c.Remaining(now) + s.Leeway
}

// Open starts a session after a successful login or registration. A failed
// allow-list write is logged and the pair is returned anyway: the access
// token works, only refreshing it will not.
func (s *SessionService) Open(ctx context.Context, subject string, roles []string, deviceID string) (*domain.TokenPair, error) {
	pair, err := s.issuePair(subject, roles, deviceID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.Revocation.AllowList().Set(ctx, subject, pair.Refresh.ID, pair.Refresh.Remaining(now)); err != nil {
		slogx.FromContext(ctx).Warn("refresh allow-list write failed",
			"sub", subject,
			"jti", pair.Refresh.ID,
			"err", err,
		)
	}

	slogx.FromContext(ctx).Info("session opened",
		"sub", subject,
		"access_jti", pair.Access.ID,
		"refresh_jti", pair.Refresh.ID,
	)
	return pair, nil
}

// Refresh redeems a refresh token for a new pair. Nothing is issued unless
// the token is valid, current and unredeemed, and the subject still exists.
func (s *SessionService) Refresh(ctx context.Context, req RefreshRequest) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	old, err := s.Validator.Validate(httpx.StripBearer(req.RefreshToken))
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	if old.Kind != jwtx.KindRefresh {
		return nil, ErrWrongTokenKind
	}
	if old.Subject == "" || old.ID == "" || old.ExpiresAt == nil {
		return nil, jwtx.ErrMalformed
	}

	sub := old.Subject
	if !s.Revocation.AllowList().IsAllowed(ctx, sub, old.ID) {
		l.Info("refresh token not on allow-list", "sub", sub, "jti", old.ID)
		return nil, ErrNotAllowed
	}
	if s.Revocation.RefreshBlacklist().Contains(ctx, old.ID) {
		l.Info("refresh token blacklisted", "sub", sub, "jti", old.ID)
		return nil, ErrBlacklisted
	}

	roles, err := s.Subjects.SubjectRoles(ctx, sub)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotAllowed
		}
		return nil, fmt.Errorf("resolve roles: %w", err)
	}

	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = old.DeviceID
	}

	pair, err := s.issuePair(sub, roles, deviceID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rot := revocation.RotateRequest{
		Subject: sub,
		OldJTI:  old.ID,
		OldTTL:  s.revocationTTL(old, now),
		NewJTI:  pair.Refresh.ID,
		NewTTL:  pair.Refresh.Remaining(now),
	}
	if prior := s.priorAccess(req.PriorAccessToken, sub, now); prior != nil {
		rot.AccessJTI = prior.ID
		rot.AccessTTL = s.revocationTTL(prior, now)
	} else {
		// Without the prior token its jti is unknown, so every access token
		// older than the new one is revoked instead.
		rot.BanBefore = pair.Access.IssuedAt.Time
	}

	if err := s.Revocation.Rotate(ctx, rot); err != nil {
		switch {
		case errors.Is(err, revocation.ErrNotAllowed):
			l.Warn("refresh rotation lost", "sub", sub, "jti", old.ID)
			return nil, ErrNotAllowed
		case errors.Is(err, revocation.ErrBlacklisted):
			return nil, ErrBlacklisted
		default:
			return nil, fmt.Errorf("rotate: %w", err)
		}
	}

	l.Info("refresh token rotated",
		"sub", sub,
		"old_jti", old.ID,
		"new_jti", pair.Refresh.ID,
		"prior_access_jti", rot.AccessJTI,
		"epoch_raised", !rot.BanBefore.IsZero(),
	)
	return pair, nil
}

// priorAccess returns the claims of raw when it is a live access token of
// sub, or nil.
func (s *SessionService) priorAccess(raw, sub string, now time.Time) *jwtx.Claims {
	raw = httpx.StripBearer(raw)
	if raw == "" {
		return nil
	}
	c, err := s.Validator.Validate(raw)
	if err != nil || c.Kind != jwtx.KindAccess || c.Subject != sub || c.ID == "" {
		return nil
	}
	if c.Remaining(now) <= 0 {
		return nil
	}
	return c
}

// Logout revokes the presented access token and, when it belongs to the
// same subject, the presented refresh token.
func (s *SessionService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	access, err := s.Validator.Validate(httpx.StripBearer(accessToken))
	if err != nil {
		return fmt.Errorf("access token: %w", err)
	}
	if access.Kind != jwtx.KindAccess {
		return ErrWrongTokenKind
	}

	now := s.now()
	var errs []error
	if err := s.Revocation.AccessBlacklist().Put(ctx, access.ID, s.revocationTTL(access, now)); err != nil {
		errs = append(errs, fmt.Errorf("blacklist access: %w", err))
	}

	if refreshToken != "" {
		refresh, err := s.Validator.Validate(httpx.StripBearer(refreshToken))
		switch {
		case err != nil:
			slogx.FromContext(ctx).Info("logout ignored invalid refresh token", "sub", access.Subject, "err", err)
		case refresh.Kind != jwtx.KindRefresh || refresh.Subject != access.Subject:
			slogx.FromContext(ctx).Info("logout ignored foreign refresh token", "sub", access.Subject)
		default:
			if err := s.Revocation.RefreshBlacklist().Put(ctx, refresh.ID, s.revocationTTL(refresh, now)); err != nil {
				errs = append(errs, fmt.Errorf("blacklist refresh: %w", err))
			}
		}
	}

	slogx.FromContext(ctx).Info("logout", "sub", access.Subject, "jti", access.ID)
	return errors.Join(errs...)
}

// LogoutAll ends every session of subject. With revokeAccess the access
// tokens already handed out stop working too.
func (s *SessionService) LogoutAll(ctx context.Context, subject string, revokeAccess bool) error {
	if subject == "" {
		return ErrNotAllowed
	}

	var errs []error
	if err := s.Revocation.AllowList().Clear(ctx, subject); err != nil {
		errs = append(errs, fmt.Errorf("clear allow-list: %w", err))
	}
	if revokeAccess {
		if err := s.Revocation.Epochs().BanNow(ctx, subject); err != nil {
			errs = append(errs, fmt.Errorf("raise epoch: %w", err))
		}
	}

	slogx.FromContext(ctx).Info("logout all", "sub", subject, "revoke_access", revokeAccess)
	return errors.Join(errs...)
}

// Authenticate is the check every protected request goes through.
func (s *SessionService) Authenticate(ctx context.Context, token string) (*jwtx.Claims, error) {
	c, err := s.Validator.Validate(token)
	if err != nil {
		return nil, err
	}
	if c.Kind != jwtx.KindAccess {
		return nil, ErrWrongTokenKind
	}
	if s.Revocation.AccessBlacklist().Contains(ctx, c.ID) {
		return nil, ErrBlacklisted
	}

	var iat time.Time
	if c.IssuedAt != nil {
		iat = c.IssuedAt.Time
	}
	if s.Revocation.Epochs().IsRevoked(ctx, c.Subject, iat) {
		return nil, ErrRevoked
	}
	return c, nil
}

func (s *SessionService) issuePair(subject string, roles []string, deviceID string) (*domain.TokenPair, error) {
	access, err := s.Issuer.IssueAccess(subject, roles, deviceID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.Issuer.IssueRefresh(subject, deviceID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		ExpiresIn:    s.Issuer.AccessTTL(),
		Access:       &access.Claims,
		Refresh:      &refresh.Claims,
	}, nil
}
