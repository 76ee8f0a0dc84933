package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/tollgate/internal/auth/domain"
	"github.com/aussiebroadwan/tollgate/internal/auth/store"
	"github.com/aussiebroadwan/tollgate/pkg/cryptox"
	"github.com/aussiebroadwan/tollgate/pkg/idx"
	"github.com/aussiebroadwan/tollgate/pkg/slogx"
)

// AccountService handles password registration and login. Both pass their
// attempt gate first and open a session on success.
type AccountService struct {
	Store    store.Store
	Hasher   *cryptox.PasswordHasher
	Sessions *SessionService
	Captcha  CaptchaVerifier

	LoginGate    AttemptGate
	RegisterGate AttemptGate

	// Now defaults to time.Now.
	Now func() time.Time
}

type LoginRequest struct {
	Username     string
	Password     string
	CaptchaToken string
	ClientIP     string
	DeviceID     string
}

type RegisterRequest struct {
	Username     string
	Email        string
	Password     string
	CaptchaToken string
	ClientIP     string
	DeviceID     string
}

func (s *AccountService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// passGate enforces the captcha challenge once the client's failures hit
// the gate threshold. A wrong captcha counts as another failure.
func (s *AccountService) passGate(ctx context.Context, gate AttemptGate, ip, captchaToken string) error {
	if !gate.IsChallengeRequired(ctx, ip) {
		return nil
	}
	if strings.TrimSpace(captchaToken) == "" {
		return ErrCaptchaRequired
	}
	if !s.Captcha.Verify(ctx, captchaToken, ip) {
		gate.RecordFailure(ctx, ip)
		return ErrCaptchaInvalid
	}
	return nil
}

func (s *AccountService) Login(ctx context.Context, req LoginRequest) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	if err := s.passGate(ctx, s.LoginGate, req.ClientIP, req.CaptchaToken); err != nil {
		l.Info("login gated", "ip", req.ClientIP, "outcome", Classify(err).String(), "err", err)
		return nil, err
	}

	user, err := s.Store.Users().GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		s.LoginGate.RecordFailure(ctx, req.ClientIP)
		if errors.Is(err, store.ErrNotFound) {
			l.Info("login for unknown user", "ip", req.ClientIP)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := s.Hasher.Verify(req.Password, user.PasswordHash); err != nil {
		s.LoginGate.RecordFailure(ctx, req.ClientIP)
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Error("stored password hash unusable", "sub", user.ID, "err", err)
		}
		l.Info("login password mismatch", "sub", user.ID, "ip", req.ClientIP)
		return nil, ErrInvalidCredentials
	}

	if err := s.Store.Users().UpdateLastLogin(ctx, user.ID, s.now()); err != nil {
		l.Warn("last login update failed", "sub", user.ID, "err", err)
	}

	pair, err := s.Sessions.Open(ctx, user.ID, user.Roles, req.DeviceID)
	if err != nil {
		return nil, err
	}

	s.LoginGate.Reset(ctx, req.ClientIP)
	return pair, nil
}

func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	if err := s.passGate(ctx, s.RegisterGate, req.ClientIP, req.CaptchaToken); err != nil {
		l.Info("registration gated", "ip", req.ClientIP, "outcome", Classify(err).String(), "err", err)
		return nil, err
	}

	pair, err := s.register(ctx, req)
	if err != nil {
		s.RegisterGate.RecordFailure(ctx, req.ClientIP)
		return nil, err
	}

	s.RegisterGate.Reset(ctx, req.ClientIP)
	return pair, nil
}

func (s *AccountService) register(ctx context.Context, req RegisterRequest) (*domain.TokenPair, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	users := s.Store.Users()
	usernameTaken, emailTaken, err := users.UsernameOrEmailTaken(ctx, username, email)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	switch {
	case usernameTaken:
		return nil, fmt.Errorf("%w: username", ErrUserExists)
	case emailTaken:
		return nil, fmt.Errorf("%w: email", ErrUserExists)
	}

	hash, err := s.Hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := domain.User{
		ID:           idx.NewAt(now).String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Roles:        []string{domain.RoleUser},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	slogx.FromContext(ctx).Info("user registered", "sub", user.ID)
	return s.Sessions.Open(ctx, user.ID, user.Roles, req.DeviceID)
}

// SubjectRoles implements SubjectDirectory over the user table.
func (s *AccountService) SubjectRoles(ctx context.Context, subject string) ([]string, error) {
	user, err := s.Store.Users().GetUserByID(ctx, subject)
	if err != nil {
		return nil, err
	}
	return user.Roles, nil
}
