package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gatehouse/gatehouse/internal/metrics"
	"github.com/gatehouse/gatehouse/internal/model"
	"github.com/gatehouse/gatehouse/internal/repository"
	"github.com/gatehouse/gatehouse/internal/session"
)

// CredentialStore is the durable users table.
type CredentialStore interface {
	CreateAccount(ctx context.Context, identity, passwordHash string) error
	FindByIdentity(ctx context.Context, identity string) (*model.UserAccount, error)
	UpdatePassword(ctx context.Context, identity, newHash string) (bool, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) bool
}

// IdentityProvider is the external sign-in provider.
type IdentityProvider interface {
	Name() string
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (*session.External, error)
	EndSessionURL() string
}

// AuthService handles sign-up, password login, password reset and logout.
type AuthService struct {
	store    CredentialStore
	hasher   PasswordHasher
	provider IdentityProvider
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewAuthService creates a new AuthService. provider may be nil when
// federated sign-in is not configured.
func NewAuthService(store CredentialStore, hasher PasswordHasher, provider IdentityProvider, recorder metrics.Recorder, logger *slog.Logger) *AuthService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		store:    store,
		hasher:   hasher,
		provider: provider,
		metrics:  recorder,
		logger:   logger,
	}
}

// SignUpInput defines input for registering an account.
type SignUpInput struct {
	Identity        string
	Password        string
	PasswordConfirm string
}

// SignUp registers a new account. It never changes any session.
func (s *AuthService) SignUp(ctx context.Context, input SignUpInput) (err error) {
	defer func() { s.metrics.IncAuthOutcome(metrics.OpSignUp, string(CodeFor(err))) }()

	identity := strings.TrimSpace(input.Identity)
	if identity == "" || input.Password == "" || input.PasswordConfirm == "" {
		return ErrFieldsMissing
	}
	if input.Password != input.PasswordConfirm {
		return ErrPasswordMismatch
	}

	hash, err := s.hash(input.Password)
	if err != nil {
		return err
	}

	if err := s.store.CreateAccount(ctx, identity, hash); err != nil {
		if errors.Is(err, repository.ErrIdentityExists) {
			return ErrAlreadyRegistered
		}
		s.logger.Error("failed to create account", "identity", identity, "error", err)
		return fmt.Errorf("create account: %w", err)
	}

	s.logger.Info("account registered", "identity", identity)
	return nil
}

// LoginInput defines input for a password login.
type LoginInput struct {
	Identity string
	Password string
}

// Login checks the credentials and authenticates sess with a local source.
// Credential errors are reported before the session state is considered.
func (s *AuthService) Login(ctx context.Context, sess *session.Session, input LoginInput) (err error) {
	defer func() { s.metrics.IncAuthOutcome(metrics.OpLogin, string(CodeFor(err))) }()

	identity := strings.TrimSpace(input.Identity)
	if identity == "" || input.Password == "" {
		return ErrFieldsMissing
	}

	user, err := s.store.FindByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrNotFound
		}
		s.logger.Error("failed to look up account", "identity", identity, "error", err)
		return fmt.Errorf("find account: %w", err)
	}

	if !s.verify(input.Password, user.PasswordHash) {
		s.logger.Info("login rejected", "identity", identity, "reason", "incorrect_credentials")
		return ErrIncorrectCredentials
	}

	if err := sess.Authenticate(user.Identity, session.SourceLocal); err != nil {
		if errors.Is(err, session.ErrAlreadyAuthenticated) {
			return ErrAlreadyAuthenticated
		}
		return fmt.Errorf("authenticate session: %w", err)
	}

	s.logger.Info("login succeeded", "identity", user.Identity, "source", session.SourceLocal.String())
	return nil
}

// ResetInput defines input for a password reset.
type ResetInput struct {
	Identity        string
	Password        string
	PasswordConfirm string
}

// ResetPassword replaces the password of an existing account.
func (s *AuthService) ResetPassword(ctx context.Context, input ResetInput) (err error) {
	defer func() { s.metrics.IncAuthOutcome(metrics.OpReset, string(CodeFor(err))) }()

	identity := strings.TrimSpace(input.Identity)
	if identity == "" || input.Password == "" || input.PasswordConfirm == "" {
		return ErrFieldsMissing
	}
	if input.Password != input.PasswordConfirm {
		return ErrPasswordMismatch
	}

	if _, err := s.store.FindByIdentity(ctx, identity); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrNotFound
		}
		s.logger.Error("failed to look up account", "identity", identity, "error", err)
		return fmt.Errorf("find account: %w", err)
	}

	hash, err := s.hash(input.Password)
	if err != nil {
		return err
	}

	updated, err := s.store.UpdatePassword(ctx, identity, hash)
	if err != nil {
		s.logger.Error("failed to update password", "identity", identity, "error", err)
		return fmt.Errorf("update password: %w", err)
	}
	if !updated {
		// The account existed a moment ago; only a concurrent delete gets here.
		s.logger.Warn("password update matched no rows", "identity", identity)
		return ErrResetFailed
	}

	s.logger.Info("password reset", "identity", identity)
	return nil
}

// LogoutResult describes what a logout ended.
type LogoutResult struct {
	Previous session.Source
	// EndSessionURL is the provider logout page, set only when a federated
	// session ended and the provider has one.
	EndSessionURL string
}

// Logout returns sess to Anonymous. Ending a federated session also drops
// the external provider session. Logging out an anonymous session is a no-op.
func (s *AuthService) Logout(ctx context.Context, sess *session.Session) LogoutResult {
	identity, _ := sess.Identity()
	prev := sess.Logout()
	result := LogoutResult{Previous: prev}

	if prev == session.SourceFederated {
		sess.ClearExternal()
		if s.provider != nil {
			result.EndSessionURL = s.provider.EndSessionURL()
		}
	}

	if prev != session.SourceNone {
		s.metrics.IncAuthOutcome(metrics.OpLogout, prev.String())
		s.logger.InfoContext(ctx, "logged out", "identity", identity, "source", prev.String())
	}
	return result
}

func (s *AuthService) hash(password string) (string, error) {
	start := time.Now()
	hash, err := s.hasher.Hash(password)
	s.metrics.ObserveHashDuration(time.Since(start))
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func (s *AuthService) verify(password, encodedHash string) bool {
	start := time.Now()
	ok := s.hasher.Verify(password, encodedHash)
	s.metrics.ObserveHashDuration(time.Since(start))
	return ok
}
