package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/oauth2"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/metrics"
	"github.com/gatehouse/gatehouse/internal/repository"
	"github.com/gatehouse/gatehouse/internal/session"
)

// Outcome is the result of one federated gate evaluation.
type Outcome string

// Gate outcomes.
const (
	// OutcomeIdle means there was no new external session to act on.
	OutcomeIdle Outcome = "idle"
	// OutcomeAdmitted means the external identity is registered and the
	// session is now authenticated with a federated source.
	OutcomeAdmitted Outcome = "admitted"
	// OutcomeIdentityMissing means the provider gave no usable identity.
	OutcomeIdentityMissing Outcome = "identity_missing"
	// OutcomeNotRegistered means the identity has no local account.
	OutcomeNotRegistered Outcome = "not_registered"
	// OutcomeSkipped means the session was already authenticated when the
	// external session appeared.
	OutcomeSkipped Outcome = "skipped"
)

// FederatedGate admits externally authenticated identities only if they
// already have a local account. Federated authentication alone never
// creates an account or authorizes a session.
type FederatedGate struct {
	store    CredentialStore
	provider IdentityProvider
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewFederatedGate creates a FederatedGate. A nil provider disables the
// sign-in entry points while Evaluate and Disconnect keep working.
func NewFederatedGate(store CredentialStore, provider IdentityProvider, recorder metrics.Recorder, logger *slog.Logger) *FederatedGate {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FederatedGate{
		store:    store,
		provider: provider,
		metrics:  recorder,
		logger:   logger,
	}
}

// Enabled reports whether a provider is configured.
func (g *FederatedGate) Enabled() bool {
	return g.provider != nil
}

// BeginLogin starts a provider login bound to sess and returns the URL to
// redirect the user agent to.
func (g *FederatedGate) BeginLogin(sess *session.Session) (string, error) {
	if g.provider == nil {
		return "", ErrFederatedDisabled
	}
	if sess.JustLoggedOut() {
		return "", ErrSignInSuppressed
	}
	if sess.IsAuthenticated() {
		return "", ErrAlreadyAuthenticated
	}

	state, err := auth.NewState()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	sess.BeginPending(session.PendingLogin{State: state, Verifier: verifier})
	return g.provider.AuthCodeURL(state, verifier), nil
}

// CompleteLogin handles the provider callback: it checks state, redeems
// code, records the external session and evaluates the gate.
func (g *FederatedGate) CompleteLogin(ctx context.Context, sess *session.Session, state, code string) (Outcome, error) {
	if g.provider == nil {
		return OutcomeIdle, ErrFederatedDisabled
	}

	pending, ok := sess.TakePending(state)
	if !ok || code == "" {
		g.metrics.IncAuthOutcome(metrics.OpFederated, string(CodeInvalidState))
		return OutcomeIdle, ErrInvalidState
	}

	ext, err := g.provider.Exchange(ctx, code, pending.Verifier)
	if err != nil {
		g.logger.Error("provider exchange failed", "provider", g.provider.Name(), "error", err)
		g.metrics.IncAuthOutcome(metrics.OpFederated, string(CodeInternalError))
		return OutcomeIdle, fmt.Errorf("provider exchange: %w", err)
	}

	sess.SetExternal(ext)
	return g.Evaluate(ctx, sess)
}

// Evaluate runs one gate cycle. The gate acts once per appearance of an
// external session: it is armed when the session goes from absent to
// present and disarmed by a successful admission. A refused identity
// leaves the gate armed, so signing up and evaluating again admits it.
func (g *FederatedGate) Evaluate(ctx context.Context, sess *session.Session) (outcome Outcome, err error) {
	defer func() {
		if outcome != OutcomeIdle {
			g.metrics.IncGateDecision(string(outcome))
			g.metrics.IncAuthOutcome(metrics.OpFederated, string(CodeFor(err)))
		}
	}()

	if !sess.ObserveExternal() {
		return OutcomeIdle, nil
	}

	if sess.IsAuthenticated() {
		sess.Disarm()
		return OutcomeSkipped, nil
	}

	ext := sess.External()
	email := ""
	if ext != nil && ext.IsLoggedIn() {
		email = strings.TrimSpace(ext.Email())
	}
	if email == "" {
		return OutcomeIdentityMissing, ErrFederatedIdentityMissing
	}

	user, err := g.store.FindByIdentity(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			g.logger.Info("federated identity refused", "identity", email, "reason", "not_registered")
			return OutcomeNotRegistered, ErrNotRegistered
		}
		g.logger.Error("failed to look up account", "identity", email, "error", err)
		return OutcomeIdle, fmt.Errorf("find account: %w", err)
	}

	if err := sess.Authenticate(user.Identity, session.SourceFederated); err != nil {
		return OutcomeIdle, fmt.Errorf("authenticate session: %w", err)
	}
	sess.Disarm()

	g.logger.Info("login succeeded", "identity", user.Identity, "source", session.SourceFederated.String())
	return OutcomeAdmitted, nil
}

// Disconnect ends only the external provider session. The local
// authentication state is left unchanged. It returns the provider logout
// URL, if any.
func (g *FederatedGate) Disconnect(sess *session.Session) string {
	sess.ClearExternal()
	sess.ObserveExternal()
	if g.provider == nil {
		return ""
	}
	return g.provider.EndSessionURL()
}
