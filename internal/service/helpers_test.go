package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/metrics"
	"github.com/gatehouse/gatehouse/internal/model"
	"github.com/gatehouse/gatehouse/internal/repository"
	"github.com/gatehouse/gatehouse/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()
	store, err := repository.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestHasher(t *testing.T) *auth.Hasher {
	t.Helper()
	h, err := auth.NewHasher(auth.HasherConfig{Algorithm: auth.AlgorithmBcrypt, BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("NewHasher() error = %v", err)
	}
	return h
}

type testEnv struct {
	store    *repository.SQLiteStore
	provider *fakeProvider
	metrics  *metrics.InMemoryRecorder
	auth     *AuthService
	gate     *FederatedGate
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newTestStore(t)
	provider := &fakeProvider{endURL: "https://idp.example/logout"}
	rec := metrics.NewInMemory()
	return &testEnv{
		store:    store,
		provider: provider,
		metrics:  rec,
		auth:     NewAuthService(store, newTestHasher(t), provider, rec, discardLogger()),
		gate:     NewFederatedGate(store, provider, rec, discardLogger()),
	}
}

func (e *testEnv) register(t *testing.T, identity, password string) {
	t.Helper()
	err := e.auth.SignUp(context.Background(), SignUpInput{Identity: identity, Password: password, PasswordConfirm: password})
	if err != nil {
		t.Fatalf("SignUp(%q) error = %v", identity, err)
	}
}

type fakeProvider struct {
	ext          *session.External
	err          error
	endURL       string
	lastState    string
	lastVerifier string
	gotVerifier  string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) AuthCodeURL(state, verifier string) string {
	f.lastState = state
	f.lastVerifier = verifier
	return "https://idp.example/authorize?state=" + state
}

func (f *fakeProvider) Exchange(_ context.Context, _ string, verifier string) (*session.External, error) {
	f.gotVerifier = verifier
	if f.err != nil {
		return nil, f.err
	}
	return f.ext, nil
}

func (f *fakeProvider) EndSessionURL() string { return f.endURL }

// stubStore lets tests force storage outcomes the real stores cannot
// produce on demand.
type stubStore struct {
	user      *model.UserAccount
	findErr   error
	createErr error
	updateOK  bool
	updateErr error
}

func (s *stubStore) CreateAccount(context.Context, string, string) error { return s.createErr }

func (s *stubStore) FindByIdentity(context.Context, string) (*model.UserAccount, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.user == nil {
		return nil, repository.ErrUserNotFound
	}
	return s.user, nil
}

func (s *stubStore) UpdatePassword(context.Context, string, string) (bool, error) {
	return s.updateOK, s.updateErr
}

func assertAnonymous(t *testing.T, sess *session.Session) {
	t.Helper()
	if sess.IsAuthenticated() {
		t.Fatalf("session should be anonymous, source = %v", sess.Source())
	}
	if identity, ok := sess.Identity(); ok || identity != "" {
		t.Fatalf("Identity() = %q, %v, want empty", identity, ok)
	}
}

func assertAuthenticated(t *testing.T, sess *session.Session, identity string, src session.Source) {
	t.Helper()
	got, ok := sess.Identity()
	if !ok || got != identity {
		t.Fatalf("Identity() = %q, %v, want %q", got, ok, identity)
	}
	if sess.Source() != src {
		t.Fatalf("Source() = %v, want %v", sess.Source(), src)
	}
}
