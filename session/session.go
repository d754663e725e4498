// Package session owns the authentication credential and the current-user
// identity.
//
// The store is the single writer for both: only the operations defined here
// (and the transport's 401 handler, via Expire) may change them. The bearer
// token is held in a memguard Enclave while in memory and persisted through a
// credstore.Store so it survives restarts. Absence of a credential means
// anonymous; the invariant credential == nil implies user == nil always
// holds.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/go-playground/validator/v10"

	"github.com/mkline/civicsync/civic"
	"github.com/mkline/civicsync/credstore"
	"github.com/mkline/civicsync/internal/util"
	"github.com/mkline/civicsync/transport"
)

// Phase is the request-lifecycle phase of the session.
type Phase int

const (
	// PhaseIdle means anonymous with no auth operation in flight.
	PhaseIdle Phase = iota
	// PhaseLoading means an auth operation is in flight.
	PhaseLoading
	// PhaseReady means authenticated; User() is non-nil.
	PhaseReady
	// PhaseFailed means the last auth operation failed; LastError() has
	// the cause.
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Store owns the session state.
type Store struct {
	mu      sync.RWMutex
	tc      *transport.Client
	creds   credstore.Store
	token   *memguard.Enclave
	user    *civic.User
	phase   Phase
	lastErr error

	log      *slog.Logger
	validate *validator.Validate
}

var _ transport.CredentialSource = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.log = logger }
}

// New creates a session store that talks through tc and persists the
// credential in creds.
func New(tc *transport.Client, creds credstore.Store, opts ...Option) *Store {
	s := &Store{
		tc:       tc,
		creds:    creds,
		phase:    PhaseIdle,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	return s
}

// Credential implements transport.CredentialSource. It returns a copy of the
// bearer token, or ok=false when the session is anonymous.
func (s *Store) Credential() (string, bool) {
	s.mu.RLock()
	enclave := s.token
	s.mu.RUnlock()
	if enclave == nil {
		return "", false
	}
	buf, err := enclave.Open()
	if err != nil {
		return "", false
	}
	defer buf.Destroy()
	return string(buf.Bytes()), true
}

// Phase returns the current lifecycle phase.
func (s *Store) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// User returns a copy of the current user identity, or nil when anonymous.
func (s *Store) User() *civic.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Authenticated reports whether a user identity is established.
func (s *Store) Authenticated() bool {
	return s.User() != nil
}

// LastError returns the error recorded by the most recent failed auth
// operation, or nil.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// authResponse is the wire shape of register and login responses.
type authResponse struct {
	User  *civic.User `json:"user"`
	Token string      `json:"token"`
}

// RegisterInput is the client-side validated register payload.
type RegisterInput struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
	Confirm  string `validate:"eqfield=Password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account. On success the returned credential and user
// are stored in memory and the session transitions to PhaseReady. The
// credential is not persisted durably; a later Login establishes the durable
// session. Validation failures never reach the network.
func (s *Store) Register(ctx context.Context, in RegisterInput) (*civic.User, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, util.AsValidationError(err)
	}

	s.setPhase(PhaseLoading)
	var resp authResponse
	err := s.tc.PostJSON(ctx, "/api/auth/register", registerRequest{
		Name:     in.Name,
		Email:    in.Email,
		Password: util.Normalize(in.Password),
	}, &resp)
	if err != nil {
		s.fail(err)
		return nil, err
	}

	s.mu.Lock()
	s.token = memguard.NewEnclave([]byte(resp.Token))
	s.user = resp.User
	s.phase = PhaseReady
	s.lastErr = nil
	s.mu.Unlock()
	s.log.Info("registered", "email", in.Email)
	return resp.User, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// Login authenticates with the service. The credential is persisted durably
// before any in-memory state changes, so a crash after the network success
// can always be recovered by Restore.
func (s *Store) Login(ctx context.Context, email, password string) (*civic.User, error) {
	if err := s.validate.Struct(loginInput{Email: email, Password: password}); err != nil {
		return nil, util.AsValidationError(err)
	}

	s.setPhase(PhaseLoading)
	var resp authResponse
	err := s.tc.PostJSON(ctx, "/api/auth/login", loginRequest{
		Email:    email,
		Password: util.Normalize(password),
	}, &resp)
	if err != nil {
		s.fail(err)
		return nil, err
	}

	// Durability precedes the state transition.
	if err := s.creds.Save(resp.Token); err != nil {
		s.fail(err)
		return nil, err
	}

	s.mu.Lock()
	s.token = memguard.NewEnclave([]byte(resp.Token))
	s.user = resp.User
	s.phase = PhaseReady
	s.lastErr = nil
	s.mu.Unlock()
	s.log.Info("logged in", "email", email)
	return resp.User, nil
}

// Restore recovers a session from the durable credential at process start.
// If no credential is stored it returns nil and the session stays anonymous.
// Any failure to fetch the identity, including a stale or revoked credential,
// evicts the credential so the next start boots cleanly anonymous.
func (s *Store) Restore(ctx context.Context) error {
	token, err := s.creds.Load()
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}

	s.mu.Lock()
	s.token = memguard.NewEnclave([]byte(token))
	s.phase = PhaseLoading
	s.mu.Unlock()

	var user civic.User
	if err := s.tc.GetJSON(ctx, "/api/auth/me", nil, &user); err != nil {
		// A 401 already evicted via Expire; evicting again is harmless.
		if cerr := s.creds.Clear(); cerr != nil {
			s.log.Warn("clearing credential failed", "error", cerr)
		}
		s.mu.Lock()
		s.token = nil
		s.user = nil
		s.phase = PhaseFailed
		s.lastErr = err
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.user = &user
	s.phase = PhaseReady
	s.lastErr = nil
	s.mu.Unlock()
	s.log.Info("session restored", "email", user.Email)
	return nil
}

// Logout notifies the server best-effort and clears the session locally
// unconditionally: local state is anonymous when Logout returns, even if the
// server call or the credential eviction failed.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.tc.GetJSON(ctx, "/api/auth/logout", nil, nil); err != nil {
		s.log.Warn("server logout failed", "error", err)
	}
	err := s.creds.Clear()
	s.mu.Lock()
	s.token = nil
	s.user = nil
	s.phase = PhaseIdle
	s.lastErr = nil
	s.mu.Unlock()
	return err
}

// Expire forces the session to anonymous without a server round trip. It is
// wired as the transport's 401 handler and may also be called directly.
func (s *Store) Expire() {
	if err := s.creds.Clear(); err != nil {
		s.log.Warn("clearing credential failed", "error", err)
	}
	s.mu.Lock()
	s.token = nil
	s.user = nil
	s.phase = PhaseIdle
	s.mu.Unlock()
	s.log.Info("session expired")
}

func (s *Store) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

func (s *Store) fail(err error) {
	s.mu.Lock()
	s.phase = PhaseFailed
	s.lastErr = err
	s.mu.Unlock()
}
