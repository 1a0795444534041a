// Package session owns the authentication lifecycle: it resolves the
// initial auth state once per backend configuration, exchanges OAuth
// callback codes for tokens, and exposes login/logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/chatiitd/chatterm/internal/api"
)

// State is the authentication state of the session.
type State int

const (
	// StateBootstrapping is the initial state before the first Bootstrap
	// resolves.
	StateBootstrapping State = iota
	// StateAuthenticated means a non-empty access token is held.
	StateAuthenticated
	// StateUnauthenticated means no token is held and no error occurred.
	StateUnauthenticated
	// StateError means the last bootstrap or exchange failed. It grants no
	// access, but is kept distinct from StateUnauthenticated for display.
	StateError
)

func (s State) String() string {
	switch s {
	case StateBootstrapping:
		return "bootstrapping"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Sentinel errors for the login path.
var (
	ErrMissingClientID = errors.New("OAuth client id is not configured")
	ErrMissingRedirect = errors.New("OAuth redirect address is not configured")
)

// Exchanger trades an authorization code for an access token.
// *api.Client satisfies this.
type Exchanger interface {
	ExchangeCode(ctx context.Context, code, state string) (string, error)
}

// Config is the OAuth configuration surface of the session manager.
type Config struct {
	// APIBaseURL is the backend base address (used only to fingerprint the
	// configuration for bootstrap idempotency; requests go through the
	// Exchanger).
	APIBaseURL string
	// ClientID is the OAuth client identifier.
	ClientID string
	// AuthBaseURL is the OAuth provider base address.
	AuthBaseURL string
	// RedirectURL is the address the provider redirects back to.
	RedirectURL string
}

// fingerprint identifies a distinct backend endpoint configuration.
func (c Config) fingerprint() string {
	return strings.Join([]string{c.APIBaseURL, c.ClientID, c.AuthBaseURL, c.RedirectURL}, "\x00")
}

// Manager is the session state machine. The zero state is
// StateBootstrapping; exactly one call to Bootstrap per configuration
// resolves it. Safe for concurrent use.
type Manager struct {
	mu        sync.Mutex
	cfg       Config
	exchanger Exchanger
	store     TokenStore
	logger    *slog.Logger

	state    State
	errMsg   string
	token    string
	resolved map[string]bool
	inFlight map[string]bool
}

// NewManager creates a session manager. store must not be nil; a nil logger
// falls back to slog.Default().
func NewManager(cfg Config, exchanger Exchanger, store TokenStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:       cfg,
		exchanger: exchanger,
		store:     store,
		logger:    logger,
		state:     StateBootstrapping,
		resolved:  make(map[string]bool),
		inFlight:  make(map[string]bool),
	}
}

// Bootstrap resolves the initial authentication state. When params carry an
// authorization code it is exchanged for a token; otherwise a persisted
// token is restored. Re-invoking while a bootstrap for the current
// configuration is in flight, or after it has resolved, is a no-op, which
// guards against double-spending a single-use code. If ctx is cancelled
// before the exchange completes the result is discarded, no state is
// mutated, and the configuration stays bootstrappable.
func (m *Manager) Bootstrap(ctx context.Context, params CallbackParams) error {
	fp := m.cfg.fingerprint()

	m.mu.Lock()
	if m.resolved[fp] || m.inFlight[fp] {
		m.mu.Unlock()
		m.logger.Debug("bootstrap already resolved or in flight", "state", m.state.String())
		return nil
	}
	m.inFlight[fp] = true
	m.mu.Unlock()

	if params.HasCode() {
		return m.exchange(ctx, fp, params)
	}

	token, err := m.store.Load()

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inFlight, fp)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.resolved[fp] = true
	if err != nil {
		m.logger.Warn("token restore failed", "error", err)
		m.setUnauthenticatedLocked()
		return nil
	}
	if token != "" {
		m.token = token
		m.state = StateAuthenticated
		m.errMsg = ""
		m.logger.Info("session restored from persisted token")
	} else {
		m.setUnauthenticatedLocked()
		m.logger.Info("no persisted token, starting unauthenticated")
	}
	return nil
}

// exchange trades the callback code for a token and records the outcome.
func (m *Manager) exchange(ctx context.Context, fp string, params CallbackParams) error {
	token, err := m.exchanger.ExchangeCode(ctx, params.Code, params.State)

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inFlight, fp)

	// The owning context was torn down while the exchange was in flight:
	// discard the result, whatever it was.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	// The code is consumed either way; never retry it.
	m.resolved[fp] = true

	if err != nil {
		msg := api.ErrorMessage(err)
		m.logger.Error("callback exchange failed", "error", err)
		m.token = ""
		m.state = StateError
		m.errMsg = msg
		if cErr := m.store.Clear(); cErr != nil {
			m.logger.Warn("failed to clear persisted token", "error", cErr)
		}
		return nil
	}

	m.token = token
	m.state = StateAuthenticated
	m.errMsg = ""
	if sErr := m.store.Save(token); sErr != nil {
		m.logger.Warn("failed to persist token", "error", sErr)
	}
	m.logger.Info("callback exchange succeeded")
	return nil
}

// LoginURL validates the login prerequisites and returns the provider
// sign-in address. On missing configuration it records a displayable error
// and returns it without navigating anywhere.
func (m *Manager) LoginURL() (string, error) {
	var err error
	switch {
	case m.cfg.ClientID == "":
		err = ErrMissingClientID
	case m.cfg.RedirectURL == "":
		err = ErrMissingRedirect
	}
	if err != nil {
		m.mu.Lock()
		m.errMsg = err.Error()
		m.mu.Unlock()
		return "", err
	}

	q := url.Values{}
	q.Set("client_id", m.cfg.ClientID)
	q.Set("redirect_uri", m.cfg.RedirectURL)
	q.Set("state", uuid.NewString())

	base := strings.TrimRight(m.cfg.AuthBaseURL, "/")
	return base + "/signin?" + q.Encode(), nil
}

// Logout clears the in-memory token, any error, and the persisted token.
// It never does a server round-trip.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.token = ""
	m.errMsg = ""
	m.state = StateUnauthenticated
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		m.logger.Warn("failed to clear persisted token", "error", err)
	}
	m.logger.Info("logged out")
}

// Token returns the current access token, empty when unauthenticated.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Authenticated reports whether a token is held.
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateAuthenticated && m.token != ""
}

// Snapshot returns the current state and, for StateError, its message.
func (m *Manager) Snapshot() (State, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.errMsg
}

func (m *Manager) setUnauthenticatedLocked() {
	m.token = ""
	m.errMsg = ""
	m.state = StateUnauthenticated
}
