package session

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatiitd/chatterm/internal/api"
)

type fakeExchanger struct {
	token string
	err   error
	calls int
}

func (f *fakeExchanger) ExchangeCode(ctx context.Context, code, state string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

func testConfig() Config {
	return Config{
		APIBaseURL:  "http://localhost:8000",
		ClientID:    "client-1",
		AuthBaseURL: "https://oauth.example.com",
		RedirectURL: "http://localhost:8910/callback",
	}
}

func TestBootstrapRestoresPersistedToken(t *testing.T) {
	store := &MemStore{}
	require.NoError(t, store.Save("persisted-token"))

	m := NewManager(testConfig(), &fakeExchanger{}, store, nil)
	require.NoError(t, m.Bootstrap(context.Background(), CallbackParams{}))

	state, errMsg := m.Snapshot()
	assert.Equal(t, StateAuthenticated, state)
	assert.Empty(t, errMsg)
	assert.Equal(t, "persisted-token", m.Token())
	assert.True(t, m.Authenticated())
}

func TestBootstrapWithoutTokenIsUnauthenticated(t *testing.T) {
	m := NewManager(testConfig(), &fakeExchanger{}, &MemStore{}, nil)
	require.NoError(t, m.Bootstrap(context.Background(), CallbackParams{}))

	state, _ := m.Snapshot()
	assert.Equal(t, StateUnauthenticated, state)
	assert.False(t, m.Authenticated())
}

func TestBootstrapIsIdempotentPerConfiguration(t *testing.T) {
	store := &MemStore{}
	m := NewManager(testConfig(), &fakeExchanger{}, store, nil)

	require.NoError(t, m.Bootstrap(context.Background(), CallbackParams{}))
	first, _ := m.Snapshot()

	// A token appearing in the store afterwards must not change the outcome:
	// the configuration has already resolved.
	require.NoError(t, store.Save("late-token"))
	require.NoError(t, m.Bootstrap(context.Background(), CallbackParams{}))

	second, _ := m.Snapshot()
	assert.Equal(t, first, second)
	assert.Empty(t, m.Token())
}

func TestBootstrapExchangeSucceeds(t *testing.T) {
	store := &MemStore{}
	exchanger := &fakeExchanger{token: "fresh-token"}
	m := NewManager(testConfig(), exchanger, store, nil)

	require.NoError(t, m.Bootstrap(context.Background(), CallbackParams{Code: "abc", State: "xyz"}))

	state, _ := m.Snapshot()
	assert.Equal(t, StateAuthenticated, state)
	assert.Equal(t, "fresh-token", m.Token())

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", persisted)
}

func TestBootstrapDoesNotReExchangeAResolvedCode(t *testing.T) {
	exchanger := &fakeExchanger{token: "fresh-token"}
	m := NewManager(testConfig(), exchanger, &MemStore{}, nil)

	params := CallbackParams{Code: "single-use", State: "xyz"}
	require.NoError(t, m.Bootstrap(context.Background(), params))
	require.NoError(t, m.Bootstrap(context.Background(), params))

	assert.Equal(t, 1, exchanger.calls, "a single-use code must be exchanged at most once")
}

// blockingExchanger holds every exchange until release is closed.
type blockingExchanger struct {
	token   string
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingExchanger) ExchangeCode(ctx context.Context, code, state string) (string, error) {
	b.calls.Add(1)
	b.started <- struct{}{}
	<-b.release
	return b.token, nil
}

func TestConcurrentBootstrapExchangesCodeOnce(t *testing.T) {
	exchanger := &blockingExchanger{
		token:   "fresh-token",
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	m := NewManager(testConfig(), exchanger, &MemStore{}, nil)

	params := CallbackParams{Code: "single-use", State: "xyz"}
	firstDone := make(chan error, 1)
	go func() { firstDone <- m.Bootstrap(context.Background(), params) }()
	<-exchanger.started

	// Re-triggered while the first exchange is still in flight: must not
	// reach the exchanger a second time.
	require.NoError(t, m.Bootstrap(context.Background(), params))

	close(exchanger.release)
	require.NoError(t, <-firstDone)

	assert.Equal(t, int32(1), exchanger.calls.Load(), "a single-use code must be exchanged at most once")
	assert.True(t, m.Authenticated())
	assert.Equal(t, "fresh-token", m.Token())
}

func TestBootstrapExchangeFailureClearsToken(t *testing.T) {
	store := &MemStore{}
	require.NoError(t, store.Save("stale-token"))

	exchanger := &fakeExchanger{err: &api.Error{Status: 401, Message: "authorization code expired"}}
	m := NewManager(testConfig(), exchanger, store, nil)

	require.NoError(t, m.Bootstrap(context.Background(), CallbackParams{Code: "dead"}))

	state, errMsg := m.Snapshot()
	assert.Equal(t, StateError, state)
	assert.Equal(t, "authorization code expired", errMsg)
	assert.Empty(t, m.Token())
	assert.False(t, m.Authenticated())

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, persisted, "failed exchange must clear the persisted token")
}

func TestBootstrapMissingTokenInResponseIsAnError(t *testing.T) {
	exchanger := &fakeExchanger{err: api.ErrMissingToken}
	m := NewManager(testConfig(), exchanger, &MemStore{}, nil)

	require.NoError(t, m.Bootstrap(context.Background(), CallbackParams{Code: "abc"}))

	state, errMsg := m.Snapshot()
	assert.Equal(t, StateError, state)
	assert.NotEmpty(t, errMsg)
}

func TestBootstrapDiscardsResultAfterTeardown(t *testing.T) {
	exchanger := &fakeExchanger{token: "late-token"}
	m := NewManager(testConfig(), exchanger, &MemStore{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Bootstrap(ctx, CallbackParams{Code: "abc"})
	require.ErrorIs(t, err, context.Canceled)

	state, _ := m.Snapshot()
	assert.Equal(t, StateBootstrapping, state, "no state mutation after teardown")
	assert.Empty(t, m.Token())

	// The discarded bootstrap must not block a later attempt.
	require.NoError(t, m.Bootstrap(context.Background(), CallbackParams{Code: "abc"}))
	assert.True(t, m.Authenticated())
}

func TestLoginURL(t *testing.T) {
	t.Run("builds the provider sign-in address", func(t *testing.T) {
		m := NewManager(testConfig(), &fakeExchanger{}, &MemStore{}, nil)

		u, err := m.LoginURL()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(u, "https://oauth.example.com/signin?"))
		assert.Contains(t, u, "client_id=client-1")
		assert.Contains(t, u, "redirect_uri=http%3A%2F%2Flocalhost%3A8910%2Fcallback")
		assert.Contains(t, u, "state=")
	})

	t.Run("missing client id blocks login", func(t *testing.T) {
		cfg := testConfig()
		cfg.ClientID = ""
		m := NewManager(cfg, &fakeExchanger{}, &MemStore{}, nil)

		_, err := m.LoginURL()
		require.ErrorIs(t, err, ErrMissingClientID)

		_, errMsg := m.Snapshot()
		assert.Equal(t, ErrMissingClientID.Error(), errMsg)
	})

	t.Run("missing redirect blocks login", func(t *testing.T) {
		cfg := testConfig()
		cfg.RedirectURL = ""
		m := NewManager(cfg, &fakeExchanger{}, &MemStore{}, nil)

		_, err := m.LoginURL()
		require.ErrorIs(t, err, ErrMissingRedirect)
	})
}

func TestLogoutClearsEverything(t *testing.T) {
	store := &MemStore{}
	exchanger := &fakeExchanger{token: "tok"}
	m := NewManager(testConfig(), exchanger, store, nil)
	require.NoError(t, m.Bootstrap(context.Background(), CallbackParams{Code: "abc"}))
	require.True(t, m.Authenticated())

	m.Logout()

	state, errMsg := m.Snapshot()
	assert.Equal(t, StateUnauthenticated, state)
	assert.Empty(t, errMsg)
	assert.Empty(t, m.Token())

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "bootstrapping", StateBootstrapping.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
	assert.Equal(t, "unauthenticated", StateUnauthenticated.String())
	assert.Equal(t, "error", StateError.String())
}
