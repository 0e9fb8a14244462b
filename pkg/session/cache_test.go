package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/T1collo/agrofresh/clients"
	"github.com/T1collo/agrofresh/models"
	"github.com/T1collo/agrofresh/pkg/sessionstore"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeRemote struct {
	mu           sync.Mutex
	session      *clients.RemoteSession
	sessionErr   error
	profile      *models.User
	profileErr   error
	profileCalls int
	refreshCalls int
	signUpCalls  int
	subs         []func(clients.AuthEvent)
	// hang, when set, is signalled by GetSession, which then waits for ctx.
	hang chan struct{}
}

func (f *fakeRemote) GetSession(ctx context.Context) (*clients.RemoteSession, error) {
	f.mu.Lock()
	hang := f.hang
	f.mu.Unlock()
	if hang != nil {
		select {
		case hang <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return nil, fmt.Errorf("GET /api/auth/session: %w", ctx.Err())
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, f.sessionErr
}

func (f *fakeRemote) RefreshSession(context.Context) (*clients.Tokens, error) {
	f.mu.Lock()
	f.refreshCalls++
	f.session.ExpiresAt = f.session.ExpiresAt.Add(15 * time.Minute)
	f.mu.Unlock()
	f.emit(clients.EventTokenRefreshed)
	return &clients.Tokens{AccessToken: "refreshed"}, nil
}

func (f *fakeRemote) GetProfile(context.Context) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profileCalls++
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	u := *f.profile
	return &u, nil
}

func (f *fakeRemote) SignIn(_ context.Context, email, _ string) (*clients.Tokens, error) {
	f.mu.Lock()
	f.session = &clients.RemoteSession{Email: email, ExpiresAt: time.Now().Add(time.Hour)}
	f.mu.Unlock()
	f.emit(clients.EventSignedIn)
	return &clients.Tokens{AccessToken: "a"}, nil
}

func (f *fakeRemote) SignUp(ctx context.Context, in clients.SignUpInput) (*models.User, error) {
	f.mu.Lock()
	f.signUpCalls++
	f.mu.Unlock()
	_, err := f.SignIn(ctx, in.Email, in.Password)
	return f.profile, err
}

func (f *fakeRemote) SignOut(context.Context) error {
	f.mu.Lock()
	f.session = nil
	f.mu.Unlock()
	f.emit(clients.EventSignedOut)
	return nil
}

func (f *fakeRemote) Subscribe(fn func(clients.AuthEvent)) func() {
	f.mu.Lock()
	f.subs = append(f.subs, fn)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.subs = nil
		f.mu.Unlock()
	}
}

func (f *fakeRemote) emit(evt clients.AuthEvent) {
	f.mu.Lock()
	subs := append([]func(clients.AuthEvent){}, f.subs...)
	f.mu.Unlock()
	for _, fn := range subs {
		fn(evt)
	}
}

func (f *fakeRemote) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profileCalls
}

func (f *fakeRemote) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type recordingNotifier struct {
	mu        sync.Mutex
	messages  []string
	redirects int
}

func (n *recordingNotifier) Notify(msg string) {
	n.mu.Lock()
	n.messages = append(n.messages, msg)
	n.mu.Unlock()
}

func (n *recordingNotifier) RedirectToAuth() {
	n.mu.Lock()
	n.redirects++
	n.mu.Unlock()
}

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestCache(remote *fakeRemote) (*Cache, *clock, *recordingNotifier, sessionstore.Storage) {
	clk := &clock{t: t0}
	n := &recordingNotifier{}
	store := sessionstore.NewMemoryStorage()
	c := New(remote, store, WithClock(clk.Now), WithNotifier(n), WithRefreshInterval(time.Hour))
	return c, clk, n, store
}

func signedInRemote() *fakeRemote {
	return &fakeRemote{
		session: &clients.RemoteSession{UserID: "u1", ExpiresAt: t0.Add(15 * time.Minute)},
		profile: &models.User{ID: uuid.New(), Email: "ama@agrofresh.test", Name: "Ama"},
	}
}

func TestCheck_ProfileCacheTTL(t *testing.T) {
	remote := signedInRemote()
	c, clk, _, _ := newTestCache(remote)
	ctx := context.Background()

	assert.Equal(t, StateLoading, c.State())

	c.Check(ctx)
	require.Equal(t, StateAuthenticated, c.State())
	require.Equal(t, 1, remote.calls())

	clk.Advance(4 * time.Minute)
	c.Check(ctx)
	assert.Equal(t, 1, remote.calls(), "read at t0+4m is served from the cache")
	assert.Equal(t, "Ama", c.User().Name)

	clk.Advance(2 * time.Minute)
	c.Check(ctx)
	assert.Equal(t, 2, remote.calls(), "read at t0+6m refetches")
	assert.Equal(t, StateAuthenticated, c.State())
}

func TestCheck_FreshCacheNeedsNoNetwork(t *testing.T) {
	remote := signedInRemote()
	remote.sessionErr = errors.New("offline")
	c, clk, n, store := newTestCache(remote)
	ctx := context.Background()

	require.NoError(t, sessionstore.Write(ctx, store, storageKey, remote.profile, "", clk.Now().Add(-time.Minute)))

	c.Check(ctx)
	assert.Equal(t, StateAuthenticated, c.State())
	assert.Equal(t, 0, remote.calls())
	assert.Empty(t, n.messages)
}

func TestCheck_NoSessionIsAnonymous(t *testing.T) {
	remote := signedInRemote()
	remote.session = nil
	c, _, n, store := newTestCache(remote)
	ctx := context.Background()
	require.NoError(t, sessionstore.Write(ctx, store, storageKey, remote.profile, "", t0.Add(-time.Hour)))

	c.Check(ctx)
	assert.Equal(t, StateAnonymous, c.State())
	assert.Nil(t, c.User())
	_, ok, _ := store.Get(ctx, storageKey)
	assert.False(t, ok, "stale profile is cleared")
	assert.Empty(t, n.messages)
}

func TestFailures(t *testing.T) {
	t.Run("profile not found is silent", func(t *testing.T) {
		remote := signedInRemote()
		remote.profileErr = clients.ErrProfileNotFound
		c, _, n, _ := newTestCache(remote)

		c.Check(context.Background())
		assert.Equal(t, StateAnonymous, c.State())
		assert.Empty(t, n.messages)
		assert.Zero(t, n.redirects)
	})

	t.Run("remote failure notifies and redirects", func(t *testing.T) {
		remote := signedInRemote()
		remote.profileErr = &clients.APIError{StatusCode: 500, Message: "Internal server error"}
		c, _, n, _ := newTestCache(remote)

		c.Check(context.Background())
		assert.Equal(t, StateAnonymous, c.State())
		assert.Equal(t, []string{"Internal server error"}, n.messages)
		assert.Equal(t, 1, n.redirects)
	})
}

func TestRefresh_RotatesTokenNearExpiry(t *testing.T) {
	remote := signedInRemote()
	c, clk, _, _ := newTestCache(remote)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	defer c.Stop()
	require.Equal(t, 1, remote.calls())

	clk.Advance(4 * time.Minute)
	c.Refresh(ctx)
	assert.Equal(t, 0, remote.refreshCalls, "11 minutes left is above the threshold")
	assert.Equal(t, 1, remote.calls())

	clk.Advance(7 * time.Minute)
	c.Refresh(ctx)
	assert.Equal(t, 1, remote.refreshCalls)
	assert.Equal(t, 2, remote.calls(), "token refresh refetches the profile")
	assert.Equal(t, StateAuthenticated, c.State())
}

func TestEvents(t *testing.T) {
	remote := signedInRemote()
	c, _, n, store := newTestCache(remote)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	var states []State
	c.Subscribe(func(s State, _ *models.User) { states = append(states, s) })

	require.NoError(t, c.SignOut(ctx))
	assert.Equal(t, StateAnonymous, c.State())
	_, ok, _ := store.Get(ctx, storageKey)
	assert.False(t, ok)
	assert.Equal(t, 1, n.redirects, "signing out sends the user to sign in")
	assert.Empty(t, n.messages)

	user, err := c.SignIn(ctx, "ama@agrofresh.test", "FreshKale42")
	require.NoError(t, err)
	assert.Equal(t, "Ama", user.Name)
	assert.Equal(t, 2, remote.calls(), "sign-in fetches the profile once")
	assert.Equal(t, StateAuthenticated, states[len(states)-1])
}

func TestSignUpValidatesBeforeNetwork(t *testing.T) {
	remote := signedInRemote()
	c, _, _, _ := newTestCache(remote)

	_, err := c.SignUp(context.Background(), clients.SignUpInput{Email: "ama@agrofresh.test", Password: "a", ConfirmPassword: "b"})
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	_, err = c.SignIn(context.Background(), "", "x")
	assert.ErrorIs(t, err, ErrMissingFields)
	assert.Zero(t, remote.signUpCalls)

	user, err := c.SignUp(context.Background(), clients.SignUpInput{Email: "ama@agrofresh.test", Password: "FreshKale42", ConfirmPassword: "FreshKale42", Name: "Ama"})
	require.NoError(t, err)
	assert.Equal(t, "Ama", user.Name)
	assert.Equal(t, 1, remote.signUpCalls)
}

func TestStartTwiceAndStop(t *testing.T) {
	c, _, _, _ := newTestCache(signedInRemote())
	require.NoError(t, c.Start(context.Background()))
	assert.Error(t, c.Start(context.Background()))
	c.Stop()
	c.Stop()
}

func TestTimerRunsRefresh(t *testing.T) {
	remote := signedInRemote()
	clk := &clock{t: t0}
	c := New(remote, sessionstore.NewMemoryStorage(), WithClock(clk.Now), WithRefreshInterval(10*time.Millisecond))
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	clk.Advance(6 * time.Minute)
	assert.Eventually(t, func() bool { return remote.calls() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestSignInWhileStartedFetchesOnce(t *testing.T) {
	remote := signedInRemote()
	remote.session = nil
	c, _, n, _ := newTestCache(remote)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	defer c.Stop()
	require.Equal(t, StateAnonymous, c.State())

	remote.mu.Lock()
	remote.profileErr = clients.ErrProfileNotFound
	remote.mu.Unlock()

	_, err := c.SignIn(ctx, "ama@agrofresh.test", "FreshKale42")
	assert.ErrorIs(t, err, ErrProfileNotFound)
	assert.Equal(t, 1, remote.calls())
	assert.Empty(t, n.messages)
	assert.Zero(t, n.redirects)
}

func TestStopDuringRefreshKeepsSession(t *testing.T) {
	remote := signedInRemote()
	remote.hang = make(chan struct{}, 1)
	clk := &clock{t: t0}
	n := &recordingNotifier{}
	store := sessionstore.NewMemoryStorage()
	ctx := context.Background()
	require.NoError(t, sessionstore.Write(ctx, store, storageKey, remote.profile, "", t0))

	c := New(remote, store, WithClock(clk.Now), WithNotifier(n), WithRefreshInterval(10*time.Millisecond))
	require.NoError(t, c.Start(ctx))
	require.Equal(t, StateAuthenticated, c.State())

	select {
	case <-remote.hang:
	case <-time.After(time.Second):
		t.Fatal("refresh never reached GetSession")
	}
	c.Stop()

	assert.Equal(t, StateAuthenticated, c.State())
	assert.Equal(t, "Ama", c.User().Name)
	_, ok, _ := store.Get(ctx, storageKey)
	assert.True(t, ok, "cached profile survives shutdown")
	n.mu.Lock()
	defer n.mu.Unlock()
	assert.Empty(t, n.messages)
	assert.Zero(t, n.redirects)
}

func TestParentCancelDetachesCache(t *testing.T) {
	remote := signedInRemote()
	c, _, n, _ := newTestCache(remote)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx))
	require.Equal(t, 1, remote.subscribers())
	require.Equal(t, 1, remote.calls())

	cancel()
	assert.Eventually(t, func() bool { return !c.started() }, time.Second, 5*time.Millisecond)
	assert.Zero(t, remote.subscribers())

	remote.emit(clients.EventTokenRefreshed)
	assert.Equal(t, 1, remote.calls(), "events after cancellation are not handled")
	assert.Equal(t, StateAuthenticated, c.State())

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()
	assert.Equal(t, 1, remote.subscribers())
	assert.Empty(t, n.messages)
	assert.Zero(t, n.redirects)
}

func TestCanceledCallIsNotAFailure(t *testing.T) {
	remote := signedInRemote()
	remote.profileErr = fmt.Errorf("GET /api/profile: %w", context.Canceled)
	c, _, n, _ := newTestCache(remote)

	c.Check(context.Background())
	assert.Equal(t, StateLoading, c.State())
	assert.Empty(t, n.messages)
	assert.Zero(t, n.redirects)
}
