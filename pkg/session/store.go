package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tutoria/dashboard/pkg/apiclient"
	"github.com/tutoria/dashboard/pkg/auth"
	"github.com/tutoria/dashboard/pkg/observability"
	"github.com/tutoria/dashboard/pkg/rbac"
)

// State is the lifecycle state of a Store
type State int

const (
	// StateLoading lasts until the first Restore completes
	StateLoading State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// storageTimeout bounds storage writes made outside a caller's context
const storageTimeout = 5 * time.Second

// LoginError is returned by Login with a message fit for the login form
type LoginError struct {
	Message string
	Err     error
}

func (e *LoginError) Error() string {
	return e.Message
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

// Options configures a Store
type Options struct {
	Client  *apiclient.Client
	Storage Storage
	// Checker defaults to rbac.DefaultChecker()
	Checker *rbac.Checker
	Logger  *observability.Logger
	Metrics *observability.Metrics
	// Now defaults to time.Now; used for token expiry
	Now func() time.Time
}

// Store owns the signed-in user and their tokens. A non-nil user always
// goes with a non-empty access token on the client; both are set and
// cleared together. It is safe for concurrent use.
type Store struct {
	client  *apiclient.Client
	storage Storage
	checker *rbac.Checker
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time

	mu    sync.RWMutex
	user  *auth.User
	state State
}

// New creates a Store in the loading state and registers it as the
// client's token observer
func New(opts Options) *Store {
	if opts.Checker == nil {
		opts.Checker = rbac.DefaultChecker()
	}
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Storage == nil {
		opts.Storage = NewMemoryStorage()
	}

	s := &Store{
		client:  opts.Client,
		storage: opts.Storage,
		checker: opts.Checker,
		logger:  opts.Logger.WithField("component", "session"),
		metrics: opts.Metrics,
		now:     opts.Now,
		state:   StateLoading,
	}
	opts.Client.SetObserver(s)
	return s
}

// Restore loads a persisted session. Missing, malformed or expired data is
// cleared silently and leaves the store anonymous. If the stored user
// predates the full profile shape the current user is fetched once.
func (s *Store) Restore(ctx context.Context) error {
	user, tokens, ok := s.readStored(ctx)
	if !ok {
		s.clearStorage(ctx)
		s.setAnonymous()
		return nil
	}

	expired, err := auth.TokenExpired(tokens.AccessToken, s.now())
	if err != nil || expired {
		s.logger.Debug("stored access token expired or unreadable, clearing session")
		s.metrics.RecordSessionEvent("expired")
		s.clearStorage(ctx)
		s.setAnonymous()
		return nil
	}

	s.client.SetTokens(tokens)

	if !user.HasFullProfile() {
		fresh, err := s.client.CurrentUser(ctx)
		switch {
		case err == nil:
			user = fresh
			if err := s.writeUser(ctx, user); err != nil {
				s.logger.WithError(err).Warn("failed to persist refreshed user")
			}
		case errors.Is(err, apiclient.ErrSessionExpired):
			// the client already wiped the tokens and notified us
			s.setAnonymous()
			return nil
		default:
			s.logger.WithError(err).Debug("current user fetch failed, using stored user")
		}
	}

	s.mu.Lock()
	s.user = user
	s.state = StateAuthenticated
	s.mu.Unlock()

	s.metrics.RecordSessionEvent("restore")
	s.logger.WithField("user_id", user.ID).Debug("session restored")
	return nil
}

func (s *Store) readStored(ctx context.Context) (*auth.User, auth.Tokens, bool) {
	rawUser, ok, err := s.storage.Get(ctx, KeyUser)
	if err != nil || !ok {
		return nil, auth.Tokens{}, false
	}
	token, ok, err := s.storage.Get(ctx, KeyToken)
	if err != nil || !ok || token == "" {
		return nil, auth.Tokens{}, false
	}
	refreshToken, _, err := s.storage.Get(ctx, KeyRefreshToken)
	if err != nil {
		refreshToken = ""
	}

	var user auth.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		s.logger.WithError(err).Debug("stored user is malformed")
		return nil, auth.Tokens{}, false
	}
	return &user, auth.Tokens{AccessToken: token, RefreshToken: refreshToken}, true
}

// Login exchanges credentials for tokens, fetches the canonical user and
// persists the session. Nothing is persisted when it fails.
func (s *Store) Login(ctx context.Context, username, password string) (*auth.User, error) {
	tokens, err := s.client.Login(ctx, username, password)
	if err != nil {
		return nil, &LoginError{Message: loginMessage(err), Err: err}
	}
	if tokens.AccessToken == "" {
		return nil, &LoginError{Message: "Login failed", Err: errors.New("login response carried no access token")}
	}

	s.client.SetTokens(tokens)
	user, err := s.client.CurrentUser(ctx)
	if err != nil {
		s.client.ClearTokens()
		return nil, &LoginError{Message: loginMessage(err), Err: err}
	}

	if err := s.persist(ctx, user, tokens); err != nil {
		s.client.ClearTokens()
		s.clearStorage(ctx)
		return nil, &LoginError{Message: "Could not save session", Err: err}
	}

	s.mu.Lock()
	s.user = user
	s.state = StateAuthenticated
	s.mu.Unlock()

	s.metrics.RecordSessionEvent("login")
	s.logger.WithField("user_id", user.ID).Info("user logged in")
	return user, nil
}

func loginMessage(err error) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.Is(err, apiclient.ErrTimeout) {
		return "The server did not respond in time"
	}
	return "Login failed"
}

// Logout forgets the user and tokens locally. The server is not told.
func (s *Store) Logout(ctx context.Context) error {
	s.client.ClearTokens()
	s.setAnonymous()
	s.metrics.RecordSessionEvent("logout")
	if err := s.storage.Delete(ctx, Keys()...); err != nil {
		return fmt.Errorf("failed to clear stored session: %w", err)
	}
	return nil
}

// RefreshUser re-fetches the current user and persists it
func (s *Store) RefreshUser(ctx context.Context) (*auth.User, error) {
	user, err := s.client.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh user: %w", err)
	}
	return user, s.replaceUser(ctx, user)
}

// UpdatePreferences saves theme and language and refreshes the user
func (s *Store) UpdatePreferences(ctx context.Context, prefs auth.Preferences) (*auth.User, error) {
	user, err := s.client.UpdatePreferences(ctx, prefs)
	if err != nil {
		return nil, fmt.Errorf("failed to update preferences: %w", err)
	}
	return user, s.replaceUser(ctx, user)
}

func (s *Store) replaceUser(ctx context.Context, user *auth.User) error {
	s.mu.Lock()
	if s.state != StateAuthenticated {
		s.mu.Unlock()
		return apiclient.ErrSessionExpired
	}
	s.user = user
	s.mu.Unlock()
	return s.writeUser(ctx, user)
}

// Refresh renews the access token now
func (s *Store) Refresh(ctx context.Context) error {
	return s.client.Refresh(ctx)
}

// HasPermission checks the current user against the role table
func (s *Store) HasPermission(action rbac.Action, resource rbac.Resource, ctx *rbac.Context) bool {
	return s.checker.CheckPermission(s.CurrentUser(), action, resource, ctx)
}

// CurrentUser returns the signed-in user or nil. Callers must not modify it.
func (s *Store) CurrentUser() *auth.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// State returns the lifecycle state
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Loading reports whether Restore has not completed yet
func (s *Store) Loading() bool {
	return s.State() == StateLoading
}

// IsAuthenticated reports whether a user is signed in
func (s *Store) IsAuthenticated() bool {
	return s.State() == StateAuthenticated
}

// TokensRefreshed persists tokens renewed by the client
func (s *Store) TokensRefreshed(tokens auth.Tokens) {
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()
	if err := s.writeTokens(ctx, tokens); err != nil {
		s.logger.WithError(err).Warn("failed to persist refreshed tokens")
	}
}

// TokensCleared drops the session after the client gave up refreshing
func (s *Store) TokensCleared() {
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()
	s.setAnonymous()
	s.clearStorage(ctx)
	s.metrics.RecordSessionEvent("expired")
	s.logger.Info("session expired, signed out")
}

// WatchStorage follows external changes when the backend supports it. A
// session removed by another process is dropped from memory.
func (s *Store) WatchStorage(ctx context.Context) error {
	w, ok := s.storage.(interface {
		Watch(ctx context.Context, onChange func()) error
	})
	if !ok {
		return nil
	}
	return w.Watch(ctx, func() {
		readCtx, cancel := context.WithTimeout(ctx, storageTimeout)
		defer cancel()
		s.syncFromStorage(readCtx)
	})
}

func (s *Store) syncFromStorage(ctx context.Context) {
	if !s.IsAuthenticated() {
		return
	}
	token, ok, err := s.storage.Get(ctx, KeyToken)
	if err != nil || (ok && token != "") {
		return
	}
	s.logger.Info("session removed externally, signing out")
	s.client.ClearTokens()
	s.setAnonymous()
	s.metrics.RecordSessionEvent("logout")
}

func (s *Store) setAnonymous() {
	s.mu.Lock()
	s.user = nil
	s.state = StateAnonymous
	s.mu.Unlock()
}

func (s *Store) persist(ctx context.Context, user *auth.User, tokens auth.Tokens) error {
	if err := s.writeTokens(ctx, tokens); err != nil {
		return err
	}
	return s.writeUser(ctx, user)
}

func (s *Store) writeUser(ctx context.Context, user *auth.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	return s.storage.Set(ctx, KeyUser, string(data))
}

func (s *Store) writeTokens(ctx context.Context, tokens auth.Tokens) error {
	if err := s.storage.Set(ctx, KeyToken, tokens.AccessToken); err != nil {
		return err
	}
	if tokens.RefreshToken == "" {
		return s.storage.Delete(ctx, KeyRefreshToken)
	}
	return s.storage.Set(ctx, KeyRefreshToken, tokens.RefreshToken)
}

func (s *Store) clearStorage(ctx context.Context) {
	if err := s.storage.Delete(ctx, Keys()...); err != nil {
		s.logger.WithError(err).Debug("failed to clear stored session")
	}
}
