// package auth owns the client's authentication session.
//
// A [Store] holds the current identity and token pair, renews it on demand or on a schedule, and
// implements [gateway.Credentials] so every backend request carries the session.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/desertthunder/fleetroute/internal/gateway"
	"github.com/desertthunder/fleetroute/internal/models"
	"github.com/desertthunder/fleetroute/internal/shared"
)

const (
	// DefaultRefreshInterval is half the backend's one hour access token lifetime.
	DefaultRefreshInterval = 30 * time.Minute

	RefreshCookie = "refresh_token"
	AccessCookie  = "access_token"
)

// SessionPersister saves the session between process runs. Load returns nil, nil when empty.
type SessionPersister interface {
	Load() (*models.StoredSession, error)
	Save(session *models.StoredSession) error
	Clear() error
}

// AuthError is a rejected login or registration.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return shared.ErrInvalidCredentials
}

// Options configures a [Store].
type Options struct {
	// BaseURL of the authentication service, e.g. http://localhost:4001.
	BaseURL string
	// HTTPClient is shared with the gateway so cookies flow both ways. A client without a jar gets one.
	HTTPClient *http.Client
	// RefreshInterval of the background refresh loop. Zero uses [DefaultRefreshInterval].
	RefreshInterval time.Duration
	Persister       SessionPersister
	Logger          *log.Logger
	// OnIdentityChange is called after every login, refresh or logout with the new identity (nil when logged out).
	OnIdentityChange func(*models.Identity)
}

// Store is the session credential store. It is safe for concurrent use.
type Store struct {
	baseURL   *url.URL
	client    *http.Client
	interval  time.Duration
	persister SessionPersister
	logger    *log.Logger
	onChange  func(*models.Identity)

	// profile fetches /users/me without triggering another refresh.
	profile *gateway.Gateway

	mu          sync.RWMutex
	identity    *models.Identity
	token       *oauth2.Token
	stopRefresh context.CancelFunc

	refreshMu sync.Mutex
}

// NewStore creates a logged-out store.
func NewStore(opts Options) (*Store, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: auth base url %q", shared.ErrInvalidConfig, opts.BaseURL)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		client.Jar = jar
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	interval := opts.RefreshInterval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	s := &Store{
		baseURL:   base,
		client:    client,
		interval:  interval,
		persister: opts.Persister,
		logger:    shared.WithLogger(logger, "component", "auth"),
		onChange:  opts.OnIdentityChange,
	}
	s.profile = gateway.NewAuthorizeOnly(base.String(), client, s)
	return s, nil
}

// HTTPClient returns the cookie-carrying client other components should share.
func (s *Store) HTTPClient() *http.Client {
	return s.client
}

// Identity returns a copy of the current identity, or nil when logged out.
func (s *Store) Identity() *models.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.identity == nil {
		return nil
	}
	id := *s.identity
	id.Roles = append([]string(nil), s.identity.Roles...)
	return &id
}

// Token returns a copy of the token mirror, or nil.
func (s *Store) Token() *oauth2.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil {
		return nil
	}
	t := *s.token
	return &t
}

// Authorize attaches the access token as a Bearer header. Cookies are attached by the client's jar.
func (s *Store) Authorize(req *http.Request) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	if token != nil && token.AccessToken != "" {
		token.SetAuthHeader(req)
	}
}

// Restore adopts a persisted session, if any, without contacting the backend.
func (s *Store) Restore() (bool, error) {
	if s.persister == nil {
		return false, nil
	}

	stored, err := s.persister.Load()
	if err != nil {
		return false, fmt.Errorf("failed to load session: %w", err)
	}
	if stored == nil {
		return false, nil
	}

	s.seedCookies(stored.AccessToken, stored.RefreshToken)

	identity := stored.Identity
	identity.Authenticated = true
	s.adopt(&identity, &oauth2.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       stored.ExpiresAt,
	}, false)

	s.logger.Debug("restored session", "user", identity.Username)
	return true, nil
}

type authResponse struct {
	User         *models.Identity `json:"user"`
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
}

// Login exchanges credentials for a session.
func (s *Store) Login(ctx context.Context, creds models.Credentials) (*models.Identity, error) {
	var resp authResponse
	if err := s.post(ctx, "/auth/login", creds, &resp, "Authentication failed"); err != nil {
		return nil, err
	}
	return s.establish(ctx, &resp)
}

// Register creates an account and adopts the session the backend returns.
//
// Roles default to "user"; the account is created active with the current time as last login.
func (s *Store) Register(ctx context.Context, reg models.Registration) (*models.Identity, error) {
	if len(reg.Roles) == 0 {
		reg.Roles = []string{"user"}
	}
	reg.IsActive = true
	if reg.LastLogin == "" {
		reg.LastLogin = time.Now().UTC().Format(time.RFC3339)
	}

	var resp authResponse
	if err := s.post(ctx, "/auth/register", reg, &resp, "Registration failed"); err != nil {
		return nil, err
	}
	return s.establish(ctx, &resp)
}

func (s *Store) establish(ctx context.Context, resp *authResponse) (*models.Identity, error) {
	token := s.tokenFrom(resp.AccessToken, resp.RefreshToken, nil)

	identity := resp.User
	if identity == nil {
		s.mu.Lock()
		s.token = token
		s.mu.Unlock()

		fetched, err := s.fetchProfile(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load profile: %w", err)
		}
		identity = fetched
	}
	identity.Authenticated = true

	s.adopt(identity, token, true)
	s.logger.Info("logged in", "user", identity.Username)
	return s.Identity(), nil
}

// Refresh renews the session. Any failure clears the identity and returns false.
func (s *Store) Refresh(ctx context.Context) bool {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	refreshToken := s.currentRefreshToken()
	if refreshToken == "" {
		s.logger.Debug("no refresh token available")
		s.clear("no refresh token")
		return false
	}

	var resp authResponse
	if err := s.post(ctx, "/auth/refresh", map[string]string{"refreshToken": refreshToken}, &resp, "Token refresh failed"); err != nil {
		s.logger.Warn("refresh failed", "err", err)
		s.clear("refresh failed")
		return false
	}

	s.mu.RLock()
	previous := s.token
	s.mu.RUnlock()

	token := s.tokenFrom(resp.AccessToken, resp.RefreshToken, previous)
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	identity := resp.User
	if identity == nil {
		fetched, err := s.fetchProfile(ctx)
		if err != nil {
			s.logger.Warn("refreshed but profile unavailable", "err", err)
			identity = s.Identity()
		} else {
			identity = fetched
		}
	}

	if identity == nil {
		s.clear("refresh yielded no identity")
		return false
	}
	identity.Authenticated = true

	s.adopt(identity, token, true)
	s.logger.Debug("session refreshed", "expires", token.Expiry)
	return true
}

// Profile fetches the current user, refreshing and retrying once on 401.
// When the retry is also unauthorized the identity is cleared.
func (s *Store) Profile(ctx context.Context) (*models.Identity, error) {
	identity, err := s.fetchProfile(ctx)
	if errors.Is(err, shared.ErrAuthRequired) {
		if !s.Refresh(ctx) {
			return nil, err
		}
		identity, err = s.fetchProfile(ctx)
		if errors.Is(err, shared.ErrAuthRequired) {
			s.clear("profile unauthorized after refresh")
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}

	identity.Authenticated = true

	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	s.adopt(identity, token, true)

	return s.Identity(), nil
}

// Logout asks the backend to end the session and always clears local state.
func (s *Store) Logout(ctx context.Context) error {
	err := s.post(ctx, "/auth/logout", nil, nil, "Logout failed")
	if err != nil {
		s.logger.Warn("logout request failed, clearing local session anyway", "err", err)
	}

	s.clear("logout")
	return nil
}

// Close stops the background refresh loop without clearing the session.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopRefresh != nil {
		s.stopRefresh()
		s.stopRefresh = nil
	}
}

func (s *Store) fetchProfile(ctx context.Context) (*models.Identity, error) {
	var identity models.Identity
	if err := s.profile.Request(ctx, http.MethodGet, "/users/me", nil, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// adopt installs a new session and (re)starts the refresh loop.
func (s *Store) adopt(identity *models.Identity, token *oauth2.Token, persist bool) {
	s.mu.Lock()
	s.identity = identity
	s.token = token
	if s.stopRefresh == nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.stopRefresh = cancel
		go s.refreshLoop(ctx)
	}
	s.mu.Unlock()

	if persist && s.persister != nil && token != nil {
		stored := &models.StoredSession{
			Identity:     *identity,
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			ExpiresAt:    token.Expiry,
			UpdatedAt:    time.Now(),
		}
		if err := s.persister.Save(stored); err != nil {
			s.logger.Warn("failed to persist session", "err", err)
		}
	}

	s.notify()
}

// clear drops every trace of the session. It is idempotent.
func (s *Store) clear(reason string) {
	s.mu.Lock()
	wasLoggedIn := s.identity != nil || s.token != nil
	s.identity = nil
	s.token = nil
	if s.stopRefresh != nil {
		s.stopRefresh()
		s.stopRefresh = nil
	}
	s.mu.Unlock()

	s.expireCookies()

	if s.persister != nil {
		if err := s.persister.Clear(); err != nil {
			s.logger.Warn("failed to clear persisted session", "err", err)
		}
	}

	if wasLoggedIn {
		s.logger.Info("session cleared", "reason", reason)
		s.notify()
	}
}

func (s *Store) notify() {
	if s.onChange != nil {
		s.onChange(s.Identity())
	}
}

func (s *Store) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.Refresh(ctx) {
				s.logger.Warn("scheduled refresh failed, session expired")
				return
			}
		}
	}
}

func (s *Store) currentRefreshToken() string {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	if token != nil && token.RefreshToken != "" {
		return token.RefreshToken
	}
	return s.cookie(RefreshCookie)
}

func (s *Store) cookie(name string) string {
	if s.client.Jar == nil {
		return ""
	}
	for _, c := range s.client.Jar.Cookies(s.baseURL) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// seedCookies re-installs persisted tokens as cookies for backends that only read cookies.
func (s *Store) seedCookies(access, refresh string) {
	var cookies []*http.Cookie
	if access != "" {
		cookies = append(cookies, &http.Cookie{Name: AccessCookie, Value: access, Path: "/"})
	}
	if refresh != "" {
		cookies = append(cookies, &http.Cookie{Name: RefreshCookie, Value: refresh, Path: "/"})
	}
	if len(cookies) > 0 && s.client.Jar != nil {
		s.client.Jar.SetCookies(s.baseURL, cookies)
	}
}

func (s *Store) expireCookies() {
	if s.client.Jar == nil {
		return
	}
	s.client.Jar.SetCookies(s.baseURL, []*http.Cookie{
		{Name: AccessCookie, Value: "", Path: "/", MaxAge: -1},
		{Name: RefreshCookie, Value: "", Path: "/", MaxAge: -1},
	})
}

// tokenFrom prefers body values, then cookies, then the previous token.
func (s *Store) tokenFrom(access, refresh string, previous *oauth2.Token) *oauth2.Token {
	if access == "" {
		access = s.cookie(AccessCookie)
	}
	if refresh == "" {
		refresh = s.cookie(RefreshCookie)
	}
	if previous != nil {
		if access == "" {
			access = previous.AccessToken
		}
		if refresh == "" {
			refresh = previous.RefreshToken
		}
	}

	return &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		Expiry:       tokenExpiry(access),
	}
}

// tokenExpiry reads the exp claim without verifying the signature. It is for display only.
func tokenExpiry(access string) time.Time {
	if access == "" {
		return time.Time{}
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// post sends an unauthenticated JSON request to the auth service.
func (s *Store) post(ctx context.Context, path string, body, out any, fallback string) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %w", shared.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %w", shared.ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gateway.ErrorMessage(resp.StatusCode, data)
		if msg == "API request failed" || strings.HasPrefix(msg, "HTTP error") {
			msg = fallback
		}
		return &AuthError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
