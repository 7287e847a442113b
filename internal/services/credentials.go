package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/desertthunder/prism/internal/shared"
)

// YouTubeScope grants playlist management on the user's channel.
const YouTubeScope = "https://www.googleapis.com/auth/youtube"

// DefaultTokenFile is used when no token path is configured.
const DefaultTokenFile = "token.json"

// CredentialState describes what the token cache currently holds.
type CredentialState int

const (
	StateAbsent CredentialState = iota
	StateValid
	StateExpired
	StateReauthRequired
)

func (s CredentialState) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	default:
		return "reauth required"
	}
}

// GoogleOAuthConfig builds the installed-app OAuth config from explicit client credentials, or from a Google
// client_secret.json when only a file is configured.
func GoogleOAuthConfig(cfg shared.YouTubeConfig) (*oauth2.Config, error) {
	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		return &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{YouTubeScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	if cfg.ClientSecretsFile == "" {
		return nil, fmt.Errorf("%w: set credentials.youtube.client_id and client_secret, or client_secrets_file", shared.ErrMissingCredentials)
	}

	data, err := os.ReadFile(cfg.ClientSecretsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMissingCredentials, err)
	}
	oc, err := google.ConfigFromJSON(data, YouTubeScope)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", shared.ErrInvalidConfig, cfg.ClientSecretsFile, err)
	}
	if cfg.RedirectURI != "" {
		oc.RedirectURL = cfg.RedirectURI
	}
	return oc, nil
}

// TokenCache stores an OAuth token as JSON readable only by the owner.
type TokenCache struct {
	path string
}

// NewTokenCache returns a cache at path, or [DefaultTokenFile] if empty.
func NewTokenCache(path string) *TokenCache {
	if path == "" {
		path = DefaultTokenFile
	}
	return &TokenCache{path: path}
}

// Path returns the cache location.
func (c *TokenCache) Path() string { return c.path }

// Load returns the cached token, or nil when there is none.
func (c *TokenCache) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token cache: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse token cache %s: %w", c.path, err)
	}
	return &tok, nil
}

// Save writes tok with 0600 permissions.
func (c *TokenCache) Save(tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	return shared.WriteFileAtomic(c.path, data, 0600)
}

// Clear removes the cache file. A missing file is not an error.
func (c *TokenCache) Clear() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token cache: %w", err)
	}
	return nil
}

// Authorizer runs the interactive consent flow and returns a fresh token.
type Authorizer func(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error)

// CredentialProvider hands out authenticated HTTP clients and keeps the token cache current.
//
// A cached token that fails to refresh (revoked, invalid_grant, or no refresh token at all) moves the provider to
// [StateReauthRequired]; the cache is discarded and the [Authorizer] is run again.
type CredentialProvider struct {
	config    *oauth2.Config
	cache     *TokenCache
	authorize Authorizer
	logger    *log.Logger
	now       func() time.Time
}

// NewCredentialProvider wires a provider. authorize may be nil for non-interactive use, in which case any state that
// needs consent returns [shared.ErrReauthRequired].
func NewCredentialProvider(config *oauth2.Config, cache *TokenCache, authorize Authorizer, logger *log.Logger) *CredentialProvider {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &CredentialProvider{config: config, cache: cache, authorize: authorize, logger: logger, now: time.Now}
}

// Config returns the OAuth configuration.
func (p *CredentialProvider) Config() *oauth2.Config { return p.config }

// State inspects the cache without contacting the token endpoint.
func (p *CredentialProvider) State() (CredentialState, *oauth2.Token, error) {
	tok, err := p.cache.Load()
	if err != nil {
		return StateReauthRequired, nil, err
	}
	if tok == nil {
		return StateAbsent, nil, nil
	}
	if tok.Expiry.IsZero() || tok.Expiry.After(p.now()) {
		return StateValid, tok, nil
	}
	if tok.RefreshToken == "" {
		return StateReauthRequired, tok, nil
	}
	return StateExpired, tok, nil
}

// TokenSource returns a token source that persists every new token it hands out.
func (p *CredentialProvider) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	state, tok, err := p.State()
	if err != nil {
		p.logger.Warn("token cache unreadable, reauthorizing", "error", err)
	}

	switch state {
	case StateAbsent, StateReauthRequired:
		p.logger.Info("credentials need authorization", "state", state)
		return p.Reauthorize(ctx)
	case StateExpired:
		ts := p.savingSource(ctx, tok)
		if _, err := ts.Token(); err != nil {
			p.logger.Warn("token refresh failed, reauthorizing", "error", err)
			return p.Reauthorize(ctx)
		}
		p.logger.Debug("token refreshed")
		return ts, nil
	default:
		return p.savingSource(ctx, tok), nil
	}
}

// Client returns an HTTP client authorised by [CredentialProvider.TokenSource].
func (p *CredentialProvider) Client(ctx context.Context) (*http.Client, error) {
	ts, err := p.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, ts), nil
}

// Reauthorize discards the cached token and runs the interactive flow.
func (p *CredentialProvider) Reauthorize(ctx context.Context) (oauth2.TokenSource, error) {
	if err := p.cache.Clear(); err != nil {
		return nil, err
	}
	if p.authorize == nil {
		return nil, fmt.Errorf("%w: run `prism auth login`", shared.ErrReauthRequired)
	}

	tok, err := p.authorize(ctx, p.config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	if err := p.cache.Save(tok); err != nil {
		return nil, err
	}
	p.logger.Info("credentials saved", "path", p.cache.Path())
	return p.savingSource(ctx, tok), nil
}

// Logout removes the cached token.
func (p *CredentialProvider) Logout() error { return p.cache.Clear() }

func (p *CredentialProvider) savingSource(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource {
	return &savingTokenSource{
		base:   p.config.TokenSource(ctx, tok),
		cache:  p.cache,
		last:   tok.AccessToken,
		logger: p.logger,
	}
}

// savingTokenSource writes the token back to the cache whenever the access token changes.
type savingTokenSource struct {
	mu     sync.Mutex
	base   oauth2.TokenSource
	cache  *TokenCache
	last   string
	logger *log.Logger
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrReauthRequired, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := s.cache.Save(tok); err != nil {
			s.logger.Warn("failed to persist refreshed token", "error", err)
		} else {
			s.last = tok.AccessToken
		}
	}
	return tok, nil
}
