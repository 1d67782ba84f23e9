package spotify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/osa030/crowdbox/internal/domain/player"
)

// Credential defaults.
const (
	DefaultExpiryMargin   = 60 * time.Second
	DefaultRefreshTimeout = 10 * time.Second
)

// Credentials owns the access/refresh token pair. An access token is
// refreshed when it is within the expiry margin; refresh requests are bounded
// by the refresh timeout. It implements oauth2.TokenSource.
type Credentials struct {
	mu sync.Mutex

	oauth      *oauth2.Config
	refreshCtx context.Context
	margin     time.Duration
	store      *TokenStore

	source       oauth2.TokenSource // nil until a refresh token is known
	refreshToken string
	invalid      bool // The provider rejected the refresh token
}

// CredentialsOption configures Credentials.
type CredentialsOption func(*Credentials)

// WithExpiryMargin sets how long before expiry a token is refreshed.
func WithExpiryMargin(d time.Duration) CredentialsOption {
	return func(c *Credentials) {
		if d > 0 {
			c.margin = d
		}
	}
}

// WithRefreshTimeout bounds each refresh request.
func WithRefreshTimeout(d time.Duration) CredentialsOption {
	return func(c *Credentials) {
		if d > 0 {
			c.refreshCtx = context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: d})
		}
	}
}

// WithTokenStore persists refresh tokens as they are issued or rotated.
func WithTokenStore(s *TokenStore) CredentialsOption {
	return func(c *Credentials) {
		c.store = s
	}
}

// NewCredentials creates an empty credential holder for the given OAuth config.
func NewCredentials(conf *oauth2.Config, opts ...CredentialsOption) *Credentials {
	c := &Credentials{
		oauth:  conf,
		margin: DefaultExpiryMargin,
	}
	WithRefreshTimeout(DefaultRefreshTimeout)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restore installs a known token without persisting it.
func (c *Credentials) Restore(tok *oauth2.Token) error {
	if tok == nil || tok.RefreshToken == "" {
		return errors.New("token has no refresh token")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.installLocked(tok)
	return nil
}

// Seed installs a freshly issued token and persists it.
func (c *Credentials) Seed(tok *oauth2.Token) error {
	if err := c.Restore(tok); err != nil {
		return err
	}
	c.persist(tok)
	zlog.Info().Msg("spotify: credential installed")
	return nil
}

// Authorized reports whether a refresh token is held and has not been rejected.
func (c *Credentials) Authorized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source != nil && !c.invalid
}

// Exchange trades an authorization code for a token and seeds it.
func (c *Credentials) Exchange(ctx context.Context, code string) error {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient())
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return classifyRefresh(err, "failed to exchange authorization code")
	}
	return c.Seed(tok)
}

// AuthURL returns the provider's consent page URL.
func (c *Credentials) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Ensure returns a valid access token, refreshing it if needed.
func (c *Credentials) Ensure(ctx context.Context) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, player.Transient(err, "credential check cancelled")
	}
	return c.Token()
}

// Token implements oauth2.TokenSource.
func (c *Credentials) Token() (*oauth2.Token, error) {
	c.mu.Lock()
	src := c.source
	c.mu.Unlock()

	if src == nil {
		return nil, player.Unauthorized(nil, "no credential, authorization required")
	}
	tok, err := src.Token()
	if err != nil {
		err = classifyRefresh(err, "failed to refresh access token")
		if player.IsUnauthorized(err) {
			c.mu.Lock()
			c.invalid = true
			c.mu.Unlock()
		}
		return nil, err
	}
	return tok, nil
}

func (c *Credentials) installLocked(tok *oauth2.Token) {
	c.refreshToken = tok.RefreshToken
	c.invalid = false
	c.source = oauth2.ReuseTokenSourceWithExpiry(tok, refresher{c}, c.margin)
}

func (c *Credentials) httpClient() *http.Client {
	if hc, ok := c.refreshCtx.Value(oauth2.HTTPClient).(*http.Client); ok {
		return hc
	}
	return http.DefaultClient
}

// refresh always hits the token endpoint; caching is left to the reuse source.
func (c *Credentials) refresh() (*oauth2.Token, error) {
	c.mu.Lock()
	rt := c.refreshToken
	c.mu.Unlock()

	tok, err := c.oauth.TokenSource(c.refreshCtx, &oauth2.Token{RefreshToken: rt}).Token()
	if err != nil {
		return nil, err
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = rt
	}

	c.mu.Lock()
	rotated := tok.RefreshToken != c.refreshToken
	c.refreshToken = tok.RefreshToken
	c.mu.Unlock()

	zlog.Debug().Msgf("spotify: access token refreshed, expiry=%s", tok.Expiry.Format(time.RFC3339))
	if rotated {
		c.persist(tok)
	}
	return tok, nil
}

func (c *Credentials) persist(tok *oauth2.Token) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(tok); err != nil {
		zlog.Warn().Msgf("spotify: failed to persist token: %v", err)
	}
}

type refresher struct {
	c *Credentials
}

func (r refresher) Token() (*oauth2.Token, error) {
	return r.c.refresh()
}

// classifyRefresh maps token endpoint failures: a rejected grant means the
// owner must re-authorize, anything else may recover.
func classifyRefresh(err error, msg string) error {
	if player.IsUnauthorized(err) || player.IsTransient(err) {
		return errors.Wrap(err, msg)
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		switch re.Response.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized:
			return player.Unauthorized(err, msg)
		}
	}
	return player.Transient(err, msg)
}
