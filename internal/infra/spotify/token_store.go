package spotify

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/oauth2"
	"gopkg.in/yaml.v3"
)

// TokenStore keeps the refresh token on disk so authorization survives restarts.
type TokenStore struct {
	path string
}

type storedToken struct {
	RefreshToken string    `yaml:"refresh_token"`
	AccessToken  string    `yaml:"access_token,omitempty"`
	TokenType    string    `yaml:"token_type,omitempty"`
	Expiry       time.Time `yaml:"expiry,omitempty"`
}

// NewTokenStore creates a store backed by path.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Path returns the backing file path.
func (s *TokenStore) Path() string {
	return s.path
}

// Load reads the stored token. A missing file yields (nil, nil).
func (s *TokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read token file")
	}

	var st storedToken
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, errors.Wrap(err, "failed to parse token file")
	}
	if st.RefreshToken == "" {
		return nil, nil
	}
	return &oauth2.Token{
		RefreshToken: st.RefreshToken,
		AccessToken:  st.AccessToken,
		TokenType:    st.TokenType,
		Expiry:       st.Expiry,
	}, nil
}

// Save writes the token atomically with owner-only permissions.
func (s *TokenStore) Save(tok *oauth2.Token) error {
	data, err := yaml.Marshal(storedToken{
		RefreshToken: tok.RefreshToken,
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	})
	if err != nil {
		return errors.Wrap(err, "failed to encode token")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "failed to create token directory")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "failed to write token file")
	}
	return errors.Wrap(os.Rename(tmp, s.path), "failed to replace token file")
}
