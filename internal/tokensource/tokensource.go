// Package tokensource keeps OAuth2 tokens in a keychain.
package tokensource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/oauth2"

	"github.com/semmy-space/skc/internal/keychain"
)

// ErrNoToken is returned when no token has been saved under the key.
var ErrNoToken = errors.New("no token stored")

// RefreshWindow is how long before expiry a token is refreshed.
const RefreshWindow = 5 * time.Minute

// Source implements oauth2.TokenSource on top of a keychain entry.
// Refreshed or rotated tokens are written back to the keychain.
type Source struct {
	ctx      context.Context
	kc       *keychain.Keychain
	key      string
	conf     *oauth2.Config
	lockPath string
}

var _ oauth2.TokenSource = (*Source)(nil)

// New creates a Source for the token stored under key. When lockPath is
// set, refreshes are serialized across processes with a lock file.
func New(ctx context.Context, kc *keychain.Keychain, key string, conf *oauth2.Config, lockPath string) *Source {
	return &Source{
		ctx:      ctx,
		kc:       kc,
		key:      key,
		conf:     conf,
		lockPath: lockPath,
	}
}

// Token returns a valid access token, refreshing it if it expires within
// RefreshWindow.
func (s *Source) Token() (*oauth2.Token, error) {
	unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	stored, ok, err := keychain.Optional[oauth2.Token](s.kc, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}
	if !ok {
		return nil, ErrNoToken
	}

	if stored.AccessToken != "" && (stored.Expiry.IsZero() || time.Until(stored.Expiry) > RefreshWindow) {
		return &stored, nil
	}
	if stored.RefreshToken == "" {
		return nil, fmt.Errorf("token expired and has no refresh token")
	}

	// force the refresh: oauth2 only refreshes tokens it considers invalid
	expired := stored
	expired.AccessToken = ""
	fresh, err := s.conf.TokenSource(s.ctx, &expired).Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = stored.RefreshToken
	}

	if err := s.kc.Set(s.key, fresh); err != nil {
		return nil, fmt.Errorf("failed to store refreshed token: %w", err)
	}
	return fresh, nil
}

// Save stores tok, typically right after an authorization code exchange.
func (s *Source) Save(tok *oauth2.Token) error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.kc.Set(s.key, tok); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// Clear removes the stored token.
func (s *Source) Clear() error {
	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	s.kc.Delete(s.key)
	return nil
}

func (s *Source) lock() (func(), error) {
	if s.lockPath == "" {
		return func() {}, nil
	}

	lock := flock.New(s.lockPath)
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to acquire lock: timeout")
	}
	return func() { lock.Unlock() }, nil
}
