package tokensource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/semmy-space/skc/internal/backend/memory"
	"github.com/semmy-space/skc/internal/keychain"
)

type tokenServer struct {
	*httptest.Server
	calls   atomic.Int32
	rotated string
}

func newTokenServer(t *testing.T, rotated string) *tokenServer {
	t.Helper()
	ts := &tokenServer{rotated: rotated}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))

		resp := map[string]any{
			"access_token": "fresh-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		if ts.rotated != "" {
			resp["refresh_token"] = ts.rotated
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newSource(t *testing.T, kc *keychain.Keychain, tokenURL string) *Source {
	t.Helper()
	conf := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	return New(context.Background(), kc, "oauth_token", conf, filepath.Join(t.TempDir(), "token.lock"))
}

func TestTokenNotStored(t *testing.T) {
	src := newSource(t, keychain.New(memory.New()), "http://127.0.0.1:0")
	_, err := src.Token()
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestTokenStillValid(t *testing.T) {
	ts := newTokenServer(t, "")
	kc := keychain.New(memory.New())
	src := newSource(t, kc, ts.URL)

	require.NoError(t, src.Save(&oauth2.Token{
		AccessToken:  "cached",
		TokenType:    "Bearer",
		RefreshToken: "old-refresh",
		Expiry:       time.Now().Add(time.Hour),
	}))

	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "cached", tok.AccessToken)
	assert.Zero(t, ts.calls.Load())
}

func TestTokenRefreshesWithinWindow(t *testing.T) {
	ts := newTokenServer(t, "")
	kc := keychain.New(memory.New())
	src := newSource(t, kc, ts.URL)

	require.NoError(t, src.Save(&oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "old-refresh",
		Expiry:       time.Now().Add(time.Minute),
	}))

	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", tok.AccessToken)
	assert.Equal(t, "old-refresh", tok.RefreshToken)
	assert.Equal(t, int32(1), ts.calls.Load())

	stored, err := keychain.Value[oauth2.Token](kc, "oauth_token")
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", stored.AccessToken)

	// the refreshed token is served from the keychain
	_, err = src.Token()
	require.NoError(t, err)
	assert.Equal(t, int32(1), ts.calls.Load())
}

func TestTokenRotatedRefreshToken(t *testing.T) {
	ts := newTokenServer(t, "new-refresh")
	kc := keychain.New(memory.New(), keychain.WithCodec(keychain.CBOR))
	src := newSource(t, kc, ts.URL)

	require.NoError(t, src.Save(&oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "old-refresh",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	_, err := src.Token()
	require.NoError(t, err)

	stored, err := keychain.Value[oauth2.Token](kc, "oauth_token")
	require.NoError(t, err)
	assert.Equal(t, "new-refresh", stored.RefreshToken)
}

func TestTokenExpiredWithoutRefreshToken(t *testing.T) {
	kc := keychain.New(memory.New())
	src := newSource(t, kc, "http://127.0.0.1:0")

	require.NoError(t, src.Save(&oauth2.Token{AccessToken: "stale", Expiry: time.Now().Add(-time.Hour)}))

	_, err := src.Token()
	assert.ErrorContains(t, err, "no refresh token")
}

func TestClear(t *testing.T) {
	kc := keychain.New(memory.New())
	src := newSource(t, kc, "http://127.0.0.1:0")

	require.NoError(t, src.Save(&oauth2.Token{AccessToken: "a"}))
	require.NoError(t, src.Clear())
	require.NoError(t, src.Clear())

	_, err := src.Token()
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestTokenWithoutLockFile(t *testing.T) {
	kc := keychain.New(memory.New())
	src := New(context.Background(), kc, "k", &oauth2.Config{}, "")

	require.NoError(t, src.Save(&oauth2.Token{AccessToken: "a"}))
	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "a", tok.AccessToken)
}
