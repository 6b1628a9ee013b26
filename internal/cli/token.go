package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/oauth2"

	"github.com/semmy-space/skc/internal/config"
	"github.com/semmy-space/skc/internal/output"
	"github.com/semmy-space/skc/internal/tokensource"
)

// TokenCmd holds OAuth2 token subcommands
type TokenCmd struct {
	Save  TokenSaveCmd  `cmd:"" help:"Store an OAuth2 token given as JSON"`
	Get   TokenGetCmd   `cmd:"" help:"Print a valid access token, refreshing it when it is about to expire"`
	Clear TokenClearCmd `cmd:"" help:"Remove a stored token"`
}

// OAuthFlags configure the refresh grant.
type OAuthFlags struct {
	TokenURL     string `name:"token-url" help:"OAuth2 token endpoint used for refresh" env:"SKC_TOKEN_URL"`
	ClientID     string `name:"client-id" help:"OAuth2 client ID" env:"SKC_CLIENT_ID"`
	ClientSecret string `name:"client-secret" help:"OAuth2 client secret" env:"SKC_CLIENT_SECRET"`
}

func (f OAuthFlags) config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     f.ClientID,
		ClientSecret: f.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: f.TokenURL},
	}
}

// TokenInfo is what token get --full prints. The refresh token is never shown.
type TokenInfo struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type,omitempty"`
	Expiry      time.Time `json:"expiry,omitzero"`
	Refreshable bool      `json:"refreshable"`
}

// tokenSource opens the token stored under key. Refreshes are serialized
// across processes with a lock file in the state dir.
func tokenSource(s *Session, key string, conf *oauth2.Config) (*tokensource.Source, error) {
	if err := os.MkdirAll(config.StateDir(), 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	lockPath := filepath.Join(config.StateDir(), "token.lock")
	return tokensource.New(context.Background(), s.Keychain, key, conf, lockPath), nil
}

// TokenSaveCmd implements token save command
type TokenSaveCmd struct {
	Key   string `arg:"" help:"Key to store the token under"`
	Token string `arg:"" optional:"" help:"Token JSON (read from stdin when omitted)"`
}

// Run executes the save command
func (cmd *TokenSaveCmd) Run(ctx *kong.Context, s *Session, g *Globals, stdin io.Reader) error {
	raw := cmd.Token
	if !positionalGiven(ctx, "token") {
		var err error
		raw, err = readValue(stdin, ctx.Stderr, g.NoInput, cmd.Key)
		if err != nil {
			return err
		}
	}

	tok, err := parseToken([]byte(raw), time.Now())
	if err != nil {
		return err
	}

	src, err := tokenSource(s, cmd.Key, &oauth2.Config{})
	if err != nil {
		return err
	}
	if err := s.Retrier.Do(func() error { return src.Save(tok) }); err != nil {
		return toCLIError(err)
	}
	fmt.Fprintf(ctx.Stderr, "Saved token %s\n", cmd.Key)
	return nil
}

// parseToken reads a token in the OAuth2 wire format. A relative
// expires_in is turned into an absolute expiry.
func parseToken(data []byte, now time.Time) (*oauth2.Token, error) {
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, output.Errorf(output.ExitUsage, "invalid token JSON: %v", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, output.NewCLIError(output.ExitUsage, "token has neither access_token nor refresh_token")
	}
	if tok.Expiry.IsZero() && tok.ExpiresIn > 0 {
		tok.Expiry = now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	tok.ExpiresIn = 0
	return &tok, nil
}

// TokenGetCmd implements token get command
type TokenGetCmd struct {
	OAuthFlags

	Key  string `arg:"" help:"Key the token is stored under"`
	Full bool   `help:"Print type and expiry as well as the access token"`
}

// Run executes the get command
func (cmd *TokenGetCmd) Run(s *Session, fp *FormatterProvider) error {
	src, err := tokenSource(s, cmd.Key, cmd.config())
	if err != nil {
		return err
	}

	tok, err := retryValue(s.Retrier, src.Token)
	if errors.Is(err, tokensource.ErrNoToken) {
		return output.Errorf(output.ExitNotFound, "no token stored for key %q", cmd.Key).
			WithHint(fmt.Sprintf("Store one with: skc token save %s", cmd.Key))
	}
	if err != nil {
		return toCLIError(err)
	}

	if !cmd.Full {
		return fp.Formatter.Print(tok.AccessToken)
	}
	return fp.Formatter.Print(TokenInfo{
		AccessToken: tok.AccessToken,
		TokenType:   tok.Type(),
		Expiry:      tok.Expiry,
		Refreshable: tok.RefreshToken != "",
	})
}

// TokenClearCmd implements token clear command
type TokenClearCmd struct {
	Key string `arg:"" help:"Key the token is stored under"`
}

// Run executes the clear command
func (cmd *TokenClearCmd) Run(ctx *kong.Context, s *Session) error {
	src, err := tokenSource(s, cmd.Key, &oauth2.Config{})
	if err != nil {
		return err
	}
	if err := src.Clear(); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Stderr, "Cleared token %s\n", cmd.Key)
	return nil
}
