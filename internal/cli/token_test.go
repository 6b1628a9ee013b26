package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semmy-space/skc/internal/output"
)

func TestParseToken(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name       string
		data       string
		wantAccess string
		wantExpiry time.Time
		wantErr    bool
	}{
		{name: "expires_in", data: `{"access_token":"at","expires_in":60}`, wantAccess: "at", wantExpiry: now.Add(time.Minute)},
		{name: "absolute expiry wins", data: `{"access_token":"at","expires_in":60,"expiry":"2030-01-01T00:00:00Z"}`, wantAccess: "at", wantExpiry: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "refresh only", data: `{"refresh_token":"rt"}`},
		{name: "no expiry", data: `{"access_token":"at"}`, wantAccess: "at"},
		{name: "empty", data: `{}`, wantErr: true},
		{name: "not json", data: `at`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := parseToken([]byte(tt.data), now)
			if tt.wantErr {
				var cliErr *output.CLIError
				require.ErrorAs(t, err, &cliErr)
				assert.Equal(t, output.ExitUsage, cliErr.ExitCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAccess, tok.AccessToken)
			assert.True(t, tt.wantExpiry.Equal(tok.Expiry), "expiry %v", tok.Expiry)
			assert.Zero(t, tok.ExpiresIn)
		})
	}
}
