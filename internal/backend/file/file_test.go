package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semmy-space/skc/internal/keychain"
)

func newTestBackend(t *testing.T, path, passphrase string, groups ...string) *Backend {
	t.Helper()
	b, err := New(Options{Path: path, Passphrase: passphrase, Groups: groups, ScryptN: 1 << 10})
	require.NoError(t, err)
	return b
}

func query(account string) keychain.Query {
	return keychain.Query{Class: keychain.ClassGenericPassword, Account: account, ReturnData: true, MatchLimit: keychain.MatchLimitOne}
}

func item(account, data, group string) keychain.Item {
	return keychain.Item{Class: keychain.ClassGenericPassword, Account: account, Data: []byte(data), AccessGroup: group}
}

func TestNew(t *testing.T) {
	t.Run("requires passphrase", func(t *testing.T) {
		_, err := New(Options{Path: filepath.Join(t.TempDir(), "items.enc")})
		assert.Error(t, err)
	})

	t.Run("creates parent directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "items.enc")
		b := newTestBackend(t, path, "pw")
		assert.Equal(t, path, b.Path())

		info, err := os.Stat(filepath.Dir(path))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
}

func TestEmptyFile(t *testing.T) {
	b := newTestBackend(t, filepath.Join(t.TempDir(), "items.enc"), "pw")

	_, status := b.Query(query("missing"))
	assert.Equal(t, keychain.StatusItemNotFound, status)
	assert.Equal(t, keychain.StatusItemNotFound, b.DeleteAll(keychain.ClassGenericPassword, "missing"))
}

func TestInsertQueryDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.enc")
	b := newTestBackend(t, path, "pw")

	require.Equal(t, keychain.StatusSuccess, b.Insert(item("token", `"abc"`, "")))
	assert.Equal(t, keychain.StatusDuplicateItem, b.Insert(item("token", `"abc"`, "")))

	data, status := b.Query(query("token"))
	require.Equal(t, keychain.StatusSuccess, status)
	assert.Equal(t, `"abc"`, string(data))

	_, status = b.Query(keychain.Query{Class: keychain.ClassGenericPassword, Account: "token"})
	assert.Equal(t, keychain.StatusSuccess, status)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "abc", "payload must be encrypted at rest")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	assert.Equal(t, keychain.StatusSuccess, b.DeleteAll(keychain.ClassGenericPassword, "token"))
	_, status = b.Query(query("token"))
	assert.Equal(t, keychain.StatusItemNotFound, status)
}

func TestPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.enc")
	first := newTestBackend(t, path, "pw")
	require.Equal(t, keychain.StatusSuccess, first.Insert(item("k", "v", "")))

	second := newTestBackend(t, path, "pw")
	data, status := second.Query(query("k"))
	require.Equal(t, keychain.StatusSuccess, status)
	assert.Equal(t, "v", string(data))
}

func TestWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.enc")
	require.Equal(t, keychain.StatusSuccess, newTestBackend(t, path, "right").Insert(item("k", "v", "")))

	b := newTestBackend(t, path, "wrong")
	_, status := b.Query(query("k"))
	assert.Equal(t, keychain.StatusAuthFailed, status)
	assert.Equal(t, keychain.StatusAuthFailed, b.Insert(item("other", "v", "")))
}

func TestForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.enc")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0600))

	_, status := newTestBackend(t, path, "pw").Query(query("k"))
	assert.Equal(t, keychain.StatusAuthFailed, status)
}

func TestGroups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.enc")
	g1 := newTestBackend(t, path, "pw", "G1")
	g2 := newTestBackend(t, path, "pw", "G2")

	require.Equal(t, keychain.StatusSuccess, g1.Insert(item("k", "one", "")))
	assert.Equal(t, keychain.StatusMissingEntitlement, g1.Insert(item("k", "x", "G2")))

	_, status := g2.Query(query("k"))
	assert.Equal(t, keychain.StatusItemNotFound, status)

	require.Equal(t, keychain.StatusSuccess, g2.Insert(item("k", "two", "")))
	data, status := g1.Query(query("k"))
	require.Equal(t, keychain.StatusSuccess, status)
	assert.Equal(t, "one", string(data))

	// delete is not limited by entitlements
	assert.Equal(t, keychain.StatusSuccess, g2.DeleteAll(keychain.ClassGenericPassword, "k"))
	_, status = g1.Query(query("k"))
	assert.Equal(t, keychain.StatusItemNotFound, status)
}

func TestKeychainOnFile(t *testing.T) {
	kc := keychain.New(newTestBackend(t, filepath.Join(t.TempDir(), "items.enc"), "pw"), keychain.WithCodec(keychain.CBOR))

	require.NoError(t, kc.Set("token", "abc"))
	got, err := keychain.Value[string](kc, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	kc.Delete("token")
	_, ok, err := keychain.Optional[string](kc, "token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMachinePassphrase(t *testing.T) {
	t.Setenv("USER", "ada")
	assert.Contains(t, MachinePassphrase(), "ada@")
}
