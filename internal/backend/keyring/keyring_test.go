package keyring

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semmy-space/skc/internal/keychain"
)

// arrayOpener hands out one in-memory keyring per service name.
type arrayOpener struct {
	rings  map[string]*keyring.ArrayKeyring
	opened []string
	err    error
}

func newArrayOpener() *arrayOpener {
	return &arrayOpener{rings: make(map[string]*keyring.ArrayKeyring)}
}

func (o *arrayOpener) open(cfg keyring.Config) (keyring.Keyring, error) {
	if o.err != nil {
		return nil, o.err
	}
	o.opened = append(o.opened, cfg.ServiceName)
	r, ok := o.rings[cfg.ServiceName]
	if !ok {
		r = keyring.NewArrayKeyring(nil)
		o.rings[cfg.ServiceName] = r
	}
	return r, nil
}

// bareKeyring drops everything but the key and data on Get, the way the
// wincred and keyctl implementations do.
type bareKeyring struct {
	keyring.Keyring
}

func (r bareKeyring) Get(key string) (keyring.Item, error) {
	item, err := r.Keyring.Get(key)
	if err != nil {
		return keyring.Item{}, err
	}
	return keyring.Item{Key: item.Key, Data: item.Data}, nil
}

func (o *arrayOpener) openBare(cfg keyring.Config) (keyring.Keyring, error) {
	r, err := o.open(cfg)
	if err != nil {
		return nil, err
	}
	return bareKeyring{r}, nil
}

func newTestBackend(t *testing.T, o *arrayOpener, groups ...string) *Backend {
	t.Helper()
	b, err := New(Options{
		Config: keyring.Config{ServiceName: "skc-test"},
		Groups: groups,
		Opener: o.open,
	})
	require.NoError(t, err)
	return b
}

func TestNewRequiresServiceName(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestNewReportsUnavailableKeyring(t *testing.T) {
	o := newArrayOpener()
	o.err = keyring.ErrNoAvailImpl
	_, err := New(Options{Config: keyring.Config{ServiceName: "skc-test"}, Opener: o.open})
	require.Error(t, err)
	assert.True(t, errors.Is(err, keyring.ErrNoAvailImpl))
	assert.Contains(t, err.Error(), "failed to open keyring")
}

func TestServiceName(t *testing.T) {
	b := newTestBackend(t, newArrayOpener())
	assert.Equal(t, "skc-test", b.ServiceName(""))
	assert.Equal(t, "skc-test.team", b.ServiceName("team"))
}

func TestInsertQueryDelete(t *testing.T) {
	o := newArrayOpener()
	b := newTestBackend(t, o)

	item := keychain.Item{Class: keychain.ClassGenericPassword, Account: "token", Data: []byte(`"abc"`)}
	require.Equal(t, keychain.StatusSuccess, b.Insert(item))
	assert.Equal(t, keychain.StatusDuplicateItem, b.Insert(item))

	data, status := b.Query(keychain.Query{Class: keychain.ClassGenericPassword, Account: "token", ReturnData: true, MatchLimit: keychain.MatchLimitOne})
	require.Equal(t, keychain.StatusSuccess, status)
	assert.Equal(t, []byte(`"abc"`), data)

	stored, err := o.rings["skc-test"].Get("genp:token")
	require.NoError(t, err)
	assert.Equal(t, []byte(`"abc"`), stored.Data)

	assert.Equal(t, keychain.StatusSuccess, b.DeleteAll(keychain.ClassGenericPassword, "token"))
	assert.Equal(t, keychain.StatusItemNotFound, b.DeleteAll(keychain.ClassGenericPassword, "token"))

	_, status = b.Query(keychain.Query{Class: keychain.ClassGenericPassword, Account: "token", ReturnData: true})
	assert.Equal(t, keychain.StatusItemNotFound, status)
}

func TestQueryIgnoresOtherClasses(t *testing.T) {
	o := newArrayOpener()
	b := newTestBackend(t, o)

	require.NoError(t, o.rings["skc-test"].Set(keyring.Item{Key: "inet:token", Data: []byte("x")}))
	require.NoError(t, o.rings["skc-test"].Set(keyring.Item{Key: "token", Data: []byte("x")}))

	_, status := b.Query(keychain.Query{Class: keychain.ClassGenericPassword, Account: "token", ReturnData: true})
	assert.Equal(t, keychain.StatusItemNotFound, status)
	assert.Equal(t, keychain.StatusItemNotFound, b.DeleteAll(keychain.ClassGenericPassword, "token"))
}

func TestEmptyAccount(t *testing.T) {
	b := newTestBackend(t, newArrayOpener())
	_, status := b.Query(keychain.Query{Class: keychain.ClassGenericPassword})
	assert.Equal(t, keychain.StatusParam, status)
	assert.Equal(t, keychain.StatusParam, b.Insert(keychain.Item{Class: keychain.ClassGenericPassword}))
	assert.Equal(t, keychain.StatusParam, b.DeleteAll(keychain.ClassGenericPassword, ""))
}

func TestGroups(t *testing.T) {
	o := newArrayOpener()
	b := newTestBackend(t, o, "G1", "G2")

	t.Run("default group is the first one", func(t *testing.T) {
		require.Equal(t, keychain.StatusSuccess, b.Insert(keychain.Item{Class: keychain.ClassGenericPassword, Account: "a", Data: []byte("1")}))
		_, err := o.rings["skc-test.G1"].Get("genp:a")
		assert.NoError(t, err)
	})

	t.Run("insert outside entitlement", func(t *testing.T) {
		status := b.Insert(keychain.Item{Class: keychain.ClassGenericPassword, Account: "a", Data: []byte("1"), AccessGroup: "G3"})
		assert.Equal(t, keychain.StatusMissingEntitlement, status)
	})

	t.Run("delete spans groups", func(t *testing.T) {
		require.Equal(t, keychain.StatusSuccess, b.Insert(keychain.Item{Class: keychain.ClassGenericPassword, Account: "b", Data: []byte("1"), AccessGroup: "G1"}))
		require.Equal(t, keychain.StatusSuccess, b.Insert(keychain.Item{Class: keychain.ClassGenericPassword, Account: "b", Data: []byte("2"), AccessGroup: "G2"}))

		assert.Equal(t, keychain.StatusSuccess, b.DeleteAll(keychain.ClassGenericPassword, "b"))
		_, status := b.Query(keychain.Query{Class: keychain.ClassGenericPassword, Account: "b", ReturnData: true})
		assert.Equal(t, keychain.StatusItemNotFound, status)
	})

	assert.Equal(t, []string{"skc-test.G1", "skc-test.G2"}, o.opened)
}

func TestKeychainOnKeyring(t *testing.T) {
	b := newTestBackend(t, newArrayOpener())
	kc := keychain.New(b)

	require.NoError(t, kc.Set("token", "abc"))
	require.NoError(t, kc.Set("token", "def"))

	got, err := keychain.Value[string](kc, "token")
	require.NoError(t, err)
	assert.Equal(t, "def", got)

	kc.Delete("token")
	_, err = keychain.Value[string](kc, "token")
	assert.ErrorIs(t, err, keychain.ErrNoValueForKey)
}

func TestKeychainOnBareKeyring(t *testing.T) {
	o := newArrayOpener()
	b, err := New(Options{
		Config: keyring.Config{ServiceName: "skc-test"},
		Opener: o.openBare,
	})
	require.NoError(t, err)
	kc := keychain.New(b)

	require.NoError(t, kc.Set("token", "abc"))
	got, err := keychain.Value[string](kc, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	require.NoError(t, kc.Set("token", "def"))
	got, err = keychain.Value[string](kc, "token")
	require.NoError(t, err)
	assert.Equal(t, "def", got)

	kc.Delete("token")
	_, err = keychain.Value[string](kc, "token")
	assert.ErrorIs(t, err, keychain.ErrNoValueForKey)
}

func TestUnrestrictedGroups(t *testing.T) {
	o := newArrayOpener()
	b := newTestBackend(t, o)

	plain := keychain.New(b)
	team := keychain.New(b, keychain.WithAccessGroup("team"))

	require.NoError(t, plain.Set("token", "abc"))
	require.NoError(t, team.Set("token", "xyz"))

	got, err := keychain.Value[string](plain, "token")
	require.NoError(t, err)
	assert.Equal(t, "xyz", got)

	_, err = o.rings["skc-test.team"].Get("genp:token")
	assert.NoError(t, err)
	_, err = o.rings["skc-test"].Get("genp:token")
	assert.ErrorIs(t, err, keyring.ErrKeyNotFound)

	// a later process finds the team item through the search hint
	later, err := New(Options{
		Config: keyring.Config{ServiceName: "skc-test"},
		Search: []string{"team"},
		Opener: o.open,
	})
	require.NoError(t, err)
	got, err = keychain.Value[string](keychain.New(later), "token")
	require.NoError(t, err)
	assert.Equal(t, "xyz", got)

	keychain.New(later).Delete("token")
	_, status := later.Query(keychain.Query{Class: keychain.ClassGenericPassword, Account: "token", ReturnData: true})
	assert.Equal(t, keychain.StatusItemNotFound, status)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want keychain.Status
	}{
		{name: "nil", err: nil, want: keychain.StatusSuccess},
		{name: "not found", err: keyring.ErrKeyNotFound, want: keychain.StatusItemNotFound},
		{name: "no implementation", err: keyring.ErrNoAvailImpl, want: keychain.StatusNotAvailable},
		{name: "other", err: errors.New("dbus closed"), want: keychain.StatusIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(tt.err))
		})
	}
}
