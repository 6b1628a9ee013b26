// Package keyring implements a keychain backend on top of the OS keyring
// (macOS Keychain, Secret Service, KWallet, Windows Credential Manager, pass).
//
// Each access group maps to its own keyring service: the default group uses
// the base service name and group G uses "<service>.<G>". Items are keyed
// "<class>:<account>" because several keyring implementations (wincred,
// keyctl) only round-trip the key and the data.
package keyring

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/99designs/keyring"

	"github.com/semmy-space/skc/internal/keychain"
)

// Opener opens a keyring for a config. keyring.Open is the default.
type Opener func(cfg keyring.Config) (keyring.Keyring, error)

// Options configures a Backend.
type Options struct {
	// Config is the base keyring configuration. ServiceName is required.
	Config keyring.Config

	// Groups lists the access groups this process may use, in search order.
	// The first one is the default for inserts. Empty means unrestricted:
	// inserts may target any group and the default group is the base service.
	Groups []string

	// Search names extra groups to read and clear when Groups is empty.
	// A keyring can't list its services, so groups written by another
	// process are only found if named here.
	Search []string

	// Opener overrides keyring.Open, mostly for tests.
	Opener Opener
}

// Backend stores items in one keyring per access group.
type Backend struct {
	cfg          keyring.Config
	groups       []string
	unrestricted bool
	open         Opener

	mu    sync.Mutex
	rings map[string]keyring.Keyring
	known []string // groups searched when unrestricted, in opening order
}

var _ keychain.Backend = (*Backend)(nil)

// New creates a keyring-backed backend. Rings are opened lazily; the default
// ring is opened immediately so an unusable keyring is reported up front.
func New(opts Options) (*Backend, error) {
	if opts.Config.ServiceName == "" {
		return nil, errors.New("keyring service name is required")
	}

	b := &Backend{
		cfg:    opts.Config,
		groups: opts.Groups,
		open:   opts.Opener,
		rings:  make(map[string]keyring.Keyring),
	}
	if b.open == nil {
		b.open = keyring.Open
	}
	if len(b.groups) == 0 {
		b.unrestricted = true
		b.groups = []string{""}
	}

	if _, err := b.ring(b.groups[0]); err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	if b.unrestricted {
		for _, g := range opts.Search {
			b.remember(g)
		}
	}
	return b, nil
}

// itemKey is the keyring key for account within class.
func itemKey(class keychain.Class, account string) string {
	return string(class) + ":" + account
}

// ServiceName returns the keyring service used for group.
func (b *Backend) ServiceName(group string) string {
	if group == "" {
		return b.cfg.ServiceName
	}
	return b.cfg.ServiceName + "." + group
}

func (b *Backend) ring(group string) (keyring.Keyring, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r, ok := b.rings[group]; ok {
		return r, nil
	}

	cfg := b.cfg
	cfg.ServiceName = b.ServiceName(group)

	r, err := b.open(cfg)
	if err != nil {
		return nil, err
	}
	b.rings[group] = r
	if b.unrestricted {
		b.rememberLocked(group)
	}
	return r, nil
}

func (b *Backend) remember(group string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rememberLocked(group)
}

func (b *Backend) rememberLocked(group string) {
	if !slices.Contains(b.known, group) {
		b.known = append(b.known, group)
	}
}

// searchGroups returns the groups reads and deletes visit, in order.
func (b *Backend) searchGroups() []string {
	if !b.unrestricted {
		return b.groups
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.known)
}

func (b *Backend) entitled(group string) bool {
	if b.unrestricted {
		return true
	}
	for _, g := range b.groups {
		if g == group {
			return true
		}
	}
	return false
}

// Query implements keychain.Backend.
func (b *Backend) Query(q keychain.Query) ([]byte, keychain.Status) {
	if q.Account == "" {
		return nil, keychain.StatusParam
	}

	for _, group := range b.searchGroups() {
		r, err := b.ring(group)
		if err != nil {
			return nil, statusOf(err)
		}

		item, err := r.Get(itemKey(q.Class, q.Account))
		if errors.Is(err, keyring.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, statusOf(err)
		}

		if !q.ReturnData {
			return nil, keychain.StatusSuccess
		}
		return item.Data, keychain.StatusSuccess
	}
	return nil, keychain.StatusItemNotFound
}

// Insert implements keychain.Backend.
func (b *Backend) Insert(item keychain.Item) keychain.Status {
	if item.Account == "" {
		return keychain.StatusParam
	}

	group := item.AccessGroup
	if group == "" {
		group = b.groups[0]
	}
	if !b.entitled(group) {
		return keychain.StatusMissingEntitlement
	}

	r, err := b.ring(group)
	if err != nil {
		return statusOf(err)
	}

	key := itemKey(item.Class, item.Account)
	if _, err := r.Get(key); err == nil {
		return keychain.StatusDuplicateItem
	} else if !errors.Is(err, keyring.ErrKeyNotFound) {
		return statusOf(err)
	}

	err = r.Set(keyring.Item{
		Key:         key,
		Data:        item.Data,
		Label:       fmt.Sprintf("%s (%s)", item.Account, b.ServiceName(group)),
		Description: string(item.Class),
	})
	if err != nil {
		return statusOf(err)
	}
	return keychain.StatusSuccess
}

// DeleteAll implements keychain.Backend. Every configured or known group is
// visited; the keyring cannot reach services it was not told about.
func (b *Backend) DeleteAll(class keychain.Class, account string) keychain.Status {
	if account == "" {
		return keychain.StatusParam
	}

	removed := false
	failure := keychain.StatusSuccess
	key := itemKey(class, account)
	for _, group := range b.searchGroups() {
		r, err := b.ring(group)
		if err != nil {
			failure = statusOf(err)
			continue
		}

		if _, err := r.Get(key); errors.Is(err, keyring.ErrKeyNotFound) {
			continue
		} else if err != nil {
			failure = statusOf(err)
			continue
		}

		if err := r.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
			failure = statusOf(err)
			continue
		}
		removed = true
	}

	switch {
	case failure != keychain.StatusSuccess:
		return failure
	case !removed:
		return keychain.StatusItemNotFound
	default:
		return keychain.StatusSuccess
	}
}

// statusOf maps keyring errors onto backend statuses.
func statusOf(err error) keychain.Status {
	switch {
	case err == nil:
		return keychain.StatusSuccess
	case errors.Is(err, keyring.ErrKeyNotFound):
		return keychain.StatusItemNotFound
	case errors.Is(err, keyring.ErrNoAvailImpl):
		return keychain.StatusNotAvailable
	default:
		return keychain.StatusIO
	}
}

// AvailableBackends lists the keyring implementations usable on this system.
func AvailableBackends() []string {
	types := keyring.AvailableBackends()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	return names
}
