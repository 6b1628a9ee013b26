// Package memory implements an in-process keychain backend.
//
// A Store holds the items; each View is one consumer's window onto it,
// limited to the access groups that consumer is entitled to.
package memory

import (
	"slices"
	"sync"

	"github.com/semmy-space/skc/internal/keychain"
)

type record struct {
	class   keychain.Class
	account string
	group   string
	data    []byte
}

// Store holds items shared by all of its views.
type Store struct {
	mu    sync.Mutex
	items []record
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// View is a keychain.Backend restricted to a set of access groups.
type View struct {
	store  *Store
	groups []string
}

var _ keychain.Backend = (*View)(nil)

// View returns a backend entitled to groups. The first group is the default
// for inserts without one. With no groups the view sees everything and its
// default group is "".
func (s *Store) View(groups ...string) *View {
	return &View{store: s, groups: slices.Clone(groups)}
}

// New returns an unrestricted view on a fresh store.
func New() *View {
	return NewStore().View()
}

// Len returns the number of stored items across all groups.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (v *View) entitled(group string) bool {
	return len(v.groups) == 0 || slices.Contains(v.groups, group)
}

func (v *View) defaultGroup() string {
	if len(v.groups) == 0 {
		return ""
	}
	return v.groups[0]
}

// Query implements keychain.Backend. Entitled groups are searched in order.
func (v *View) Query(q keychain.Query) ([]byte, keychain.Status) {
	if q.Account == "" {
		return nil, keychain.StatusParam
	}

	v.store.mu.Lock()
	defer v.store.mu.Unlock()

	match := func(r record) bool {
		return r.class == q.Class && r.account == q.Account
	}

	if len(v.groups) == 0 {
		for _, r := range v.store.items {
			if match(r) {
				return result(q, r), keychain.StatusSuccess
			}
		}
		return nil, keychain.StatusItemNotFound
	}

	for _, group := range v.groups {
		for _, r := range v.store.items {
			if match(r) && r.group == group {
				return result(q, r), keychain.StatusSuccess
			}
		}
	}
	return nil, keychain.StatusItemNotFound
}

func result(q keychain.Query, r record) []byte {
	if !q.ReturnData {
		return nil
	}
	return slices.Clone(r.data)
}

// Insert implements keychain.Backend.
func (v *View) Insert(item keychain.Item) keychain.Status {
	if item.Account == "" {
		return keychain.StatusParam
	}

	group := item.AccessGroup
	if group == "" {
		group = v.defaultGroup()
	}
	if !v.entitled(group) {
		return keychain.StatusMissingEntitlement
	}

	v.store.mu.Lock()
	defer v.store.mu.Unlock()

	for _, r := range v.store.items {
		if r.class == item.Class && r.account == item.Account && r.group == group {
			return keychain.StatusDuplicateItem
		}
	}

	v.store.items = append(v.store.items, record{
		class:   item.Class,
		account: item.Account,
		group:   group,
		data:    slices.Clone(item.Data),
	})
	return keychain.StatusSuccess
}

// DeleteAll implements keychain.Backend. It ignores the view's groups.
func (v *View) DeleteAll(class keychain.Class, account string) keychain.Status {
	if account == "" {
		return keychain.StatusParam
	}

	v.store.mu.Lock()
	defer v.store.mu.Unlock()

	before := len(v.store.items)
	v.store.items = slices.DeleteFunc(v.store.items, func(r record) bool {
		return r.class == class && r.account == account
	})
	if len(v.store.items) == before {
		return keychain.StatusItemNotFound
	}
	return keychain.StatusSuccess
}
