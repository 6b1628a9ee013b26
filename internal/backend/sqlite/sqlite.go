package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"

	"github.com/semmy-space/skc/internal/keychain"
)

// Options configures a Backend.
type Options struct {
	Path   string   // database file, created if missing
	Groups []string // entitled access groups; empty means unrestricted
}

// Backend stores items in the items table. Items are unique per
// (class, account, access_group).
type Backend struct {
	db     *DB
	groups []string
}

var _ keychain.Backend = (*Backend)(nil)

// New opens the database at opts.Path and applies pending migrations.
func New(opts Options) (*Backend, error) {
	if opts.Path == "" {
		return nil, errors.New("sqlite backend requires a database path")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := OpenDB(opts.Path)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(db.Writer); err != nil {
		db.Close()
		return nil, err
	}

	return &Backend{db: db, groups: slices.Clone(opts.Groups)}, nil
}

// Close releases the database connections.
func (b *Backend) Close() error {
	return b.db.Close()
}

// Query implements keychain.Backend. Entitled groups are searched in order.
func (b *Backend) Query(q keychain.Query) ([]byte, keychain.Status) {
	if q.Account == "" {
		return nil, keychain.StatusParam
	}

	if len(b.groups) == 0 {
		const query = `SELECT data FROM items WHERE class = ? AND account = ? ORDER BY created_at, rowid LIMIT 1`
		return b.queryOne(q, query, string(q.Class), q.Account)
	}

	const query = `SELECT data FROM items WHERE class = ? AND account = ? AND access_group = ? LIMIT 1`
	for _, group := range b.groups {
		data, status := b.queryOne(q, query, string(q.Class), q.Account, group)
		if status != keychain.StatusItemNotFound {
			return data, status
		}
	}
	return nil, keychain.StatusItemNotFound
}

func (b *Backend) queryOne(q keychain.Query, query string, args ...any) ([]byte, keychain.Status) {
	var data []byte
	err := b.db.Reader.QueryRow(query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, keychain.StatusItemNotFound
	}
	if err != nil {
		return nil, keychain.StatusIO
	}
	if !q.ReturnData {
		return nil, keychain.StatusSuccess
	}
	return data, keychain.StatusSuccess
}

// Insert implements keychain.Backend.
func (b *Backend) Insert(item keychain.Item) keychain.Status {
	if item.Account == "" {
		return keychain.StatusParam
	}

	group := item.AccessGroup
	if group == "" && len(b.groups) > 0 {
		group = b.groups[0]
	}
	if len(b.groups) > 0 && !slices.Contains(b.groups, group) {
		return keychain.StatusMissingEntitlement
	}

	data := item.Data
	if data == nil {
		data = []byte{}
	}

	const query = `INSERT INTO items (id, class, account, access_group, data) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (class, account, access_group) DO NOTHING`
	res, err := b.db.Writer.Exec(query, uuid.NewString(), string(item.Class), item.Account, group, data)
	if err != nil {
		return keychain.StatusIO
	}
	n, err := res.RowsAffected()
	if err != nil {
		return keychain.StatusIO
	}
	if n == 0 {
		return keychain.StatusDuplicateItem
	}
	return keychain.StatusSuccess
}

// DeleteAll implements keychain.Backend. It ignores the configured groups.
func (b *Backend) DeleteAll(class keychain.Class, account string) keychain.Status {
	if account == "" {
		return keychain.StatusParam
	}

	const query = `DELETE FROM items WHERE class = ? AND account = ?`
	res, err := b.db.Writer.Exec(query, string(class), account)
	if err != nil {
		return keychain.StatusIO
	}
	n, err := res.RowsAffected()
	if err != nil {
		return keychain.StatusIO
	}
	if n == 0 {
		return keychain.StatusItemNotFound
	}
	return keychain.StatusSuccess
}
