// Package file implements a keychain backend stored in a single AES-256-GCM
// encrypted file. It is the fallback for environments without a usable OS
// keyring (WSL, headless Linux, containers).
package file

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/crypto/scrypt"

	"github.com/semmy-space/skc/internal/keychain"
)

// File layout: magic | salt | nonce | ciphertext.
var magic = []byte("SKC1")

const (
	saltSize    = 16
	keySize     = 32
	lockTimeout = 10 * time.Second
)

var (
	errBadPassphrase = errors.New("wrong passphrase or corrupted file")
	errNotOurs       = errors.New("not an skc credentials file")
)

// DefaultPath returns the default location of the credentials file.
func DefaultPath() string {
	return filepath.Join(xdg.DataHome, "skc", "items.enc")
}

// MachinePassphrase returns a passphrase derived from the current user and
// host. It keeps casual readers out but is guessable; prefer a real one.
func MachinePassphrase() string {
	hostname, _ := os.Hostname()
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME") // Windows
	}
	return fmt.Sprintf("%s@%s", username, hostname)
}

// Options configures a Backend.
type Options struct {
	Path       string   // defaults to DefaultPath()
	Passphrase string   // required
	Groups     []string // entitled access groups; empty means unrestricted

	// ScryptN is the scrypt cost parameter. Defaults to 1<<15.
	ScryptN int
}

// Backend stores items in an encrypted file. Access from several processes
// is serialized with a lock file next to it.
type Backend struct {
	path       string
	lockPath   string
	passphrase []byte
	groups     []string
	scryptN    int

	mu   sync.Mutex
	keys map[string][]byte // derived key by salt
}

var _ keychain.Backend = (*Backend)(nil)

type record struct {
	ID      string         `json:"id"`
	Class   keychain.Class `json:"class"`
	Account string         `json:"account"`
	Group   string         `json:"group,omitempty"`
	Data    []byte         `json:"data"`
	Created time.Time      `json:"created"`
}

type document struct {
	Items []record `json:"items"`
}

// New creates a file-backed backend, creating the parent directory with
// 0700 permissions.
func New(opts Options) (*Backend, error) {
	if opts.Passphrase == "" {
		return nil, errors.New("file backend requires a passphrase")
	}

	path := opts.Path
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create credentials directory: %w", err)
	}

	n := opts.ScryptN
	if n == 0 {
		n = 1 << 15
	}

	return &Backend{
		path:       path,
		lockPath:   path + ".lock",
		passphrase: []byte(opts.Passphrase),
		groups:     slices.Clone(opts.Groups),
		scryptN:    n,
		keys:       make(map[string][]byte),
	}, nil
}

// Path returns the credentials file location.
func (b *Backend) Path() string {
	return b.path
}

// Query implements keychain.Backend.
func (b *Backend) Query(q keychain.Query) ([]byte, keychain.Status) {
	if q.Account == "" {
		return nil, keychain.StatusParam
	}

	var found *record
	status := b.withLock(false, func() keychain.Status {
		doc, _, status := b.load()
		if status != keychain.StatusSuccess {
			return status
		}
		found = b.find(doc, q.Class, q.Account)
		return keychain.StatusSuccess
	})
	if status != keychain.StatusSuccess {
		return nil, status
	}
	if found == nil {
		return nil, keychain.StatusItemNotFound
	}
	if !q.ReturnData {
		return nil, keychain.StatusSuccess
	}
	return found.Data, keychain.StatusSuccess
}

func (b *Backend) find(doc *document, class keychain.Class, account string) *record {
	match := func(r record) bool { return r.Class == class && r.Account == account }

	if len(b.groups) == 0 {
		for i := range doc.Items {
			if match(doc.Items[i]) {
				return &doc.Items[i]
			}
		}
		return nil
	}
	for _, group := range b.groups {
		for i := range doc.Items {
			if match(doc.Items[i]) && doc.Items[i].Group == group {
				return &doc.Items[i]
			}
		}
	}
	return nil
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

	return b.withLock(true, func() keychain.Status {
		doc, salt, status := b.load()
		if status != keychain.StatusSuccess {
			return status
		}

		for _, r := range doc.Items {
			if r.Class == item.Class && r.Account == item.Account && r.Group == group {
				return keychain.StatusDuplicateItem
			}
		}

		doc.Items = append(doc.Items, record{
			ID:      uuid.NewString(),
			Class:   item.Class,
			Account: item.Account,
			Group:   group,
			Data:    item.Data,
			Created: time.Now().UTC(),
		})
		return b.save(doc, salt)
	})
}

// DeleteAll implements keychain.Backend. It ignores the configured groups.
func (b *Backend) DeleteAll(class keychain.Class, account string) keychain.Status {
	if account == "" {
		return keychain.StatusParam
	}

	return b.withLock(true, func() keychain.Status {
		doc, salt, status := b.load()
		if status != keychain.StatusSuccess {
			return status
		}

		before := len(doc.Items)
		doc.Items = slices.DeleteFunc(doc.Items, func(r record) bool {
			return r.Class == class && r.Account == account
		})
		if len(doc.Items) == before {
			return keychain.StatusItemNotFound
		}
		return b.save(doc, salt)
	})
}

// withLock runs fn while holding the lock file, shared for reads and
// exclusive for writes.
func (b *Backend) withLock(exclusive bool, fn func() keychain.Status) keychain.Status {
	lock := flock.New(b.lockPath)
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = lock.TryLockContext(ctx, 50*time.Millisecond)
	} else {
		locked, err = lock.TryRLockContext(ctx, 50*time.Millisecond)
	}
	if err != nil || !locked {
		return keychain.StatusInteractionNotAllowed
	}
	defer lock.Unlock()

	return fn()
}

// load reads and decrypts the file. A missing or empty file is an empty
// document with a fresh salt.
func (b *Backend) load() (*document, []byte, keychain.Status) {
	raw, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(raw) == 0) {
		salt := make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, nil, keychain.StatusIO
		}
		return &document{}, salt, keychain.StatusSuccess
	}
	if err != nil {
		return nil, nil, keychain.StatusIO
	}

	salt, plaintext, err := b.decrypt(raw)
	if err != nil {
		return nil, nil, keychain.StatusAuthFailed
	}

	var doc document
	if err := json.Unmarshal(plaintext, &doc); err != nil {
		return nil, nil, keychain.StatusIO
	}
	return &doc, salt, keychain.StatusSuccess
}

// save encrypts doc and replaces the file atomically.
func (b *Backend) save(doc *document, salt []byte) keychain.Status {
	plaintext, err := json.Marshal(doc)
	if err != nil {
		return keychain.StatusIO
	}

	sealed, err := b.encrypt(salt, plaintext)
	if err != nil {
		return keychain.StatusIO
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0600); err != nil {
		return keychain.StatusIO
	}
	if err := os.Rename(tmp, b.path); err != nil {
		_ = os.Remove(tmp)
		return keychain.StatusIO
	}
	return keychain.StatusSuccess
}

func (b *Backend) key(salt []byte) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if k, ok := b.keys[string(salt)]; ok {
		return k, nil
	}
	k, err := scrypt.Key(b.passphrase, salt, b.scryptN, 8, 1, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	b.keys[string(salt)] = k
	return k, nil
}

func (b *Backend) gcm(salt []byte) (cipher.AEAD, error) {
	key, err := b.key(salt)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// encrypt seals plaintext with a random nonce.
func (b *Backend) encrypt(salt, plaintext []byte) ([]byte, error) {
	gcm, err := b.gcm(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	header := append(slices.Clone(magic), salt...)

	out := make([]byte, 0, len(header)+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, header...)
	out = append(out, nonce...)
	// header is authenticated as additional data
	return gcm.Seal(out, nonce, plaintext, header), nil
}

// decrypt opens a file produced by encrypt and returns its salt and plaintext.
func (b *Backend) decrypt(raw []byte) ([]byte, []byte, error) {
	header := len(magic) + saltSize
	if len(raw) < header || !bytes.Equal(raw[:len(magic)], magic) {
		return nil, nil, errNotOurs
	}
	salt := raw[len(magic):header]

	gcm, err := b.gcm(salt)
	if err != nil {
		return nil, nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(raw) < header+nonceSize {
		return nil, nil, errNotOurs
	}
	nonce, ciphertext := raw[header:header+nonceSize], raw[header+nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, raw[:header])
	if err != nil {
		return nil, nil, errBadPassphrase
	}
	return salt, plaintext, nil
}
