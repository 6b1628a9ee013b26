// Package keychain provides typed access to a secure credential store.
//
// Values are stored one per key as generic-password items. Reads decode the
// stored payload into the type chosen at the call site:
//
//	kc := keychain.New(backend, keychain.WithAccessGroup("team.shared"))
//	if err := kc.Set("token", "abc"); err != nil { ... }
//	token, err := keychain.Value[string](kc, "token")
//
// Writes replace an existing item by deleting it from every access group
// and inserting a fresh one into the configured group. Deletes never report
// failure; follow with a read if confirmation is needed.
package keychain

import (
	"io"
	"log/slog"
)

// Keychain reads and writes values in a Backend. It is immutable after
// construction and safe for concurrent use if the backend is.
type Keychain struct {
	backend     Backend
	codec       Codec
	accessGroup string
	logger      *slog.Logger
}

// Option configures a Keychain.
type Option func(*Keychain)

// WithAccessGroup sets the access group new items are written into.
// The group is stored verbatim; an empty group means the backend default.
func WithAccessGroup(group string) Option {
	return func(k *Keychain) {
		k.accessGroup = group
	}
}

// WithCodec sets the codec used for payloads. Defaults to JSON.
func WithCodec(c Codec) Option {
	return func(k *Keychain) {
		if c != nil {
			k.codec = c
		}
	}
}

// WithLogger sets the logger used for swallowed backend failures.
func WithLogger(l *slog.Logger) Option {
	return func(k *Keychain) {
		if l != nil {
			k.logger = l
		}
	}
}

// New creates a Keychain on top of backend.
func New(backend Backend, opts ...Option) *Keychain {
	k := &Keychain{
		backend: backend,
		codec:   JSON,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// AccessGroup returns the group new items are written into.
func (k *Keychain) AccessGroup() string {
	return k.accessGroup
}

// Codec returns the payload codec.
func (k *Keychain) Codec() Codec {
	return k.codec
}

// Value reads the value stored under key and decodes it as a T.
//
// It returns ErrNoValueForKey if nothing is stored, ErrTypeMismatch if the
// payload is not a T, and ErrBackend for any other backend status.
func Value[T any](k *Keychain, key string) (T, error) {
	var zero T

	data, status := k.backend.Query(Query{
		Class:      ClassGenericPassword,
		Account:    key,
		ReturnData: true,
		MatchLimit: MatchLimitOne,
	})

	switch status {
	case StatusSuccess:
		var v T
		if err := k.codec.Decode(data, &v); err != nil {
			return zero, typeMismatch(key, err)
		}
		return v, nil
	case StatusItemNotFound:
		return zero, noValueForKey(key)
	default:
		return zero, backendError(key, status)
	}
}

// Optional reads the value stored under key. A missing item is not an
// error: ok is false and err is nil.
//
// Every other failure, including backend errors, is reported as
// ErrTypeMismatch. Existing callers depend on that; the backend status is
// still available on the returned *Error.
func Optional[T any](k *Keychain, key string) (v T, ok bool, err error) {
	v, err = Value[T](k, key)
	if err == nil {
		return v, true, nil
	}
	if IsNotFound(err) {
		return v, false, nil
	}

	collapsed := &Error{Kind: ErrTypeMismatch, Key: key}
	if kerr, isKeychainErr := err.(*Error); isKeychainErr {
		collapsed.Status = kerr.Status
	}
	k.logger.Debug("optional read failed", "key", key, "error", err)
	return v, false, collapsed
}

// Set stores value under key, replacing any item with the same key in any
// access group. Only the insert's status decides the result.
func (k *Keychain) Set(key string, value any) error {
	data, err := k.codec.Encode(value)
	if err != nil {
		return typeMismatch(key, err)
	}

	if status := k.backend.DeleteAll(ClassGenericPassword, key); status != StatusSuccess && status != StatusItemNotFound {
		k.logger.Debug("pre-write delete failed", "key", key, "status", status)
	}

	status := k.backend.Insert(Item{
		Class:       ClassGenericPassword,
		Account:     key,
		Data:        data,
		AccessGroup: k.accessGroup,
	})
	if status != StatusSuccess {
		return backendError(key, status)
	}
	return nil
}

// Delete removes the item stored under key from every access group.
// Failures, including a missing item, are ignored.
func (k *Keychain) Delete(key string) {
	if status := k.backend.DeleteAll(ClassGenericPassword, key); status != StatusSuccess {
		k.logger.Debug("delete ignored", "key", key, "status", status)
	}
}
