package keychain

import "fmt"

// Class tags the kind of item stored in the backend.
type Class string

// ClassGenericPassword is the only class this package reads or writes.
const ClassGenericPassword Class = "genp"

// MatchLimit bounds how many items a query may return.
type MatchLimit int

const (
	// MatchLimitOne asks the backend for at most one item.
	MatchLimitOne MatchLimit = 1
)

// Query describes a lookup against the backend.
type Query struct {
	Class      Class
	Account    string
	ReturnData bool
	MatchLimit MatchLimit
}

// Item is a single record in the backend. AccessGroup is empty when the
// item goes to the backend's default group.
type Item struct {
	Class       Class
	Account     string
	Data        []byte
	AccessGroup string
}

// Backend is the secure storage service the keychain talks to.
// Implementations report every outcome as a Status rather than an error.
type Backend interface {
	// Query returns the payload of the first matching item visible to the caller.
	Query(q Query) ([]byte, Status)

	// Insert adds a new item. Inserting an item that already exists in the
	// same access group returns StatusDuplicateItem.
	Insert(item Item) Status

	// DeleteAll removes every item with the given class and account in every
	// access group, regardless of the caller's entitlements.
	DeleteAll(class Class, account string) Status
}

// Status is an OSStatus-style result code returned by a Backend.
type Status int32

// Status codes shared by all backends. Values follow the Security framework.
const (
	StatusSuccess               Status = 0
	StatusIO                    Status = -36
	StatusParam                 Status = -50
	StatusAuthFailed            Status = -25293
	StatusNotAvailable          Status = -25291
	StatusDuplicateItem         Status = -25299
	StatusItemNotFound          Status = -25300
	StatusInteractionNotAllowed Status = -25308
	StatusMissingEntitlement    Status = -34018
)

var statusNames = map[Status]string{
	StatusSuccess:               "success",
	StatusIO:                    "io error",
	StatusParam:                 "invalid parameter",
	StatusAuthFailed:            "authorization failed",
	StatusNotAvailable:          "keychain not available",
	StatusDuplicateItem:         "duplicate item",
	StatusItemNotFound:          "item not found",
	StatusInteractionNotAllowed: "user interaction not allowed",
	StatusMissingEntitlement:    "missing entitlement",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int32(s))
}

// Transient reports whether the condition behind s may clear on its own,
// e.g. a locked keychain or an unreachable secret service.
func (s Status) Transient() bool {
	switch s {
	case StatusIO, StatusNotAvailable, StatusInteractionNotAllowed:
		return true
	default:
		return false
	}
}
