// Package idx mints the ULID identifiers used for every entity and request.
package idx

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ID is a canonical (upper-case) ULID string. Ids sort by creation time.
type ID string

// Zero is the unset id.
const Zero ID = ""

var ErrInvalid = errors.New("idx: invalid ulid")

// Monotonic entropy is not safe for concurrent use, and ids minted within
// one millisecond must still increase.
var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns an id stamped with the current time.
func New() ID { return NewAt(time.Now()) }

// NewAt returns an id stamped with t. Entities built from an injected clock
// use it so the id agrees with created_at.
func NewAt(t time.Time) ID {
	mu.Lock()
	u := ulid.MustNew(ulid.Timestamp(t.UTC()), entropy)
	mu.Unlock()
	return ID(u.String())
}

// Parse accepts an id in either case and returns it canonicalised.
func Parse(s string) (ID, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Zero, ErrInvalid
	}
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return Zero, ErrInvalid
	}
	return ID(u.String()), nil
}

func (id ID) IsZero() bool   { return id == Zero }
func (id ID) String() string { return string(id) }

// Time is the creation instant encoded in id, or the zero time.
func (id ID) Time() time.Time {
	u, err := ulid.ParseStrict(string(id))
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time()).UTC()
}
