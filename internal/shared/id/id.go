// Package id provides centralized ID generation for the surface service.
//
// Instance identifiers are prefixed ULIDs: a 48-bit millisecond timestamp
// followed by 80 bits of entropy. Within one millisecond the entropy is
// incremented monotonically, so identifiers from one generator are strictly
// increasing and never collide; across generators the random component makes
// collisions negligible.
//
//	wv_01HZY3JQ4W5M7Q9T2B8C6D0E1F
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// InstanceID identifies a surface instance
type InstanceID string

// SubscriptionID identifies an event subscription
type SubscriptionID string

const (
	InstancePrefix     = "wv"
	SubscriptionPrefix = "sub"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
	now       func() time.Time
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator with cryptographically secure, monotonic entropy
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(ulid.Monotonic(rand.Reader, 0), time.Now)
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source and clock.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{
		entropy: entropy,
		now:     now,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	ts := ulid.Timestamp(g.now())
	id, err := ulid.New(ts, g.entropy)
	if err != nil {
		// Monotonic overflow within one millisecond; start a fresh random sequence.
		return ulid.MustNew(ts, rand.Reader)
	}
	return id
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewInstanceID generates an instance ID
func (g *Generator) NewInstanceID() InstanceID {
	return InstanceID(g.GenerateWithPrefix(InstancePrefix))
}

// NewInstanceID generates an instance ID from the default generator
func NewInstanceID() InstanceID {
	return Default().NewInstanceID()
}

// NewSubscriptionID generates a subscription ID from the default generator
func NewSubscriptionID() SubscriptionID {
	return SubscriptionID(Default().GenerateWithPrefix(SubscriptionPrefix))
}

func (id InstanceID) String() string     { return string(id) }
func (id SubscriptionID) String() string { return string(id) }

// IsValid checks if an ID string is a valid ULID, with or without prefix
func IsValid(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// Parse parses a ULID string, stripping a known prefix
func Parse(id string) (ulid.ULID, error) {
	if i := strings.IndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	return ulid.Parse(id)
}

// Timestamp extracts the creation time from an ID
func Timestamp(id string) (time.Time, error) {
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
