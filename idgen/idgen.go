// Package idgen generates identifiers for siteforge records: generations,
// deployments and audit entries.
//
// Constructors accept a Generator so tests can pin IDs.
package idgen

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// Time-sortable, so audit rows sort naturally by id.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Short returns a Generator of base-36 IDs of the given length, used for
// per-request trace ids where a UUID is too verbose.
func Short(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf)
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is UUIDv7.
var Default Generator = UUIDv7()

// Record-scoped generators.
var (
	Generation = Prefixed("gen_", Default)
	Deployment = Prefixed("dep_", Default)
	Audit      = Prefixed("aud_", Default)
)

// New produces an ID using the Default generator.
func New() string {
	return Default()
}
