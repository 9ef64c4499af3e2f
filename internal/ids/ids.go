package ids

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
	"sync/atomic"
)

const (
	PrefixInstance = "inst"
	PrefixStyle    = "src"
	PrefixPrebuilt = "pre"
	PrefixEvent    = "evt"
)

var fallbackSeq atomic.Uint64

// New returns prefix-<suffix> where suffix is lowercase base32 without padding.
// Instance ids use 6 chars (they are typed by hand in the CLI), everything else 8.
func New(prefix string) string {
	n := suffixLen(prefix)
	id, err := newRandomIDWithLen(prefix, n)
	if err != nil {
		// crypto/rand failing is not expected; keep ids unique within the process anyway.
		return fmt.Sprintf("%s-%d", prefix, fallbackSeq.Add(1))
	}
	return id
}

// NewUnique retries New until exists reports false.
func NewUnique(prefix string, exists func(id string) bool) string {
	for i := 0; i < 100; i++ {
		id := New(prefix)
		if exists == nil || !exists(id) {
			return id
		}
	}
	return fmt.Sprintf("%s-%d", prefix, fallbackSeq.Add(1))
}

func suffixLen(prefix string) int {
	if prefix == PrefixInstance {
		return 6
	}
	return 8
}

func newRandomIDWithLen(prefix string, n int) (string, error) {
	var b [5]byte // 40 bits -> 8 base32 chars
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	suffix := strings.ToLower(enc.EncodeToString(b[:]))
	if n > 0 && n < len(suffix) {
		suffix = suffix[:n]
	}
	return prefix + "-" + suffix, nil
}
