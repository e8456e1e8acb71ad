package surrogate

import "strings"

// Header emission caps. Keys beyond MaxKeySize are dropped; once the joined
// value would exceed MaxHeaderSize the remaining keys are cut. Edge proxies
// reject oversized headers outright, which would take the whole response down
// with them.
const (
	MaxHeaderSize = 16 * 1024
	MaxKeySize    = 1024
)

// KeySet is an ordered, de-duplicated set of normalized surrogate keys for
// one cached response. The zero value is ready to use.
type KeySet struct {
	keys []string
}

// NewKeySet builds a KeySet from raw keys, normalizing and de-duplicating.
func NewKeySet(keys ...string) *KeySet {
	s := &KeySet{}
	s.Add(keys...)
	return s
}

// Add normalizes and appends keys, skipping empties and duplicates.
func (s *KeySet) Add(keys ...string) *KeySet {
	for _, k := range keys {
		n := Normalize(k)
		if n == "" || s.contains(n) {
			continue
		}
		s.keys = append(s.keys, n)
	}
	return s
}

func (s *KeySet) contains(key string) bool {
	for _, k := range s.keys {
		if k == key {
			return true
		}
	}
	return false
}

// Keys returns a copy of the member list in insertion order.
func (s *KeySet) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

func (s *KeySet) Len() int { return len(s.keys) }

// Header formats the set as a space-separated header value, honoring the
// per-key and total-size caps.
func (s *KeySet) Header() string {
	return HeaderValue(s.keys)
}

// Normalize trims whitespace and replaces interior spaces with hyphens
// (spaces delimit keys in the header). Returns "" for empty input.
func Normalize(key string) string {
	n := strings.TrimSpace(key)
	return strings.ReplaceAll(n, " ", "-")
}

// HeaderValue joins keys with spaces, dropping oversized keys and truncating
// once the total cap is reached. Keys must already be normalized.
func HeaderValue(keys []string) string {
	valid := make([]string, 0, len(keys))
	total := 0
	for _, k := range keys {
		size := len(k)
		if size > MaxKeySize {
			continue
		}
		if total+size+1 > MaxHeaderSize {
			break
		}
		valid = append(valid, k)
		total += size + 1
	}
	return strings.Join(valid, " ")
}

// ParseHeader splits a space-separated header value back into a KeySet.
func ParseHeader(value string) *KeySet {
	if value == "" {
		return &KeySet{}
	}
	return NewKeySet(strings.Fields(value)...)
}
