// Package codec provides pluggable (de)serialization for values stored by
// tagcache. The store backend encodes cached page payloads with a Codec before
// framing them for storage; the generic surrogate index reuses it for its
// key-set entries.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
