package ginternals

import "github.com/sourcehut-labs/mgit/ginternals/githash"

// Oid is a git Object ID. It's a type alias for githash.Oid so every
// package that deals with identifiers (references, objects, the index)
// shares the same concrete 20-byte SHA-1 type; there's no multi-hash
// abstraction to satisfy since the database only ever speaks SHA-1.
type Oid = githash.Oid

// NullOid is the zero-value Oid.
var NullOid = githash.NullOid

// NewOidFromBytes casts a 20-byte slice into an Oid.
func NewOidFromBytes(b []byte) (Oid, error) {
	return githash.NewOidFromBytes(b)
}

// NewOidFromHex parses the 40-character hex representation of an Oid.
func NewOidFromHex(hexOid string) (Oid, error) {
	return githash.NewOidFromHex(hexOid)
}

// NewOidFromChars is NewOidFromHex over a byte slice.
func NewOidFromChars(hexOid []byte) (Oid, error) {
	return githash.NewOidFromChars(hexOid)
}

// NewOidFromStr is an alias of NewOidFromHex kept for call sites (and
// tests) that spell it the historical way.
func NewOidFromStr(hexOid string) (Oid, error) {
	return githash.NewOidFromHex(hexOid)
}

// NewOidFromContent returns the Oid (SHA-1 digest) of the given content.
func NewOidFromContent(content []byte) Oid {
	return githash.Sum(content)
}
