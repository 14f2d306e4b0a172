package ast

import "github.com/google/uuid"

// ID is a persistent declaration identifier. It is assigned once, at parse
// time, and survives renames, moves, and refactors performed by later
// passes and by the (out-of-scope) SDK.
type ID = uuid.UUID

// NewID allocates a fresh declaration identifier.
func NewID() ID {
	return uuid.New()
}

// ZeroID reports the nil identifier, used to distinguish "not yet resolved"
// from a concrete UUID on cross-reference-bearing expression nodes.
var ZeroID ID
