// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package action

import (
	"github.com/holochain/dht-core/codec"
	"github.com/holochain/dht-core/hash"
)

// EntryKind enumerates the closed set of entry content shapes.
type EntryKind uint8

const (
	EntryKindApp EntryKind = iota
	EntryKindAgentPubKey
	EntryKindCapGrant
	EntryKindCapClaim
)

// Entry is app-defined content, an agent public key, or a capability
// grant/claim, addressed by the blake2b-256 hash of its canonical
// bytes. Entries are only ever referenced by Create/Update actions.
type Entry struct {
	Kind  EntryKind
	Bytes []byte
}

// Hash computes the content hash of the entry's canonical bytes.
func (e *Entry) Hash() (hash.Hash, error) {
	b, err := e.canonicalBytes()
	if err != nil {
		return hash.Hash{}, err
	}
	return hash.Of(hash.TypeEntry, b)
}

func (e *Entry) canonicalBytes() ([]byte, error) {
	type wire struct {
		Kind  EntryKind
		Bytes []byte
	}
	return codec.Codec.Marshal(codec.CurrentVersion, wire{e.Kind, e.Bytes})
}
