// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package action defines the signed, per-agent chain record and the
// entry content it may reference. Every variant is encoded as a
// single tagged struct rather than an open type hierarchy: callers
// switch exhaustively on Kind, and adding a new variant is a
// compile-time-visible change everywhere that switch appears.
package action

import (
	"fmt"

	"github.com/holochain/dht-core/codec"
	"github.com/holochain/dht-core/hash"
)

// Kind enumerates the closed set of action variants.
type Kind uint8

const (
	KindDna Kind = iota
	KindAgentValidationPkg
	KindCreate
	KindUpdate
	KindDelete
	KindCreateLink
	KindDeleteLink
	KindOpenChain
	KindCloseChain
	KindInitZomesComplete
)

func (k Kind) String() string {
	switch k {
	case KindDna:
		return "Dna"
	case KindAgentValidationPkg:
		return "AgentValidationPkg"
	case KindCreate:
		return "Create"
	case KindUpdate:
		return "Update"
	case KindDelete:
		return "Delete"
	case KindCreateLink:
		return "CreateLink"
	case KindDeleteLink:
		return "DeleteLink"
	case KindOpenChain:
		return "OpenChain"
	case KindCloseChain:
		return "CloseChain"
	case KindInitZomesComplete:
		return "InitZomesComplete"
	default:
		return "Unknown"
	}
}

// EntryType names the app-defined shape of an Entry, opaque to the core.
type EntryType string

// CreateFields is the payload carried by a Create action.
type CreateFields struct {
	EntryHash hash.Hash
	EntryType EntryType
}

// UpdateFields is the payload carried by an Update action: it both
// creates a new Entry instance and registers it as superseding an
// earlier one.
type UpdateFields struct {
	EntryHash          hash.Hash
	EntryType          EntryType
	OriginalActionHash hash.Hash
	OriginalEntryHash  hash.Hash
}

// DeleteFields is the payload carried by a Delete action.
type DeleteFields struct {
	DeletesActionHash hash.Hash
	DeletesEntryHash  hash.Hash
}

// CreateLinkFields is the payload carried by a CreateLink action.
type CreateLinkFields struct {
	BaseHash hash.Hash
	// TargetHash may address any linkable hash (Entry or Action), hence
	// it is stored untyped at the hash.Hash level rather than as a
	// specific hash.Type.
	TargetHash hash.Hash
	Tag        []byte
	LinkType   uint8
}

// DeleteLinkFields is the payload carried by a DeleteLink action.
type DeleteLinkFields struct {
	LinkAddHash hash.Hash
}

// Action is a signed record on a single agent's source chain. Exactly
// one of the variant payload pointers is non-nil for Create, Update,
// Delete, CreateLink and DeleteLink, matching Kind; the zero-payload
// kinds (Dna, AgentValidationPkg, OpenChain, CloseChain,
// InitZomesComplete) leave every payload pointer nil. All variants
// share this struct.
type Action struct {
	Kind      Kind
	Author    hash.Hash // hash.TypeAgent
	Seq       uint32
	Prev      hash.Hash // hash.TypeAction; zero value only valid at Seq 0
	Timestamp int64     // microseconds since Unix epoch
	Signature []byte

	Create     *CreateFields
	Update     *UpdateFields
	Delete     *DeleteFields
	CreateLink *CreateLinkFields
	DeleteLink *DeleteLinkFields
}

// wireAction mirrors Action but drops the Signature field: the
// signature is computed and verified over this canonical form, so it
// cannot include itself.
type wireAction struct {
	Kind      Kind
	Author    []byte
	Seq       uint32
	Prev      []byte
	Timestamp int64

	Create     *CreateFields
	Update     *UpdateFields
	Delete     *DeleteFields
	CreateLink *CreateLinkFields
	DeleteLink *DeleteLinkFields
}

func (a *Action) toWire() wireAction {
	w := wireAction{
		Kind:       a.Kind,
		Author:     a.Author.Bytes(),
		Seq:        a.Seq,
		Timestamp:  a.Timestamp,
		Create:     a.Create,
		Update:     a.Update,
		Delete:     a.Delete,
		CreateLink: a.CreateLink,
		DeleteLink: a.DeleteLink,
	}
	if !a.Prev.Equal(hash.Hash{}) {
		w.Prev = a.Prev.Bytes()
	}
	return w
}

// SignableBytes returns the canonical serialization that a signature
// is computed and verified over.
func (a *Action) SignableBytes() ([]byte, error) {
	return codec.Codec.Marshal(codec.CurrentVersion, a.toWire())
}

// Hash computes the content hash of the action's canonical bytes,
// including the signature (the signature is part of what is stored
// and addressed, even though it is not part of what is signed).
func (a *Action) Hash() (hash.Hash, error) {
	type signedWire struct {
		wireAction
		Signature []byte
	}
	b, err := codec.Codec.Marshal(codec.CurrentVersion, signedWire{a.toWire(), a.Signature})
	if err != nil {
		return hash.Hash{}, err
	}
	return hash.Of(hash.TypeAction, b)
}

// EntryHash returns the hash of the entry this action creates, if
// any. Create and Update are the only two variants that create an
// entry, so they're viewed through this accessor rather than modeled
// as a separate owned type.
func (a *Action) EntryHash() (hash.Hash, bool) {
	switch a.Kind {
	case KindCreate:
		return a.Create.EntryHash, true
	case KindUpdate:
		return a.Update.EntryHash, true
	default:
		return hash.Hash{}, false
	}
}

// EntryType returns the entry type of a Create/Update action, if any.
func (a *Action) EntryType() (EntryType, bool) {
	switch a.Kind {
	case KindCreate:
		return a.Create.EntryType, true
	case KindUpdate:
		return a.Update.EntryType, true
	default:
		return "", false
	}
}

// Validate checks that exactly the payload matching Kind is present,
// and no others. This is a structural check only; chain-linkage and
// signature checks live in the chain and validation packages.
func (a *Action) Validate() error {
	present := map[Kind]bool{
		KindCreate:     a.Create != nil,
		KindUpdate:     a.Update != nil,
		KindDelete:     a.Delete != nil,
		KindCreateLink: a.CreateLink != nil,
		KindDeleteLink: a.DeleteLink != nil,
	}
	for k, has := range present {
		if a.Kind == k && !has {
			return fmt.Errorf("action: kind %s missing its payload", k)
		}
		if a.Kind != k && has {
			return fmt.Errorf("action: kind %s carries payload for %s", a.Kind, k)
		}
	}
	return nil
}
