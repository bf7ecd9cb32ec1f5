// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package op derives the DHT operations an action publishes. Deriving
// ops is a pure function of (action, entry?): no I/O, no clock reads,
// no randomness. Every honest peer holding the same action and entry
// must derive the identical multiset, because basis-location routing
// and region fingerprints both depend on it.
package op

import (
	"fmt"

	"github.com/holochain/dht-core/action"
	"github.com/holochain/dht-core/hash"
)

// Kind enumerates the DHT op variants.
type Kind uint8

const (
	KindStoreRecord Kind = iota
	KindStoreEntry
	KindRegisterAgentActivity
	KindRegisterUpdate
	KindRegisterDelete
	KindRegisterCreateLink
	KindRegisterDeleteLink
)

func (k Kind) String() string {
	switch k {
	case KindStoreRecord:
		return "StoreRecord"
	case KindStoreEntry:
		return "StoreEntry"
	case KindRegisterAgentActivity:
		return "RegisterAgentActivity"
	case KindRegisterUpdate:
		return "RegisterUpdate"
	case KindRegisterDelete:
		return "RegisterDelete"
	case KindRegisterCreateLink:
		return "RegisterCreateLink"
	case KindRegisterDeleteLink:
		return "RegisterDeleteLink"
	default:
		return "Unknown"
	}
}

// Status tracks an op's position in the validation lifecycle:
// Pending -> SysValidated -> AppValidated -> Integrated, or Rejected
// as a terminal failure state from any of the validating stages.
type Status uint8

const (
	StatusPending Status = iota
	StatusSysValidated
	StatusAppValidated
	StatusIntegrated
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusSysValidated:
		return "SysValidated"
	case StatusAppValidated:
		return "AppValidated"
	case StatusIntegrated:
		return "Integrated"
	case StatusRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// Op is one derived DHT operation: the action it came from, its kind,
// and the basis hash whose Location() selects the storing authority.
type Op struct {
	Kind       Kind
	Basis      hash.Hash
	ActionHash hash.Hash
	Action     *action.Action
	Entry      *action.Entry
}

// Derive returns every op the given action (with its optional entry)
// publishes, per the basis table:
//
//	StoreRecord            action hash            every action
//	StoreEntry             entry hash              Create, Update
//	RegisterAgentActivity  author hash             every action
//	RegisterUpdate         original entry hash     Update
//	RegisterDelete         deleted entry hash       Delete
//	RegisterCreateLink     base hash               CreateLink
//	RegisterDeleteLink     base hash of the linked CreateLink  DeleteLink
//
// RegisterDeleteLink's basis requires the CreateLink action being
// removed, since a DeleteLink action only carries its hash
// (LinkAddHash); callers derive DeleteLink ops via DeriveDeleteLink,
// which takes that action as an explicit argument.
func Derive(act *action.Action, entry *action.Entry) ([]Op, error) {
	actHash, err := act.Hash()
	if err != nil {
		return nil, fmt.Errorf("op: hashing action: %w", err)
	}

	ops := []Op{
		{Kind: KindStoreRecord, Basis: actHash, ActionHash: actHash, Action: act, Entry: entry},
		{Kind: KindRegisterAgentActivity, Basis: act.Author, ActionHash: actHash, Action: act, Entry: entry},
	}

	switch act.Kind {
	case action.KindCreate:
		if act.Create == nil {
			return nil, fmt.Errorf("op: Create action missing its payload")
		}
		ops = append(ops, Op{Kind: KindStoreEntry, Basis: act.Create.EntryHash, ActionHash: actHash, Action: act, Entry: entry})

	case action.KindUpdate:
		if act.Update == nil {
			return nil, fmt.Errorf("op: Update action missing its payload")
		}
		ops = append(ops,
			Op{Kind: KindStoreEntry, Basis: act.Update.EntryHash, ActionHash: actHash, Action: act, Entry: entry},
			Op{Kind: KindRegisterUpdate, Basis: act.Update.OriginalEntryHash, ActionHash: actHash, Action: act, Entry: entry},
		)

	case action.KindDelete:
		if act.Delete == nil {
			return nil, fmt.Errorf("op: Delete action missing its payload")
		}
		ops = append(ops, Op{Kind: KindRegisterDelete, Basis: act.Delete.DeletesEntryHash, ActionHash: actHash, Action: act})

	case action.KindCreateLink:
		if act.CreateLink == nil {
			return nil, fmt.Errorf("op: CreateLink action missing its payload")
		}
		ops = append(ops, Op{Kind: KindRegisterCreateLink, Basis: act.CreateLink.BaseHash, ActionHash: actHash, Action: act})

	case action.KindDeleteLink:
		// DeriveDeleteLink handles this variant; see its doc comment.
	}

	return ops, nil
}

// DeriveDeleteLink derives the RegisterDeleteLink op for a DeleteLink
// action, given the CreateLink action it removes (needed for the
// basis: the base hash of the linked CreateLink, not of the
// DeleteLink action itself).
func DeriveDeleteLink(deleteLink *action.Action, createLink *action.Action) (Op, error) {
	if deleteLink.Kind != action.KindDeleteLink || deleteLink.DeleteLink == nil {
		return Op{}, fmt.Errorf("op: DeriveDeleteLink requires a DeleteLink action")
	}
	if createLink.Kind != action.KindCreateLink || createLink.CreateLink == nil {
		return Op{}, fmt.Errorf("op: DeriveDeleteLink requires the linked CreateLink action")
	}

	actHash, err := deleteLink.Hash()
	if err != nil {
		return Op{}, fmt.Errorf("op: hashing action: %w", err)
	}

	return Op{
		Kind:       KindRegisterDeleteLink,
		Basis:      createLink.CreateLink.BaseHash,
		ActionHash: actHash,
		Action:     deleteLink,
	}, nil
}
