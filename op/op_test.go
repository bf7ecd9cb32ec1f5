package op

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/holochain/dht-core/action"
	"github.com/holochain/dht-core/hash"
)

func mustHash(t *testing.T, typ hash.Type, seed string) hash.Hash {
	t.Helper()
	h, err := hash.Of(typ, []byte(seed))
	require.NoError(t, err)
	return h
}

func kindsOf(ops []Op) []Kind {
	out := make([]Kind, len(ops))
	for i, o := range ops {
		out[i] = o.Kind
	}
	return out
}

func TestDerive_Create(t *testing.T) {
	author := mustHash(t, hash.TypeAgent, "author")
	entryHash := mustHash(t, hash.TypeEntry, "entry")

	act := &action.Action{
		Kind: action.KindCreate, Author: author, Seq: 2, Timestamp: 1,
		Create: &action.CreateFields{EntryHash: entryHash, EntryType: "post"},
	}

	ops, err := Derive(act, &action.Entry{Kind: action.EntryKindApp, Bytes: []byte("x")})
	require.NoError(t, err)
	require.ElementsMatch(t, []Kind{KindStoreRecord, KindRegisterAgentActivity, KindStoreEntry}, kindsOf(ops))

	for _, o := range ops {
		if o.Kind == KindStoreEntry {
			require.True(t, o.Basis.Equal(entryHash))
		}
		if o.Kind == KindRegisterAgentActivity {
			require.True(t, o.Basis.Equal(author))
		}
	}
}

func TestDerive_Update(t *testing.T) {
	author := mustHash(t, hash.TypeAgent, "author")
	entryHash := mustHash(t, hash.TypeEntry, "new-entry")
	origAction := mustHash(t, hash.TypeAction, "orig-action")
	origEntry := mustHash(t, hash.TypeEntry, "orig-entry")

	act := &action.Action{
		Kind: action.KindUpdate, Author: author, Seq: 5, Timestamp: 1,
		Update: &action.UpdateFields{
			EntryHash:          entryHash,
			OriginalActionHash: origAction,
			OriginalEntryHash:  origEntry,
		},
	}

	ops, err := Derive(act, &action.Entry{Kind: action.EntryKindApp, Bytes: []byte("y")})
	require.NoError(t, err)
	require.ElementsMatch(t, []Kind{KindStoreRecord, KindRegisterAgentActivity, KindStoreEntry, KindRegisterUpdate}, kindsOf(ops))

	for _, o := range ops {
		switch o.Kind {
		case KindStoreEntry:
			require.True(t, o.Basis.Equal(entryHash))
		case KindRegisterUpdate:
			require.True(t, o.Basis.Equal(origEntry))
		}
	}
}

func TestDerive_Delete(t *testing.T) {
	author := mustHash(t, hash.TypeAgent, "author")
	deletedEntry := mustHash(t, hash.TypeEntry, "deleted-entry")

	act := &action.Action{
		Kind: action.KindDelete, Author: author, Seq: 6, Timestamp: 1,
		Delete: &action.DeleteFields{DeletesEntryHash: deletedEntry},
	}

	ops, err := Derive(act, nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []Kind{KindStoreRecord, KindRegisterAgentActivity, KindRegisterDelete}, kindsOf(ops))

	for _, o := range ops {
		if o.Kind == KindRegisterDelete {
			require.True(t, o.Basis.Equal(deletedEntry))
		}
	}
}

func TestDerive_CreateLink(t *testing.T) {
	author := mustHash(t, hash.TypeAgent, "author")
	base := mustHash(t, hash.TypeEntry, "base")
	target := mustHash(t, hash.TypeEntry, "target")

	act := &action.Action{
		Kind: action.KindCreateLink, Author: author, Seq: 7, Timestamp: 1,
		CreateLink: &action.CreateLinkFields{BaseHash: base, TargetHash: target, Tag: []byte("tag")},
	}

	ops, err := Derive(act, nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []Kind{KindStoreRecord, KindRegisterAgentActivity, KindRegisterCreateLink}, kindsOf(ops))
}

func TestDeriveDeleteLink_BasisIsTheCreateLinksBase(t *testing.T) {
	author := mustHash(t, hash.TypeAgent, "author")
	base := mustHash(t, hash.TypeEntry, "base")
	target := mustHash(t, hash.TypeEntry, "target")

	createLink := &action.Action{
		Kind: action.KindCreateLink, Author: author, Seq: 7, Timestamp: 1,
		CreateLink: &action.CreateLinkFields{BaseHash: base, TargetHash: target},
	}
	createLinkHash, err := createLink.Hash()
	require.NoError(t, err)

	deleteLink := &action.Action{
		Kind: action.KindDeleteLink, Author: author, Seq: 8, Timestamp: 2,
		DeleteLink: &action.DeleteLinkFields{LinkAddHash: createLinkHash},
	}

	o, err := DeriveDeleteLink(deleteLink, createLink)
	require.NoError(t, err)
	require.Equal(t, KindRegisterDeleteLink, o.Kind)
	require.True(t, o.Basis.Equal(base))
}

func TestDerive_Determinism(t *testing.T) {
	author := mustHash(t, hash.TypeAgent, "author")
	entryHash := mustHash(t, hash.TypeEntry, "entry")
	act := &action.Action{
		Kind: action.KindCreate, Author: author, Seq: 2, Timestamp: 1,
		Create: &action.CreateFields{EntryHash: entryHash, EntryType: "post"},
	}
	entry := &action.Entry{Kind: action.EntryKindApp, Bytes: []byte("x")}

	ops1, err := Derive(act, entry)
	require.NoError(t, err)
	ops2, err := Derive(act, entry)
	require.NoError(t, err)
	require.Equal(t, kindsOf(ops1), kindsOf(ops2))
	for i := range ops1 {
		require.True(t, ops1[i].Basis.Equal(ops2[i].Basis))
	}
}
