package action

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/holochain/dht-core/hash"
)

func agentHash(t *testing.T, seed string) hash.Hash {
	t.Helper()
	h, err := hash.Of(hash.TypeAgent, []byte(seed))
	require.NoError(t, err)
	return h
}

func TestAction_HashDeterministic(t *testing.T) {
	author := agentHash(t, "author-1")
	entryHash, err := hash.Of(hash.TypeEntry, []byte("entry content"))
	require.NoError(t, err)

	a := &Action{
		Kind:      KindCreate,
		Author:    author,
		Seq:       2,
		Timestamp: 1000,
		Create:    &CreateFields{EntryHash: entryHash, EntryType: "post"},
		Signature: []byte("sig-bytes"),
	}

	h1, err := a.Hash()
	require.NoError(t, err)
	h2, err := a.Hash()
	require.NoError(t, err)
	require.True(t, h1.Equal(h2))

	b := *a
	b.Signature = []byte("different-sig")
	h3, err := b.Hash()
	require.NoError(t, err)
	require.False(t, h1.Equal(h3), "changing the signature changes the stored hash")
}

func TestAction_SignableBytesExcludeSignature(t *testing.T) {
	author := agentHash(t, "author-2")
	a := &Action{Kind: KindDna, Author: author, Seq: 0, Timestamp: 1}
	b1, err := a.SignableBytes()
	require.NoError(t, err)

	a.Signature = []byte("whatever")
	b2, err := a.SignableBytes()
	require.NoError(t, err)

	require.Equal(t, b1, b2, "signable bytes must not depend on the signature field")
}

func TestAction_Validate(t *testing.T) {
	entryHash, err := hash.Of(hash.TypeEntry, []byte("e"))
	require.NoError(t, err)

	ok := &Action{Kind: KindCreate, Create: &CreateFields{EntryHash: entryHash}}
	require.NoError(t, ok.Validate())

	missing := &Action{Kind: KindCreate}
	require.Error(t, missing.Validate())

	extra := &Action{Kind: KindDna, Create: &CreateFields{EntryHash: entryHash}}
	require.Error(t, extra.Validate())
}

func TestAction_EntryHashProjection(t *testing.T) {
	entryHash, err := hash.Of(hash.TypeEntry, []byte("e"))
	require.NoError(t, err)

	create := &Action{Kind: KindCreate, Create: &CreateFields{EntryHash: entryHash, EntryType: "post"}}
	got, ok := create.EntryHash()
	require.True(t, ok)
	require.True(t, entryHash.Equal(got))

	del := &Action{Kind: KindDelete, Delete: &DeleteFields{}}
	_, ok = del.EntryHash()
	require.False(t, ok)
}

func TestEntry_Hash(t *testing.T) {
	e1 := &Entry{Kind: EntryKindApp, Bytes: []byte("hello")}
	e2 := &Entry{Kind: EntryKindApp, Bytes: []byte("hello")}
	e3 := &Entry{Kind: EntryKindApp, Bytes: []byte("world")}

	h1, err := e1.Hash()
	require.NoError(t, err)
	h2, err := e2.Hash()
	require.NoError(t, err)
	h3, err := e3.Hash()
	require.NoError(t, err)

	require.True(t, h1.Equal(h2))
	require.False(t, h1.Equal(h3))
}
