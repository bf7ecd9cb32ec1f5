// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package validation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/holochain/dht-core/action"
	"github.com/holochain/dht-core/hash"
	"github.com/holochain/dht-core/op"
	"github.com/holochain/dht-core/store"
)

func integrateAction(t *testing.T, st *store.Store, act *action.Action) hash.Hash {
	t.Helper()
	ops, err := op.Derive(act, nil)
	require.NoError(t, err)
	require.NoError(t, st.AppendAction(act, nil, ops))
	for _, o := range ops {
		actHash, err := o.Action.Hash()
		require.NoError(t, err)
		require.NoError(t, st.SetOpStatus(actHash, o.Kind, op.StatusIntegrated, 0))
	}
	actHash, err := act.Hash()
	require.NoError(t, err)
	return actHash
}

// TestDeterministicGetAgentActivity_IgnoresFork builds a chain with a
// fork: seq 2 has two competing actions with the same Prev, only one
// of which is reachable by walking backward from the tip that
// actually descends from it. The walk must follow exact Prev hashes
// and never surface the sibling it didn't branch through.
func TestDeterministicGetAgentActivity_IgnoresFork(t *testing.T) {
	st := openTestStore(t)
	author := mustHash(t, hash.TypeAgent, "author")

	dna := &action.Action{Kind: action.KindDna, Author: author, Seq: 0, Timestamp: 1}
	dnaHash := integrateAction(t, st, dna)

	avp := &action.Action{Kind: action.KindAgentValidationPkg, Author: author, Seq: 1, Prev: dnaHash, Timestamp: 2}
	avpHash := integrateAction(t, st, avp)

	// Two siblings both built on avp: the one the test walks from, and
	// a fork that must never appear in the result.
	taken := &action.Action{Kind: action.KindOpenChain, Author: author, Seq: 2, Prev: avpHash, Timestamp: 3}
	takenHash := integrateAction(t, st, taken)

	forked := &action.Action{Kind: action.KindOpenChain, Author: author, Seq: 2, Prev: avpHash, Timestamp: 4}
	forkedHash := integrateAction(t, st, forked)

	tip := &action.Action{Kind: action.KindCloseChain, Author: author, Seq: 3, Prev: takenHash, Timestamp: 5}
	tipHash := integrateAction(t, st, tip)

	chain, err := DeterministicGetAgentActivity(st, author, hash.Hash{}, tipHash)
	require.NoError(t, err)
	require.Len(t, chain, 4)

	var sawTaken bool
	for _, act := range chain {
		h, err := act.Hash()
		require.NoError(t, err)
		require.False(t, h.Equal(forkedHash), "forked sibling must not appear in the walked chain")
		if h.Equal(takenHash) {
			sawTaken = true
		}
	}
	require.True(t, sawTaken, "the branch actually taken must appear in the walked chain")
}

// TestDeterministicGetAgentActivity_BoundedRange walks only the
// rangeLow-to-rangeHigh slice of a longer chain, stopping as soon as
// rangeLow is reached rather than continuing to genesis.
func TestDeterministicGetAgentActivity_BoundedRange(t *testing.T) {
	st := openTestStore(t)
	author := mustHash(t, hash.TypeAgent, "author")

	dna := &action.Action{Kind: action.KindDna, Author: author, Seq: 0, Timestamp: 1}
	dnaHash := integrateAction(t, st, dna)

	avp := &action.Action{Kind: action.KindAgentValidationPkg, Author: author, Seq: 1, Prev: dnaHash, Timestamp: 2}
	avpHash := integrateAction(t, st, avp)

	openChain := &action.Action{Kind: action.KindOpenChain, Author: author, Seq: 2, Prev: avpHash, Timestamp: 3}
	openHash := integrateAction(t, st, openChain)

	closeChain := &action.Action{Kind: action.KindCloseChain, Author: author, Seq: 3, Prev: openHash, Timestamp: 4}
	closeHash := integrateAction(t, st, closeChain)

	chain, err := DeterministicGetAgentActivity(st, author, avpHash, closeHash)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	require.True(t, chain[0].Prev.Equal(openHash))
	require.True(t, chain[len(chain)-1].Prev.Equal(dnaHash))
}
