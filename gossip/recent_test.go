// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package gossip

import (
	"context"
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/stretchr/testify/require"

	"github.com/holochain/dht-core/action"
	"github.com/holochain/dht-core/codec"
	"github.com/holochain/dht-core/config"
	"github.com/holochain/dht-core/hash"
	"github.com/holochain/dht-core/logging"
	"github.com/holochain/dht-core/network"
	"github.com/holochain/dht-core/op"
)

func TestBloomParams_ScalesWithN(t *testing.T) {
	m1, k1 := bloomParams(10, 0.01)
	m2, k2 := bloomParams(1000, 0.01)
	require.Greater(t, m2, m1)
	require.Greater(t, k1, uint(0))
	require.Greater(t, k2, uint(0))
}

func TestMissing_EmptyFilterReportsRecentOps(t *testing.T) {
	// An all-zero filter reports nothing as a member, so every stored op
	// must come back as missing -- deterministic, unlike asserting
	// against a filter built from unrelated probe hashes.
	empty := bitset.New(8)
	bits, err := empty.MarshalBinary()
	require.NoError(t, err)
	filter := BloomFilter{Bits: bits, M: 8, K: 3}

	st := openTestStore(t)
	author := mustHash(t, hash.TypeAgent, "author")
	act1 := &action.Action{Kind: action.KindDna, Author: author, Seq: 0, Timestamp: 0}
	ops1, err := op.Derive(act1, nil)
	require.NoError(t, err)
	require.NoError(t, st.AppendAction(act1, nil, ops1))
	for _, o := range ops1 {
		ah, err := o.Action.Hash()
		require.NoError(t, err)
		require.NoError(t, st.SetOpStatus(ah, o.Kind, op.StatusIntegrated, 0))
	}

	round := &RecentRound{Store: st, Config: config.GossipConfig{}, Metrics: newTestGossipMetrics(t), Log: logging.NewNoOpLogger()}

	missing, err := round.Missing(1_000_000, 2_000_000, filter)
	require.NoError(t, err)
	require.NotEmpty(t, missing)
}

func TestRecentRound_RunEnqueuesReturnedOps(t *testing.T) {
	st := openTestStore(t)
	transport := network.NewFakeTransport()
	var requested bool
	transport.Responder = func(to hash.Hash, frame network.Frame) (network.Frame, error) {
		requested = true
		require.Equal(t, network.TagGossipOps, frame.Tag)
		payload, err := codec.Codec.Marshal(codec.CurrentVersion, opsBatchWire{})
		require.NoError(t, err)
		return network.Frame{Tag: network.TagGossipOps, Payload: payload}, nil
	}

	round := &RecentRound{
		Store: st, Transport: transport, Pipeline: newTestPipeline(t),
		Config: config.GossipConfig{RecentGossipFalsePositiveRate: 0.01},
		Metrics: newTestGossipMetrics(t), Log: logging.NewNoOpLogger(),
	}
	partner := mustHash(t, hash.TypeAgent, "partner")
	require.NoError(t, round.Run(context.Background(), partner, 1_000_000, 1_000_000))
	require.True(t, requested)
}
