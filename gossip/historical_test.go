// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package gossip

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/holochain/dht-core/action"
	"github.com/holochain/dht-core/arq"
	"github.com/holochain/dht-core/codec"
	"github.com/holochain/dht-core/config"
	"github.com/holochain/dht-core/hash"
	"github.com/holochain/dht-core/logging"
	"github.com/holochain/dht-core/metrics"
	"github.com/holochain/dht-core/network"
	"github.com/holochain/dht-core/op"
	"github.com/holochain/dht-core/region"
	"github.com/holochain/dht-core/store"
	"github.com/holochain/dht-core/utils/wrappers"
	"github.com/holochain/dht-core/validation"
)

func emptySetFor(grid region.GridParams) region.Set {
	leaves := make([][]region.RegionData, 1<<grid.SpacePower)
	for i := range leaves {
		leaves[i] = make([]region.RegionData, 1<<grid.TimePower)
	}
	return region.Set{Params: grid, Leaves: leaves}
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenMem(prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestPipeline(t *testing.T) *validation.Pipeline {
	t.Helper()
	var errs wrappers.Errs
	m := metrics.NewValidationPipeline(prometheus.NewRegistry(), &errs)
	require.NoError(t, errs.Err())
	st := openTestStore(t)
	return validation.New(st, logging.NewNoOpLogger(), m, validation.Config{})
}

func TestGridFromTopology(t *testing.T) {
	topo := arq.Topology{SpaceQuanta: 1 << 12, TimeQuantumMicros: 1000, OriginTimeMicros: 0}
	grid := gridFromTopology(topo, 8)
	require.Equal(t, uint8(12), grid.SpacePower)
	require.Equal(t, uint8(8), grid.TimePower)
	require.Equal(t, int64(1), grid.TimeQuantumMS)
}

func TestHistoricalRound_FetchesMismatchedLeaves(t *testing.T) {
	st := openTestStore(t)
	author := mustHash(t, hash.TypeAgent, "author")
	act := &action.Action{Kind: action.KindDna, Author: author, Seq: 0, Timestamp: 0}
	ops, err := op.Derive(act, nil)
	require.NoError(t, err)
	require.NoError(t, st.AppendAction(act, nil, ops))
	for _, o := range ops {
		actHash, err := o.Action.Hash()
		require.NoError(t, err)
		require.NoError(t, st.SetOpStatus(actHash, o.Kind, op.StatusIntegrated, 0))
	}

	topo := arq.Topology{SpaceQuanta: 1 << 4, TimeQuantumMicros: 1000, OriginTimeMicros: 0}
	cfg := config.GossipConfig{RecentCutoffQuanta: 2, RoundByteBudget: 1 << 20}
	grid := gridFromTopology(topo, 2)

	var (
		mu           sync.Mutex
		opsRequested int
	)
	transport := network.NewFakeTransport()
	transport.Responder = func(to hash.Hash, frame network.Frame) (network.Frame, error) {
		switch frame.Tag {
		case network.TagGossipRegionSet:
			empty := emptySetFor(grid)
			payload, err := codec.Codec.Marshal(codec.CurrentVersion, regionSetWire{Set: empty})
			require.NoError(t, err)
			return network.Frame{Tag: network.TagGossipRegionSet, Payload: payload}, nil
		case network.TagGossipOps:
			mu.Lock()
			opsRequested++
			mu.Unlock()
			payload, err := codec.Codec.Marshal(codec.CurrentVersion, opsBatchWire{})
			require.NoError(t, err)
			return network.Frame{Tag: network.TagGossipOps, Payload: payload}, nil
		}
		return network.Frame{}, nil
	}

	round := &HistoricalRound{
		Store: st, Transport: transport, Pipeline: newTestPipeline(t),
		TimePower: 2, Config: cfg, Metrics: newTestGossipMetrics(t), Log: logging.NewNoOpLogger(),
	}
	partner := mustHash(t, hash.TypeAgent, "partner")
	require.NoError(t, round.Run(context.Background(), partner, topo, 10_000_000))
	mu.Lock()
	defer mu.Unlock()
	require.Greater(t, opsRequested, 0)
}
