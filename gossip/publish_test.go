// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package gossip

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/holochain/dht-core/action"
	"github.com/holochain/dht-core/arq"
	"github.com/holochain/dht-core/config"
	"github.com/holochain/dht-core/hash"
	"github.com/holochain/dht-core/logging"
	"github.com/holochain/dht-core/metrics"
	"github.com/holochain/dht-core/network"
	"github.com/holochain/dht-core/op"
	"github.com/holochain/dht-core/peer"
	"github.com/holochain/dht-core/utils/wrappers"
)

func mustHash(t *testing.T, typ hash.Type, seed string) hash.Hash {
	t.Helper()
	h, err := hash.Of(typ, []byte(seed))
	require.NoError(t, err)
	return h
}

func newTestGossipMetrics(t *testing.T) *metrics.Gossip {
	t.Helper()
	var errs wrappers.Errs
	m := metrics.NewGossip(prometheus.NewRegistry(), &errs)
	require.NoError(t, errs.Err())
	return m
}

func TestPublisher_PublishOpSendsToAuthorities(t *testing.T) {
	author := mustHash(t, hash.TypeAgent, "author")
	act := &action.Action{Kind: action.KindDna, Author: author, Seq: 0, Timestamp: 1}
	actHash, err := act.Hash()
	require.NoError(t, err)
	o := op.Op{Kind: op.KindStoreRecord, Basis: actHash, ActionHash: actHash, Action: act}

	authority := mustHash(t, hash.TypeAgent, "authority")
	table := peer.NewTable()
	table.Upsert(peer.Info{Agent: authority, Arq: arq.Arq{Power: 31, Count: 4}})
	transport := network.NewFakeTransport()

	p := &Publisher{
		Transport: transport,
		Peers:     table,
		Topology:  arq.Topology{SpaceQuanta: 1 << 12, TimeQuantumMicros: 1},
		Config:    config.GossipConfig{PublishBackoffInitial: time.Millisecond, PublishBackoffMax: 10 * time.Millisecond, PublishBackoffMaxElapsed: 100 * time.Millisecond},
		Metrics:   newTestGossipMetrics(t),
		Log:       logging.NewNoOpLogger(),
	}
	require.NoError(t, p.PublishOp(context.Background(), o))
	require.Len(t, transport.Sent[authority], 1)
	require.Equal(t, network.TagPublish, transport.Sent[authority][0].Tag)
}

func TestPublisher_NoAuthoritiesIsANoop(t *testing.T) {
	p := &Publisher{
		Transport: network.NewFakeTransport(),
		Peers:     peer.NewTable(),
		Topology:  arq.Topology{SpaceQuanta: 1 << 12, TimeQuantumMicros: 1},
		Config:    config.GossipConfig{PublishBackoffInitial: time.Millisecond, PublishBackoffMax: time.Millisecond, PublishBackoffMaxElapsed: 10 * time.Millisecond},
		Metrics:   newTestGossipMetrics(t),
		Log:       logging.NewNoOpLogger(),
	}
	author := mustHash(t, hash.TypeAgent, "author")
	act := &action.Action{Kind: action.KindDna, Author: author, Seq: 0, Timestamp: 1}
	actHash, err := act.Hash()
	require.NoError(t, err)
	o := op.Op{Kind: op.KindStoreRecord, Basis: actHash, ActionHash: actHash, Action: act}
	require.NoError(t, p.PublishOp(context.Background(), o))
}
