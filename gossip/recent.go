// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package gossip

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/luxfi/log"

	"github.com/holochain/dht-core/codec"
	"github.com/holochain/dht-core/config"
	"github.com/holochain/dht-core/hash"
	"github.com/holochain/dht-core/metrics"
	"github.com/holochain/dht-core/network"
	"github.com/holochain/dht-core/op"
	"github.com/holochain/dht-core/store"
	"github.com/holochain/dht-core/validation"
)

// RecentRound reconciles ops too young for a stable region fingerprint
// (spec.md §4.8's "recent gossip" channel): rather than exchange every
// hash, each side sends a bloom filter of what it already holds and
// the partner replies with whatever isn't a member.
type RecentRound struct {
	Store     *store.Store
	Transport network.Transport
	Pipeline  *validation.Pipeline
	Config    config.GossipConfig
	Metrics   *metrics.Gossip
	Log       log.Logger
}

type BloomFilter struct {
	Bits []byte
	M    uint
	K    uint
}

type recentOpsRequestWire struct {
	Filter BloomFilter
}

// bloomParams sizes a filter for n items at the configured false
// positive rate, using the standard m = -n*ln(p)/(ln2)^2, k =
// (m/n)*ln2 formulas.
func bloomParams(n int, falsePositiveRate float64) (m, k uint) {
	if n == 0 {
		n = 1
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}
	fn := float64(n)
	mf := -fn * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2)
	if mf < 1 {
		mf = 1
	}
	kf := (mf / fn) * math.Ln2
	if kf < 1 {
		kf = 1
	}
	return uint(math.Ceil(mf)), uint(math.Ceil(kf))
}

// positions derives k bit positions for h via double hashing
// (Kirsch-Mitzenmacher): two independent seeds taken from h's own
// digest stand in for two independent hash functions.
func positions(h hash.Hash, m, k uint) []uint {
	core := h.Core()
	h1 := binary.BigEndian.Uint64(core[0:8])
	h2 := binary.BigEndian.Uint64(core[8:16])
	out := make([]uint, k)
	for i := uint(0); i < k; i++ {
		out[i] = uint((h1 + uint64(i)*h2) % uint64(m))
	}
	return out
}

func buildFilter(hashes []hash.Hash, falsePositiveRate float64) (*bitset.BitSet, uint, uint) {
	m, k := bloomParams(len(hashes), falsePositiveRate)
	bs := bitset.New(m)
	for _, h := range hashes {
		for _, pos := range positions(h, m, k) {
			bs.Set(pos)
		}
	}
	return bs, m, k
}

func (r *RecentRound) recentOpHashes(nowUnixMS, recentCutoffMS int64) ([]hash.Hash, []store.OpRecord, error) {
	recs, err := r.Store.ScanOps(func(rec store.OpRecord) bool {
		return rec.Status == op.StatusIntegrated && nowUnixMS-rec.AuthoredTimestamp/1000 < recentCutoffMS
	})
	if err != nil {
		return nil, nil, fmt.Errorf("gossip: scanning recent ops: %w", err)
	}
	hashes := make([]hash.Hash, 0, len(recs))
	for _, rec := range recs {
		hashes = append(hashes, rec.Op.ActionHash)
	}
	return hashes, recs, nil
}

// Run sends partner a bloom filter of the caller's recent op hashes
// and enqueues whatever ops partner reports missing from it for
// (re-)validation. recentCutoffMS should match the cutoff
// HistoricalRound excluded from its region grid, so the two channels
// partition the op set without a gap or an overlap.
func (r *RecentRound) Run(ctx context.Context, partner hash.Hash, nowUnixMS, recentCutoffMS int64) error {
	hashes, _, err := r.recentOpHashes(nowUnixMS, recentCutoffMS)
	if err != nil {
		return err
	}
	bs, m, k := buildFilter(hashes, r.Config.RecentGossipFalsePositiveRate)
	bits, err := bs.MarshalBinary()
	if err != nil {
		return fmt.Errorf("gossip: encoding bloom filter: %w", err)
	}

	payload, err := codec.Codec.Marshal(codec.CurrentVersion, recentOpsRequestWire{Filter: BloomFilter{Bits: bits, M: m, K: k}})
	if err != nil {
		return fmt.Errorf("gossip: encoding recent-gossip request: %w", err)
	}
	resp, err := r.Transport.Request(ctx, partner, network.Frame{Tag: network.TagGossipOps, Payload: payload})
	if err != nil {
		r.Log.Warn("gossip: recent round: partner unreachable", "partner", partner, "err", err)
		return nil
	}
	var batch opsBatchWire
	if _, err := codec.Codec.Unmarshal(resp.Payload, &batch); err != nil {
		return fmt.Errorf("gossip: decoding recent-gossip response: %w", err)
	}
	for _, o := range batch.Ops {
		r.Pipeline.EnqueueSys(o)
	}
	r.Metrics.OpsReceived.Add(int64(len(batch.Ops)))
	r.Metrics.BytesRecv.Add(int64(len(resp.Payload)))
	return nil
}

// Missing reports, for a filter received from a partner, which of the
// caller's own recent ops are probably absent from it. This is the
// responder-side half of Run: a serving loop wired up outside this
// package (the same boundary NetworkFacade.CallRemote documents) calls
// it to decide what to send back.
func (r *RecentRound) Missing(nowUnixMS, recentCutoffMS int64, filter BloomFilter) ([]op.Op, error) {
	_, recs, err := r.recentOpHashes(nowUnixMS, recentCutoffMS)
	if err != nil {
		return nil, err
	}
	var bs bitset.BitSet
	if err := bs.UnmarshalBinary(filter.Bits); err != nil {
		return nil, fmt.Errorf("gossip: decoding bloom filter: %w", err)
	}
	var out []op.Op
	for _, rec := range recs {
		member := true
		for _, pos := range positions(rec.Op.ActionHash, filter.M, filter.K) {
			if !bs.Test(pos) {
				member = false
				break
			}
		}
		if !member {
			out = append(out, rec.Op)
		}
	}
	return out, nil
}
