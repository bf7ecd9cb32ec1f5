// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package gossip

import (
	"context"
	"fmt"
	"math/bits"
	"sync"

	"github.com/luxfi/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/holochain/dht-core/arq"
	"github.com/holochain/dht-core/codec"
	"github.com/holochain/dht-core/config"
	"github.com/holochain/dht-core/hash"
	"github.com/holochain/dht-core/metrics"
	"github.com/holochain/dht-core/network"
	"github.com/holochain/dht-core/op"
	"github.com/holochain/dht-core/region"
	"github.com/holochain/dht-core/store"
	"github.com/holochain/dht-core/validation"
)

// maxConcurrentLeafFetches bounds how many mismatched-leaf ops
// requests one historical round keeps in flight at once.
const maxConcurrentLeafFetches = 8

// HistoricalRound reconciles the stable, already-quantized portion of
// two peers' op sets: build a region.Set, exchange fingerprints, and
// only fetch the ops underneath leaves that disagree (spec.md §4.8).
// Ops younger than RecentCutoffQuanta time quanta are excluded from
// the region grid entirely and left to RecentRound instead, since a
// fingerprint taken over a bucket still being written to would never
// stabilize.
type HistoricalRound struct {
	Store     *store.Store
	Transport network.Transport
	Pipeline  *validation.Pipeline
	TimePower uint8 // log2 of the number of time buckets the grid covers
	Config    config.GossipConfig
	Metrics   *metrics.Gossip
	Log       log.Logger
}

type regionSetWire struct {
	Set region.Set
}

type opsRequestWire struct {
	Coord region.Coord
}

type opsBatchWire struct {
	Ops []op.Op
}

func gridFromTopology(topo arq.Topology, timePower uint8) region.GridParams {
	spacePower := uint8(0)
	if topo.SpaceQuanta > 1 {
		spacePower = uint8(bits.Len64(topo.SpaceQuanta - 1))
	}
	return region.GridParams{
		SpacePower:    spacePower,
		TimePower:     timePower,
		TimeOriginMS:  topo.OriginTimeMicros / 1000,
		TimeQuantumMS: topo.TimeQuantumMicros / 1000,
	}
}

func toRegionOp(r store.OpRecord) (region.OpRecord, error) {
	b, err := codec.Codec.Marshal(codec.CurrentVersion, r.Op)
	if err != nil {
		return region.OpRecord{}, err
	}
	return region.OpRecord{
		BasisLocation:  r.BasisLocation,
		AuthoredUnixMS: r.AuthoredTimestamp / 1000,
		// The op's own action hash stands in for a per-op identity: two
		// ops derived from the same action (e.g. StoreRecord and
		// RegisterAgentActivity) folding into the same fingerprint bit
		// pattern is harmless, since region sets are a reconciliation
		// hint, not a membership proof -- the actual ops fetched under a
		// mismatched leaf are re-derived and re-validated regardless.
		Hash: r.Op.ActionHash,
		Size: len(b),
	}, nil
}

// buildLocalSet materializes the caller's own region set over every
// integrated op, topo, and grid resolution.
func (h *HistoricalRound) buildLocalSet(topo arq.Topology, nowUnixMS int64) (region.Set, error) {
	recs, err := h.Store.ScanOps(func(r store.OpRecord) bool { return r.Status == op.StatusIntegrated })
	if err != nil {
		return region.Set{}, fmt.Errorf("gossip: scanning ops for region set: %w", err)
	}
	ops := make([]region.OpRecord, 0, len(recs))
	for _, r := range recs {
		ro, err := toRegionOp(r)
		if err != nil {
			return region.Set{}, fmt.Errorf("gossip: building region op: %w", err)
		}
		ops = append(ops, ro)
	}
	grid := gridFromTopology(topo, h.TimePower)
	recentCutoffMS := h.Config.RecentCutoffQuanta * grid.TimeQuantumMS
	return region.QuerySet(grid, ops, nowUnixMS, recentCutoffMS), nil
}

// Run exchanges region-set fingerprints with partner and fetches the
// ops underneath every leaf whose fingerprint disagrees, feeding each
// fetched op back through the validation pipeline. Descent below the
// round's byte budget is deferred to a later round rather than
// exceeding it, per spec.md's gossip backpressure.
func (h *HistoricalRound) Run(ctx context.Context, partner hash.Hash, topo arq.Topology, nowUnixMS int64) error {
	local, err := h.buildLocalSet(topo, nowUnixMS)
	if err != nil {
		return err
	}

	payload, err := codec.Codec.Marshal(codec.CurrentVersion, regionSetWire{Set: local})
	if err != nil {
		return fmt.Errorf("gossip: encoding region set: %w", err)
	}
	resp, err := h.Transport.Request(ctx, partner, network.Frame{Tag: network.TagGossipRegionSet, Payload: payload})
	if err != nil {
		h.Log.Warn("gossip: historical round: partner unreachable", "partner", partner, "err", err)
		return nil
	}
	var partnerWire regionSetWire
	if _, err := codec.Codec.Unmarshal(resp.Payload, &partnerWire); err != nil {
		return fmt.Errorf("gossip: decoding partner region set: %w", err)
	}

	mismatches := region.Diff(local, partnerWire.Set)
	if len(mismatches) == 0 {
		return nil
	}

	// Fetch mismatched leaves concurrently, bounded by a semaphore
	// rather than one at a time: the byte budget is still enforced (a
	// leaf already in flight when the budget runs out may land anyway,
	// same soft-budget behavior the prior sequential fetch had), but
	// independent leaves no longer wait on each other's round trip.
	var (
		mu       sync.Mutex
		budget   = int64(h.Config.RoundByteBudget)
		deferred int
	)
	sem := semaphore.NewWeighted(maxConcurrentLeafFetches)
	g, gCtx := errgroup.WithContext(ctx)

	for _, coord := range mismatches {
		mu.Lock()
		outOfBudget := budget <= 0
		mu.Unlock()
		if outOfBudget {
			deferred++
			continue
		}
		if err := sem.Acquire(gCtx, 1); err != nil {
			break
		}
		coord := coord
		g.Go(func() error {
			defer sem.Release(1)
			reqPayload, err := codec.Codec.Marshal(codec.CurrentVersion, opsRequestWire{Coord: coord})
			if err != nil {
				return fmt.Errorf("gossip: encoding ops request: %w", err)
			}
			resp, err := h.Transport.Request(gCtx, partner, network.Frame{Tag: network.TagGossipOps, Payload: reqPayload})
			if err != nil {
				h.Log.Warn("gossip: historical round: fetching leaf failed", "partner", partner, "coord", coord, "err", err)
				return nil
			}
			var batch opsBatchWire
			if _, err := codec.Codec.Unmarshal(resp.Payload, &batch); err != nil {
				return fmt.Errorf("gossip: decoding ops batch: %w", err)
			}
			for _, o := range batch.Ops {
				h.Pipeline.EnqueueSys(o)
			}
			h.Metrics.OpsReceived.Add(int64(len(batch.Ops)))
			h.Metrics.BytesRecv.Add(int64(len(resp.Payload)))
			mu.Lock()
			budget -= int64(len(resp.Payload))
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if deferred > 0 {
		h.Log.Warn("gossip: historical round: byte budget exhausted, deferring remaining leaves",
			"partner", partner, "deferred", deferred)
	}
	return nil
}
