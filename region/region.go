// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package region decomposes an agent's (arc x historical time) coverage
// into a grid of leaves, each summarized by a commutative, associative
// fingerprint. Two peers can diff their op sets in O(log n) round
// trips by comparing fingerprints top-down and only descending where
// they disagree, instead of exchanging every op hash.
package region

import (
	"github.com/holochain/dht-core/hash"
)

// RegionData is the summary carried by one leaf (or any combination of
// leaves): how many ops it holds, their total byte size, and an
// XOR-folded content fingerprint. XOR is commutative and associative,
// so Combine can merge leaves in any order to get the fingerprint of
// an arbitrary rectangular region.
type RegionData struct {
	OpCount   uint32
	TotalSize uint64
	XorHash   [32]byte
}

// Combine merges two region summaries into the summary of their
// union. The caller is responsible for ensuring the two regions are
// disjoint (summing op_count/total_size of overlapping regions would
// double-count).
func (r RegionData) Combine(o RegionData) RegionData {
	out := RegionData{
		OpCount:   r.OpCount + o.OpCount,
		TotalSize: r.TotalSize + o.TotalSize,
	}
	for i := range out.XorHash {
		out.XorHash[i] = r.XorHash[i] ^ o.XorHash[i]
	}
	return out
}

// absorb folds a single op's hash and size into this leaf's summary.
func (r *RegionData) absorb(opHash hash.Hash, size int) {
	r.OpCount++
	r.TotalSize += uint64(size)
	hb := opHash.Bytes()
	for i := 0; i < len(r.XorHash) && i < len(hb); i++ {
		r.XorHash[i] ^= hb[i]
	}
}

// Coord identifies a leaf in the grid by its space and time bucket
// index at the grid's finest resolution.
type Coord struct {
	SpaceIdx uint32
	TimeIdx  uint32
}

// Rect is a rectangular range of leaf coordinates: [SpaceStart,
// SpaceStart+SpaceLen) x [TimeStart, TimeStart+TimeLen).
type Rect struct {
	SpaceStart, SpaceLen uint32
	TimeStart, TimeLen   uint32
}

func (r Rect) leaf() bool { return r.SpaceLen == 1 && r.TimeLen == 1 }

// OpRecord is the minimal view of an integrated op region-building
// needs: its basis location, its authored time (for bucketing), its
// hash (folded into the fingerprint), and its wire size.
type OpRecord struct {
	BasisLocation   uint32
	AuthoredUnixMS  int64
	Hash            hash.Hash
	Size            int
}

// Grid parameters: SpacePower/TimePower are the log2 bucket counts
// along each axis (so SpaceBuckets = 1<<SpacePower). Space buckets
// split the full ring evenly, taking the top SpacePower bits of a
// location. TimeOriginMS anchors time bucket 0 and TimeQuantumMS is
// the width of one time bucket.
type GridParams struct {
	SpacePower    uint8
	TimePower     uint8
	TimeOriginMS  int64
	TimeQuantumMS int64
}

func (g GridParams) spaceBuckets() uint32 { return uint32(1) << g.SpacePower }
func (g GridParams) timeBuckets() uint32  { return uint32(1) << g.TimePower }

func (g GridParams) spaceBucket(loc uint32) uint32 {
	shift := 32 - g.SpacePower
	if shift >= 32 {
		return 0
	}
	return loc >> shift
}

func (g GridParams) timeBucket(unixMS int64) uint32 {
	if g.TimeQuantumMS <= 0 {
		return 0
	}
	idx := (unixMS - g.TimeOriginMS) / g.TimeQuantumMS
	if idx < 0 {
		return 0
	}
	buckets := int64(g.timeBuckets())
	if idx >= buckets {
		return uint32(buckets - 1)
	}
	return uint32(idx)
}

// Set is a materialized grid of leaf RegionData, covering the full
// (arc x historical_time) rectangle at query time. QuerySet itself
// excludes recent ops (younger than the recentCutoffMS it is given),
// since their fingerprint is unstable and they are reconciled through
// a separate recency-gossip channel instead.
type Set struct {
	Params GridParams
	Leaves [][]RegionData // Leaves[spaceIdx][timeIdx]
}

// QuerySet builds a region set from a slice of integrated ops,
// excluding anything younger than recentCutoffMS (measured against
// nowUnixMS).
func QuerySet(params GridParams, ops []OpRecord, nowUnixMS, recentCutoffMS int64) Set {
	set := Set{
		Params: params,
		Leaves: make([][]RegionData, params.spaceBuckets()),
	}
	for i := range set.Leaves {
		set.Leaves[i] = make([]RegionData, params.timeBuckets())
	}

	for _, op := range ops {
		if nowUnixMS-op.AuthoredUnixMS < recentCutoffMS {
			continue
		}
		si := params.spaceBucket(op.BasisLocation)
		ti := params.timeBucket(op.AuthoredUnixMS)
		set.Leaves[si][ti].absorb(op.Hash, op.Size)
	}

	return set
}

// Full returns the rectangle spanning the entire grid.
func (s Set) Full() Rect {
	return Rect{SpaceLen: s.Params.spaceBuckets(), TimeLen: s.Params.timeBuckets()}
}

// Fingerprint returns the combined RegionData of every leaf within r.
// This walks every leaf in the rectangle; callers needing this at
// scale over many diffs should cache fingerprints per Rect rather than
// recomputing, but a single query is cheap enough to do directly.
func (s Set) Fingerprint(r Rect) RegionData {
	var acc RegionData
	for si := r.SpaceStart; si < r.SpaceStart+r.SpaceLen && int(si) < len(s.Leaves); si++ {
		row := s.Leaves[si]
		for ti := r.TimeStart; ti < r.TimeStart+r.TimeLen && int(ti) < len(row); ti++ {
			acc = acc.Combine(row[ti])
		}
	}
	return acc
}

// split halves r along whichever dimension is larger (space first on
// ties), producing two sub-rectangles that exactly partition r. A
// leaf rectangle cannot be split.
func (r Rect) split() (Rect, Rect) {
	if r.SpaceLen >= r.TimeLen && r.SpaceLen > 1 {
		half := r.SpaceLen / 2
		a := r
		a.SpaceLen = half
		b := r
		b.SpaceStart = r.SpaceStart + half
		b.SpaceLen = r.SpaceLen - half
		return a, b
	}
	half := r.TimeLen / 2
	a := r
	a.TimeLen = half
	b := r
	b.TimeStart = r.TimeStart + half
	b.TimeLen = r.TimeLen - half
	return a, b
}

// Diff compares two region sets covering the same grid and returns
// the leaf coordinates whose fingerprints disagree, descending from
// the full rectangle and only recursing into mismatched
// sub-rectangles. This is the O(log n) reconciliation primitive:
// agreeing subtrees are pruned in a single fingerprint comparison.
func Diff(a, b Set) []Coord {
	var mismatched []Coord
	var walk func(r Rect)
	walk = func(r Rect) {
		if r.SpaceLen == 0 || r.TimeLen == 0 {
			return
		}
		fa := a.Fingerprint(r)
		fb := b.Fingerprint(r)
		if fa == fb {
			return
		}
		if r.leaf() {
			mismatched = append(mismatched, Coord{SpaceIdx: r.SpaceStart, TimeIdx: r.TimeStart})
			return
		}
		left, right := r.split()
		walk(left)
		walk(right)
	}
	walk(a.Full())
	return mismatched
}
