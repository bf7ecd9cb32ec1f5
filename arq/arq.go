// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package arq maintains each local agent's quantized arc ("arq"): the
// ring-sector of DHT locations that agent commits to storing. Arqs
// resize in response to the visible peer population so that every
// point on the ring stays covered by roughly min_coverage agents,
// without requiring any agent to know the total network size.
package arq

import (
	"math"
	"sort"

	safemath "github.com/holochain/dht-core/utils/math"
)

// Topology fixes the quantum sizes an agent's arqs are expressed in
// terms of: space is divided into quanta, count of which is given by
// SpaceQuanta, so the base space quantum width is Ring / SpaceQuanta.
type Topology struct {
	// SpaceQuanta is the number of base-size space quanta that tile
	// the full location ring [0, 2^32).
	SpaceQuanta uint64
	// TimeQuantumMicros is the width of one base time quantum, in
	// microseconds.
	TimeQuantumMicros int64
	// OriginTimeMicros anchors time quantum 0.
	OriginTimeMicros int64
}

// ring is the size of the location space, 2^32.
const ring uint64 = 1 << 32

// BaseSpaceQuantum returns the width, in ring locations, of one
// space quantum at power 0.
func (t Topology) BaseSpaceQuantum() uint64 {
	if t.SpaceQuanta == 0 {
		return ring
	}
	return ring / t.SpaceQuanta
}

// Arq is a quantized arc: count consecutive chunks of size 2^power
// base quanta, centered on center.
type Arq struct {
	Center uint32
	Power  uint8
	Count  uint32
}

// chunkWidth returns the width, in base quanta, of a single chunk at
// this arq's power.
func (a Arq) chunkWidth() uint64 {
	return uint64(1) << a.Power
}

// WidthLocations returns the arq's total width in ring locations,
// capped at the full ring.
func (a Arq) WidthLocations(topo Topology) uint64 {
	if a.Count == 0 {
		return 0
	}
	w := uint64(a.Count) * a.chunkWidth() * topo.BaseSpaceQuantum()
	if w > ring || w == 0 {
		return ring
	}
	return w
}

// CoverageFraction returns the fraction of the ring this arq covers,
// in [0, 1].
func (a Arq) CoverageFraction(topo Topology) float64 {
	return float64(a.WidthLocations(topo)) / float64(ring)
}

// Contains reports whether loc falls within the arq's covered range.
func (a Arq) Contains(topo Topology, loc uint32) bool {
	width := a.WidthLocations(topo)
	if width == 0 {
		return false
	}
	if width >= ring {
		return true
	}
	half := width / 2
	center := uint64(a.Center)
	lo := (center + ring - half) % ring
	hi := (center + half) % ring
	l := uint64(loc)
	if lo <= hi {
		return l >= lo && l <= hi
	}
	return l >= lo || l <= hi
}

// ArqClamping overrides normal resizing, pinning every local arq to a
// fixed extreme regardless of network conditions.
type ArqClamping uint8

const (
	ArqClampNone ArqClamping = iota
	ArqClampEmpty
	ArqClampFull
)

// LocalStorageConfig overrides the resize algorithm's natural output.
type LocalStorageConfig struct {
	ArcClamping ArqClamping
}

// Strat ("Arq Resizing Strategy") holds every parameter the resize
// algorithm needs. Field meanings and the standard defaults are
// grounded directly on the reference implementation's strat module.
type Strat struct {
	// MinCoverage is the target redundancy N: any ring location should
	// be covered by at least this many agents.
	MinCoverage float64
	// Buffer expresses max_coverage as min_coverage*(1+Buffer).
	Buffer float64
	// MaxPowerDiff is the tolerable quantization asymmetry between an
	// arq's power and the median power of its visible peers before
	// requantization is suppressed in favor of raw grow/shrink.
	MaxPowerDiff uint8
	// SlackerRatio (rho): grow if num_visible_peers < C*SlackerRatio.
	SlackerRatio float64
	// PowerStdDevThreshold is the tolerated spread of peer powers. It
	// is carried as a strategy parameter; Resize does not read it.
	PowerStdDevThreshold float64
	LocalStorage         LocalStorageConfig
}

// DefaultMinPeers is the standard redundancy target used by
// StandardStrat, matching the reference implementation's constant.
const DefaultMinPeers = 5

// StandardStrat returns the strategy used by a default deployment:
// min_coverage=5, buffer=0.143 (implying min/max chunk counts of
// 8/15), max_power_diff=2, slacker_ratio=0.75.
func StandardStrat(local LocalStorageConfig) Strat {
	return Strat{
		MinCoverage:          DefaultMinPeers,
		Buffer:               0.143,
		MaxPowerDiff:         2,
		SlackerRatio:         0.75,
		PowerStdDevThreshold: 1.0,
		LocalStorage:         local,
	}
}

// MaxCoverage is the upper bound of the coverage band.
func (s Strat) MaxCoverage() float64 {
	return math.Ceil(s.MinCoverage * (s.Buffer + 1.0))
}

// MidlineCoverage is the midpoint between min and max coverage.
func (s Strat) MidlineCoverage() float64 {
	return (s.MinCoverage + s.MaxCoverage()) / 2.0
}

// BufferWidth is the width of the coverage band.
func (s Strat) BufferWidth() float64 {
	return s.MinCoverage * s.Buffer
}

func (s Strat) chunkCountThreshold() float64 {
	return (s.Buffer + 1.0) / s.Buffer
}

// MinChunks is the chunk count below which the quantum should be
// halved (power decreased).
func (s Strat) MinChunks() uint32 {
	return uint32(math.Ceil(s.chunkCountThreshold()))
}

// MaxChunks is the chunk count above which the quantum should be
// doubled (power increased). Always odd, so an overflow by the most
// common margin of 1 lands on an even count that halves losslessly.
func (s Strat) MaxChunks() uint32 {
	return s.MinChunks()*2 - 1
}

// MaxChunksLog2 is floor(log2(MaxChunks())).
func (s Strat) MaxChunksLog2() uint8 {
	return uint8(math.Floor(math.Log2(float64(s.MaxChunks()))))
}

// medianPower returns the median power across arqs, rounding down on
// ties between two middle values.
func medianPower(arqs []Arq) uint8 {
	if len(arqs) == 0 {
		return 0
	}
	powers := make([]int, len(arqs))
	for i, a := range arqs {
		powers[i] = int(a.Power)
	}
	sort.Ints(powers)
	mid := len(powers) / 2
	if len(powers)%2 == 1 {
		return uint8(powers[mid])
	}
	return uint8((powers[mid-1] + powers[mid]) / 2)
}

// extrapolateCoverage estimates the redundancy at this agent's own
// center location from the set of visible peer arqs: it is the count
// of visible peers whose arq covers that point. An agent with no
// covering peers is assumed un-covered (C=0), which correctly
// triggers growth; an agent surrounded by many fully-covering peers
// sees a high C, which correctly triggers shrink.
func extrapolateCoverage(self Arq, topo Topology, peers []Arq) float64 {
	count := 0
	for _, p := range peers {
		if p.Contains(topo, self.Center) {
			count++
		}
	}
	return float64(count)
}

// Resize runs one step of the arq resizing algorithm: observe the
// visible peer population, estimate coverage, and grow, shrink, or
// hold the arq accordingly.
func Resize(current Arq, strat Strat, topo Topology, peers []Arq) Arq {
	switch strat.LocalStorage.ArcClamping {
	case ArqClampEmpty:
		return Arq{Center: current.Center, Power: 0, Count: 0}
	case ArqClampFull:
		full := Arq{Center: current.Center, Power: 0, Count: strat.MaxChunks()}
		for full.WidthLocations(topo) < ring && full.Power < 63 {
			full.Power++
		}
		return full
	}

	coverage := extrapolateCoverage(current, topo, peers)
	numVisible := float64(len(peers))

	grow := numVisible < coverage*strat.SlackerRatio || coverage < strat.MinCoverage
	shrink := !grow && coverage > strat.MaxCoverage()

	if !grow && !shrink {
		return current
	}

	// The median is taken over the peer view including our own current
	// arq, so that an agent with no visible peers yet sees zero diff
	// against itself rather than being spuriously blocked from
	// requantizing.
	withSelf := make([]Arq, 0, len(peers)+1)
	withSelf = append(withSelf, peers...)
	withSelf = append(withSelf, current)
	med := medianPower(withSelf)
	powerDiff := uint8(safemath.AbsDiff(uint64(current.Power), uint64(med)))
	canRequantize := powerDiff <= strat.MaxPowerDiff

	next := current
	if grow {
		next.Count++
		if next.Count > strat.MaxChunks() && canRequantize {
			next.Power++
			next.Count /= 2
		}
	} else {
		if next.Count > 0 {
			next.Count--
		}
		if next.Count < strat.MinChunks() && canRequantize {
			if next.Power > 0 {
				next.Power--
				next.Count *= 2
			} else {
				next.Count = 0
			}
		}
	}

	return next
}
