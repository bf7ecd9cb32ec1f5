// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"time"

	"github.com/holochain/dht-core/arq"
)

// Preset names a canned Config shape, the way the teacher's
// NetworkType selects Mainnet/Testnet/Local.
type Preset string

const (
	PresetStandard       Preset = "standard"
	PresetHighRedundancy Preset = "high-redundancy"
	PresetSingleNode     Preset = "single-node"
)

// Builder provides a fluent interface for constructing a DNA space's
// Config. Errors accumulate rather than panicking mid-chain; the
// first one short-circuits every subsequent call and surfaces from
// Build.
type Builder struct {
	cfg *Config
	err error
}

// NewBuilder returns a Builder seeded with PresetStandard.
func NewBuilder() *Builder {
	b := &Builder{cfg: &Config{}}
	return b.FromPreset(PresetStandard)
}

// FromPreset resets the builder's configuration to a named preset.
func (b *Builder) FromPreset(p Preset) *Builder {
	if b.err != nil {
		return b
	}
	cfg, ok := presets[p]
	if !ok {
		b.err = fmt.Errorf("%w: %s", ErrUnknownPreset, p)
		return b
	}
	clone := *cfg
	b.cfg = &clone
	return b
}

// WithTopology overrides the quantum topology.
func (b *Builder) WithTopology(t arq.Topology) *Builder {
	if b.err != nil {
		return b
	}
	if t.TimeQuantumMicros <= 0 {
		b.err = ErrInvalidTimeQuantum
		return b
	}
	b.cfg.Topology = t
	return b
}

// WithCoverage overrides the arq strategy's min_coverage and buffer,
// recomputing MinChunks/MaxChunks by construction since those are
// derived fields on arq.Strat rather than stored ones.
func (b *Builder) WithCoverage(minCoverage, buffer float64) *Builder {
	if b.err != nil {
		return b
	}
	if minCoverage <= 0 {
		b.err = ErrInvalidMinCoverage
		return b
	}
	if buffer <= 0 {
		b.err = ErrInvalidBuffer
		return b
	}
	b.cfg.Strat.MinCoverage = minCoverage
	b.cfg.Strat.Buffer = buffer
	return b
}

// WithArcClamping pins every local arq to a fixed extreme, skipping
// the resize loop entirely (spec.md §4.4 step 5).
func (b *Builder) WithArcClamping(c arq.ArqClamping) *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.Strat.LocalStorage.ArcClamping = c
	return b
}

// WithValidationQueueCapacities sets the sys/app/integration queue
// capacities carried in ValidationConfig.
func (b *Builder) WithValidationQueueCapacities(sys, app, integration int) *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.Validation.SysQueueCapacity = sys
	b.cfg.Validation.AppQueueCapacity = app
	b.cfg.Validation.IntegrationQueueCapacity = integration
	return b
}

// WithDependencyBackoff overrides the backoff schedule used when
// fetching a sys/app validation dependency over the network.
func (b *Builder) WithDependencyBackoff(initial, max, maxElapsed time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.Validation.BackoffInitial = initial
	b.cfg.Validation.BackoffMax = max
	b.cfg.Validation.BackoffMaxElapsed = maxElapsed
	return b
}

// WithGossipByteBudget overrides the per-round transfer budget.
func (b *Builder) WithGossipByteBudget(budget uint64) *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.Gossip.RoundByteBudget = budget
	return b
}

// WithRecentCutoff overrides how many time quanta young an op must be
// to be excluded from region fingerprints.
func (b *Builder) WithRecentCutoff(quanta int64) *Builder {
	if b.err != nil {
		return b
	}
	b.cfg.Gossip.RecentCutoffQuanta = quanta
	return b
}

// Build validates and returns the final configuration.
func (b *Builder) Build() (*Config, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.cfg.Topology.TimeQuantumMicros <= 0 {
		return nil, ErrInvalidTimeQuantum
	}
	if b.cfg.Strat.MinCoverage <= 0 {
		return nil, ErrInvalidMinCoverage
	}
	if b.cfg.Strat.Buffer <= 0 {
		return nil, ErrInvalidBuffer
	}
	return b.cfg, nil
}
