// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config bundles the construction-time parameters of every
// component in one DNA space -- topology, arq resizing strategy,
// validation pipeline queue/backoff sizing, and gossip round shape --
// behind a functional-option builder with named presets, rather than
// scattering raw struct literals through call sites.
package config

import (
	"time"

	"github.com/holochain/dht-core/arq"
)

// ValidationConfig carries the validation pipeline's queue capacities
// and the backoff schedule used when fetching a missing dependency
// over the network.
type ValidationConfig struct {
	// SysQueueCapacity/AppQueueCapacity/IntegrationQueueCapacity are
	// per-stage queue capacities. validation.Pipeline does not read
	// them: its queues grow without limit and EnqueueSys never blocks.
	SysQueueCapacity         int
	AppQueueCapacity         int
	IntegrationQueueCapacity int

	// Dependency-fetch backoff, per spec.md's "bounded exponential
	// backoff with a ceiling".
	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	BackoffMaxElapsed time.Duration
}

// GossipConfig shapes one round of historical or recent gossip.
type GossipConfig struct {
	// RoundByteBudget bounds how many bytes of op data one gossip round
	// will transfer before remaining mismatched regions are deferred to
	// a later round (spec.md §4.8 "Backpressure").
	RoundByteBudget uint64
	// RecentCutoffQuanta is the multiple of the time quantum below
	// which ops are excluded from RegionSet fingerprints and handled
	// by recent gossip instead (spec.md default: 2).
	RecentCutoffQuanta int64
	// RecentGossipFalsePositiveRate sizes the bloom-like bitset
	// exchanged during a recent-gossip round.
	RecentGossipFalsePositiveRate float64
	// PublishBackoffInitial/Max/MaxElapsed bound retries when
	// publishing a freshly integrated op to its authorities.
	PublishBackoffInitial    time.Duration
	PublishBackoffMax        time.Duration
	PublishBackoffMaxElapsed time.Duration
}

// Config is the full construction-time parameter set for one DNA
// space.
type Config struct {
	Topology   arq.Topology
	Strat      arq.Strat
	Validation ValidationConfig
	Gossip     GossipConfig
}
