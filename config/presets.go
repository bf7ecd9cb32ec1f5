// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"time"

	"github.com/holochain/dht-core/arq"
)

// defaultTopology divides the location ring into 2^12 space quanta
// and time into 5-minute buckets, matching the scale the reference
// implementation's standard deployment uses for its DHT arc
// arithmetic.
var defaultTopology = arq.Topology{
	SpaceQuanta:       1 << 12,
	TimeQuantumMicros: int64(5 * time.Minute / time.Microsecond),
	OriginTimeMicros:  0,
}

var presets = map[Preset]*Config{
	PresetStandard: {
		Topology: defaultTopology,
		Strat:    arq.StandardStrat(arq.LocalStorageConfig{ArcClamping: arq.ArqClampNone}),
		Validation: ValidationConfig{
			SysQueueCapacity:         1024,
			AppQueueCapacity:         1024,
			IntegrationQueueCapacity: 1024,
			BackoffInitial:           50 * time.Millisecond,
			BackoffMax:               2 * time.Second,
			BackoffMaxElapsed:        10 * time.Second,
		},
		Gossip: GossipConfig{
			RoundByteBudget:               4 << 20, // 4 MiB
			RecentCutoffQuanta:            2,
			RecentGossipFalsePositiveRate: 0.01,
			PublishBackoffInitial:         100 * time.Millisecond,
			PublishBackoffMax:             5 * time.Second,
			PublishBackoffMaxElapsed:      30 * time.Second,
		},
	},
	PresetHighRedundancy: {
		Topology: defaultTopology,
		Strat: func() arq.Strat {
			s := arq.StandardStrat(arq.LocalStorageConfig{ArcClamping: arq.ArqClampNone})
			s.MinCoverage = 20
			return s
		}(),
		Validation: ValidationConfig{
			SysQueueCapacity:         4096,
			AppQueueCapacity:         4096,
			IntegrationQueueCapacity: 4096,
			BackoffInitial:           50 * time.Millisecond,
			BackoffMax:               2 * time.Second,
			BackoffMaxElapsed:        15 * time.Second,
		},
		Gossip: GossipConfig{
			RoundByteBudget:               16 << 20,
			RecentCutoffQuanta:            2,
			RecentGossipFalsePositiveRate: 0.01,
			PublishBackoffInitial:         100 * time.Millisecond,
			PublishBackoffMax:             5 * time.Second,
			PublishBackoffMaxElapsed:      30 * time.Second,
		},
	},
	PresetSingleNode: {
		Topology: defaultTopology,
		Strat: arq.Strat{
			MinCoverage:          1,
			Buffer:               0.143,
			MaxPowerDiff:         2,
			SlackerRatio:         0.75,
			PowerStdDevThreshold: 1.0,
			LocalStorage:         arq.LocalStorageConfig{ArcClamping: arq.ArqClampFull},
		},
		Validation: ValidationConfig{
			SysQueueCapacity:         256,
			AppQueueCapacity:         256,
			IntegrationQueueCapacity: 256,
			BackoffInitial:           10 * time.Millisecond,
			BackoffMax:               200 * time.Millisecond,
			BackoffMaxElapsed:        1 * time.Second,
		},
		Gossip: GossipConfig{
			RoundByteBudget:               1 << 20,
			RecentCutoffQuanta:            2,
			RecentGossipFalsePositiveRate: 0.05,
			PublishBackoffInitial:         10 * time.Millisecond,
			PublishBackoffMax:             200 * time.Millisecond,
			PublishBackoffMaxElapsed:      1 * time.Second,
		},
	},
}

// PresetNames returns the available preset names.
func PresetNames() []string {
	return []string{string(PresetStandard), string(PresetHighRedundancy), string(PresetSingleNode)}
}
