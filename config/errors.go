// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import "errors"

var (
	ErrInvalidMinCoverage = errors.New("config: min_coverage must be > 0")
	ErrInvalidBuffer      = errors.New("config: buffer must be > 0")
	ErrInvalidTimeQuantum = errors.New("config: time quantum must be > 0")
	ErrUnknownPreset      = errors.New("config: unknown preset")
)
