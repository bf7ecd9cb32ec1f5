// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package math

// AbsDiff returns |a - b|, the unsigned distance arq.go's requantize
// decision compares against a strategy's MaxPowerDiff.
func AbsDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
