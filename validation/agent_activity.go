// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package validation

import (
	"errors"
	"fmt"

	"github.com/holochain/dht-core/action"
	"github.com/holochain/dht-core/hash"
	"github.com/holochain/dht-core/op"
	"github.com/holochain/dht-core/store"
)

// DeterministicGetAgentActivity walks author's chain backward from
// rangeHigh (inclusive) to rangeLow (inclusive), following prev_action
// hashes rather than scanning by sequence number. Only one sequence of
// actions can ever match this walk, so a caller who receives a non-nil
// result can use it directly in a validation callback without having
// to take a side on which fork is canonical -- there is no fork to
// take a side on, because each hop requires an exact hash match.
//
// An action that is missing locally, authored by someone else, or not
// yet integrated ends the walk early rather than erroring: the caller
// gets the longest prefix that could be verified, and can treat a
// walk that didn't reach rangeLow as inconclusive.
//
// Passing the zero hash.Hash as rangeLow walks all the way back to
// genesis, since no real action hash ever equals the zero value.
func DeterministicGetAgentActivity(st *store.Store, author hash.Hash, rangeLow, rangeHigh hash.Hash) ([]*action.Action, error) {
	if rangeHigh.Type() != hash.TypeAction {
		return nil, fmt.Errorf("validation: rangeHigh must be an action hash, got %s", rangeHigh.Type())
	}

	var chain []*action.Action
	current := rangeHigh
	for {
		act, err := st.GetAction(current)
		if errors.Is(err, store.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("validation: walking agent activity: %w", err)
		}
		if !act.Author.Equal(author) {
			break
		}
		rec, err := st.GetOp(current, op.KindRegisterAgentActivity)
		if err != nil || rec.Status != op.StatusIntegrated {
			break
		}

		chain = append(chain, act)
		if current.Equal(rangeLow) || act.Seq == 0 {
			break
		}
		current = act.Prev
	}
	return chain, nil
}
