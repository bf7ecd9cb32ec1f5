// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chain holds a single agent's append-only source chain: the
// ordered sequence of actions that agent has authored, plus the
// entries those actions reference. Append is linearizable per agent —
// callers racing to extend the same chain see exactly one winner and
// must rebuild against the new head on conflict.
package chain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holochain/dht-core/action"
	"github.com/holochain/dht-core/hash"
)

// Sentinel errors returned by Append and the read accessors. Each
// wraps additional context via fmt.Errorf's %w so callers can still
// errors.Is against the sentinel.
var (
	// ErrConflictingHead is returned when the caller's view of the
	// chain head is stale: another append already won the race.
	ErrConflictingHead = errors.New("chain: conflicting head")

	// ErrInvalidStructure is returned when an action fails the
	// structural chain invariants (seq, prev, timestamp, genesis
	// shape) independent of any race.
	ErrInvalidStructure = errors.New("chain: invalid structure")

	// ErrNotFound is returned by the read accessors when no record
	// matches.
	ErrNotFound = errors.New("chain: not found")
)

// Record pairs a stored action with its optional entry.
type Record struct {
	Action *action.Action
	Entry  *action.Entry
}

// Head identifies the current tip of a chain.
type Head struct {
	ActionHash hash.Hash
	Seq        uint32
}

// Chain is a single agent's source chain, held in memory and guarded
// by a mutex: all appends to one agent's chain are serialized, but
// reads do not block each other.
type Chain struct {
	mu sync.RWMutex

	author hash.Hash
	byHash map[hash.Hash]*Record
	bySeq  []*Record // index i holds the record at action_seq i
	head   Head
}

// New returns an empty chain for the given author. The chain is not
// valid for append until its genesis triple (Dna, AgentValidationPkg,
// Create(AgentPubKey)) has been appended.
func New(author hash.Hash) *Chain {
	return &Chain{
		author: author,
		byHash: make(map[hash.Hash]*Record),
	}
}

// Append verifies the structural invariants of act against the
// current head, persists act (and entry, if present) atomically, and
// advances the head. expectedHead must match the chain's current head
// exactly or ErrConflictingHead is returned so the caller can rebuild
// act against the fresh head and retry.
func (c *Chain) Append(expectedHead Head, act *action.Action, entry *action.Entry) (Head, error) {
	if err := act.Validate(); err != nil {
		return Head{}, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if expectedHead != c.head {
		return Head{}, fmt.Errorf("%w: expected seq %d hash %s, chain is at seq %d",
			ErrConflictingHead, expectedHead.Seq, expectedHead.ActionHash, c.head.Seq)
	}

	if err := c.checkStructure(act); err != nil {
		return Head{}, err
	}

	actHash, err := act.Hash()
	if err != nil {
		return Head{}, fmt.Errorf("%w: hashing action: %v", ErrInvalidStructure, err)
	}

	if eh, ok := act.EntryHash(); ok {
		if entry == nil {
			return Head{}, fmt.Errorf("%w: action %s references an entry but none was supplied", ErrInvalidStructure, actHash)
		}
		gotEntryHash, err := entry.Hash()
		if err != nil {
			return Head{}, fmt.Errorf("%w: hashing entry: %v", ErrInvalidStructure, err)
		}
		if !eh.Equal(gotEntryHash) {
			return Head{}, fmt.Errorf("%w: action %s entry hash mismatch", ErrInvalidStructure, actHash)
		}
	}

	rec := &Record{Action: act, Entry: entry}
	c.byHash[actHash] = rec
	c.bySeq = append(c.bySeq, rec)
	c.head = Head{ActionHash: actHash, Seq: act.Seq}

	return c.head, nil
}

// checkStructure enforces invariants (1)-(3) from the chain's
// definition: genesis shape, seq/prev linkage, and non-decreasing
// timestamps. Signature verification is the caller's responsibility
// (it requires the author's public key material, which this package
// does not hold) and so lives in the validation pipeline, not here.
func (c *Chain) checkStructure(act *action.Action) error {
	seq := act.Seq
	if int(seq) != len(c.bySeq) {
		return fmt.Errorf("%w: action_seq %d does not follow chain length %d", ErrInvalidStructure, seq, len(c.bySeq))
	}

	switch seq {
	case 0:
		if act.Kind != action.KindDna {
			return fmt.Errorf("%w: position 0 must be Dna, got %s", ErrInvalidStructure, act.Kind)
		}
		if !act.Prev.Equal(hash.Hash{}) {
			return fmt.Errorf("%w: genesis action must not carry a prev_action", ErrInvalidStructure)
		}
	case 1:
		if act.Kind != action.KindAgentValidationPkg {
			return fmt.Errorf("%w: position 1 must be AgentValidationPkg, got %s", ErrInvalidStructure, act.Kind)
		}
	case 2:
		if act.Kind != action.KindCreate {
			return fmt.Errorf("%w: position 2 must be Create(AgentPubKey), got %s", ErrInvalidStructure, act.Kind)
		}
	}

	if seq > 0 {
		prev := c.bySeq[len(c.bySeq)-1]
		prevHash, err := prev.Action.Hash()
		if err != nil {
			return fmt.Errorf("%w: hashing previous action: %v", ErrInvalidStructure, err)
		}
		if !act.Prev.Equal(prevHash) {
			return fmt.Errorf("%w: prev_action %s does not match chain tip %s", ErrInvalidStructure, act.Prev, prevHash)
		}
		if act.Timestamp < prev.Action.Timestamp {
			return fmt.Errorf("%w: timestamp %d precedes previous action's %d", ErrInvalidStructure, act.Timestamp, prev.Action.Timestamp)
		}
	}

	return nil
}

// Top returns the record at the current chain head.
func (c *Chain) Top() (*Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.bySeq) == 0 {
		return nil, ErrNotFound
	}
	return c.bySeq[len(c.bySeq)-1], nil
}

// Head returns the chain's current head.
func (c *Chain) Head() Head {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.head
}

// IterFrom returns every record from seq (inclusive) to the chain tip,
// in ascending seq order.
func (c *Chain) IterFrom(seq uint32) ([]*Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if int(seq) > len(c.bySeq) {
		return nil, fmt.Errorf("%w: seq %d beyond chain length %d", ErrNotFound, seq, len(c.bySeq))
	}
	out := make([]*Record, len(c.bySeq)-int(seq))
	copy(out, c.bySeq[seq:])
	return out, nil
}

// GetByHash returns the record whose action has the given hash.
func (c *Chain) GetByHash(h hash.Hash) (*Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.byHash[h]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Len returns the number of actions on the chain.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.bySeq)
}
