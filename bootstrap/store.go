// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bootstrap is the rendezvous service new nodes dial before
// arq-based gossip is possible: publish your own signed agent info,
// and sample a handful of existing entries to start from. Grounded on
// original_source's kitsune_p2p/bootstrap/src/put.rs, whose two
// operations (X-Op: put, X-Op: random) this package reproduces
// verbatim in semantics while dropping its warp-filter plumbing for
// gorilla/mux, the HTTP router the rest of the pack (orbas1-Synnergy's
// walletserver) uses.
package bootstrap

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/holochain/dht-core/arq"
	"github.com/holochain/dht-core/hash"
)

// SignatureLen is the expected length, in bytes, of a valid
// AgentInfo.Signature. put.rs's own validity check is the same size
// check, deferring real signature verification to a TODO; this
// package carries that same limitation forward rather than inventing
// a verification scheme the original doesn't have.
const SignatureLen = 64

// ErrInvalidSignature is returned when an AgentInfo's signature isn't
// SignatureLen bytes.
var ErrInvalidSignature = errors.New("bootstrap: invalid signature length")

// ErrExpired is returned when an AgentInfo's ExpiresAtMS is not in the
// future.
var ErrExpired = errors.New("bootstrap: entry already expired")

// AgentInfo is one agent's self-signed rendezvous record: which DNA
// space it's joining, its advertised arq, how to reach it, and when
// the record expires.
type AgentInfo struct {
	Space       hash.Hash
	Agent       hash.Hash
	Arq         arq.Arq
	URLs        []string
	Signature   []byte
	ExpiresAtMS int64
}

func valid(info AgentInfo, nowUnixMS int64) error {
	if len(info.Signature) != SignatureLen {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidSignature, len(info.Signature))
	}
	if info.ExpiresAtMS <= nowUnixMS {
		return ErrExpired
	}
	return nil
}

// Store holds the most recent AgentInfo per (space, agent), pruning
// expired entries lazily on read rather than running a background
// sweep.
type Store struct {
	mu      sync.RWMutex
	bySpace map[hash.Hash]map[hash.Hash]AgentInfo
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{bySpace: make(map[hash.Hash]map[hash.Hash]AgentInfo)}
}

// Put validates and records info, overwriting any earlier entry for
// the same (space, agent).
func (s *Store) Put(info AgentInfo) error {
	if err := valid(info, time.Now().UnixMilli()); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	agents, ok := s.bySpace[info.Space]
	if !ok {
		agents = make(map[hash.Hash]AgentInfo)
		s.bySpace[info.Space] = agents
	}
	agents[info.Agent] = info
	return nil
}

// Random returns up to n unexpired entries for space, sampled
// uniformly without replacement.
func (s *Store) Random(space hash.Hash, n int) []AgentInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agents := s.bySpace[space]
	if len(agents) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()
	live := make([]AgentInfo, 0, len(agents))
	for _, info := range agents {
		if info.ExpiresAtMS > now {
			live = append(live, info)
		}
	}
	if n >= len(live) {
		rand.Shuffle(len(live), func(i, j int) { live[i], live[j] = live[j], live[i] })
		return live
	}
	perm := rand.Perm(len(live))[:n]
	out := make([]AgentInfo, n)
	for i, idx := range perm {
		out[i] = live[idx]
	}
	return out
}

// Len reports how many (possibly expired) entries space currently
// holds, for metrics/diagnostics.
func (s *Store) Len(space hash.Hash) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bySpace[space])
}
