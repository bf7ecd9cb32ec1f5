// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package peer tracks the set of remote agents visible to a local
// node and their advertised arqs, the input the Arq resize loop
// (spec.md §4.4) and authority selection (spec.md §4.8, §4.9) both
// read from. It deliberately holds no transport of its own -- peers
// are discovered however the caller's NetworkFacade/bootstrap client
// chooses, and simply recorded here.
package peer

import (
	"sync"

	"github.com/holochain/dht-core/arq"
	"github.com/holochain/dht-core/hash"
)

// Info is one peer's advertised arq as of the last time it was seen.
type Info struct {
	Agent    hash.Hash
	Arq      arq.Arq
	SeenAtMS int64
}

// Directory is the read surface gossip and the network facade need
// over the visible peer population: everyone seen, and everyone whose
// arq covers a given ring location.
type Directory interface {
	All() []Info
	Authorities(loc uint32, topo arq.Topology) []hash.Hash
}

// Table is an in-memory Directory, single-writer/multi-reader guarded
// by a mutex (the same short-critical-section policy spec.md §5
// requires of the arq state it feeds).
type Table struct {
	mu    sync.RWMutex
	peers map[hash.Hash]Info
}

// NewTable returns an empty peer Table.
func NewTable() *Table {
	return &Table{peers: make(map[hash.Hash]Info)}
}

// Upsert records or refreshes a peer's advertised arq.
func (t *Table) Upsert(info Info) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers[info.Agent] = info
}

// Remove drops a peer, e.g. once its bootstrap entry expires.
func (t *Table) Remove(agent hash.Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peers, agent)
}

// All returns every currently tracked peer.
func (t *Table) All() []Info {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Info, 0, len(t.peers))
	for _, info := range t.peers {
		out = append(out, info)
	}
	return out
}

// Arqs returns just the Arq of every tracked peer, the shape arq.Resize
// wants for its peer-view parameter.
func (t *Table) Arqs() []arq.Arq {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]arq.Arq, 0, len(t.peers))
	for _, info := range t.peers {
		out = append(out, info.Arq)
	}
	return out
}

// Authorities returns the agents whose arq covers loc, the basis-to-
// authority resolution spec.md §4.8 Publish and §4.9 Get fan-out both
// need.
func (t *Table) Authorities(loc uint32, topo arq.Topology) []hash.Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []hash.Hash
	for agent, info := range t.peers {
		if info.Arq.Contains(topo, loc) {
			out = append(out, agent)
		}
	}
	return out
}
