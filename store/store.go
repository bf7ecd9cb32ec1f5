// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package store is the durable, transactional backing for one DNA
// space's actions, entries, and derived ops. All writes go through a
// single serialized writer (mirroring the source-chain append
// invariant that only one write can advance a given author's chain at
// a time); reads are snapshot-isolated and never block on a writer.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/holochain/dht-core/action"
	"github.com/holochain/dht-core/codec"
	"github.com/holochain/dht-core/hash"
	"github.com/holochain/dht-core/metrics"
	"github.com/holochain/dht-core/op"
	"github.com/holochain/dht-core/utils/wrappers"
)

var (
	// ErrConflict is returned when a write would violate the chains
	// table's (author, seq) uniqueness: another action already holds
	// that slot.
	ErrConflict = errors.New("store: conflict")
	// ErrCorruption is returned when a stored record fails to decode.
	ErrCorruption = errors.New("store: corruption")
	// ErrNotFound is returned when no record matches a lookup.
	ErrNotFound = errors.New("store: not found")
)

// Key prefixes for the logical tables: actions, entries, ops, the
// chains index, and the agent_activity index. A single-byte prefix
// keeps lexicographic iteration (e.g. for the chains and
// agent_activity indices) cheap and collision-free across tables
// sharing the same pebble keyspace.
const (
	prefixAction        byte = 'a'
	prefixEntry         byte = 'e'
	prefixOp            byte = 'o'
	prefixChain         byte = 'c'
	prefixAgentActivity byte = 'g'
)

// OpRecord is the stored form of a derived op, carrying its
// validation lifecycle state alongside the op itself.
type OpRecord struct {
	Op                 op.Op
	BasisLocation      uint32
	AuthoredTimestamp  int64
	Status             op.Status
	WhenSysValidatedMS int64 // 0 if not yet sys-validated
	WhenIntegratedMS   int64 // 0 if not yet integrated
}

// Store is a transactional KV store over a single DNA space.
type Store struct {
	db *pebble.DB

	writeMu sync.Mutex
	metrics *metrics.Store
}

// Open opens (creating if absent) a pebble-backed store at dir.
func Open(dir string, reg prometheus.Registerer) (*Store, error) {
	return open(dir, &pebble.Options{}, reg)
}

// OpenMem opens an in-memory store, for tests and short-lived tooling
// that don't need durability across process restarts.
func OpenMem(reg prometheus.Registerer) (*Store, error) {
	return open("", &pebble.Options{FS: vfs.NewMem()}, reg)
}

func open(dir string, opts *pebble.Options, reg prometheus.Registerer) (*Store, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", dir, err)
	}
	var errs wrappers.Errs
	m := metrics.NewStore(reg, &errs)
	if err := errs.Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: registering metrics: %w", err)
	}
	return &Store{db: db, metrics: m}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func actionKey(h hash.Hash) []byte  { return append([]byte{prefixAction}, h.Bytes()...) }
func entryKey(h hash.Hash) []byte   { return append([]byte{prefixEntry}, h.Bytes()...) }
func opKey(h hash.Hash) []byte      { return append([]byte{prefixOp}, h.Bytes()...) }

func chainKey(author hash.Hash, seq uint32) []byte {
	k := make([]byte, 0, 1+len(author.Bytes())+4)
	k = append(k, prefixChain)
	k = append(k, author.Bytes()...)
	var seqBuf [4]byte
	binary.BigEndian.PutUint32(seqBuf[:], seq)
	return append(k, seqBuf[:]...)
}

func agentActivityKey(author hash.Hash, seq uint32) []byte {
	k := chainKey(author, seq)
	k[0] = prefixAgentActivity
	return k
}

// AppendAction atomically persists a freshly-appended action, its
// optional entry, and every op it derives, and records it in the
// chains index under (author, seq). If the (author, seq) slot is
// already occupied by a different action hash, the write is rejected
// with ErrConflict and nothing is persisted -- this is the same race
// the chain package's Append guards against, re-enforced at the
// durable-storage boundary so two writers can never silently diverge.
func (s *Store) AppendAction(act *action.Action, entry *action.Entry, ops []op.Op) error {
	actHash, err := act.Hash()
	if err != nil {
		return fmt.Errorf("store: hashing action: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ck := chainKey(act.Author, act.Seq)
	if existing, closer, err := s.db.Get(ck); err == nil {
		conflict := !hashBytesEqual(existing, actHash.Bytes())
		closer.Close()
		if conflict {
			return fmt.Errorf("%w: author %s seq %d already occupied", ErrConflict, act.Author, act.Seq)
		}
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("store: reading chain index: %w", err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	actBytes, err := codec.Codec.Marshal(codec.CurrentVersion, act)
	if err != nil {
		return fmt.Errorf("store: encoding action: %w", err)
	}
	if err := batch.Set(actionKey(actHash), actBytes, nil); err != nil {
		return err
	}
	if err := batch.Set(ck, actHash.Bytes(), nil); err != nil {
		return err
	}
	if err := batch.Set(agentActivityKey(act.Author, act.Seq), actHash.Bytes(), nil); err != nil {
		return err
	}

	if entry != nil {
		entryHash, err := entry.Hash()
		if err != nil {
			return fmt.Errorf("store: hashing entry: %w", err)
		}
		entryBytes, err := codec.Codec.Marshal(codec.CurrentVersion, entry)
		if err != nil {
			return fmt.Errorf("store: encoding entry: %w", err)
		}
		if err := batch.Set(entryKey(entryHash), entryBytes, nil); err != nil {
			return err
		}
	}

	for _, o := range ops {
		rec := OpRecord{Op: o, BasisLocation: o.Basis.Location(), AuthoredTimestamp: act.Timestamp, Status: op.StatusPending}
		recBytes, err := codec.Codec.Marshal(codec.CurrentVersion, rec)
		if err != nil {
			return fmt.Errorf("store: encoding op: %w", err)
		}
		opHash, err := o.Action.Hash()
		if err != nil {
			return fmt.Errorf("store: hashing op action: %w", err)
		}
		// Each op is keyed by (action hash, kind) since a single action
		// can derive several ops and they must not collide.
		key := append(opKey(opHash), byte(o.Kind))
		if err := batch.Set(key, recBytes, nil); err != nil {
			return err
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("store: committing: %w", err)
	}

	s.metrics.ActionsWritten.Inc()
	if entry != nil {
		s.metrics.EntriesWritten.Inc()
	}
	s.metrics.OpsWritten.Add(int64(len(ops)))

	return nil
}

func hashBytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// GetAction returns the action stored under h.
func (s *Store) GetAction(h hash.Hash) (*action.Action, error) {
	v, closer, err := s.db.Get(actionKey(h))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: reading action: %w", err)
	}
	defer closer.Close()

	var act action.Action
	if _, err := codec.Codec.Unmarshal(v, &act); err != nil {
		return nil, fmt.Errorf("%w: decoding action: %v", ErrCorruption, err)
	}
	return &act, nil
}

// GetEntry returns the entry stored under h.
func (s *Store) GetEntry(h hash.Hash) (*action.Entry, error) {
	v, closer, err := s.db.Get(entryKey(h))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: reading entry: %w", err)
	}
	defer closer.Close()

	var e action.Entry
	if _, err := codec.Codec.Unmarshal(v, &e); err != nil {
		return nil, fmt.Errorf("%w: decoding entry: %v", ErrCorruption, err)
	}
	return &e, nil
}

// GetActionHashBySeq returns the action hash recorded for (author, seq)
// in the chains index.
func (s *Store) GetActionHashBySeq(author hash.Hash, seq uint32) (hash.Hash, error) {
	v, closer, err := s.db.Get(chainKey(author, seq))
	if errors.Is(err, pebble.ErrNotFound) {
		return hash.Hash{}, ErrNotFound
	}
	if err != nil {
		return hash.Hash{}, fmt.Errorf("store: reading chain index: %w", err)
	}
	defer closer.Close()

	h, err := hash.FromCore(hash.TypeAction, coreFrom(v))
	if err != nil {
		return hash.Hash{}, fmt.Errorf("%w: decoding action hash: %v", ErrCorruption, err)
	}
	return h, nil
}

// AgentActivity returns every (seq -> action hash) pair recorded for
// author in the agent_activity index, at or above fromSeq, in
// ascending seq order. This is the raw index the deterministic
// agent-activity query in the validation package walks backward over.
func (s *Store) AgentActivity(author hash.Hash, fromSeq uint32) ([]ActivityEntry, error) {
	lower := agentActivityKey(author, fromSeq)
	upper := agentActivityKey(author, ^uint32(0))
	upper = append(upper, 0xff) // make the upper bound exclusive-safe

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("store: iterating agent activity: %w", err)
	}
	defer iter.Close()

	var out []ActivityEntry
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		seq := binary.BigEndian.Uint32(key[len(key)-4:])
		h, err := hash.FromCore(hash.TypeAction, coreFrom(iter.Value()))
		if err != nil {
			return nil, fmt.Errorf("%w: decoding agent activity entry: %v", ErrCorruption, err)
		}
		out = append(out, ActivityEntry{Seq: seq, ActionHash: h})
	}
	return out, nil
}

// ActivityEntry is one record of the agent_activity index.
type ActivityEntry struct {
	Seq        uint32
	ActionHash hash.Hash
}

func coreFrom(b []byte) [hash.CoreLen]byte {
	var core [hash.CoreLen]byte
	if len(b) >= hash.PrefixLen {
		copy(core[:], b[hash.PrefixLen:])
	}
	return core
}

// SetOpStatus updates a stored op's validation lifecycle state.
func (s *Store) SetOpStatus(opHash hash.Hash, kind op.Kind, status op.Status, atUnixMS int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	key := append(opKey(opHash), byte(kind))
	v, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: reading op: %w", err)
	}
	var rec OpRecord
	_, decodeErr := codec.Codec.Unmarshal(v, &rec)
	closer.Close()
	if decodeErr != nil {
		return fmt.Errorf("%w: decoding op: %v", ErrCorruption, decodeErr)
	}

	rec.Status = status
	switch status {
	case op.StatusSysValidated:
		rec.WhenSysValidatedMS = atUnixMS
	case op.StatusIntegrated:
		rec.WhenIntegratedMS = atUnixMS
	}

	recBytes, err := codec.Codec.Marshal(codec.CurrentVersion, rec)
	if err != nil {
		return fmt.Errorf("store: encoding op: %w", err)
	}
	return s.db.Set(key, recBytes, pebble.Sync)
}

// GetOp returns a stored op record by its action hash and kind.
func (s *Store) GetOp(opHash hash.Hash, kind op.Kind) (OpRecord, error) {
	key := append(opKey(opHash), byte(kind))
	v, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return OpRecord{}, ErrNotFound
	}
	if err != nil {
		return OpRecord{}, fmt.Errorf("store: reading op: %w", err)
	}
	defer closer.Close()

	var rec OpRecord
	if _, err := codec.Codec.Unmarshal(v, &rec); err != nil {
		return OpRecord{}, fmt.Errorf("%w: decoding op: %v", ErrCorruption, err)
	}
	return rec, nil
}

// ScanOps walks every op record in the store, invoking keep on each.
// Only records for which keep returns true are collected. This backs
// region-set construction (filter: Status==Integrated) and the
// link/metadata queries the network facade serves (filter: Kind and
// basis match), all of which need a predicate scan rather than a
// specific index; a single DNA space's op table is expected to fit
// this linear scan at the scale this exercise targets.
func (s *Store) ScanOps(keep func(OpRecord) bool) ([]OpRecord, error) {
	lower := []byte{prefixOp}
	upper := []byte{prefixOp + 1}
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("store: scanning ops: %w", err)
	}
	defer iter.Close()

	var out []OpRecord
	for iter.First(); iter.Valid(); iter.Next() {
		var rec OpRecord
		if _, err := codec.Codec.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("%w: decoding op: %v", ErrCorruption, err)
		}
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}
