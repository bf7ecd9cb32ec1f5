// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package network

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/holochain/dht-core/action"
	"github.com/holochain/dht-core/arq"
	"github.com/holochain/dht-core/codec"
	"github.com/holochain/dht-core/hash"
	"github.com/holochain/dht-core/op"
	"github.com/holochain/dht-core/peer"
	"github.com/holochain/dht-core/store"
	"github.com/holochain/dht-core/validation"
)

// GetRequest is the closed set of content a Get fan-out can ask a
// remote authority for.
type GetRequest uint8

const (
	// GetRequestAll serves whatever the authority currently holds,
	// following redirects/updates per GetOptions.FollowRedirects.
	GetRequestAll GetRequest = iota
	// GetRequestPending additionally includes not-yet-integrated
	// content; must-get callers pin this so a dependency that just
	// arrived sys-validated is still visible.
	GetRequestPending
)

// GetOptions controls a Get/GetMeta fan-out, matching
// original_source's holochain_p2p GetOptions field-for-field.
type GetOptions struct {
	// [Network] How many remote authorities to query. Nil means a
	// best-effort default.
	RemoteAgentCount *uint8
	// [Network] Deadline for the whole aggregation. Nil means a
	// best-effort default (defaultTimeout).
	TimeoutMS *uint64
	// [Network] If true and any result has arrived by RaceTimeoutMS,
	// return it immediately rather than waiting out the full timeout.
	AsRace bool
	// [Network] See AsRace. Nil means a best-effort default.
	RaceTimeoutMS *uint64
	// [Remote] Whether the remote authority should follow
	// update/delete redirects or return the record as originally
	// authored.
	FollowRedirects bool
	// [Remote] Return all live actions even across deletes. Neither
	// GetMeta nor the remote Get request reads this field.
	AllLiveActionsWithMetadata bool
	// [Remote] The content tier this Get needs.
	RequestType GetRequest
}

// DefaultGetOptions is the best-effort default: no explicit remote
// count or timeout, race mode on, redirects followed.
func DefaultGetOptions() GetOptions {
	return GetOptions{AsRace: true, FollowRedirects: true, RequestType: GetRequestAll}
}

// MustGetOptions fixes every network option that could otherwise
// introduce nondeterminism into a validation callback: no redirects,
// and a request type that always resolves to the same content
// regardless of what else has been published since. Using
// DefaultGetOptions inside a validate() callback is unsafe for this
// reason -- two honest peers running the same validation at different
// times could see different results.
func MustGetOptions() GetOptions {
	return GetOptions{AsRace: true, FollowRedirects: false, RequestType: GetRequestPending}
}

const (
	defaultTimeout     = 5 * time.Second
	defaultRaceTimeout = 500 * time.Millisecond
)

func (o GetOptions) timeout() time.Duration {
	if o.TimeoutMS == nil {
		return defaultTimeout
	}
	return time.Duration(*o.TimeoutMS) * time.Millisecond
}

func (o GetOptions) raceTimeout() time.Duration {
	if o.RaceTimeoutMS == nil {
		return defaultRaceTimeout
	}
	return time.Duration(*o.RaceTimeoutMS) * time.Millisecond
}

func (o GetOptions) remoteAgentCount() int {
	if o.RemoteAgentCount == nil {
		return 3
	}
	return int(*o.RemoteAgentCount)
}

// Record is a Get result: the action and, if it creates or updates
// one, the entry it addresses.
type Record struct {
	Action *action.Action
	Entry  *action.Entry
}

// Meta describes the CRUD state attached to an entry: every
// Update/Delete registered against it.
type Meta struct {
	EntryHash hash.Hash
	Updates   []hash.Hash
	Deletes   []hash.Hash
}

// Link is one materialized CreateLink, already filtered against any
// DeleteLink that removed it.
type Link struct {
	Base, Target     hash.Hash
	Tag              []byte
	LinkType         uint8
	CreateActionHash hash.Hash
}

// ActivityRecord is one row of a raw (non-branch-filtered) agent
// activity response.
type ActivityRecord struct {
	Seq        uint32
	ActionHash hash.Hash
	Prev       hash.Hash
}

// SeqRange bounds an agent-activity query; nil means unbounded.
type SeqRange struct {
	Low, High uint32
}

// Facade is the NetworkFacade: the request/response surface spec.md
// §4.9 describes. Get serves from the local Store when the answer is
// already held there and only fans out over Transport to Peers when it
// is not. GetMeta, GetLinks, CountLinks, GetAgentActivity and
// MustGetAgentActivity answer from the local Store only; Publish,
// SendValidationReceipts and CallRemote always go over Transport.
type Facade struct {
	Store     *store.Store
	Transport Transport
	Peers     peer.Directory
	Topology  arq.Topology
}

// Get retrieves the record at h, either an action hash or an entry
// hash, preferring local storage and falling back to a remote
// fan-out.
func (f *Facade) Get(ctx context.Context, h hash.Hash, opts GetOptions) (*Record, error) {
	rec, err := f.localGet(h)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}
	if f.Transport == nil || f.Peers == nil {
		return nil, nil
	}
	return f.remoteGet(ctx, h, opts)
}

func (f *Facade) localGet(h hash.Hash) (*Record, error) {
	switch h.Type() {
	case hash.TypeAction:
		act, err := f.Store.GetAction(h)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("network: Get: %w", err)
		}
		var entry *action.Entry
		if eh, ok := act.EntryHash(); ok {
			if e, err := f.Store.GetEntry(eh); err == nil {
				entry = e
			}
		}
		return &Record{Action: act, Entry: entry}, nil
	case hash.TypeEntry:
		e, err := f.Store.GetEntry(h)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("network: Get: %w", err)
		}
		return &Record{Entry: e}, nil
	default:
		return nil, fmt.Errorf("network: Get requires an action or entry hash, got %s", h.Type())
	}
}

// remoteGet fans the request out to up to RemoteAgentCount authorities
// of h's location. In race mode it returns once RaceTimeoutMS has
// passed and a result is in hand; otherwise it waits for every
// authority (or TimeoutMS) and returns the last result received. A
// fully expired request returns (nil, nil) -- best-effort semantics
// per spec.md §5, never a timeout error.
func (f *Facade) remoteGet(ctx context.Context, h hash.Hash, opts GetOptions) (*Record, error) {
	authorities := f.Peers.Authorities(h.Location(), f.Topology)
	if len(authorities) > opts.remoteAgentCount() {
		authorities = authorities[:opts.remoteAgentCount()]
	}
	if len(authorities) == 0 {
		return nil, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()
	var raceC <-chan time.Time
	if opts.AsRace {
		raceC = time.After(opts.raceTimeout())
	}

	payload, err := codec.Codec.Marshal(codec.CurrentVersion, getXRequest{
		Hash:            h,
		RequestType:     opts.RequestType,
		FollowRedirects: opts.FollowRedirects,
	})
	if err != nil {
		return nil, fmt.Errorf("network: encoding get request: %w", err)
	}

	// Fan out with errgroup for the bounded-concurrency lifecycle: each
	// authority's request is best-effort (a bad answer is dropped, not
	// propagated), so every goroutine always returns nil and g.Wait()
	// just tells the drain loop below when every authority has answered
	// or given up.
	g, gCtx := errgroup.WithContext(reqCtx)
	results := make(chan *Record, len(authorities))
	for _, a := range authorities {
		to := a
		g.Go(func() error {
			resp, err := f.Transport.Request(gCtx, to, Frame{Tag: TagGetX, Payload: payload})
			if err != nil || resp.Tag != TagGetXResp {
				return nil
			}
			var wire getXResponse
			if _, err := codec.Codec.Unmarshal(resp.Payload, &wire); err != nil || wire.Record == nil {
				return nil
			}
			results <- wire.Record
			return nil
		})
	}
	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	var best *Record
	for {
		select {
		case r := <-results:
			best = r
			if opts.AsRace && raceC == nil {
				return best, nil
			}
		case <-raceC:
			raceC = nil
			if best != nil {
				return best, nil
			}
		case <-done:
			for {
				select {
				case r := <-results:
					best = r
				default:
					return best, nil
				}
			}
		case <-reqCtx.Done():
			return best, nil
		}
	}
}

type getXRequest struct {
	Hash            hash.Hash
	RequestType     GetRequest
	FollowRedirects bool
}

type getXResponse struct {
	Record *Record
}

// GetMeta returns the CRUD metadata registered against an entry:
// every integrated RegisterUpdate/RegisterDelete op whose basis is
// entryHash.
func (f *Facade) GetMeta(_ context.Context, entryHash hash.Hash, _ GetOptions) (*Meta, error) {
	recs, err := f.Store.ScanOps(func(r store.OpRecord) bool {
		if r.Status != op.StatusIntegrated {
			return false
		}
		return (r.Op.Kind == op.KindRegisterUpdate || r.Op.Kind == op.KindRegisterDelete) && r.Op.Basis.Equal(entryHash)
	})
	if err != nil {
		return nil, fmt.Errorf("network: GetMeta: %w", err)
	}
	meta := &Meta{EntryHash: entryHash}
	for _, r := range recs {
		actHash, err := r.Op.Action.Hash()
		if err != nil {
			continue
		}
		if r.Op.Kind == op.KindRegisterUpdate {
			meta.Updates = append(meta.Updates, actHash)
		} else {
			meta.Deletes = append(meta.Deletes, actHash)
		}
	}
	return meta, nil
}

// GetLinks returns every integrated CreateLink rooted at base whose
// tag has tagPrefix as a prefix (nil tagPrefix matches every tag),
// excluding any that a DeleteLink has since removed.
func (f *Facade) GetLinks(_ context.Context, base hash.Hash, tagPrefix []byte, _ GetOptions) ([]Link, error) {
	creates, err := f.Store.ScanOps(func(r store.OpRecord) bool {
		return r.Status == op.StatusIntegrated && r.Op.Kind == op.KindRegisterCreateLink && r.Op.Basis.Equal(base)
	})
	if err != nil {
		return nil, fmt.Errorf("network: GetLinks: %w", err)
	}
	deletes, err := f.Store.ScanOps(func(r store.OpRecord) bool {
		return r.Status == op.StatusIntegrated && r.Op.Kind == op.KindRegisterDeleteLink && r.Op.Basis.Equal(base)
	})
	if err != nil {
		return nil, fmt.Errorf("network: GetLinks: %w", err)
	}
	removed := make(map[hash.Hash]bool, len(deletes))
	for _, d := range deletes {
		if d.Op.Action.DeleteLink != nil {
			removed[d.Op.Action.DeleteLink.LinkAddHash] = true
		}
	}

	var out []Link
	for _, c := range creates {
		actHash, err := c.Op.Action.Hash()
		if err != nil || removed[actHash] {
			continue
		}
		cl := c.Op.Action.CreateLink
		if cl == nil {
			continue
		}
		if len(tagPrefix) > 0 && !bytes.HasPrefix(cl.Tag, tagPrefix) {
			continue
		}
		out = append(out, Link{
			Base: cl.BaseHash, Target: cl.TargetHash, Tag: cl.Tag,
			LinkType: cl.LinkType, CreateActionHash: actHash,
		})
	}
	return out, nil
}

// CountLinks is GetLinks, counted.
func (f *Facade) CountLinks(ctx context.Context, base hash.Hash, tagPrefix []byte, opts GetOptions) (int, error) {
	links, err := f.GetLinks(ctx, base, tagPrefix, opts)
	return len(links), err
}

// GetAgentActivity returns the raw, un-branch-filtered activity rows
// an authority holds for author, optionally bounded by a seq range.
// Per spec.md §4.7, branch detection is deliberately not performed
// here: callers needing a deterministic answer call
// MustGetAgentActivity instead.
func (f *Facade) GetAgentActivity(_ context.Context, author hash.Hash, seqRange *SeqRange, _ GetOptions) ([]ActivityRecord, error) {
	from := uint32(0)
	if seqRange != nil {
		from = seqRange.Low
	}
	entries, err := f.Store.AgentActivity(author, from)
	if err != nil {
		return nil, fmt.Errorf("network: GetAgentActivity: %w", err)
	}
	out := make([]ActivityRecord, 0, len(entries))
	for _, e := range entries {
		if seqRange != nil && e.Seq > seqRange.High {
			continue
		}
		act, err := f.Store.GetAction(e.ActionHash)
		if err != nil {
			continue
		}
		out = append(out, ActivityRecord{Seq: e.Seq, ActionHash: e.ActionHash, Prev: act.Prev})
	}
	return out, nil
}

// MustGetAgentActivity returns exactly the contiguous, fork-free
// slice of author's chain from rangeHigh back to rangeLow, per
// spec.md's deterministic_get_agent_activity. It reads the local Store
// only: no network request is made and it takes no GetOptions.
func (f *Facade) MustGetAgentActivity(_ context.Context, author hash.Hash, rangeLow, rangeHigh hash.Hash) ([]*action.Action, error) {
	return validation.DeterministicGetAgentActivity(f.Store, author, rangeLow, rangeHigh)
}

// Publish fans ops out to every authority currently covering basis.
// This is the app-facing, one-shot publish NetworkFacade exposes;
// the authored-op integration pipeline's own retrying publish loop
// lives in the gossip package, which talks to Transport directly
// rather than through this method.
func (f *Facade) Publish(ctx context.Context, basis hash.Hash, ops []op.Op) error {
	if f.Transport == nil || f.Peers == nil {
		return nil
	}
	payload, err := codec.Codec.Marshal(codec.CurrentVersion, publishFrame{Ops: ops})
	if err != nil {
		return fmt.Errorf("network: encoding publish: %w", err)
	}
	var errs []error
	for _, a := range f.Peers.Authorities(basis.Location(), f.Topology) {
		if err := f.Transport.Send(ctx, a, Frame{Tag: TagPublish, Payload: payload}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type publishFrame struct {
	Ops []op.Op
}

// SendValidationReceipts delivers a batch of receipts to their
// author.
func (f *Facade) SendValidationReceipts(ctx context.Context, to hash.Hash, bundle ReceiptBundle) error {
	payload, err := codec.Codec.Marshal(codec.CurrentVersion, bundle)
	if err != nil {
		return fmt.Errorf("network: encoding receipt bundle: %w", err)
	}
	return f.Transport.Send(ctx, to, Frame{Tag: TagReceipt, Payload: payload})
}

// CallRemote invokes an opaque zome call on a remote agent, returning
// its raw response bytes. The call's own request/response shape is a
// WASM-guest concern out of scope for this core (spec.md §1); this
// method is just the transport round-trip.
func (f *Facade) CallRemote(ctx context.Context, to hash.Hash, payload []byte) ([]byte, error) {
	resp, err := f.Transport.Request(ctx, to, Frame{Tag: TagGetX, Payload: payload})
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}
