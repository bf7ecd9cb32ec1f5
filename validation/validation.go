// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package validation runs every derived op through the sys -> app ->
// integration pipeline before it becomes queryable. Each stage is a
// FIFO work queue with no capacity limit and its own trigger: a worker
// drains its queue
// until empty or until it hits an op whose dependency isn't available
// yet, at which point it parks the op and goes back to sleep. Parking
// is event-driven, not polled -- a dependency's integration re-wakes
// everything waiting on it.
package validation

import (
	"context"
	"crypto/ed25519"
	"errors"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/luxfi/log"

	"github.com/holochain/dht-core/action"
	"github.com/holochain/dht-core/hash"
	"github.com/holochain/dht-core/metrics"
	"github.com/holochain/dht-core/op"
	"github.com/holochain/dht-core/store"
	"github.com/holochain/dht-core/utils/set"
)

// Outcome is the closed set of terminal verdicts a validation stage
// can reach for one op.
type Outcome uint8

const (
	OutcomeValid Outcome = iota
	OutcomeInvalid
	OutcomeUnresolvedDependency
)

func (o Outcome) String() string {
	switch o {
	case OutcomeValid:
		return "Valid"
	case OutcomeInvalid:
		return "Invalid"
	case OutcomeUnresolvedDependency:
		return "UnresolvedDependency"
	default:
		return "Unknown"
	}
}

// Verdict is the result of running one op through a validation stage.
type Verdict struct {
	Outcome     Outcome
	Reason      string      // set when Outcome == OutcomeInvalid
	MissingDeps []hash.Hash // set when Outcome == OutcomeUnresolvedDependency
}

// KeyResolver recovers an author's signing key from whatever already
// holds it, so sys validation can verify a signature without a
// separate key-distribution channel. The genesis Create(AgentPubKey)
// action on the author's own chain is the natural source: its entry
// bytes are the raw public key.
type KeyResolver func(author hash.Hash) (ed25519.PublicKey, error)

// DependencyFetcher retrieves an action (and its entry, if any) that
// isn't available locally, e.g. over the network. Called with bounded
// exponential backoff before an op is parked on a missing dependency.
type DependencyFetcher func(ctx context.Context, h hash.Hash) (*action.Action, *action.Entry, error)

// AppValidator is the WASM validate(op) callback boundary: given an op
// and a read-only cascade over locally available data, it decides
// whether the op is valid. Cascade is narrowed to store.Store's read
// surface so a validator can't reach in and mutate state mid-callback.
type AppValidator interface {
	ValidateOp(ctx context.Context, o op.Op, deps Cascade) Verdict
}

// Cascade is the read-only view an app validation callback sees.
type Cascade interface {
	GetAction(h hash.Hash) (*action.Action, error)
	GetEntry(h hash.Hash) (*action.Entry, error)
}

// AppValidatorFunc adapts a plain function to AppValidator.
type AppValidatorFunc func(ctx context.Context, o op.Op, deps Cascade) Verdict

func (f AppValidatorFunc) ValidateOp(ctx context.Context, o op.Op, deps Cascade) Verdict {
	return f(ctx, o, deps)
}

// AlwaysValid is the no-op app validator for DNAs with no validate
// callback: every op passes app validation unconditionally.
var AlwaysValid AppValidator = AppValidatorFunc(func(context.Context, op.Op, Cascade) Verdict {
	return Verdict{Outcome: OutcomeValid}
})

// TriggerSender wakes a worker loop without blocking. A full channel
// means a wakeup is already pending, so a second Send is dropped
// rather than queued -- the worker will see all outstanding work on
// the wake it already has coming.
type TriggerSender chan struct{}

func newTrigger() TriggerSender { return make(TriggerSender, 1) }

// Send schedules a wakeup, coalescing with any already pending.
func (t TriggerSender) Send() {
	select {
	case t <- struct{}{}:
	default:
	}
}

// opID identifies one derived op uniquely: an action can derive
// several ops, so (action hash, kind) together are the key.
type opID struct {
	Action hash.Hash
	Kind   op.Kind
}

func idOf(o op.Op) opID { return opID{Action: o.ActionHash, Kind: o.Kind} }

// Pipeline is the per-DNA validation state machine.
type Pipeline struct {
	st        *store.Store
	log       log.Logger
	metrics   *metrics.ValidationPipeline
	resolver  KeyResolver
	validator AppValidator
	fetcher   DependencyFetcher
	backoff   func() backoff.BackOff

	mu     sync.Mutex
	sysQ   []op.Op
	appQ   []op.Op
	integQ []op.Op

	// waiting maps a missing dependency's hash to the set of ops
	// parked on it; parked holds the op itself for re-enqueue once the
	// dependency resolves.
	waiting map[hash.Hash]set.Set[opID]
	parked  map[opID]parkedOp

	sysTrigger   TriggerSender
	appTrigger   TriggerSender
	integTrigger TriggerSender
}

type parkedOp struct {
	op    op.Op
	stage stage
}

type stage uint8

const (
	stageSys stage = iota
	stageApp
)

// Config wires a Pipeline's collaborators. Resolver, Validator, and
// Fetcher may be nil: a nil Resolver skips signature verification, a
// nil Validator defaults to AlwaysValid, and a nil Fetcher means
// missing dependencies always park (never fetched remotely).
// BackoffInitial/Max/MaxElapsed shape the dependency-fetch retry
// schedule; a zero BackoffMaxElapsed falls back to the package
// default (config.ValidationConfig is the usual source of non-zero
// values here).
type Config struct {
	Resolver  KeyResolver
	Validator AppValidator
	Fetcher   DependencyFetcher

	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	BackoffMaxElapsed time.Duration
}

// New constructs a Pipeline bound to st for durable state and m for
// queue-depth/latency metrics.
func New(st *store.Store, logger log.Logger, m *metrics.ValidationPipeline, cfg Config) *Pipeline {
	validator := cfg.Validator
	if validator == nil {
		validator = AlwaysValid
	}
	return &Pipeline{
		st:        st,
		log:       logger,
		metrics:   m,
		resolver:  cfg.Resolver,
		validator: validator,
		fetcher:   cfg.Fetcher,
		backoff:   backoffFactory(cfg),
		waiting:   make(map[hash.Hash]set.Set[opID]),
		parked:    make(map[opID]parkedOp),

		sysTrigger:   newTrigger(),
		appTrigger:   newTrigger(),
		integTrigger: newTrigger(),
	}
}

func backoffFactory(cfg Config) func() backoff.BackOff {
	initial, max, maxElapsed := cfg.BackoffInitial, cfg.BackoffMax, cfg.BackoffMaxElapsed
	if maxElapsed == 0 {
		initial, max, maxElapsed = 50*time.Millisecond, 2*time.Second, 10*time.Second
	}
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = max
		b.MaxElapsedTime = maxElapsed
		return b
	}
}

// EnqueueSys submits a freshly-received op for sys validation.
func (p *Pipeline) EnqueueSys(o op.Op) {
	p.mu.Lock()
	p.sysQ = append(p.sysQ, o)
	depth := len(p.sysQ)
	p.mu.Unlock()

	p.metrics.SysQueueDepth.Set(float64(depth))
	p.sysTrigger.Send()
}

// Run drives all three queues until ctx is cancelled. It is meant to
// be called from a single long-lived goroutine per DNA space.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.sysTrigger:
			p.drainSys(ctx)
		case <-p.appTrigger:
			p.drainApp(ctx)
		case <-p.integTrigger:
			p.drainIntegration(ctx)
		}
	}
}

func (p *Pipeline) popSys() (op.Op, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sysQ) == 0 {
		return op.Op{}, false
	}
	o := p.sysQ[0]
	p.sysQ = p.sysQ[1:]
	p.metrics.SysQueueDepth.Set(float64(len(p.sysQ)))
	return o, true
}

func (p *Pipeline) drainSys(ctx context.Context) {
	for {
		o, ok := p.popSys()
		if !ok {
			return
		}
		verdict := p.sysValidate(ctx, o)
		switch verdict.Outcome {
		case OutcomeValid:
			actHash, _ := o.Action.Hash()
			if err := p.st.SetOpStatus(actHash, o.Kind, op.StatusSysValidated, nowMS()); err != nil {
				p.log.Error("validation: recording sys-validated status", "err", err)
			}
			p.enqueueApp(o)
		case OutcomeUnresolvedDependency:
			p.park(o, stageSys, verdict.MissingDeps)
		case OutcomeInvalid:
			p.reject(o, verdict.Reason)
		}
	}
}

// sysValidate checks signature, structural invariants, and whether
// any action this op references is locally available. No app
// callbacks run here -- this stage must be total and side-effect-free
// against untrusted input.
func (p *Pipeline) sysValidate(ctx context.Context, o op.Op) Verdict {
	act := o.Action
	if act == nil {
		return Verdict{Outcome: OutcomeInvalid, Reason: "op carries no action"}
	}
	if err := act.Validate(); err != nil {
		return Verdict{Outcome: OutcomeInvalid, Reason: err.Error()}
	}

	if p.resolver != nil {
		pub, err := p.resolver(act.Author)
		if err != nil {
			return Verdict{Outcome: OutcomeUnresolvedDependency, MissingDeps: []hash.Hash{act.Author}}
		}
		signable, err := act.SignableBytes()
		if err != nil {
			return Verdict{Outcome: OutcomeInvalid, Reason: "encoding signable bytes: " + err.Error()}
		}
		if !ed25519.Verify(pub, signable, act.Signature) {
			return Verdict{Outcome: OutcomeInvalid, Reason: "signature verification failed"}
		}
	}

	if missing := p.missingStructuralDeps(act); len(missing) > 0 {
		if resolved := p.tryFetch(ctx, missing); !resolved {
			return Verdict{Outcome: OutcomeUnresolvedDependency, MissingDeps: missing}
		}
	}

	if act.Seq > 0 {
		prevHash, err := p.st.GetActionHashBySeq(act.Author, act.Seq-1)
		if errors.Is(err, store.ErrNotFound) {
			if resolved := p.tryFetch(ctx, []hash.Hash{act.Prev}); !resolved {
				return Verdict{Outcome: OutcomeUnresolvedDependency, MissingDeps: []hash.Hash{act.Prev}}
			}
			prevHash, err = p.st.GetActionHashBySeq(act.Author, act.Seq-1)
		}
		if err != nil {
			return Verdict{Outcome: OutcomeInvalid, Reason: "resolving prev action: " + err.Error()}
		}
		if !act.Prev.Equal(prevHash) {
			return Verdict{Outcome: OutcomeInvalid, Reason: "prev_action does not match the author's chain"}
		}
	} else if !act.Prev.Equal(hash.Hash{}) {
		return Verdict{Outcome: OutcomeInvalid, Reason: "genesis action must not carry a prev_action"}
	}

	return Verdict{Outcome: OutcomeValid}
}

// missingStructuralDeps returns the actions this op's action
// references (Update's original, Delete's target, DeleteLink's
// linked CreateLink) that aren't available locally yet.
func (p *Pipeline) missingStructuralDeps(act *action.Action) []hash.Hash {
	var refs []hash.Hash
	switch act.Kind {
	case action.KindUpdate:
		refs = append(refs, act.Update.OriginalActionHash)
	case action.KindDelete:
		refs = append(refs, act.Delete.DeletesActionHash)
	case action.KindDeleteLink:
		refs = append(refs, act.DeleteLink.LinkAddHash)
	}

	var missing []hash.Hash
	for _, h := range refs {
		if _, err := p.st.GetAction(h); errors.Is(err, store.ErrNotFound) {
			missing = append(missing, h)
		}
	}
	return missing
}

// tryFetch attempts to retrieve each missing dependency with bounded
// exponential backoff via the configured fetcher, persisting anything
// it recovers. Returns true only if every dependency was resolved.
func (p *Pipeline) tryFetch(ctx context.Context, missing []hash.Hash) bool {
	if p.fetcher == nil {
		return false
	}
	allOK := true
	for _, h := range missing {
		var act *action.Action
		var entry *action.Entry
		fetch := func() error {
			a, e, err := p.fetcher(ctx, h)
			if err != nil {
				return err
			}
			act, entry = a, e
			return nil
		}
		if err := backoff.Retry(fetch, backoff.WithContext(p.backoff(), ctx)); err != nil {
			allOK = false
			continue
		}
		if err := p.st.AppendAction(act, entry, nil); err != nil && !errors.Is(err, store.ErrConflict) {
			allOK = false
		}
	}
	return allOK
}

// park records o as waiting on every hash in missing, re-triggered
// the moment any of them is integrated.
func (p *Pipeline) park(o op.Op, at stage, missing []hash.Hash) {
	id := idOf(o)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parked[id] = parkedOp{op: o, stage: at}
	for _, h := range missing {
		s := p.waiting[h]
		s.Add(id)
		p.waiting[h] = s
	}
}

// Resolve re-enqueues every op parked on dep, called once dep
// integrates.
func (p *Pipeline) Resolve(dep hash.Hash) {
	p.mu.Lock()
	ids := p.waiting[dep]
	delete(p.waiting, dep)
	var toSys, toApp []op.Op
	for id := range ids {
		po, ok := p.parked[id]
		if !ok {
			continue
		}
		delete(p.parked, id)
		if po.stage == stageSys {
			toSys = append(toSys, po.op)
		} else {
			toApp = append(toApp, po.op)
		}
	}
	p.mu.Unlock()

	for _, o := range toSys {
		p.EnqueueSys(o)
	}
	for _, o := range toApp {
		p.enqueueApp(o)
	}
}

func (p *Pipeline) enqueueApp(o op.Op) {
	p.mu.Lock()
	p.appQ = append(p.appQ, o)
	depth := len(p.appQ)
	p.mu.Unlock()

	p.metrics.AppQueueDepth.Set(float64(depth))
	p.appTrigger.Send()
}

func (p *Pipeline) popApp() (op.Op, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.appQ) == 0 {
		return op.Op{}, false
	}
	o := p.appQ[0]
	p.appQ = p.appQ[1:]
	p.metrics.AppQueueDepth.Set(float64(len(p.appQ)))
	return o, true
}

func (p *Pipeline) drainApp(ctx context.Context) {
	for {
		o, ok := p.popApp()
		if !ok {
			return
		}
		verdict := p.validator.ValidateOp(ctx, o, p.st)
		switch verdict.Outcome {
		case OutcomeValid:
			actHash, _ := o.Action.Hash()
			if err := p.st.SetOpStatus(actHash, o.Kind, op.StatusAppValidated, nowMS()); err != nil {
				p.log.Error("validation: recording app-validated status", "err", err)
			}
			p.enqueueIntegration(o)
		case OutcomeUnresolvedDependency:
			p.park(o, stageApp, verdict.MissingDeps)
		case OutcomeInvalid:
			p.reject(o, verdict.Reason)
		}
	}
}

func (p *Pipeline) enqueueIntegration(o op.Op) {
	p.mu.Lock()
	p.integQ = append(p.integQ, o)
	depth := len(p.integQ)
	p.mu.Unlock()

	p.metrics.IntegrationQueueDepth.Set(float64(depth))
	p.integTrigger.Send()
}

func (p *Pipeline) popIntegration() (op.Op, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.integQ) == 0 {
		return op.Op{}, false
	}
	o := p.integQ[0]
	p.integQ = p.integQ[1:]
	p.metrics.IntegrationQueueDepth.Set(float64(len(p.integQ)))
	return o, true
}

// drainIntegration moves AppValidated ops into the queryable state.
// Branch detection for RegisterAgentActivity ops is deliberately not
// performed here: the authority stores every activity op it receives
// regardless of which fork it belongs to, and leaves branch filtering
// to the client-side deterministic agent-activity walk in this
// package. Taking sides on forks at integration time would make the
// authority's behavior depend on arrival order.
func (p *Pipeline) drainIntegration(ctx context.Context) {
	for {
		o, ok := p.popIntegration()
		if !ok {
			return
		}
		actHash, err := o.Action.Hash()
		if err != nil {
			p.log.Error("validation: hashing integrated action", "err", err)
			continue
		}
		if err := p.st.SetOpStatus(actHash, o.Kind, op.StatusIntegrated, nowMS()); err != nil {
			p.log.Error("validation: recording integrated status", "err", err)
			continue
		}
		p.Resolve(actHash)
	}
}

func (p *Pipeline) reject(o op.Op, reason string) {
	actHash, err := o.Action.Hash()
	if err != nil {
		p.log.Error("validation: hashing rejected action", "err", err)
		return
	}
	if err := p.st.SetOpStatus(actHash, o.Kind, op.StatusRejected, nowMS()); err != nil {
		p.log.Error("validation: recording rejected status", "err", err)
	}
	p.log.Warn("validation: op rejected", "kind", o.Kind.String(), "reason", reason)
}

// nowMS is split out so tests covering timing fields can stub it; the
// pipeline itself always calls through to the wall clock.
var nowMS = func() int64 { return time.Now().UnixMilli() }
