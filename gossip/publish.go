// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gossip implements the two reconciliation channels spec.md
// §4.8 describes -- historical (region-set fingerprint diffing) and
// recent (bloom-filter exchange below the region grid's resolution)
// -- plus the retrying publish of a freshly integrated op to the
// authorities of its basis. All three talk to network.Transport
// directly rather than through the NetworkFacade: Facade is the
// app-facing request/response surface, while gossip is conductor-side
// background upkeep that happens to use the same wire primitives.
package gossip

import (
	"context"
	"fmt"

	backoffpkg "github.com/cenkalti/backoff/v4"
	"github.com/luxfi/log"

	"github.com/holochain/dht-core/arq"
	"github.com/holochain/dht-core/codec"
	"github.com/holochain/dht-core/config"
	"github.com/holochain/dht-core/metrics"
	"github.com/holochain/dht-core/network"
	"github.com/holochain/dht-core/op"
	"github.com/holochain/dht-core/peer"
)

// Publisher retries delivery of a newly integrated op to every
// authority currently covering its basis, per spec.md's "publish with
// bounded exponential backoff, best-effort beyond the ceiling".
type Publisher struct {
	Transport network.Transport
	Peers     peer.Directory
	Topology  arq.Topology
	Config    config.GossipConfig
	Metrics   *metrics.Gossip
	Log       log.Logger
}

type publishWire struct {
	Ops []op.Op
}

// PublishOp sends o to every authority of its basis, retrying each
// delivery independently with the configured backoff schedule.
// A delivery that still fails past MaxElapsed is logged and skipped:
// a later gossip round will still reconcile the op, so publish failure
// is never fatal to eventual consistency. PublishOp returns nil when
// at least one authority received the op, and an error wrapping the
// first failure when every authority failed.
func (p *Publisher) PublishOp(ctx context.Context, o op.Op) error {
	authorities := p.Peers.Authorities(o.Basis.Location(), p.Topology)
	if len(authorities) == 0 {
		return nil
	}

	payload, err := codec.Codec.Marshal(codec.CurrentVersion, publishWire{Ops: []op.Op{o}})
	if err != nil {
		return fmt.Errorf("gossip: encoding publish: %w", err)
	}
	frame := network.Frame{Tag: network.TagPublish, Payload: payload}

	var errs []error
	for _, to := range authorities {
		b := p.backoff()
		sendErr := backoffpkg.Retry(func() error {
			return p.Transport.Send(ctx, to, frame)
		}, backoffpkg.WithContext(b, ctx))
		if sendErr != nil {
			p.Log.Warn("gossip: publish failed past backoff ceiling", "to", to, "err", sendErr)
			errs = append(errs, sendErr)
			continue
		}
		p.Metrics.OpsPublished.Inc()
		p.Metrics.BytesSent.Add(int64(len(payload)))
	}
	if len(errs) == len(authorities) {
		return fmt.Errorf("gossip: publish failed to all %d authorities: %w", len(authorities), errs[0])
	}
	return nil
}

func (p *Publisher) backoff() backoffpkg.BackOff {
	initial, max, maxElapsed := p.Config.PublishBackoffInitial, p.Config.PublishBackoffMax, p.Config.PublishBackoffMaxElapsed
	b := backoffpkg.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	b.MaxElapsedTime = maxElapsed
	return b
}
