// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package network

import (
	"context"

	"github.com/holochain/dht-core/hash"
)

// Transport is the request/response + publish channel spec.md §1
// treats as an external collaborator. NetworkFacade and the gossip
// package are both expressed against this interface rather than
// owning a concrete wire implementation.
type Transport interface {
	// Request sends frame to "to" and blocks for its response, honoring
	// ctx's deadline. A timed-out request returns (Frame{}, ctx.Err())
	// so callers can distinguish "no peer answered" (best-effort,
	// return empty) from an unexpected error.
	Request(ctx context.Context, to hash.Hash, frame Frame) (Frame, error)

	// Send is fire-and-forget: used for Publish and validation
	// receipts (the gossip rounds use Request), where delivery failure
	// is retried by the caller's own backoff policy rather than
	// surfaced synchronously.
	Send(ctx context.Context, to hash.Hash, frame Frame) error
}

// NoOpTransport discards every Send and fails every Request, useful
// as a Facade default in tests that only exercise the local-authority
// serving path.
type NoOpTransport struct{}

func (NoOpTransport) Request(context.Context, hash.Hash, Frame) (Frame, error) {
	return Frame{}, context.DeadlineExceeded
}

func (NoOpTransport) Send(context.Context, hash.Hash, Frame) error { return nil }

// FakeTransport is an in-memory Transport for tests: Send records
// every frame it was asked to deliver, keyed by destination, and
// Request consults an optional Responder instead of ever reaching a
// real peer.
type FakeTransport struct {
	Sent      map[hash.Hash][]Frame
	Responder func(to hash.Hash, frame Frame) (Frame, error)
}

// NewFakeTransport returns an empty FakeTransport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{Sent: make(map[hash.Hash][]Frame)}
}

func (f *FakeTransport) Send(_ context.Context, to hash.Hash, frame Frame) error {
	f.Sent[to] = append(f.Sent[to], frame)
	return nil
}

func (f *FakeTransport) Request(ctx context.Context, to hash.Hash, frame Frame) (Frame, error) {
	if f.Responder == nil {
		return Frame{}, context.DeadlineExceeded
	}
	return f.Responder(to, frame)
}
