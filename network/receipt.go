// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package network

import (
	"github.com/holochain/dht-core/hash"
)

// ReceiptStatus mirrors the two terminal validation outcomes a peer
// can report back to an op's author.
type ReceiptStatus uint8

const (
	ReceiptValid ReceiptStatus = iota
	ReceiptRejected
)

// ValidationReceipt is the signed artifact a validator sends back to
// an op's author, per spec.md §7 ("A validation Rejected outcome
// produces a signed validation receipt sent back to the author") and
// original_source's actor.rs / the Receipt transport tag.
type ValidationReceipt struct {
	OpHash    hash.Hash
	Validator hash.Hash // hash.TypeAgent
	Status    ReceiptStatus
	Reason    string // set when Status == ReceiptRejected
	Signature []byte
}

// ReceiptBundle batches receipts for several ops bound for the same
// author, the unit SendValidationReceipts actually transmits.
type ReceiptBundle struct {
	Receipts []ValidationReceipt
}

// FetchContext is a small bitset carried alongside an in-flight op
// fetch, letting a peer note intent (request a receipt back, this op
// belongs to a countersigning session) without a separate message
// round-trip. Grounded on original_source's holochain_p2p actor.rs
// FetchContextExt trait.
type FetchContext uint32

const (
	flagRequestValidationReceipt FetchContext = 1 << 0
	flagCountersigningSession    FetchContext = 1 << 1
)

// WithRequestValidationReceipt sets or leaves unchanged the
// request-a-receipt flag.
func (f FetchContext) WithRequestValidationReceipt(v bool) FetchContext {
	if v {
		return f | flagRequestValidationReceipt
	}
	return f
}

// HasRequestValidationReceipt reports whether the flag is set.
func (f FetchContext) HasRequestValidationReceipt() bool {
	return f&flagRequestValidationReceipt != 0
}

// WithCountersigningSession sets or leaves unchanged the
// countersigning-session flag.
func (f FetchContext) WithCountersigningSession(v bool) FetchContext {
	if v {
		return f | flagCountersigningSession
	}
	return f
}

// HasCountersigningSession reports whether the flag is set.
func (f FetchContext) HasCountersigningSession() bool {
	return f&flagCountersigningSession != 0
}
