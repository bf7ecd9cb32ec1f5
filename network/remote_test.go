// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package network

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/holochain/dht-core/action"
	"github.com/holochain/dht-core/arq"
	"github.com/holochain/dht-core/codec"
	"github.com/holochain/dht-core/hash"
	"github.com/holochain/dht-core/peer"
)

func TestFacade_GetFallsBackToRemote(t *testing.T) {
	author := mustHash(t, hash.TypeAgent, "author")
	entryHash := mustHash(t, hash.TypeEntry, "entry")
	act := &action.Action{Kind: action.KindCreate, Author: author, Seq: 0, Timestamp: 1,
		Create: &action.CreateFields{EntryHash: entryHash, EntryType: "post"}}
	actHash, err := act.Hash()
	require.NoError(t, err)

	authority := mustHash(t, hash.TypeAgent, "authority")
	table := peer.NewTable()
	table.Upsert(peer.Info{Agent: authority, Arq: arq.Arq{Power: 31, Count: 4}})

	transport := NewFakeTransport()
	transport.Responder = func(to hash.Hash, frame Frame) (Frame, error) {
		require.Equal(t, TagGetX, frame.Tag)
		payload, err := codec.Codec.Marshal(codec.CurrentVersion, getXResponse{Record: &Record{Action: act}})
		require.NoError(t, err)
		return Frame{Tag: TagGetXResp, Payload: payload}, nil
	}

	st := openTestStore(t)
	f := &Facade{Store: st, Transport: transport, Peers: table, Topology: arq.Topology{SpaceQuanta: 1 << 12, TimeQuantumMicros: 1}}

	rec, err := f.Get(context.Background(), actHash, DefaultGetOptions())
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.True(t, rec.Action.Author.Equal(author))
}

func TestFacade_SendValidationReceipts(t *testing.T) {
	transport := NewFakeTransport()
	f := &Facade{Transport: transport}
	validator := mustHash(t, hash.TypeAgent, "validator")
	opHash := mustHash(t, hash.TypeAction, "op")

	bundle := ReceiptBundle{Receipts: []ValidationReceipt{{OpHash: opHash, Validator: validator, Status: ReceiptValid}}}
	require.NoError(t, f.SendValidationReceipts(context.Background(), validator, bundle))
	require.Len(t, transport.Sent[validator], 1)
	require.Equal(t, TagReceipt, transport.Sent[validator][0].Tag)
}

func TestFacade_CallRemote(t *testing.T) {
	transport := NewFakeTransport()
	transport.Responder = func(to hash.Hash, frame Frame) (Frame, error) {
		return Frame{Tag: TagGetXResp, Payload: []byte("pong")}, nil
	}
	f := &Facade{Transport: transport}
	to := mustHash(t, hash.TypeAgent, "callee")
	resp, err := f.CallRemote(context.Background(), to, []byte("ping"))
	require.NoError(t, err)
	require.Equal(t, []byte("pong"), resp)
}

func TestFetchContext_Flags(t *testing.T) {
	var fc FetchContext
	require.False(t, fc.HasRequestValidationReceipt())
	fc = fc.WithRequestValidationReceipt(true)
	require.True(t, fc.HasRequestValidationReceipt())
	require.False(t, fc.HasCountersigningSession())
	fc = fc.WithCountersigningSession(true)
	require.True(t, fc.HasCountersigningSession())
	require.True(t, fc.HasRequestValidationReceipt())
}
