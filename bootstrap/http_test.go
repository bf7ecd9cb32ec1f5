// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package bootstrap

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/holochain/dht-core/hash"
	"github.com/holochain/dht-core/logging"
)

func newTestServer(t *testing.T) (*httptest.Server, *Store) {
	t.Helper()
	store := NewStore()
	svc := NewService(store, logging.NewNoOpLogger())
	srv := httptest.NewServer(svc.Router())
	t.Cleanup(srv.Close)
	return srv, store
}

func TestService_PutThenRandomRoundTrips(t *testing.T) {
	srv, store := newTestServer(t)
	client := NewClient(srv.URL, nil)
	space := mustHash(t, hash.TypeAgent, "space")

	info := AgentInfo{
		Space:       space,
		Agent:       mustHash(t, hash.TypeAgent, "agent"),
		URLs:        []string{"wss://node.example"},
		Signature:   validSignature(),
		ExpiresAtMS: time.Now().Add(time.Hour).UnixMilli(),
	}
	require.NoError(t, client.Put(context.Background(), info))
	require.Equal(t, 1, store.Len(space))

	got, err := client.Random(context.Background(), space, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, info.Agent, got[0].Agent)
	require.Equal(t, info.URLs, got[0].URLs)
}

func TestService_PutRejectsInvalidSignature(t *testing.T) {
	srv, _ := newTestServer(t)
	client := NewClient(srv.URL, nil)

	info := AgentInfo{
		Space:       mustHash(t, hash.TypeAgent, "space"),
		Agent:       mustHash(t, hash.TypeAgent, "agent"),
		Signature:   []byte("short"),
		ExpiresAtMS: time.Now().Add(time.Hour).UnixMilli(),
	}
	err := client.Put(context.Background(), info)
	require.Error(t, err)
}

func TestService_RandomOnEmptySpace(t *testing.T) {
	srv, _ := newTestServer(t)
	client := NewClient(srv.URL, nil)

	got, err := client.Random(context.Background(), mustHash(t, hash.TypeAgent, "nobody"), 5)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestService_UnknownOp(t *testing.T) {
	srv, _ := newTestServer(t)
	client := NewClient(srv.URL, nil)
	_, err := client.post(context.Background(), "bogus", []byte{})
	require.Error(t, err)
}
