// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package network

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeFrame_RoundTrip(t *testing.T) {
	f := Frame{Tag: TagGetX, Payload: []byte("hello")}
	got, err := DecodeFrame(EncodeFrame(f))
	require.NoError(t, err)
	require.Equal(t, f.Tag, got.Tag)
	require.Equal(t, f.Payload, got.Payload)
}

func TestEncodeDecodeFrame_EmptyPayload(t *testing.T) {
	f := Frame{Tag: TagPublish}
	got, err := DecodeFrame(EncodeFrame(f))
	require.NoError(t, err)
	require.Equal(t, TagPublish, got.Tag)
	require.Empty(t, got.Payload)
}

func TestDecodeFrame_UnknownTag(t *testing.T) {
	f := Frame{Tag: Tag(99), Payload: []byte("x")}
	_, err := DecodeFrame(EncodeFrame(f))
	require.ErrorIs(t, err, ErrUnknownTag)
}

func TestDecodeFrame_Malformed(t *testing.T) {
	_, err := DecodeFrame([]byte{0xff})
	require.Error(t, err)
}

func TestTag_String(t *testing.T) {
	require.Equal(t, "Publish", TagPublish.String())
	require.Equal(t, "Unknown", Tag(200).String())
}
