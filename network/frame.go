// Copyright (C) 2019-2026, The Holochain Core Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package network is the NetworkFacade: the request/response surface
// (get, get_links, get_agent_activity, publish, send_validation_receipt)
// spec.md §4.9 describes, expressed against an injected Transport so
// the actual wire layer stays an external collaborator per spec.md §1.
package network

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Tag enumerates the inter-node message kinds spec.md §6 names for
// the op transport frame. Unknown tags are dropped with a warning,
// never guessed at.
type Tag uint8

const (
	TagPublish Tag = iota
	TagGossipRegionSet
	TagGossipOps
	TagGetX
	TagGetXResp
	TagReceipt
	TagCountersignNeg
)

func (t Tag) String() string {
	switch t {
	case TagPublish:
		return "Publish"
	case TagGossipRegionSet:
		return "GossipRegionSet"
	case TagGossipOps:
		return "GossipOps"
	case TagGetX:
		return "GetX"
	case TagGetXResp:
		return "GetXResp"
	case TagReceipt:
		return "Receipt"
	case TagCountersignNeg:
		return "CountersignNeg"
	default:
		return "Unknown"
	}
}

// Frame is one inter-node message: op_tag, payload_len (implicit in
// the encoding), payload. The wire form is a two-field protobuf
// message (tag varint, payload bytes) built with the low-level
// protowire encoder directly -- there is no .proto schema to generate
// from, just the tiny fixed shape spec.md §6 defines, so protowire's
// append/consume primitives are used in place of a generated message
// type.
type Frame struct {
	Tag     Tag
	Payload []byte
}

const (
	fieldTag     protowire.Number = 1
	fieldPayload protowire.Number = 2
)

// ErrUnknownTag is returned by DecodeFrame when the tag byte doesn't
// match any Tag in the closed set; callers should log and drop the
// frame per spec.md §6, not treat this as a fatal transport error.
var ErrUnknownTag = fmt.Errorf("network: unknown frame tag")

// EncodeFrame serializes f to its wire bytes.
func EncodeFrame(f Frame) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldTag, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Tag))
	b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, f.Payload)
	return b
}

// DecodeFrame parses wire bytes produced by EncodeFrame. Fields may
// arrive in any order or be absent (payload defaults to nil). An
// unrecognized tag value, or a frame with no tag field, yields a zero
// Frame and ErrUnknownTag; the raw tag value is not returned.
func DecodeFrame(b []byte) (Frame, error) {
	var f Frame
	var tagSeen bool
	var rawTag uint64
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Frame{}, fmt.Errorf("network: malformed frame: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldTag && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return Frame{}, fmt.Errorf("network: malformed tag field: %w", protowire.ParseError(m))
			}
			b = b[m:]
			rawTag = v
			tagSeen = true
		case num == fieldPayload && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Frame{}, fmt.Errorf("network: malformed payload field: %w", protowire.ParseError(m))
			}
			b = b[m:]
			f.Payload = append([]byte(nil), v...)
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return Frame{}, fmt.Errorf("network: malformed unknown field: %w", protowire.ParseError(m))
			}
			b = b[m:]
		}
	}
	if !tagSeen || rawTag > uint64(TagCountersignNeg) {
		return Frame{}, ErrUnknownTag
	}
	f.Tag = Tag(rawTag)
	return f, nil
}
