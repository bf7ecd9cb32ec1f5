// Package hash implements the self-describing content hash used to
// address every piece of DHT data: a 3-byte type prefix, a 32-byte
// blake2b-256 content digest, and a 4-byte location checksum.
package hash

import (
	"encoding/base64"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/blake2b"
)

const (
	// PrefixLen is the length in bytes of the type prefix.
	PrefixLen = 3
	// CoreLen is the length in bytes of the blake2b-256 content digest.
	CoreLen = 32
	// LocLen is the length in bytes of the location checksum.
	LocLen = 4
	// FullLen is the total encoded length: prefix + core + location.
	FullLen = PrefixLen + CoreLen + LocLen

	// sigil is the single leading character of the text encoding.
	sigil = 'u'
)

// Type identifies the kind of content a Hash addresses. The set is
// closed: every parse must resolve to one of these or fail.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeDna
	TypeAgent
	TypeEntry
	TypeAction
	TypeNetId
	TypeWasm
	TypeExternal
)

// prefixes maps each Type to its 3-byte wire prefix. Chosen so the
// base64url text form carries a recognizable 4-character tag right
// after the sigil, matching the scheme used throughout the DHT's
// on-the-wire identifiers.
var prefixes = map[Type][PrefixLen]byte{
	TypeDna:      {0x84, 0x2d, 0x24},
	TypeAgent:    {0x84, 0x20, 0x24},
	TypeEntry:    {0x84, 0x21, 0x24},
	TypeAction:   {0x84, 0x29, 0x24},
	TypeNetId:    {0x84, 0x22, 0x24},
	TypeWasm:     {0x84, 0x2a, 0x24},
	TypeExternal: {0x84, 0x23, 0x24},
}

var prefixToType = func() map[[PrefixLen]byte]Type {
	m := make(map[[PrefixLen]byte]Type, len(prefixes))
	for t, p := range prefixes {
		m[p] = t
	}
	return m
}()

func (t Type) String() string {
	switch t {
	case TypeDna:
		return "Dna"
	case TypeAgent:
		return "Agent"
	case TypeEntry:
		return "Entry"
	case TypeAction:
		return "Action"
	case TypeNetId:
		return "NetId"
	case TypeWasm:
		return "Wasm"
	case TypeExternal:
		return "External"
	default:
		return "Unknown"
	}
}

// Hash is the 39-byte self-describing content address.
type Hash struct {
	typ  Type
	core [CoreLen]byte
	loc  [LocLen]byte
}

// Error is a closed set of hash-parsing failures.
type Error struct {
	Kind   string
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return "hash: " + e.Kind
	}
	return fmt.Sprintf("hash: %s: %s", e.Kind, e.Detail)
}

func errNoU() error           { return &Error{Kind: "NoU"} }
func errBadBase64() error     { return &Error{Kind: "BadBase64"} }
func errBadSize() error       { return &Error{Kind: "BadSize"} }
func errBadPrefix(d string) error { return &Error{Kind: "BadPrefix", Detail: d} }
func errBadChecksum() error   { return &Error{Kind: "BadChecksum"} }

// Of computes the Hash of type t over content, deriving both the
// blake2b-256 core digest and its location checksum. Pure, no I/O.
func Of(t Type, content []byte) (Hash, error) {
	prefix, ok := prefixes[t]
	if !ok {
		return Hash{}, errBadPrefix(fmt.Sprintf("unknown type %v", t))
	}
	core := blake2b256(content)
	var h Hash
	h.typ = t
	copy(h.core[:], core)
	loc, err := location(h.core)
	if err != nil {
		return Hash{}, err
	}
	h.loc = loc
	_ = prefix
	return h, nil
}

// FromCore builds a Hash directly from a precomputed 32-byte digest,
// e.g. when the digest is the canonical serialization hash of an
// already-parsed structure rather than raw bytes at hand.
func FromCore(t Type, core [CoreLen]byte) (Hash, error) {
	if _, ok := prefixes[t]; !ok {
		return Hash{}, errBadPrefix(fmt.Sprintf("unknown type %v", t))
	}
	loc, err := location(core)
	if err != nil {
		return Hash{}, err
	}
	return Hash{typ: t, core: core, loc: loc}, nil
}

// Type returns the hash's content-kind tag.
func (h Hash) Type() Type { return h.typ }

// Core returns the 32-byte blake2b-256 digest.
func (h Hash) Core() [CoreLen]byte { return h.core }

// Location returns the 32-bit ring location as derived from the core
// digest. Two hashes with the same core always share a location; the
// stored location bytes are always computed from the core when a Hash
// is built or parsed, never taken independently of it.
func (h Hash) Location() uint32 {
	return uint32(h.loc[0]) | uint32(h.loc[1])<<8 | uint32(h.loc[2])<<16 | uint32(h.loc[3])<<24
}

// Bytes returns the raw 39-byte wire form.
func (h Hash) Bytes() []byte {
	out := make([]byte, 0, FullLen)
	p := prefixes[h.typ]
	out = append(out, p[:]...)
	out = append(out, h.core[:]...)
	out = append(out, h.loc[:]...)
	return out
}

// String returns the `u`-sigil base64url-nopad text form.
func (h Hash) String() string {
	return string(sigil) + base64.RawURLEncoding.EncodeToString(h.Bytes())
}

func (h Hash) Equal(o Hash) bool {
	return h.typ == o.typ && h.core == o.core && h.loc == o.loc
}

// Decode parses a text-form hash, verifying it is of the expected
// type, has valid base64url framing, the correct length, and a
// checksum that matches its core digest. Any mismatch fails closed.
func Decode(want Type, s string) (Hash, error) {
	b, err := decodeBytes(s)
	if err != nil {
		return Hash{}, err
	}
	wantPrefix, ok := prefixes[want]
	if !ok {
		return Hash{}, errBadPrefix(fmt.Sprintf("unknown type %v", want))
	}
	var actual [PrefixLen]byte
	copy(actual[:], b[:PrefixLen])
	if actual != wantPrefix {
		return Hash{}, errBadPrefix(fmt.Sprintf("want %v got %x", want, actual))
	}
	return fromValidatedBytes(want, b)
}

// DecodeAny parses a text-form hash of any known type, resolving the
// type from the prefix itself. Fails closed if the prefix is not a
// member of the closed type set.
func DecodeAny(s string) (Hash, error) {
	b, err := decodeBytes(s)
	if err != nil {
		return Hash{}, err
	}
	var actual [PrefixLen]byte
	copy(actual[:], b[:PrefixLen])
	t, ok := prefixToType[actual]
	if !ok {
		return Hash{}, errBadPrefix(fmt.Sprintf("unrecognized prefix %x", actual))
	}
	return fromValidatedBytes(t, b)
}

// DecodeWireBytes parses a raw 39-byte wire-form hash (as returned by
// Bytes), resolving its type from the prefix. Used by the msgpack
// codec to reconstruct a Hash from its wire encoding without going
// through the base64 text form.
func DecodeWireBytes(b []byte) (Hash, error) {
	if len(b) != FullLen {
		return Hash{}, errBadSize()
	}
	var actual [PrefixLen]byte
	copy(actual[:], b[:PrefixLen])
	t, ok := prefixToType[actual]
	if !ok {
		return Hash{}, errBadPrefix(fmt.Sprintf("unrecognized prefix %x", actual))
	}
	return fromValidatedBytes(t, b)
}

// EncodeMsgpack implements msgpack.CustomEncoder so a Hash serializes
// as its raw 39-byte wire form rather than as a struct of unexported
// fields (which msgpack's reflection-based encoder cannot see).
func (h Hash) EncodeMsgpack(enc *msgpack.Encoder) error {
	if h.typ == TypeUnknown {
		return enc.EncodeBytes(nil)
	}
	return enc.EncodeBytes(h.Bytes())
}

// DecodeMsgpack implements msgpack.CustomDecoder, the mirror of
// EncodeMsgpack.
func (h *Hash) DecodeMsgpack(dec *msgpack.Decoder) error {
	b, err := dec.DecodeBytes()
	if err != nil {
		return err
	}
	if len(b) == 0 {
		*h = Hash{}
		return nil
	}
	decoded, err := DecodeWireBytes(b)
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}

func decodeBytes(s string) ([]byte, error) {
	if len(s) < 1 || s[0] != sigil {
		return nil, errNoU()
	}
	b, err := base64.RawURLEncoding.DecodeString(s[1:])
	if err != nil {
		return nil, errBadBase64()
	}
	if len(b) != FullLen {
		return nil, errBadSize()
	}
	return b, nil
}

func fromValidatedBytes(t Type, b []byte) (Hash, error) {
	var h Hash
	h.typ = t
	copy(h.core[:], b[PrefixLen:PrefixLen+CoreLen])
	loc, err := location(h.core)
	if err != nil {
		return Hash{}, err
	}
	if loc != [LocLen]byte(b[PrefixLen+CoreLen:]) {
		return Hash{}, errBadChecksum()
	}
	h.loc = loc
	return h, nil
}

// location computes the 4-byte DHT location checksum for a 32-byte
// core digest: a 16-byte blake2b digest of the core, XOR-folded as
// four 4-byte lanes.
func location(core [CoreLen]byte) ([LocLen]byte, error) {
	sum := blake2b128(core[:])
	var out [LocLen]byte
	copy(out[:], sum[:LocLen])
	for i := LocLen; i < len(sum); i += LocLen {
		for j := 0; j < LocLen; j++ {
			out[j] ^= sum[i+j]
		}
	}
	return out, nil
}

func blake2b256(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}

func blake2b128(data []byte) []byte {
	h, err := blake2b.New(16, nil)
	if err != nil {
		// blake2b-128 with a nil key is always a valid configuration.
		panic(err)
	}
	h.Write(data)
	return h.Sum(nil)
}
