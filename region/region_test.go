package region

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/holochain/dht-core/hash"
)

func mustOpHash(t *testing.T, seed string) hash.Hash {
	t.Helper()
	h, err := hash.Of(hash.TypeAction, []byte(seed))
	require.NoError(t, err)
	return h
}

func TestRegionData_CombineIsCommutativeAndAssociative(t *testing.T) {
	a := RegionData{OpCount: 1, TotalSize: 10, XorHash: [32]byte{1, 2, 3}}
	b := RegionData{OpCount: 2, TotalSize: 20, XorHash: [32]byte{4, 5, 6}}
	c := RegionData{OpCount: 3, TotalSize: 30, XorHash: [32]byte{7, 8, 9}}

	require.Equal(t, a.Combine(b), b.Combine(a))
	require.Equal(t, a.Combine(b).Combine(c), a.Combine(b.Combine(c)))
}

func TestQuerySet_ExcludesRecentOps(t *testing.T) {
	params := GridParams{SpacePower: 2, TimePower: 2, TimeOriginMS: 0, TimeQuantumMS: 1000}
	ops := []OpRecord{
		{BasisLocation: 0, AuthoredUnixMS: 500, Hash: mustOpHash(t, "old"), Size: 10},
		{BasisLocation: 0, AuthoredUnixMS: 3900, Hash: mustOpHash(t, "recent"), Size: 20},
	}

	set := QuerySet(params, ops, 4000, 2000)
	fp := set.Fingerprint(set.Full())
	require.Equal(t, uint32(1), fp.OpCount, "the recent op (age < recent_cutoff) must be excluded")
	require.Equal(t, uint64(10), fp.TotalSize)
}

func TestSet_FingerprintOfFullEqualsSumOfLeaves(t *testing.T) {
	params := GridParams{SpacePower: 2, TimePower: 1, TimeOriginMS: 0, TimeQuantumMS: 1000}
	ops := []OpRecord{
		{BasisLocation: 0, AuthoredUnixMS: 100, Hash: mustOpHash(t, "a"), Size: 1},
		{BasisLocation: 1 << 30, AuthoredUnixMS: 1100, Hash: mustOpHash(t, "b"), Size: 2},
		{BasisLocation: 3 << 30, AuthoredUnixMS: 1100, Hash: mustOpHash(t, "c"), Size: 3},
	}
	set := QuerySet(params, ops, 100000, 0)

	var manual RegionData
	for _, row := range set.Leaves {
		for _, leaf := range row {
			manual = manual.Combine(leaf)
		}
	}
	require.Equal(t, manual, set.Fingerprint(set.Full()))
	require.Equal(t, uint32(3), manual.OpCount)
}

func TestDiff_FindsOnlyMismatchedLeaves(t *testing.T) {
	params := GridParams{SpacePower: 2, TimePower: 1, TimeOriginMS: 0, TimeQuantumMS: 1000}

	shared := []OpRecord{
		{BasisLocation: 0, AuthoredUnixMS: 100, Hash: mustOpHash(t, "shared-1"), Size: 1},
		{BasisLocation: 1 << 30, AuthoredUnixMS: 100, Hash: mustOpHash(t, "shared-2"), Size: 1},
	}
	onlyA := OpRecord{BasisLocation: 3 << 30, AuthoredUnixMS: 1100, Hash: mustOpHash(t, "only-a"), Size: 1}

	opsA := append(append([]OpRecord{}, shared...), onlyA)
	opsB := append([]OpRecord{}, shared...)

	setA := QuerySet(params, opsA, 100000, 0)
	setB := QuerySet(params, opsB, 100000, 0)

	mismatched := Diff(setA, setB)
	require.Len(t, mismatched, 1)
	require.Equal(t, uint32(3), mismatched[0].SpaceIdx)
}

func TestDiff_IdenticalSetsHaveNoMismatches(t *testing.T) {
	params := GridParams{SpacePower: 2, TimePower: 2, TimeOriginMS: 0, TimeQuantumMS: 1000}
	ops := []OpRecord{
		{BasisLocation: 0, AuthoredUnixMS: 100, Hash: mustOpHash(t, "x"), Size: 1},
	}
	setA := QuerySet(params, ops, 100000, 0)
	setB := QuerySet(params, ops, 100000, 0)

	require.Empty(t, Diff(setA, setB))
}
