package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalSetOrderIndependent(t *testing.T) {
	a := SetValue("x", "a", "m")
	b := SetValue("m", "x", "a")

	assert.Equal(t, a.Canonical(), b.Canonical())
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Commitment(), b.Commitment())
}

func TestCanonicalDedupes(t *testing.T) {
	a := SetValue("a", "a", "b")
	b := SetValue("a", "b")
	assert.True(t, a.Equal(b))
}

func TestEmptyPerKind(t *testing.T) {
	assert.Equal(t, int64(0), Empty(AdKindCounter).Int)
	assert.Empty(t, Empty(AdKindSet).Elems)

	groups := Empty(AdKindMembership)
	for _, g := range DefaultGroups {
		assert.True(t, groups.HasGroup(g))
		assert.False(t, groups.GroupContains(g, "anyone"))
	}
}

func TestSetOperationsAreNoOpsOnRepeat(t *testing.T) {
	s := SetValue("a", "b")

	assert.True(t, s.WithElem("a").Equal(s))
	assert.True(t, s.WithoutElem("zzz").Equal(s))

	grown := s.WithElem("c")
	assert.True(t, grown.Contains("c"))
	assert.False(t, s.Contains("c"))
}

func TestGroupMembership(t *testing.T) {
	g := GroupsValue(map[string][]string{"red": {}, "green": {"alice"}})

	withBob := g.WithMember("red", "bob")
	assert.True(t, withBob.GroupContains("red", "bob"))
	assert.False(t, g.GroupContains("red", "bob"))

	gone := withBob.WithoutMember("red", "bob")
	assert.True(t, gone.Equal(g))
}

func TestValuesOfDifferentTypesNeverEqual(t *testing.T) {
	assert.False(t, IntValue(0).Equal(SetValue()))
}

func TestDeriveAdIDDeterministic(t *testing.T) {
	a := DeriveAdID(AdKindCounter, "seed-1")
	b := DeriveAdID(AdKindCounter, "seed-1")
	c := DeriveAdID(AdKindSet, "seed-1")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	parsed, err := ParseAdID(a.Hex())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)
}

func TestParseHash32(t *testing.T) {
	id := DeriveAdID(AdKindCounter, "x")

	h, err := ParseHash32(id.Hex())
	require.NoError(t, err)
	assert.Equal(t, [32]byte(id), h)

	h, err = ParseHash32("0x" + id.Hex())
	require.NoError(t, err)
	assert.Equal(t, [32]byte(id), h)

	_, err = ParseHash32("abcd")
	assert.Error(t, err)
}
