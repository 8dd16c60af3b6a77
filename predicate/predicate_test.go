package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adn/types"
)

func TestEvaluateCounterInc(t *testing.T) {
	old := types.IntValue(5)
	op := types.Increment(3)

	assert.True(t, Evaluate("inc", types.IntValue(8), old, op))

	// wrong arithmetic
	assert.False(t, Evaluate("inc", types.IntValue(9), old, op))

	// wrong tag
	assert.False(t, Evaluate("inc", types.IntValue(8), old, types.SetAdd("x")))
}

func TestEvaluateCounterIncRange(t *testing.T) {
	old := types.IntValue(0)

	// boundary: n must be strictly below 10
	assert.True(t, Evaluate("inc", types.IntValue(9), old, types.Increment(9)))
	assert.False(t, Evaluate("inc", types.IntValue(10), old, types.Increment(10)))
	assert.False(t, Evaluate("inc", types.IntValue(-1), old, types.Increment(-1)))
}

func TestEvaluateUnknownPredicate(t *testing.T) {
	assert.False(t, Evaluate("no_such_rule", types.IntValue(1), types.IntValue(0), types.Increment(1)))
}

func TestEvaluateSetPredicates(t *testing.T) {
	old := types.SetValue("a", "b")

	assert.True(t, Evaluate("set_add", types.SetValue("a", "b", "c"), old, types.SetAdd("c")))
	assert.True(t, Evaluate("set_del", types.SetValue("a"), old, types.SetDel("b")))

	// inserting an existing element is a no-op, new must equal old
	assert.True(t, Evaluate("set_add", old, old, types.SetAdd("a")))
	assert.False(t, Evaluate("set_add", types.SetValue("a", "b", "a2"), old, types.SetAdd("a")))

	// removing a non-member is a no-op
	assert.True(t, Evaluate("set_del", old, old, types.SetDel("zzz")))
}

func TestEvaluateMembershipPredicates(t *testing.T) {
	old := types.GroupsValue(map[string][]string{"red": {}, "green": {"alice"}})

	assert.True(t, Evaluate("member_add",
		types.GroupsValue(map[string][]string{"red": {"bob"}, "green": {"alice"}}),
		old, types.MemberAdd("red", "bob")))

	assert.True(t, Evaluate("member_del",
		types.GroupsValue(map[string][]string{"red": {}, "green": {}}),
		old, types.MemberDel("green", "alice")))

	// unknown group never holds, even if new looks plausible
	assert.False(t, Evaluate("member_add",
		types.GroupsValue(map[string][]string{"red": {}, "green": {"alice"}, "blue": {"bob"}}),
		old, types.MemberAdd("blue", "bob")))
}

func TestExplain(t *testing.T) {
	violated, ok := Explain("inc", types.IntValue(15), types.IntValue(0), types.Increment(15))
	require.False(t, ok)
	assert.Equal(t, "0 <= op.n < 10", violated)

	violated, ok = Explain("inc", types.IntValue(3), types.IntValue(0), types.Increment(3))
	assert.True(t, ok)
	assert.Empty(t, violated)

	_, ok = Explain("no_such_rule", types.IntValue(0), types.IntValue(0), types.Operation{})
	assert.False(t, ok)
}

func TestCatalogs(t *testing.T) {
	assert.Equal(t, []string{"inc"}, CatalogFor(types.AdKindCounter))
	assert.ElementsMatch(t, []string{"set_add", "set_del"}, CatalogFor(types.AdKindSet))
	assert.True(t, InCatalog(types.AdKindSet, "set_del"))
	assert.False(t, InCatalog(types.AdKindSet, "inc"))
}

func TestCatalogHashDistinctPerKind(t *testing.T) {
	counter := CatalogHash(types.AdKindCounter)
	set := CatalogHash(types.AdKindSet)
	membership := CatalogHash(types.AdKindMembership)

	assert.NotEqual(t, counter, set)
	assert.NotEqual(t, set, membership)

	// stable across calls
	assert.Equal(t, counter, CatalogHash(types.AdKindCounter))
}
