// Package predicate decides whether a claimed state transition is legal.
//
// A predicate is a named conjunction of independently checkable clauses over
// (new, old, operation). The catalog is an explicit, fixed set of clause
// kinds rather than free-form code: that is what keeps re-evaluation by an
// untrusted verifier cheap and reproducible. Evaluation is pure and total;
// anything unrecognized evaluates to false instead of failing.
package predicate

import (
	"fmt"

	"adn/types"
	"golang.org/x/crypto/sha3"
)

// Clause is one independently checkable condition of a transition rule.
type Clause interface {
	Holds(new, old types.Value, op types.Operation) bool
	Describe() string
}

// Predicate is a named AND over clauses.
type Predicate struct {
	Name    string
	Clauses []Clause
}

// tagIs requires the operation discriminant to equal a literal.
type tagIs struct {
	name string
}

func (c tagIs) Holds(_, _ types.Value, op types.Operation) bool {
	return op.Name == c.name
}

func (c tagIs) Describe() string {
	return fmt.Sprintf("op.name == %q", c.name)
}

// intRange bounds the operation's numeric field: low <= n < high.
type intRange struct {
	low, high int64
}

func (c intRange) Holds(_, _ types.Value, op types.Operation) bool {
	return op.N >= c.low && op.N < c.high
}

func (c intRange) Describe() string {
	return fmt.Sprintf("%d <= op.n < %d", c.low, c.high)
}

// sumOf requires new = old + n over integer states.
type sumOf struct{}

func (sumOf) Holds(new, old types.Value, op types.Operation) bool {
	if new.Type != types.ValueInt || old.Type != types.ValueInt {
		return false
	}
	return new.Int == old.Int+op.N
}

func (sumOf) Describe() string {
	return "new == old + op.n"
}

// setInsert requires new = old U {elem}. Inserting an existing element is a
// no-op but new must still equal the predicted value bit-for-bit.
type setInsert struct{}

func (setInsert) Holds(new, old types.Value, op types.Operation) bool {
	if new.Type != types.ValueSet || old.Type != types.ValueSet {
		return false
	}
	return new.Equal(old.WithElem(op.Elem))
}

func (setInsert) Describe() string {
	return "new == old U {op.elem}"
}

// setDelete requires new = old \ {elem}; removing a non-member is a no-op.
type setDelete struct{}

func (setDelete) Holds(new, old types.Value, op types.Operation) bool {
	if new.Type != types.ValueSet || old.Type != types.ValueSet {
		return false
	}
	return new.Equal(old.WithoutElem(op.Elem))
}

func (setDelete) Describe() string {
	return "new == old \\ {op.elem}"
}

// groupInsert requires new = old with op.user added to the existing group
// op.group.
type groupInsert struct{}

func (groupInsert) Holds(new, old types.Value, op types.Operation) bool {
	if new.Type != types.ValueGroups || old.Type != types.ValueGroups {
		return false
	}
	if !old.HasGroup(op.Group) {
		return false
	}
	return new.Equal(old.WithMember(op.Group, op.User))
}

func (groupInsert) Describe() string {
	return "new == old with op.user in old[op.group]"
}

// groupDelete requires new = old with op.user removed from the existing group
// op.group.
type groupDelete struct{}

func (groupDelete) Holds(new, old types.Value, op types.Operation) bool {
	if new.Type != types.ValueGroups || old.Type != types.ValueGroups {
		return false
	}
	if !old.HasGroup(op.Group) {
		return false
	}
	return new.Equal(old.WithoutMember(op.Group, op.User))
}

func (groupDelete) Describe() string {
	return "new == old without op.user in old[op.group]"
}

// The registry is populated once at package init and immutable afterwards:
// an AD cannot silently change its transition rules.
var (
	registry = map[string]Predicate{}
	catalogs = map[types.AdKind][]string{}
)

func register(kind types.AdKind, p Predicate) {
	registry[p.Name] = p
	catalogs[kind] = append(catalogs[kind], p.Name)
}

func init() {
	register(types.AdKindCounter, Predicate{
		Name: "inc",
		Clauses: []Clause{
			tagIs{types.OpInc},
			intRange{0, 10},
			sumOf{},
		},
	})
	register(types.AdKindSet, Predicate{
		Name: "set_add",
		Clauses: []Clause{
			tagIs{types.OpSetAdd},
			setInsert{},
		},
	})
	register(types.AdKindSet, Predicate{
		Name: "set_del",
		Clauses: []Clause{
			tagIs{types.OpSetDel},
			setDelete{},
		},
	})
	register(types.AdKindMembership, Predicate{
		Name: "member_add",
		Clauses: []Clause{
			tagIs{types.OpMemberAdd},
			groupInsert{},
		},
	})
	register(types.AdKindMembership, Predicate{
		Name: "member_del",
		Clauses: []Clause{
			tagIs{types.OpMemberDel},
			groupDelete{},
		},
	})
}

// Evaluate reports whether the transition (old -> new under op) satisfies the
// named predicate. Unknown predicate names evaluate to false; Evaluate never
// returns an error because "invalid" is a value here, not a failure.
func Evaluate(name string, new, old types.Value, op types.Operation) bool {
	p, ok := registry[name]
	if !ok {
		return false
	}
	for _, c := range p.Clauses {
		if !c.Holds(new, old, op) {
			return false
		}
	}
	return true
}

// Explain returns the description of the first violated clause, or ok=true
// when the predicate holds. Used by the pipeline to reject doomed requests
// before any proof is attempted.
func Explain(name string, new, old types.Value, op types.Operation) (violated string, ok bool) {
	p, found := registry[name]
	if !found {
		return fmt.Sprintf("unknown predicate %q", name), false
	}
	for _, c := range p.Clauses {
		if !c.Holds(new, old, op) {
			return c.Describe(), false
		}
	}
	return "", true
}

// CatalogFor returns the predicate names registered for an AD kind.
func CatalogFor(kind types.AdKind) []string {
	return append([]string{}, catalogs[kind]...)
}

// InCatalog reports whether the named predicate belongs to the kind's catalog.
func InCatalog(kind types.AdKind, name string) bool {
	for _, n := range catalogs[kind] {
		if n == name {
			return true
		}
	}
	return false
}

// CatalogHash commits to the kind's predicate catalog. It travels inside the
// Init payload so that the rules an AD was created with are pinned on the
// feed itself.
func CatalogHash(kind types.AdKind) [32]byte {
	h := sha3.New256()
	h.Write([]byte{byte(kind)})
	for _, name := range catalogs[kind] {
		h.Write([]byte(name))
		h.Write([]byte{0})
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ForName looks up a registered predicate.
func ForName(name string) (Predicate, bool) {
	p, ok := registry[name]
	return p, ok
}
