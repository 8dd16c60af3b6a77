package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"

	"adn/jsonx"
	"golang.org/x/crypto/sha3"
)

// ValueType tags the variant held by a Value.
type ValueType string

const (
	ValueInt    ValueType = "int"
	ValueSet    ValueType = "set"
	ValueGroups ValueType = "groups"
)

// DefaultGroups is the fixed group universe of a membership list AD.
var DefaultGroups = []string{"red", "green", "blue"}

// Value is the application state universe: a counter, an ordered unique set,
// or a membership list (group name -> set of users). Values are immutable;
// mutating helpers return a normalized copy. Equality and commitments are
// defined over the canonical JSON encoding, so two independently derived
// values compare bit-for-bit.
type Value struct {
	Type   ValueType           `json:"type"`
	Int    int64               `json:"int,omitempty"`
	Elems  []string            `json:"elems,omitempty"`
	Groups map[string][]string `json:"groups,omitempty"`
}

func IntValue(n int64) Value {
	return Value{Type: ValueInt, Int: n}
}

func SetValue(elems ...string) Value {
	return Value{Type: ValueSet, Elems: normalizeElems(elems)}
}

func GroupsValue(groups map[string][]string) Value {
	norm := make(map[string][]string, len(groups))
	for g, users := range groups {
		norm[g] = normalizeNonNil(users)
	}
	return Value{Type: ValueGroups, Groups: norm}
}

// Empty returns the implicit state of an AD before any transition is
// recorded: zero for counters, the empty collection for sets, and every
// registered group mapped to the empty set for membership lists.
func Empty(kind AdKind) Value {
	switch kind {
	case AdKindCounter:
		return IntValue(0)
	case AdKindSet:
		return Value{Type: ValueSet}
	case AdKindMembership:
		groups := make(map[string][]string, len(DefaultGroups))
		for _, g := range DefaultGroups {
			groups[g] = []string{}
		}
		return Value{Type: ValueGroups, Groups: groups}
	}
	return Value{}
}

// Canonical returns the canonical byte encoding of v. Map keys are sorted by
// the encoder and collections are kept sorted at construction time, so the
// encoding is deterministic.
func (v Value) Canonical() []byte {
	data, err := jsonx.Marshal(v.normalized())
	if err != nil {
		// Value contains only marshalable fields
		panic(fmt.Sprintf("canonical encoding failed: %v", err))
	}
	return data
}

// Commitment is the 32-byte SHA3-256 digest of the canonical encoding.
func (v Value) Commitment() [32]byte {
	return sha3.Sum256(v.Canonical())
}

func (v Value) CommitmentHex() string {
	c := v.Commitment()
	return hex.EncodeToString(c[:])
}

func (v Value) Equal(other Value) bool {
	return bytes.Equal(v.Canonical(), other.Canonical())
}

// Contains reports set membership. Only meaningful for set values.
func (v Value) Contains(elem string) bool {
	for _, e := range v.Elems {
		if e == elem {
			return true
		}
	}
	return false
}

// WithElem returns v with elem inserted. Inserting an existing element is a
// no-op that still yields the identical canonical value.
func (v Value) WithElem(elem string) Value {
	return SetValue(append(append([]string{}, v.Elems...), elem)...)
}

// WithoutElem returns v with elem removed; removing a non-member is a no-op.
func (v Value) WithoutElem(elem string) Value {
	out := make([]string, 0, len(v.Elems))
	for _, e := range v.Elems {
		if e != elem {
			out = append(out, e)
		}
	}
	return Value{Type: ValueSet, Elems: normalizeElems(out)}
}

// GroupContains reports whether user is a member of group.
func (v Value) GroupContains(group, user string) bool {
	for _, u := range v.Groups[group] {
		if u == user {
			return true
		}
	}
	return false
}

// HasGroup reports whether group is part of the value's group universe.
func (v Value) HasGroup(group string) bool {
	_, ok := v.Groups[group]
	return ok
}

// WithMember returns v with user added to group; adding an existing member is
// a no-op with the identical resulting value.
func (v Value) WithMember(group, user string) Value {
	out := copyGroups(v.Groups)
	out[group] = normalizeNonNil(append(append([]string{}, out[group]...), user))
	return Value{Type: ValueGroups, Groups: out}
}

// WithoutMember returns v with user removed from group; removing a non-member
// is a no-op.
func (v Value) WithoutMember(group, user string) Value {
	out := copyGroups(v.Groups)
	kept := make([]string, 0, len(out[group]))
	for _, u := range out[group] {
		if u != user {
			kept = append(kept, u)
		}
	}
	out[group] = kept
	return Value{Type: ValueGroups, Groups: out}
}

// normalized flattens the nil vs empty-slice distinction so that canonical
// encodings compare reliably.
func (v Value) normalized() Value {
	out := Value{Type: v.Type, Int: v.Int}
	if len(v.Elems) > 0 {
		out.Elems = normalizeElems(v.Elems)
	}
	if v.Groups != nil {
		out.Groups = make(map[string][]string, len(v.Groups))
		for g, users := range v.Groups {
			out.Groups[g] = normalizeNonNil(users)
		}
	}
	return out
}

func normalizeElems(elems []string) []string {
	if len(elems) == 0 {
		return nil
	}
	return normalizeNonNil(elems)
}

func normalizeNonNil(elems []string) []string {
	out := make([]string, 0, len(elems))
	seen := make(map[string]struct{}, len(elems))
	for _, e := range elems {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

func copyGroups(groups map[string][]string) map[string][]string {
	out := make(map[string][]string, len(groups))
	for g, users := range groups {
		out[g] = append([]string{}, users...)
	}
	return out
}
