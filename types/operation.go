package types

import "fmt"

// Operation names. A predicate's tag-match clause compares against these.
const (
	OpInc       = "inc"
	OpSetAdd    = "set_add"
	OpSetDel    = "set_del"
	OpMemberAdd = "member_add"
	OpMemberDel = "member_del"
)

// Operation is a tagged payload describing one requested mutation. It is
// opaque to storage; only the predicate engine interprets it.
type Operation struct {
	Name  string `json:"name"`
	N     int64  `json:"n,omitempty"`
	Elem  string `json:"elem,omitempty"`
	Group string `json:"group,omitempty"`
	User  string `json:"user,omitempty"`
}

func Increment(n int64) Operation {
	return Operation{Name: OpInc, N: n}
}

func SetAdd(elem string) Operation {
	return Operation{Name: OpSetAdd, Elem: elem}
}

func SetDel(elem string) Operation {
	return Operation{Name: OpSetDel, Elem: elem}
}

func MemberAdd(group, user string) Operation {
	return Operation{Name: OpMemberAdd, Group: group, User: user}
}

func MemberDel(group, user string) Operation {
	return Operation{Name: OpMemberDel, Group: group, User: user}
}

func (op Operation) String() string {
	switch op.Name {
	case OpInc:
		return fmt.Sprintf("inc(%d)", op.N)
	case OpSetAdd, OpSetDel:
		return fmt.Sprintf("%s(%s)", op.Name, op.Elem)
	case OpMemberAdd, OpMemberDel:
		return fmt.Sprintf("%s(%s, %s)", op.Name, op.Group, op.User)
	}
	return fmt.Sprintf("op(%s)", op.Name)
}

// Statement is the public claim a proof artifact asserts for one transition:
// applying Op to Old under the named predicate yields New.
type Statement struct {
	Predicate string    `json:"predicate"`
	New       Value     `json:"new"`
	Old       Value     `json:"old"`
	Op        Operation `json:"op"`
}
