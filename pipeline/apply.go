package pipeline

import (
	"adn/errors"
	"adn/types"
)

// applyOperation computes the state an operation would produce from the
// current one. The result feeds the statement the prover is asked to prove;
// whether the transition is allowed is the predicate's call, not this one's.
func applyOperation(kind types.AdKind, state types.Value, op types.Operation) (types.Value, error) {
	switch kind {
	case types.AdKindCounter:
		if op.Name == types.OpInc {
			return types.IntValue(state.Int + op.N), nil
		}
	case types.AdKindSet:
		switch op.Name {
		case types.OpSetAdd:
			return state.WithElem(op.Elem), nil
		case types.OpSetDel:
			return state.WithoutElem(op.Elem), nil
		}
	case types.AdKindMembership:
		switch op.Name {
		case types.OpMemberAdd:
			return state.WithMember(op.Group, op.User), nil
		case types.OpMemberDel:
			return state.WithoutMember(op.Group, op.User), nil
		}
	}
	return types.Value{}, errors.New(errors.ErrCodeInvalidOperation, "operation %q is not valid for a %s ad", op.Name, kind)
}
