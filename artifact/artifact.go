// Package artifact models the proof artifact: an ordered, non-empty chain of
// statements covered by one opaque proof, plus its feed wire encoding.
package artifact

import (
	"adn/errors"
	"adn/predicate"
	"adn/types"
	"golang.org/x/crypto/sha3"
)

// Artifact is one or more chained statements plus the cryptographic proof
// covering exactly that sequence. A single-statement artifact is a direct
// update; a longer chain batches several transitions into one proof.
type Artifact struct {
	ADID       types.AdID        `json:"ad_id"`
	Statements []types.Statement `json:"statements"`
	Proof      []byte            `json:"proof"`
}

// StartingState is the chain's declared old state, the value the AD must
// currently hold for the artifact to apply.
func (a *Artifact) StartingState() types.Value {
	return a.Statements[0].Old
}

// ResultingState is the final statement's new value.
func (a *Artifact) ResultingState() types.Value {
	return a.Statements[len(a.Statements)-1].New
}

// ValidateChain checks a batched statement sequence as an all-or-nothing
// left fold: statement k's old must equal statement k-1's new, statement 0's
// old must equal expectedOld, and every link must satisfy its predicate. On
// success it returns the chain's resulting state; any single broken link
// rejects the entire sequence.
func ValidateChain(statements []types.Statement, expectedOld types.Value) (types.Value, error) {
	if len(statements) == 0 {
		return types.Value{}, errors.New(errors.ErrCodeEmptyChain,
			"artifact must assert at least one transition")
	}
	running := expectedOld
	for i, st := range statements {
		if !st.Old.Equal(running) {
			return types.Value{}, errors.New(errors.ErrCodeChainMismatch,
				"statement %d old state does not extend the chain", i)
		}
		if !predicate.Evaluate(st.Predicate, st.New, st.Old, st.Op) {
			return types.Value{}, errors.New(errors.ErrCodePredicateViolation,
				"statement %d fails predicate %q for %s", i, st.Predicate, st.Op)
		}
		running = st.New
	}
	return running, nil
}

// StatementsHash commits to an exact statement sequence. The proof of an
// artifact is only meaningful for this hash; the verifier binds it to the
// proof's public inputs.
func StatementsHash(statements []types.Statement) [32]byte {
	h := sha3.New256()
	for _, st := range statements {
		h.Write([]byte(st.Predicate))
		h.Write([]byte{0})
		h.Write(st.Old.Canonical())
		h.Write(st.New.Canonical())
		opc, _ := canonicalOp(st.Op)
		h.Write(opc)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
