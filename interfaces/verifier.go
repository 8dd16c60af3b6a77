package interfaces

// Verifier checks the opaque proof carried by an update artifact against the
// hash of its statement chain.
type Verifier interface {
	Verify(proof []byte, statementsHash [32]byte) bool
}
