package interfaces

import (
	"context"

	"adn/types"
)

// Prover produces the proof bytes for a statement chain.
type Prover interface {
	Prove(ctx context.Context, adID types.AdID, statements []types.Statement) ([]byte, error)
}
