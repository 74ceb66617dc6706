package blockchain

import "golang.org/x/xerrors"

// Error categories of the ledger. Call sites wrap them with context, so
// callers can test the category with xerrors.Is.
var (
	// ErrValidation rejects a malformed anchor payload before any mining
	// work is spent on it.
	ErrValidation = xerrors.New("invalid anchor payload")

	// ErrIntegrity marks a chain whose recomputed hashes, links or
	// difficulty prefixes do not hold.
	ErrIntegrity = xerrors.New("chain integrity violation")

	// ErrPersistence marks a snapshot read or write failure.
	ErrPersistence = xerrors.New("chain persistence failure")
)
