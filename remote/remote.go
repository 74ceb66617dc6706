// Package remote talks to an external smart-contract ledger that mirrors
// anchors for independent verification. The client surface is deliberately
// narrow: the contract is deployed and operated elsewhere, this side only
// stores and reads anchor digests.
package remote

import (
	"context"

	"golang.org/x/xerrors"
)

// ErrUnavailable wraps transport and contract failures, so callers can
// treat the remote ledger as one optional backend without inspecting
// causes.
var ErrUnavailable = xerrors.New("remote ledger unavailable")

// StoreResult identifies a remote anchor: the transaction that carried it
// and the block it was confirmed in.
type StoreResult struct {
	TxID        string
	BlockNumber int64
}

// Ledger is the client surface of the external anchor contract. Every call
// honors the deadline of its context; the implementations do not retry.
type Ledger interface {
	// Connect probes the connection. It runs once at startup; an error
	// disables the remote ledger for the process lifetime.
	Connect(ctx context.Context) error
	// Store anchors a content hash for a DID and waits for confirmation.
	Store(ctx context.Context, contentHash, did string) (*StoreResult, error)
	// Verify checks whether a content hash is anchored.
	Verify(ctx context.Context, contentHash string) (bool, error)
	// QueryByDID lists the content hashes anchored for a DID.
	QueryByDID(ctx context.Context, did string) ([]string, error)
}
