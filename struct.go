package anchorledger

/*
This holds the messages used to communicate with the service over the
network.
*/

import (
	"anchorledger/anchor"
	bc "anchorledger/blockchain"

	"go.dedis.ch/onet/v3/network"
)

// Register all messages so the network knows how to handle them.
func init() {
	network.RegisterMessages(
		StoreCredentialAnchorRequest{}, StoreDIDAnchorRequest{}, AnchorReply{},
		VerifyAnchorRequest{}, VerifyAnchorReply{},
	)
	network.RegisterMessages(AnchorsByDIDRequest{}, AnchorsByDIDReply{})
	network.RegisterMessages(
		ExportChainRequest{}, ExportChainReply{},
		ChainStatsRequest{}, ChainStatsReply{},
		ValidateChainRequest{}, ValidateChainReply{},
		BlockRequest{},
	)
}

// StoreCredentialAnchorRequest asks the service to anchor an issued
// credential. The credential hash must be a normalized 256 bit hex digest.
type StoreCredentialAnchorRequest struct {
	CredentialID   string
	DID            string
	CredentialHash string
	IssuerDID      string
}

// StoreDIDAnchorRequest asks the service to anchor a DID document.
type StoreDIDAnchorRequest struct {
	DID          string
	DocumentHash string
	PublicKey    string
}

// AnchorReply carries the anchoring receipt: the local anchor always, the
// remote one only when the mirror write went through.
type AnchorReply struct {
	Local  anchor.LocalAnchor
	Remote *anchor.RemoteAnchor
}

// VerifyAnchorRequest checks whether a content hash is anchored.
type VerifyAnchorRequest struct {
	ContentHash string
}

// VerifyAnchorReply answers per backend. Remote stays nil when the remote
// ledger did not participate; Verified is the OR over the backends that
// answered.
type VerifyAnchorReply struct {
	Local    bool
	Remote   *RemoteCheck
	Verified bool
}

// RemoteCheck is the remote half of a verification.
type RemoteCheck struct {
	Anchored bool
}

// AnchorsByDIDRequest lists every anchor referencing a DID.
type AnchorsByDIDRequest struct {
	DID string
}

// AnchorsByDIDReply carries the local anchors newest first, plus the
// digests the remote registry holds when it answered.
type AnchorsByDIDReply struct {
	Blocks       []*bc.Block
	RemoteHashes []string
}

// ExportChainRequest asks for the full ledger.
type ExportChainRequest struct{}

// ExportChainReply carries the whole chain, oldest first.
type ExportChainReply struct {
	Snapshot *bc.Snapshot
}

// ChainStatsRequest asks one conode for its ledger summary.
type ChainStatsRequest struct{}

// ChainStatsReply wraps the summary plus what this node served since its
// database was created.
type ChainStatsReply struct {
	Stats               *anchor.Stats
	AnchorsStored       int
	VerificationsServed int
}

// ValidateChainRequest triggers a full chain re-validation.
type ValidateChainRequest struct{}

// ValidateChainReply reports the outcome; Problem is empty for a valid
// chain.
type ValidateChainReply struct {
	Valid   bool
	Problem string
}

// BlockRequest fetches one block: by hash when Hash is set, by index when
// Index is non-negative, the chain head otherwise.
type BlockRequest struct {
	Hash  string
	Index int64
}
