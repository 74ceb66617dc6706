package anchorledger

/*
The api.go defines the methods that can be called from the outside. Most
of the methods will take a roster so that the service knows which nodes
it should work with.

This part of the service runs on the client or the app.
*/

import (
	bc "anchorledger/blockchain"

	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
)

// ServiceName is used for registration on the onet.
const ServiceName = "AnchorLedger"

// Client is a structure to communicate with the anchor ledger service.
type Client struct {
	*onet.Client
}

// NewClient instantiates a new anchorledger.Client.
func NewClient() *Client {
	return &Client{Client: onet.NewClient(cothority.Suite, ServiceName)}
}

// StoreCredentialAnchor anchors an issued credential and returns the
// receipt. The call blocks while the block is mined.
func (c *Client) StoreCredentialAnchor(r *onet.Roster, req *StoreCredentialAnchorRequest) (*AnchorReply, error) {
	dst := r.RandomServerIdentity()
	log.Lvl4("Sending message to", dst)
	reply := &AnchorReply{}
	err := c.SendProtobuf(dst, req, reply)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// StoreDIDAnchor anchors a DID document and returns the receipt.
func (c *Client) StoreDIDAnchor(r *onet.Roster, req *StoreDIDAnchorRequest) (*AnchorReply, error) {
	dst := r.RandomServerIdentity()
	log.Lvl4("Sending message to", dst)
	reply := &AnchorReply{}
	err := c.SendProtobuf(dst, req, reply)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// VerifyAnchor asks whether the given content hash is anchored, locally or
// on the remote ledger.
func (c *Client) VerifyAnchor(r *onet.Roster, contentHash string) (*VerifyAnchorReply, error) {
	dst := r.RandomServerIdentity()
	log.Lvl4("Sending message to", dst)
	reply := &VerifyAnchorReply{}
	err := c.SendProtobuf(dst, &VerifyAnchorRequest{ContentHash: contentHash}, reply)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// AnchorsByDID lists every anchor referencing the DID, newest first.
func (c *Client) AnchorsByDID(r *onet.Roster, did string) (*AnchorsByDIDReply, error) {
	dst := r.RandomServerIdentity()
	log.Lvl4("Sending message to", dst)
	reply := &AnchorsByDIDReply{}
	err := c.SendProtobuf(dst, &AnchorsByDIDRequest{DID: did}, reply)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// ExportChain downloads the whole ledger, oldest first.
func (c *Client) ExportChain(r *onet.Roster) (*bc.Snapshot, error) {
	dst := r.RandomServerIdentity()
	log.Lvl4("Sending message to", dst)
	reply := &ExportChainReply{}
	err := c.SendProtobuf(dst, &ExportChainRequest{}, reply)
	if err != nil {
		return nil, err
	}
	return reply.Snapshot, nil
}

// ChainStats returns the ledger summary of one specific conode. Stats are
// node-local: uptime, counters and the remote ledger state describe that
// process only.
func (c *Client) ChainStats(si *network.ServerIdentity) (*ChainStatsReply, error) {
	reply := &ChainStatsReply{}
	err := c.SendProtobuf(si, &ChainStatsRequest{}, reply)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// ValidateChain asks a conode to re-validate its chain.
func (c *Client) ValidateChain(r *onet.Roster) (*ValidateChainReply, error) {
	dst := r.RandomServerIdentity()
	log.Lvl4("Sending message to", dst)
	reply := &ValidateChainReply{}
	err := c.SendProtobuf(dst, &ValidateChainRequest{}, reply)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// GetBlock fetches one block: by hash when hash is non-empty, by index when
// index is non-negative, the chain head otherwise.
func (c *Client) GetBlock(r *onet.Roster, hash string, index int64) (*bc.Block, error) {
	dst := r.RandomServerIdentity()
	log.Lvl4("Sending message to", dst)
	reply := &bc.Block{}
	err := c.SendProtobuf(dst, &BlockRequest{Hash: hash, Index: index}, reply)
	if err != nil {
		return nil, err
	}
	return reply, nil
}
