package service

/*
The service wires the anchor chain, the mining pool and the optional remote
ledger mirror together and exposes them to the network.
*/

import (
	"context"
	"sync"

	"anchorledger"
	"anchorledger/anchor"
	bc "anchorledger/blockchain"
	"anchorledger/mining"
	"anchorledger/remote"
	"anchorledger/utils"

	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
	"golang.org/x/xerrors"
)

// ServiceID is the onet identifier of the anchor ledger service.
var ServiceID onet.ServiceID

func init() {
	var err error
	ServiceID, err = onet.RegisterNewService(anchorledger.ServiceName, newService)
	log.ErrFatal(err)
	network.RegisterMessage(&storage{})
}

// Service is one anchor ledger node: it owns the chain, the mining pool
// and the coordinator, and serves the client API.
type Service struct {
	// We need to embed the ServiceProcessor, so that incoming messages
	// are correctly handled.
	*onet.ServiceProcessor

	cfg Config

	pool        *mining.Pool
	chain       *bc.Chain
	eth         *remote.EthereumLedger
	coordinator *anchor.Coordinator

	storage *storage

	closedMutex sync.Mutex
	closed      bool
}

var storageID = []byte("main")

// storage is used to save our data.
type storage struct {
	// AnchorsStored counts the store operations this node served.
	AnchorsStored int
	// VerificationsServed counts the verify operations this node served.
	VerificationsServed int
	sync.Mutex
}

// StoreCredentialAnchor mines an anchor block for an issued credential.
// The call returns once the block is part of the local chain; the remote
// mirror is best effort and only shows in the receipt.
func (s *Service) StoreCredentialAnchor(req *anchorledger.StoreCredentialAnchorRequest) (*anchorledger.AnchorReply, error) {
	hash, err := utils.ParseDigest32(req.CredentialHash)
	if err != nil {
		return nil, xerrors.Errorf("credentialHash: %v", err)
	}
	receipt, err := s.coordinator.StoreCredentialAnchor(bc.CredentialAnchor{
		CredentialID:   req.CredentialID,
		DID:            req.DID,
		CredentialHash: hash,
		IssuerDID:      req.IssuerDID,
	})
	if err != nil {
		return nil, err
	}
	s.countStore()
	return &anchorledger.AnchorReply{
		Local:  receipt.Local,
		Remote: receipt.Remote,
	}, nil
}

// StoreDIDAnchor mines an anchor block for a DID document.
func (s *Service) StoreDIDAnchor(req *anchorledger.StoreDIDAnchorRequest) (*anchorledger.AnchorReply, error) {
	hash, err := utils.ParseDigest32(req.DocumentHash)
	if err != nil {
		return nil, xerrors.Errorf("documentHash: %v", err)
	}
	receipt, err := s.coordinator.StoreDIDAnchor(bc.DIDAnchor{
		DID:          req.DID,
		DocumentHash: hash,
		PublicKey:    req.PublicKey,
	})
	if err != nil {
		return nil, err
	}
	s.countStore()
	return &anchorledger.AnchorReply{
		Local:  receipt.Local,
		Remote: receipt.Remote,
	}, nil
}

// VerifyAnchor answers whether a content hash is anchored, locally or on
// the remote ledger. Read-only and idempotent.
func (s *Service) VerifyAnchor(req *anchorledger.VerifyAnchorRequest) (*anchorledger.VerifyAnchorReply, error) {
	hash, err := utils.ParseDigest32(req.ContentHash)
	if err != nil {
		return nil, xerrors.Errorf("contentHash: %v", err)
	}
	v := s.coordinator.Verify(hash)
	reply := &anchorledger.VerifyAnchorReply{
		Local:    v.Local,
		Verified: v.Verified,
	}
	if v.Remote != nil {
		reply.Remote = &anchorledger.RemoteCheck{Anchored: *v.Remote}
	}
	s.countVerify()
	return reply, nil
}

// AnchorsByDID lists every anchor referencing the DID, newest first.
func (s *Service) AnchorsByDID(req *anchorledger.AnchorsByDIDRequest) (*anchorledger.AnchorsByDIDReply, error) {
	if req.DID == "" {
		return nil, xerrors.New("missing did")
	}
	res := s.coordinator.AnchorsByDID(req.DID)
	return &anchorledger.AnchorsByDIDReply{
		Blocks:       res.Blocks,
		RemoteHashes: res.RemoteHashes,
	}, nil
}

// ExportChain hands out the whole ledger, oldest first.
func (s *Service) ExportChain(req *anchorledger.ExportChainRequest) (*anchorledger.ExportChainReply, error) {
	return &anchorledger.ExportChainReply{Snapshot: s.coordinator.Export()}, nil
}

// ChainStats summarizes this node's ledger.
func (s *Service) ChainStats(req *anchorledger.ChainStatsRequest) (*anchorledger.ChainStatsReply, error) {
	reply := &anchorledger.ChainStatsReply{Stats: s.coordinator.Stats()}
	s.storage.Lock()
	reply.AnchorsStored = s.storage.AnchorsStored
	reply.VerificationsServed = s.storage.VerificationsServed
	s.storage.Unlock()
	return reply, nil
}

// ValidateChain re-validates the chain and reports the first violation.
func (s *Service) ValidateChain(req *anchorledger.ValidateChainRequest) (*anchorledger.ValidateChainReply, error) {
	if err := s.chain.Validate(); err != nil {
		return &anchorledger.ValidateChainReply{
			Valid:   false,
			Problem: err.Error(),
		}, nil
	}
	return &anchorledger.ValidateChainReply{Valid: true}, nil
}

// GetBlock serves one block: by hash when set, by index when non-negative,
// the chain head otherwise.
func (s *Service) GetBlock(req *anchorledger.BlockRequest) (*bc.Block, error) {
	var block *bc.Block
	switch {
	case req.Hash != "":
		block = s.chain.BlockByHash(req.Hash)
	case req.Index >= 0:
		block = s.chain.Block(req.Index)
	default:
		block = s.chain.Latest()
	}
	if block == nil {
		return nil, xerrors.New("no such block")
	}
	return block, nil
}

func (s *Service) countStore() {
	s.storage.Lock()
	s.storage.AnchorsStored++
	s.storage.Unlock()
	s.save()
}

func (s *Service) countVerify() {
	s.storage.Lock()
	s.storage.VerificationsServed++
	s.storage.Unlock()
	s.save()
}

// saves all data.
func (s *Service) save() {
	s.storage.Lock()
	defer s.storage.Unlock()
	err := s.Save(storageID, s.storage)
	if err != nil {
		log.Error("Couldn't save data:", err)
	}
}

// Tries to load the counters and updates the data in the service if it
// finds a valid config-file.
func (s *Service) tryLoad() error {
	s.storage = &storage{}
	msg, err := s.Load(storageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}
	var ok bool
	s.storage, ok = msg.(*storage)
	if !ok {
		return xerrors.New("Data of wrong type")
	}
	return nil
}

// TestClose stops the mining workers and the remote ledger connection. It
// is exported because tests need it before closing the servers; non-test
// code outside this package should not use it.
func (s *Service) TestClose() {
	s.closedMutex.Lock()
	defer s.closedMutex.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.pool.Stop()
	if s.eth != nil {
		s.eth.Close()
	}
}

// newService receives the context that holds information about the node
// it's running on. Saving and loading can be done using the context. The
// data will be stored in memory for tests and simulations, and on disk for
// real deployments.
func newService(c *onet.Context) (onet.Service, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	db, bucket := c.GetAdditionalBucket(chainBucket)
	pool := mining.NewPool(cfg.MiningWorkers)
	pool.Start()
	chain := bc.NewChain(cfg.Difficulty, pool, bc.NewChainDB(db, bucket))
	s := &Service{
		ServiceProcessor: onet.NewServiceProcessor(c),
		cfg:              cfg,
		pool:             pool,
		chain:            chain,
	}
	if err := chain.Initialize(); err != nil {
		pool.Stop()
		return nil, err
	}

	var ledger remote.Ledger
	if cfg.Remote.Enabled {
		eth, err := remote.NewEthereumLedger(remote.Config{
			Endpoint:        cfg.Remote.Endpoint,
			ContractAddress: cfg.Remote.ContractAddress,
			PrivateKey:      cfg.Remote.PrivateKey,
		})
		if err != nil {
			// A broken mirror config must not keep the local ledger down.
			log.Errorf("remote ledger disabled, bad configuration: %v", err)
		} else {
			s.eth = eth
			ledger = eth
		}
	}
	s.coordinator = anchor.NewCoordinator(chain, ledger, cfg.RemoteTimeout())
	s.coordinator.Probe(context.Background())

	if err := s.RegisterHandlers(
		s.StoreCredentialAnchor, s.StoreDIDAnchor, s.VerifyAnchor,
		s.AnchorsByDID, s.ExportChain, s.ChainStats, s.ValidateChain,
		s.GetBlock,
	); err != nil {
		return nil, xerrors.New("Couldn't register handlers")
	}
	if err := s.tryLoad(); err != nil {
		log.Error(err)
		return nil, err
	}
	if cfg.NTPCheck {
		go s.checkClockDrift()
	}
	return s, nil
}
