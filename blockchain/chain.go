package blockchain

import (
	"sync"

	"anchorledger/utils"

	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// Miner runs the proof-of-work search for a candidate block, writing the
// found nonce and hash into the block before returning.
type Miner interface {
	Mine(block *Block, difficulty int) error
}

// Chain is the append-only anchor ledger: the genesis block plus every
// anchor mined since, kept in memory and mirrored to a snapshot store.
// Appends serialize on the embedded mutex, mine, push and persist included,
// so the chain never holds two blocks for one head.
type Chain struct {
	sync.Mutex
	difficulty int
	miner      Miner
	db         *ChainDB // nil keeps the chain in memory only
	blocks     []*Block
}

// NewChain assembles a ledger from its fixed proof-of-work difficulty,
// miner and snapshot store. Difficulties below one fall back to the
// default. The chain is empty until Initialize ran.
func NewChain(difficulty int, miner Miner, db *ChainDB) *Chain {
	if difficulty < 1 {
		difficulty = DefaultDifficulty
	}
	return &Chain{
		difficulty: difficulty,
		miner:      miner,
		db:         db,
	}
}

// Initialize loads the persisted snapshot or, when there is none, mints a
// fresh genesis chain. A snapshot that cannot be read or does not validate
// is discarded for a fresh genesis chain: that is a loud data-loss event,
// never a fatal one.
func (c *Chain) Initialize() error {
	c.Lock()
	defer c.Unlock()

	if c.db != nil {
		blocks, err := c.db.LoadSnapshot()
		switch {
		case err != nil:
			log.Errorf("cannot read chain snapshot, starting from genesis: %v", err)
		case len(blocks) > 0:
			if err := validateChain(blocks, c.difficulty); err != nil {
				log.Errorf("discarding stored chain of %d block(s), "+
					"starting from genesis: %v", len(blocks), err)
			} else {
				c.blocks = blocks
				log.Lvl2("loaded chain at height", len(blocks)-1)
				return nil
			}
		}
	}

	genesis, err := NewGenesisBlock()
	if err != nil {
		return xerrors.Errorf("creating genesis block: %v", err)
	}
	c.blocks = []*Block{genesis}
	c.persist()
	log.Lvl2("initialized fresh chain with genesis block", genesis.Short())
	return nil
}

// Append validates the payload, mines a successor block for it and makes
// it the new head. Mine, push and persist form one critical section, so
// concurrent appends line up and each one sees the head its predecessor
// left behind.
func (c *Chain) Append(p *Payload) (*Block, error) {
	if p == nil {
		return nil, xerrors.Errorf("nil payload: %w", ErrValidation)
	}
	if p.Kind == KindGenesis {
		return nil, xerrors.Errorf("genesis payload cannot be appended: %w",
			ErrValidation)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	c.Lock()
	defer c.Unlock()

	if len(c.blocks) == 0 {
		return nil, xerrors.Errorf("chain is not initialized: %w", ErrIntegrity)
	}
	if c.miner == nil {
		return nil, xerrors.New("chain has no miner configured")
	}
	block := NewBlock(c.latest(), p, utils.NowMillis())
	if err := c.miner.Mine(block, c.difficulty); err != nil {
		return nil, xerrors.Errorf("mining block %d: %v", block.Index, err)
	}
	c.blocks = append(c.blocks, block)
	c.persist()
	log.Lvlf2("appended block %d %s (kind %s)", block.Index, block.Short(),
		block.Data.Kind)
	return block.Copy(), nil
}

// persist mirrors the chain to the snapshot store, logging instead of
// failing: a storage outage must not take down an append that already
// happened in memory.
func (c *Chain) persist() {
	if c.db == nil {
		return
	}
	if err := c.db.StoreSnapshot(c.blocks); err != nil {
		log.Errorf("chain snapshot not persisted: %v", err)
	}
}

// Validate re-checks the whole chain against its difficulty.
func (c *Chain) Validate() error {
	c.Lock()
	defer c.Unlock()
	return validateChain(c.blocks, c.difficulty)
}

// validateChain walks the blocks and checks, fail fast, that the position
// matches the index, every stored hash recomputes, every link holds and
// every non-genesis hash carries the difficulty prefix. The genesis block
// is the bootstrap special case: unmined, so exempt from the difficulty
// check, but it must link to the fixed sentinel.
func validateChain(blocks []*Block, difficulty int) error {
	if len(blocks) == 0 {
		return xerrors.Errorf("empty chain: %w", ErrIntegrity)
	}
	for i, b := range blocks {
		if b == nil {
			return xerrors.Errorf("block at position %d is nil: %w",
				i, ErrIntegrity)
		}
		if b.Index != int64(i) {
			return xerrors.Errorf("block at position %d carries index %d: %w",
				i, b.Index, ErrIntegrity)
		}
		ok, err := b.Verify()
		if err != nil {
			return xerrors.Errorf("block %d: %v: %w", b.Index, err, ErrIntegrity)
		}
		if !ok {
			return xerrors.Errorf("block %d: stored hash does not match "+
				"content: %w", b.Index, ErrIntegrity)
		}
		if i == 0 {
			if b.PreviousHash != GenesisPrevHash {
				return xerrors.Errorf("genesis block links to %q: %w",
					b.PreviousHash, ErrIntegrity)
			}
			continue
		}
		if b.PreviousHash != blocks[i-1].Hash {
			return xerrors.Errorf("block %d does not link to its "+
				"predecessor: %w", b.Index, ErrIntegrity)
		}
		if !MeetsDifficulty(b.Hash, difficulty) {
			return xerrors.Errorf("block %d misses difficulty %d: %w",
				b.Index, difficulty, ErrIntegrity)
		}
	}
	return nil
}

func (c *Chain) latest() *Block {
	return c.blocks[len(c.blocks)-1]
}

// Latest returns a copy of the chain head, or nil before Initialize.
func (c *Chain) Latest() *Block {
	c.Lock()
	defer c.Unlock()
	if len(c.blocks) == 0 {
		return nil
	}
	return c.latest().Copy()
}

// FindByCredentialID returns the most recent block anchoring the given
// credential id, or nil. The scan runs newest first, so a re-anchored
// credential resolves to its latest anchor.
func (c *Chain) FindByCredentialID(id string) *Block {
	c.Lock()
	defer c.Unlock()
	for i := len(c.blocks) - 1; i >= 0; i-- {
		ca := c.blocks[i].Data.Credential
		if ca != nil && ca.CredentialID == id {
			return c.blocks[i].Copy()
		}
	}
	return nil
}

// FindByDID returns the most recent block whose payload references the
// DID, or nil.
func (c *Chain) FindByDID(did string) *Block {
	c.Lock()
	defer c.Unlock()
	for i := len(c.blocks) - 1; i >= 0; i-- {
		if c.blocks[i].Data.ReferencesDID(did) {
			return c.blocks[i].Copy()
		}
	}
	return nil
}

// AnchorsByDID returns every block referencing the DID, newest first.
func (c *Chain) AnchorsByDID(did string) []*Block {
	c.Lock()
	defer c.Unlock()
	var blocks []*Block
	for i := len(c.blocks) - 1; i >= 0; i-- {
		if c.blocks[i].Data.ReferencesDID(did) {
			blocks = append(blocks, c.blocks[i].Copy())
		}
	}
	return blocks
}

// Exists reports whether any block anchors the given content hash.
func (c *Chain) Exists(contentHash string) bool {
	c.Lock()
	defer c.Unlock()
	for i := len(c.blocks) - 1; i >= 0; i-- {
		if c.blocks[i].Data.MatchesHash(contentHash) {
			return true
		}
	}
	return false
}

// Block returns a copy of the block at the given index, or nil.
func (c *Chain) Block(index int64) *Block {
	c.Lock()
	defer c.Unlock()
	if index < 0 || index >= int64(len(c.blocks)) {
		return nil
	}
	return c.blocks[index].Copy()
}

// BlockByHash returns a copy of the block with the given block hash, or
// nil.
func (c *Chain) BlockByHash(hash string) *Block {
	c.Lock()
	defer c.Unlock()
	for i := len(c.blocks) - 1; i >= 0; i-- {
		if c.blocks[i].Hash == hash {
			return c.blocks[i].Copy()
		}
	}
	return nil
}

// Blocks returns a deep copy of the whole chain, oldest first.
func (c *Chain) Blocks() []*Block {
	c.Lock()
	defer c.Unlock()
	blocks := make([]*Block, len(c.blocks))
	for i, b := range c.blocks {
		blocks[i] = b.Copy()
	}
	return blocks
}

// Length returns the number of blocks, genesis included.
func (c *Chain) Length() int {
	c.Lock()
	defer c.Unlock()
	return len(c.blocks)
}

// Difficulty returns the fixed proof-of-work difficulty of the chain.
func (c *Chain) Difficulty() int {
	return c.difficulty
}

// Totals counts the anchored payloads by kind, genesis excluded.
func (c *Chain) Totals() (credentials, dids int64) {
	c.Lock()
	defer c.Unlock()
	for _, b := range c.blocks {
		switch b.Data.Kind {
		case KindCredential:
			credentials++
		case KindDID:
			dids++
		}
	}
	return
}
