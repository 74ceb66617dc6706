package blockchain

// Genesis parameters. Every field of the genesis block is a fixed constant,
// so the genesis hash is reproducible across processes; GenesisHash pins it.
const (
	// GenesisTimestamp is the creation time of the genesis block,
	// epoch milliseconds.
	GenesisTimestamp int64 = 1735689600000 // 2025-01-01

	// GenesisMessage is the system message carried by the genesis payload.
	GenesisMessage = "anchorledger genesis block"

	// GenesisHash is the hash of the genesis block.
	GenesisHash = "38954d99737617a2c9dab537634975e474792e85388c751c35cfdc73bdf365a7"
)

// NewGenesisBlock builds the fixed first block of the chain. The genesis
// block is not mined: its nonce stays zero and its hash is exempt from the
// difficulty check.
func NewGenesisBlock() (*Block, error) {
	b := &Block{
		Index:        0,
		PreviousHash: GenesisPrevHash,
		Timestamp:    GenesisTimestamp,
		Data:         *newGenesisPayload(),
		Nonce:        0,
	}
	hash, err := b.CalculateHash()
	if err != nil {
		return nil, err
	}
	b.Hash = hash
	return b, nil
}
