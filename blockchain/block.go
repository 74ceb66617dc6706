package blockchain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/xerrors"
)

// GenesisPrevHash is the previous-hash sentinel of the genesis block.
const GenesisPrevHash = "0"

// Block is one entry of the anchor chain. Hashes are lowercase hex strings,
// so the canonical preimage and the stored form stay identical across
// process boundaries; the genesis block carries the literal "0" as its
// previous hash.
type Block struct {
	// Index of the block in the chain. Index = 0 -> genesis block.
	Index int64 `json:"index"`
	// Hash of the previous block, hex encoded.
	PreviousHash string `json:"previousHash"`
	// Time the block was created, epoch milliseconds.
	Timestamp int64 `json:"timestamp"`
	// Data carried by the block.
	Data Payload `json:"data"`
	// Nonce found by the proof-of-work search.
	Nonce int64 `json:"nonce"`
	// Hash of the block itself, hex encoded.
	Hash string `json:"hash"`
}

// NewBlock builds the successor candidate of prev carrying the given
// payload. The hash is left empty: the candidate only becomes valid once a
// nonce has been mined for it.
func NewBlock(prev *Block, data *Payload, timestamp int64) *Block {
	return &Block{
		Index:        prev.Index + 1,
		PreviousHash: prev.Hash,
		Timestamp:    timestamp,
		Data:         *data.Copy(),
	}
}

// CalculateHash hashes the canonical preimage of the block: index, previous
// hash, timestamp, canonical payload encoding and nonce, in that order.
// Integers are written little endian, hashes as their hex text.
func (b *Block) CalculateHash() (string, error) {
	data, err := b.Data.Canonical()
	if err != nil {
		return "", err
	}
	hash := sha256.New()
	if err := binary.Write(hash, binary.LittleEndian, b.Index); err != nil {
		return "", xerrors.Errorf("error writing to hash: %v", err)
	}
	hash.Write([]byte(b.PreviousHash))
	if err := binary.Write(hash, binary.LittleEndian, b.Timestamp); err != nil {
		return "", xerrors.Errorf("error writing to hash: %v", err)
	}
	hash.Write(data)
	if err := binary.Write(hash, binary.LittleEndian, b.Nonce); err != nil {
		return "", xerrors.Errorf("error writing to hash: %v", err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Verify recomputes the hash over the current field values and compares it
// to the stored one. Any mutation of a hashed field makes it fail.
func (b *Block) Verify() (bool, error) {
	hash, err := b.CalculateHash()
	if err != nil {
		return false, err
	}
	return hash == b.Hash, nil
}

// Copy makes a deep copy of the Block.
func (b *Block) Copy() *Block {
	if b == nil {
		return nil
	}
	block := *b
	block.Data = *b.Data.Copy()
	return &block
}

// Short returns an abbreviated hash for logs.
func (b *Block) Short() string {
	if len(b.Hash) < 8 {
		return b.Hash
	}
	return b.Hash[:8]
}

func (b *Block) String() string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Block %d", b.Index))
	builder.WriteString(fmt.Sprintf("\n\tKind: %s", b.Data.Kind))
	builder.WriteString(fmt.Sprintf("\n\tTimestamp: %s",
		time.Unix(0, b.Timestamp*int64(time.Millisecond)).UTC().Format("2006-01-02 15:04:05")))
	builder.WriteString(fmt.Sprintf("\n\tPreviousHash: %s", b.PreviousHash))
	builder.WriteString(fmt.Sprintf("\n\tNonce: %d", b.Nonce))
	builder.WriteString(fmt.Sprintf("\n\tHash: %s", b.Hash))
	return builder.String()
}
