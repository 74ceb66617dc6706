package blockchain

import "go.dedis.ch/onet/v3/network"

func init() {
	network.RegisterMessage(&Block{})
	network.RegisterMessage(&Snapshot{})
}

// Snapshot is the persisted form of the whole chain: the ordered array of
// block records, serialized as a single document. Array position and block
// index must agree, which load checks before adopting a snapshot.
type Snapshot struct {
	Blocks []*Block `json:"blocks"`
}
