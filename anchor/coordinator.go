// Package anchor coordinates the local proof-of-work ledger with the
// optional remote smart-contract ledger. The local chain is authoritative
// and required; the remote ledger is a best-effort mirror that can only
// ever add confidence, never block an operation.
package anchor

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	bc "anchorledger/blockchain"
	"anchorledger/remote"
	"anchorledger/utils"

	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/onet/v3/log"
)

// DefaultRemoteTimeout bounds every remote ledger call, so a hung contract
// network can at most delay a request by this much.
const DefaultRemoteTimeout = 5 * time.Second

// RemoteState is the lifecycle of the remote ledger attachment.
type RemoteState int32

const (
	// Uninitialized means the coordinator exists but has not probed yet.
	Uninitialized RemoteState = iota
	// Probing means the one-shot startup probe is running.
	Probing
	// Enabled means the probe succeeded and remote operations run best
	// effort.
	Enabled
	// Disabled means no client was configured or the probe failed.
	// Terminal until the process restarts.
	Disabled
)

func (s RemoteState) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Probing:
		return "probing"
	case Enabled:
		return "enabled"
	case Disabled:
		return "disabled"
	}
	return "unknown"
}

// Coordinator is the anchoring facade the vault and DID services talk to.
type Coordinator struct {
	chain  *bc.Chain
	remote remote.Ledger

	stateMutex sync.Mutex
	state      RemoteState

	timeout time.Duration
	started time.Time
	token   string
}

// NewCoordinator wires the facade. A nil remote ledger fixes the state
// machine to Disabled at the first Probe; a non-positive timeout falls back
// to the default.
func NewCoordinator(chain *bc.Chain, rl remote.Ledger, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	var token [16]byte
	random.Bytes(token[:], random.New())
	return &Coordinator{
		chain:   chain,
		remote:  rl,
		state:   Uninitialized,
		timeout: timeout,
		started: time.Now(),
		token:   hex.EncodeToString(token[:]),
	}
}

// Probe runs the one-shot startup probe deciding whether the remote ledger
// participates. The resulting state is terminal for the process lifetime:
// a network that comes up later is only picked up by a restart. Calling
// Probe again returns the settled state.
func (co *Coordinator) Probe(ctx context.Context) RemoteState {
	co.stateMutex.Lock()
	if co.state != Uninitialized {
		settled := co.state
		co.stateMutex.Unlock()
		return settled
	}
	co.state = Probing
	co.stateMutex.Unlock()

	next := Disabled
	if co.remote == nil {
		log.Lvl2("no remote ledger configured, anchoring locally only")
	} else {
		pctx, cancel := context.WithTimeout(ctx, co.timeout)
		defer cancel()
		if err := co.remote.Connect(pctx); err != nil {
			log.Warnf("remote ledger probe failed, continuing locally only: %v", err)
		} else {
			next = Enabled
			log.Lvl2("remote ledger enabled")
		}
	}

	co.stateMutex.Lock()
	co.state = next
	co.stateMutex.Unlock()
	return next
}

// State returns the current remote attachment state.
func (co *Coordinator) State() RemoteState {
	co.stateMutex.Lock()
	defer co.stateMutex.Unlock()
	return co.state
}

func (co *Coordinator) remoteEnabled() bool {
	return co.State() == Enabled
}

func (co *Coordinator) remoteContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), co.timeout)
}

// LocalAnchor locates an anchor in the local chain.
type LocalAnchor struct {
	Index     int64
	Hash      string
	Timestamp int64
}

// RemoteAnchor locates an anchor on the remote ledger.
type RemoteAnchor struct {
	TxID        string
	BlockNumber int64
}

// Receipt is what a store operation hands back: the mandatory local anchor
// plus the remote one when the mirror write went through.
type Receipt struct {
	Local  LocalAnchor
	Remote *RemoteAnchor
}

// StoreCredentialAnchor anchors a credential: a mandatory append to the
// local chain, then a best-effort mirror to the remote ledger. The
// anchoring timestamp is set here, callers do not control it.
func (co *Coordinator) StoreCredentialAnchor(ca bc.CredentialAnchor) (*Receipt, error) {
	ca.Timestamp = utils.NowMillis()
	block, err := co.chain.Append(bc.NewCredentialPayload(&ca))
	if err != nil {
		return nil, err
	}
	return co.receipt(block, ca.CredentialHash, ca.DID), nil
}

// StoreDIDAnchor anchors a DID document the same way.
func (co *Coordinator) StoreDIDAnchor(da bc.DIDAnchor) (*Receipt, error) {
	da.Timestamp = utils.NowMillis()
	block, err := co.chain.Append(bc.NewDIDPayload(&da))
	if err != nil {
		return nil, err
	}
	return co.receipt(block, da.DocumentHash, da.DID), nil
}

// receipt mirrors the fresh anchor to the remote ledger when enabled and
// assembles the caller's receipt. A failed mirror write only costs the
// Remote part: the local anchor already happened and stands.
func (co *Coordinator) receipt(block *bc.Block, contentHash, did string) *Receipt {
	r := &Receipt{Local: LocalAnchor{
		Index:     block.Index,
		Hash:      block.Hash,
		Timestamp: block.Timestamp,
	}}
	if !co.remoteEnabled() {
		return r
	}
	ctx, cancel := co.remoteContext()
	defer cancel()
	res, err := co.remote.Store(ctx, contentHash, did)
	if err != nil {
		log.Warnf("remote anchor for block %d not stored: %v", block.Index, err)
		return r
	}
	r.Remote = &RemoteAnchor{TxID: res.TxID, BlockNumber: res.BlockNumber}
	return r
}

// Verification is the two-backend answer to "is this content hash
// anchored": the local answer is always present, the remote one only when
// the remote ledger is enabled and answered in time. Verified combines
// them with OR.
type Verification struct {
	Local    bool
	Remote   *bool
	Verified bool
}

// Verify checks both ledgers for a content hash. Read-only and idempotent.
func (co *Coordinator) Verify(contentHash string) *Verification {
	v := &Verification{Local: co.chain.Exists(contentHash)}
	if co.remoteEnabled() {
		ctx, cancel := co.remoteContext()
		defer cancel()
		anchored, err := co.remote.Verify(ctx, contentHash)
		if err != nil {
			log.Warnf("remote verification of %s unavailable: %v",
				contentHash, err)
		} else {
			v.Remote = &anchored
		}
	}
	v.Verified = v.Local || (v.Remote != nil && *v.Remote)
	return v
}

// DIDAnchors aggregates what both ledgers hold for a DID.
type DIDAnchors struct {
	// Blocks are the local anchors, newest first.
	Blocks []*bc.Block
	// RemoteHashes lists the digests the remote registry holds for the
	// DID; nil when the remote ledger is disabled or did not answer.
	RemoteHashes []string
}

// AnchorsByDID collects every anchor referencing the DID.
func (co *Coordinator) AnchorsByDID(did string) *DIDAnchors {
	out := &DIDAnchors{Blocks: co.chain.AnchorsByDID(did)}
	if co.remoteEnabled() {
		ctx, cancel := co.remoteContext()
		defer cancel()
		hashes, err := co.remote.QueryByDID(ctx, did)
		if err != nil {
			log.Warnf("remote anchors for %s unavailable: %v", did, err)
		} else {
			out.RemoteHashes = hashes
		}
	}
	return out
}

// Export snapshots the whole chain for external consumption, oldest first.
func (co *Coordinator) Export() *bc.Snapshot {
	return &bc.Snapshot{Blocks: co.chain.Blocks()}
}

// Stats is a point-in-time summary of the ledger.
type Stats struct {
	// Height is the index of the chain head.
	Height int64
	// Length is the number of blocks, genesis included.
	Length            int64
	Difficulty        int
	LatestHash        string
	CredentialAnchors int64
	DIDAnchors        int64
	RemoteState       string
	UptimeSeconds     int64
	// InstanceToken distinguishes process restarts. That matters here:
	// a disabled remote ledger stays disabled until the next restart.
	InstanceToken string
}

// Stats summarizes the ledger. Read-only.
func (co *Coordinator) Stats() *Stats {
	credentials, dids := co.chain.Totals()
	st := &Stats{
		Length:            int64(co.chain.Length()),
		Difficulty:        co.chain.Difficulty(),
		CredentialAnchors: credentials,
		DIDAnchors:        dids,
		RemoteState:       co.State().String(),
		UptimeSeconds:     int64(time.Since(co.started).Seconds()),
		InstanceToken:     co.token,
	}
	if latest := co.chain.Latest(); latest != nil {
		st.Height = latest.Index
		st.LatestHash = latest.Hash
	}
	return st
}
