package blockchain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"golang.org/x/xerrors"
)

// Payload kinds. The kind tag is part of the canonical encoding and must not
// change.
const (
	KindCredential = "credential"
	KindDID        = "did"
	KindGenesis    = "genesis"
)

// CredentialAnchor records the issuance of a verifiable credential. The
// credential itself stays in the vault; only its content hash is anchored.
type CredentialAnchor struct {
	CredentialID   string `json:"credentialId"`
	DID            string `json:"did"`
	CredentialHash string `json:"credentialHash"`
	IssuerDID      string `json:"issuerDid"`
	// Timestamp is the anchoring instant, epoch milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// DIDAnchor records the registration or update of a DID document.
type DIDAnchor struct {
	DID          string `json:"did"`
	DocumentHash string `json:"documentHash"`
	PublicKey    string `json:"publicKey"`
	Timestamp    int64  `json:"timestamp"`
}

// GenesisMarker is the payload of the one genesis block.
type GenesisMarker struct {
	SystemMessage string `json:"systemMessage"`
}

// Payload is the tagged union carried by a block: the kind tag plus exactly
// one matching arm. The JSON declaration order of this struct and of its
// arms defines the canonical encoding hashed into the block, so field order
// here is wire format.
type Payload struct {
	Kind       string            `json:"kind"`
	Credential *CredentialAnchor `json:"credential,omitempty"`
	DID        *DIDAnchor        `json:"did,omitempty"`
	Genesis    *GenesisMarker    `json:"genesis,omitempty"`
}

// NewCredentialPayload wraps a credential anchor in its tagged union form.
func NewCredentialPayload(ca *CredentialAnchor) *Payload {
	return &Payload{Kind: KindCredential, Credential: ca}
}

// NewDIDPayload wraps a DID anchor in its tagged union form.
func NewDIDPayload(da *DIDAnchor) *Payload {
	return &Payload{Kind: KindDID, DID: da}
}

func newGenesisPayload() *Payload {
	return &Payload{
		Kind:    KindGenesis,
		Genesis: &GenesisMarker{SystemMessage: GenesisMessage},
	}
}

// Canonical returns the canonical byte encoding of the payload, the form
// hashed into the block: compact JSON with keys in declaration order and
// absent arms omitted.
func (p *Payload) Canonical() ([]byte, error) {
	buf, err := json.Marshal(p)
	if err != nil {
		return nil, xerrors.Errorf("encoding payload: %v", err)
	}
	return buf, nil
}

// Validate checks that the payload is well formed: a known kind, exactly one
// arm, the arm matching the kind, and all required fields of the arm set.
// Content hashes must already be normalized lowercase hex of a full sha-256
// digest, since lookups match them by string equality.
func (p *Payload) Validate() error {
	if n := p.arms(); n != 1 {
		return xerrors.Errorf("payload carries %d arms, want exactly 1: %w",
			n, ErrValidation)
	}
	switch p.Kind {
	case KindCredential:
		if p.Credential == nil {
			return xerrors.Errorf("kind %q without matching arm: %w",
				p.Kind, ErrValidation)
		}
		return p.Credential.validate()
	case KindDID:
		if p.DID == nil {
			return xerrors.Errorf("kind %q without matching arm: %w",
				p.Kind, ErrValidation)
		}
		return p.DID.validate()
	case KindGenesis:
		if p.Genesis == nil {
			return xerrors.Errorf("kind %q without matching arm: %w",
				p.Kind, ErrValidation)
		}
		if p.Genesis.SystemMessage == "" {
			return xerrors.Errorf("genesis marker without message: %w",
				ErrValidation)
		}
		return nil
	default:
		return xerrors.Errorf("unknown payload kind %q: %w", p.Kind, ErrValidation)
	}
}

func (p *Payload) arms() int {
	n := 0
	if p.Credential != nil {
		n++
	}
	if p.DID != nil {
		n++
	}
	if p.Genesis != nil {
		n++
	}
	return n
}

func (ca *CredentialAnchor) validate() error {
	if ca.CredentialID == "" {
		return xerrors.Errorf("missing credentialId: %w", ErrValidation)
	}
	if err := validateDID("did", ca.DID); err != nil {
		return err
	}
	if err := validateDigest("credentialHash", ca.CredentialHash); err != nil {
		return err
	}
	return validateDID("issuerDid", ca.IssuerDID)
}

func (da *DIDAnchor) validate() error {
	if err := validateDID("did", da.DID); err != nil {
		return err
	}
	if err := validateDigest("documentHash", da.DocumentHash); err != nil {
		return err
	}
	if da.PublicKey == "" {
		return xerrors.Errorf("missing publicKey: %w", ErrValidation)
	}
	return nil
}

func validateDID(field, did string) error {
	if did == "" {
		return xerrors.Errorf("missing %s: %w", field, ErrValidation)
	}
	if !strings.HasPrefix(did, "did:") {
		return xerrors.Errorf("%s %q is not a DID: %w", field, did, ErrValidation)
	}
	return nil
}

func validateDigest(field, digest string) error {
	if digest == "" {
		return xerrors.Errorf("missing %s: %w", field, ErrValidation)
	}
	if digest != strings.ToLower(digest) {
		return xerrors.Errorf("%s %q is not normalized hex: %w",
			field, digest, ErrValidation)
	}
	raw, err := hex.DecodeString(digest)
	if err != nil {
		return xerrors.Errorf("%s %q is not hex: %w", field, digest, ErrValidation)
	}
	if len(raw) != sha256.Size {
		return xerrors.Errorf("%s %q is not a sha-256 digest: %w",
			field, digest, ErrValidation)
	}
	return nil
}

// ContentHash returns the anchored content hash, or "" for the genesis
// marker.
func (p *Payload) ContentHash() string {
	switch {
	case p.Credential != nil:
		return p.Credential.CredentialHash
	case p.DID != nil:
		return p.DID.DocumentHash
	}
	return ""
}

// ReferencesDID reports whether the payload mentions the DID, either as its
// subject or as the credential issuer.
func (p *Payload) ReferencesDID(did string) bool {
	switch {
	case p.Credential != nil:
		return p.Credential.DID == did || p.Credential.IssuerDID == did
	case p.DID != nil:
		return p.DID.DID == did
	}
	return false
}

// MatchesHash reports whether the payload anchors the given content hash.
func (p *Payload) MatchesHash(hash string) bool {
	h := p.ContentHash()
	return h != "" && h == hash
}

// Copy makes a deep copy of the payload.
func (p *Payload) Copy() *Payload {
	c := *p
	if p.Credential != nil {
		ca := *p.Credential
		c.Credential = &ca
	}
	if p.DID != nil {
		da := *p.DID
		c.DID = &da
	}
	if p.Genesis != nil {
		g := *p.Genesis
		c.Genesis = &g
	}
	return &c
}
