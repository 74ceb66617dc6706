package blockchain

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestPayloadValidate(t *testing.T) {
	require.NoError(t, NewCredentialPayload(testCredential(1)).Validate())
	require.NoError(t, NewDIDPayload(testDIDAnchor(1)).Validate())
	require.NoError(t, newGenesisPayload().Validate())

	requireValidationErr := func(p *Payload) {
		err := p.Validate()
		require.Error(t, err)
		require.True(t, xerrors.Is(err, ErrValidation), "got %v", err)
	}

	// No arm at all, and more than one arm.
	requireValidationErr(&Payload{Kind: KindCredential})
	requireValidationErr(&Payload{
		Kind:       KindCredential,
		Credential: testCredential(1),
		DID:        testDIDAnchor(1),
	})

	// Kind and arm must agree.
	requireValidationErr(&Payload{Kind: KindCredential, DID: testDIDAnchor(1)})
	requireValidationErr(&Payload{Kind: "other", Credential: testCredential(1)})

	// Required credential fields.
	ca := testCredential(1)
	ca.CredentialID = ""
	requireValidationErr(NewCredentialPayload(ca))

	ca = testCredential(1)
	ca.DID = "alice"
	requireValidationErr(NewCredentialPayload(ca))

	ca = testCredential(1)
	ca.IssuerDID = ""
	requireValidationErr(NewCredentialPayload(ca))

	// Hashes must arrive normalized: lowercase hex of a full sha-256
	// digest.
	ca = testCredential(1)
	ca.CredentialHash = "ABC123"
	requireValidationErr(NewCredentialPayload(ca))

	ca = testCredential(1)
	ca.CredentialHash = "zz12"
	requireValidationErr(NewCredentialPayload(ca))

	ca = testCredential(1)
	ca.CredentialHash = "abcd"
	requireValidationErr(NewCredentialPayload(ca))

	// Required DID document fields.
	da := testDIDAnchor(1)
	da.PublicKey = ""
	requireValidationErr(NewDIDPayload(da))

	da = testDIDAnchor(1)
	da.DocumentHash = ""
	requireValidationErr(NewDIDPayload(da))

	// Too long is as bad as too short.
	da = testDIDAnchor(1)
	da.DocumentHash += "00"
	requireValidationErr(NewDIDPayload(da))

	requireValidationErr(&Payload{Kind: KindGenesis, Genesis: &GenesisMarker{}})
}

// The canonical encoding is part of the hash preimage, so its exact byte
// form is pinned here: compact JSON, keys in declaration order, absent arms
// omitted.
func TestPayloadCanonical(t *testing.T) {
	p := NewCredentialPayload(&CredentialAnchor{
		CredentialID:   "cred-1",
		DID:            "did:example:alice",
		CredentialHash: "aa11",
		IssuerDID:      "did:example:issuer",
		Timestamp:      42,
	})
	buf, err := p.Canonical()
	require.NoError(t, err)
	require.Equal(t, `{"kind":"credential","credential":{"credentialId":"cred-1",`+
		`"did":"did:example:alice","credentialHash":"aa11",`+
		`"issuerDid":"did:example:issuer","timestamp":42}}`, string(buf))

	buf, err = newGenesisPayload().Canonical()
	require.NoError(t, err)
	require.Equal(t, `{"kind":"genesis","genesis":{"systemMessage":"`+
		GenesisMessage+`"}}`, string(buf))
}

func TestPayloadReferencesDID(t *testing.T) {
	cred := NewCredentialPayload(testCredential(1))
	require.True(t, cred.ReferencesDID("did:example:alice"))
	require.True(t, cred.ReferencesDID("did:example:issuer"))
	require.False(t, cred.ReferencesDID("did:example:bob"))

	doc := NewDIDPayload(testDIDAnchor(1))
	require.True(t, doc.ReferencesDID("did:example:bob"))
	require.False(t, doc.ReferencesDID("did:example:issuer"))

	require.False(t, newGenesisPayload().ReferencesDID("did:example:alice"))
}

func TestPayloadContentHash(t *testing.T) {
	ca := testCredential(1)
	cred := NewCredentialPayload(ca)
	require.Equal(t, ca.CredentialHash, cred.ContentHash())
	require.True(t, cred.MatchesHash(ca.CredentialHash))
	require.False(t, cred.MatchesHash("ffff"))

	da := testDIDAnchor(1)
	doc := NewDIDPayload(da)
	require.Equal(t, da.DocumentHash, doc.ContentHash())

	genesis := newGenesisPayload()
	require.Empty(t, genesis.ContentHash())
	require.False(t, genesis.MatchesHash(""))
}

func TestPayloadCopy(t *testing.T) {
	p := NewCredentialPayload(testCredential(1))
	cp := p.Copy()
	cp.Credential.CredentialID = "tampered"
	require.Equal(t, "cred-1", p.Credential.CredentialID)

	d := NewDIDPayload(testDIDAnchor(1))
	dp := d.Copy()
	dp.DID.PublicKey = "tampered"
	require.NotEqual(t, "tampered", d.DID.PublicKey)
}
