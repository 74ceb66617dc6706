package service

import (
	"fmt"
	"strings"
	"testing"

	"anchorledger"
	bc "anchorledger/blockchain"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
)

var tSuite = cothority.Suite

func TestMain(m *testing.M) {
	defaultDifficulty = 1
	// go-ethereum's keystore links rjeczalik/notify, whose package init
	// spawns two process-wide watcher goroutines.
	log.AddUserUninterestingGoroutine("rjeczalik/notify")
	log.MainTest(m)
}

type testEnv struct {
	local    *onet.LocalTest
	roster   *onet.Roster
	services []*Service
}

func newTestEnv(t *testing.T, n int) *testEnv {
	local := onet.NewLocalTest(tSuite)
	hosts, roster, _ := local.GenTree(n, true)
	env := &testEnv{local: local, roster: roster}
	for _, sv := range local.GetServices(hosts, ServiceID) {
		env.services = append(env.services, sv.(*Service))
	}
	return env
}

func (env *testEnv) close() {
	for _, s := range env.services {
		s.TestClose()
	}
	env.local.CloseAll()
}

func digest(i int) string {
	return fmt.Sprintf("%064x", 0xabc0+i)
}

func credentialRequest(i int) *anchorledger.StoreCredentialAnchorRequest {
	return &anchorledger.StoreCredentialAnchorRequest{
		CredentialID:   fmt.Sprintf("cred-%d", i),
		DID:            "did:example:alice",
		CredentialHash: digest(i),
		IssuerDID:      "did:example:issuer",
	}
}

func TestServiceStoreCredentialAnchor(t *testing.T) {
	env := newTestEnv(t, 1)
	defer env.close()
	s := env.services[0]

	reply, err := s.StoreCredentialAnchor(credentialRequest(1))
	require.NoError(t, err)
	require.Equal(t, int64(1), reply.Local.Index)
	require.True(t, bc.MeetsDifficulty(reply.Local.Hash, 1))
	require.True(t, reply.Local.Timestamp > 0)
	require.Nil(t, reply.Remote)

	// Unnormalized digests are accepted and stored normalized.
	req := credentialRequest(2)
	req.CredentialHash = "0x" + strings.ToUpper(digest(2))
	_, err = s.StoreCredentialAnchor(req)
	require.NoError(t, err)

	block, err := s.GetBlock(&anchorledger.BlockRequest{Index: 2})
	require.NoError(t, err)
	require.Equal(t, digest(2), block.Data.Credential.CredentialHash)
}

func TestServiceStoreDIDAnchor(t *testing.T) {
	env := newTestEnv(t, 1)
	defer env.close()
	s := env.services[0]

	reply, err := s.StoreDIDAnchor(&anchorledger.StoreDIDAnchorRequest{
		DID:          "did:example:bob",
		DocumentHash: digest(1),
		PublicKey:    "ed25519:AAAA",
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), reply.Local.Index)

	block, err := s.GetBlock(&anchorledger.BlockRequest{Index: 1})
	require.NoError(t, err)
	require.Equal(t, bc.KindDID, block.Data.Kind)
	require.Equal(t, "did:example:bob", block.Data.DID.DID)
}

func TestServiceRejectsBadAnchors(t *testing.T) {
	env := newTestEnv(t, 1)
	defer env.close()
	s := env.services[0]

	// Not hex at all.
	req := credentialRequest(1)
	req.CredentialHash = "not-hex"
	_, err := s.StoreCredentialAnchor(req)
	require.Error(t, err)

	// Right alphabet, wrong size.
	req = credentialRequest(1)
	req.CredentialHash = "abcd"
	_, err = s.StoreCredentialAnchor(req)
	require.Error(t, err)

	// Subject must be a DID.
	req = credentialRequest(1)
	req.DID = "alice"
	_, err = s.StoreCredentialAnchor(req)
	require.Error(t, err)

	_, err = s.StoreDIDAnchor(&anchorledger.StoreDIDAnchorRequest{
		DID:          "did:example:bob",
		DocumentHash: digest(1),
	})
	require.Error(t, err)

	// Nothing was anchored.
	stats, err := s.ChainStats(&anchorledger.ChainStatsRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Stats.Length)
	require.Equal(t, 0, stats.AnchorsStored)
}

func TestServiceVerifyAnchor(t *testing.T) {
	env := newTestEnv(t, 1)
	defer env.close()
	s := env.services[0]

	_, err := s.StoreCredentialAnchor(credentialRequest(1))
	require.NoError(t, err)

	reply, err := s.VerifyAnchor(&anchorledger.VerifyAnchorRequest{
		ContentHash: digest(1),
	})
	require.NoError(t, err)
	require.True(t, reply.Local)
	require.True(t, reply.Verified)
	require.Nil(t, reply.Remote)

	// The lookup normalizes its input the same way the store does.
	reply, err = s.VerifyAnchor(&anchorledger.VerifyAnchorRequest{
		ContentHash: "0x" + strings.ToUpper(digest(1)),
	})
	require.NoError(t, err)
	require.True(t, reply.Verified)

	reply, err = s.VerifyAnchor(&anchorledger.VerifyAnchorRequest{
		ContentHash: digest(9),
	})
	require.NoError(t, err)
	require.False(t, reply.Local)
	require.False(t, reply.Verified)

	_, err = s.VerifyAnchor(&anchorledger.VerifyAnchorRequest{
		ContentHash: "xyz",
	})
	require.Error(t, err)
}

func TestServiceAnchorsByDID(t *testing.T) {
	env := newTestEnv(t, 1)
	defer env.close()
	s := env.services[0]

	_, err := s.StoreCredentialAnchor(credentialRequest(1))
	require.NoError(t, err)
	_, err = s.StoreCredentialAnchor(credentialRequest(2))
	require.NoError(t, err)
	_, err = s.StoreDIDAnchor(&anchorledger.StoreDIDAnchorRequest{
		DID:          "did:example:bob",
		DocumentHash: digest(3),
		PublicKey:    "ed25519:AAAA",
	})
	require.NoError(t, err)

	reply, err := s.AnchorsByDID(&anchorledger.AnchorsByDIDRequest{
		DID: "did:example:alice",
	})
	require.NoError(t, err)
	require.Len(t, reply.Blocks, 2)
	require.Equal(t, int64(2), reply.Blocks[0].Index)
	require.Equal(t, int64(1), reply.Blocks[1].Index)
	require.Nil(t, reply.RemoteHashes)

	reply, err = s.AnchorsByDID(&anchorledger.AnchorsByDIDRequest{
		DID: "did:example:nobody",
	})
	require.NoError(t, err)
	require.Empty(t, reply.Blocks)

	_, err = s.AnchorsByDID(&anchorledger.AnchorsByDIDRequest{})
	require.Error(t, err)
}

func TestServiceChainStats(t *testing.T) {
	env := newTestEnv(t, 1)
	defer env.close()
	s := env.services[0]

	stats, err := s.ChainStats(&anchorledger.ChainStatsRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(0), stats.Stats.Height)
	require.Equal(t, int64(1), stats.Stats.Length)
	require.Equal(t, 1, stats.Stats.Difficulty)
	require.Equal(t, bc.GenesisHash, stats.Stats.LatestHash)
	require.Equal(t, "disabled", stats.Stats.RemoteState)
	require.Equal(t, 0, stats.AnchorsStored)
	require.Equal(t, 0, stats.VerificationsServed)

	_, err = s.StoreCredentialAnchor(credentialRequest(1))
	require.NoError(t, err)
	_, err = s.VerifyAnchor(&anchorledger.VerifyAnchorRequest{ContentHash: digest(1)})
	require.NoError(t, err)

	stats, err = s.ChainStats(&anchorledger.ChainStatsRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Stats.Height)
	require.Equal(t, int64(1), stats.Stats.CredentialAnchors)
	require.Equal(t, 1, stats.AnchorsStored)
	require.Equal(t, 1, stats.VerificationsServed)
}

func TestServiceValidateChain(t *testing.T) {
	env := newTestEnv(t, 1)
	defer env.close()
	s := env.services[0]

	_, err := s.StoreCredentialAnchor(credentialRequest(1))
	require.NoError(t, err)

	reply, err := s.ValidateChain(&anchorledger.ValidateChainRequest{})
	require.NoError(t, err)
	require.True(t, reply.Valid)
	require.Empty(t, reply.Problem)
}

func TestServiceGetBlock(t *testing.T) {
	env := newTestEnv(t, 1)
	defer env.close()
	s := env.services[0]

	head, err := s.GetBlock(&anchorledger.BlockRequest{Index: -1})
	require.NoError(t, err)
	require.Equal(t, int64(0), head.Index)

	reply, err := s.StoreCredentialAnchor(credentialRequest(1))
	require.NoError(t, err)

	head, err = s.GetBlock(&anchorledger.BlockRequest{Index: -1})
	require.NoError(t, err)
	require.Equal(t, int64(1), head.Index)

	byHash, err := s.GetBlock(&anchorledger.BlockRequest{Hash: reply.Local.Hash, Index: -1})
	require.NoError(t, err)
	require.Equal(t, int64(1), byHash.Index)

	genesis, err := s.GetBlock(&anchorledger.BlockRequest{Index: 0})
	require.NoError(t, err)
	require.Equal(t, bc.GenesisHash, genesis.Hash)

	_, err = s.GetBlock(&anchorledger.BlockRequest{Index: 99})
	require.Error(t, err)
	_, err = s.GetBlock(&anchorledger.BlockRequest{Hash: strings.Repeat("f", 64), Index: -1})
	require.Error(t, err)
}

func TestServiceExportChain(t *testing.T) {
	env := newTestEnv(t, 1)
	defer env.close()
	s := env.services[0]

	_, err := s.StoreCredentialAnchor(credentialRequest(1))
	require.NoError(t, err)

	reply, err := s.ExportChain(&anchorledger.ExportChainRequest{})
	require.NoError(t, err)
	require.Len(t, reply.Snapshot.Blocks, 2)
	require.Equal(t, bc.GenesisHash, reply.Snapshot.Blocks[0].Hash)
	require.Equal(t, int64(1), reply.Snapshot.Blocks[1].Index)
}

// Every node runs its own chain: anchoring on one leaves the others at
// their genesis block.
func TestServicePerNodeChains(t *testing.T) {
	env := newTestEnv(t, 3)
	defer env.close()

	_, err := env.services[0].StoreCredentialAnchor(credentialRequest(1))
	require.NoError(t, err)

	for i, s := range env.services {
		stats, err := s.ChainStats(&anchorledger.ChainStatsRequest{})
		require.NoError(t, err)
		if i == 0 {
			require.Equal(t, int64(2), stats.Stats.Length)
		} else {
			require.Equal(t, int64(1), stats.Stats.Length)
		}
	}
}
