package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path"

	"anchorledger"
	"anchorledger/utils"

	"go.dedis.ch/onet/v3/app"
	"go.dedis.ch/onet/v3/cfgpath"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
	"golang.org/x/xerrors"
	"gopkg.in/urfave/cli.v1"
)

const (
	// DefaultName is the name of the binary we produce and is used to create a directory
	// folder with this name
	DefaultName = "anchorledger"
)

func main() {
	cliApp := cli.NewApp()
	cliApp.Name = "anchorledger"
	cliApp.Usage = "Anchor credentials and DID documents on the ledger."
	cliApp.Version = "0.1"
	groupsDef := "the group-definition-file"
	cliApp.Commands = []cli.Command{
		{
			Name:      "stats",
			Usage:     "show the ledger summary of one node, a random one from the group or the given peer.",
			Aliases:   []string{"s"},
			ArgsUsage: "[tcp://pubkey@host:port]",
			Action:    cmdStats,
		},
		{
			Name:      "validate",
			Usage:     "re-validate the whole chain on a node.",
			ArgsUsage: groupsDef,
			Action:    cmdValidate,
		},
	}
	cliApp.Commands = append(cliApp.Commands, cmds...)
	cliApp.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "debug, d",
			Value: 0,
			Usage: "debug-level: 1 for terse, 5 for maximal,",
		},
		cli.StringFlag{
			Name:  "config, c",
			Value: path.Join(cfgpath.GetConfigPath(DefaultName), app.DefaultGroupFile),
			Usage: "Configuration file of the server",
		},
	}
	cliApp.Before = func(c *cli.Context) error {
		log.SetDebugVisible(c.Int("debug"))
		return nil
	}
	log.ErrFatal(cliApp.Run(os.Args))
}

func parseConfig(c *cli.Context) *app.Group {
	config := c.GlobalString("config")
	if _, err := os.Stat(config); os.IsNotExist(err) {
		log.Fatalf("[-] Configuration file does not exist. %s", config)
	}
	f, err := os.Open(config)
	log.ErrFatal(err, "Couldn't open group definition file")
	group, err := app.ReadGroupDescToml(f)
	log.ErrFatal(err, "Error while reading group definition file", err)
	if len(group.Roster.List) == 0 {
		log.ErrFatalf(err, "Empty entity or invalid group definition in: %s", config)
	}
	return group
}

// Anchor an issued credential.
func anchorCredential(c *cli.Context) error {
	req := &anchorledger.StoreCredentialAnchorRequest{
		CredentialID:   c.String("id"),
		DID:            c.String("did"),
		CredentialHash: c.String("hash"),
		IssuerDID:      c.String("issuer"),
	}
	group := parseConfig(c)
	client := anchorledger.NewClient()
	resp, err := client.StoreCredentialAnchor(group.Roster, req)
	if err != nil {
		return errors.New("Error: " + err.Error())
	}
	printReceipt("Credential anchored.", resp)
	return nil
}

// Anchor a DID document.
func anchorDID(c *cli.Context) error {
	req := &anchorledger.StoreDIDAnchorRequest{
		DID:          c.String("did"),
		DocumentHash: c.String("hash"),
		PublicKey:    c.String("key"),
	}
	group := parseConfig(c)
	client := anchorledger.NewClient()
	resp, err := client.StoreDIDAnchor(group.Roster, req)
	if err != nil {
		return errors.New("Error: " + err.Error())
	}
	printReceipt("DID document anchored.", resp)
	return nil
}

func printReceipt(what string, resp *anchorledger.AnchorReply) {
	log.Infof("%s\n\tIndex: %d\n\tHash: %s", what, resp.Local.Index, resp.Local.Hash)
	if resp.Remote != nil {
		log.Infof("\tRemote tx: %s (block %d)", resp.Remote.TxID, resp.Remote.BlockNumber)
	}
}

// Check whether a content hash is anchored.
func verifyAnchor(c *cli.Context) error {
	if c.NArg() < 1 {
		return xerrors.New("please give the content hash to verify")
	}
	group := parseConfig(c)
	client := anchorledger.NewClient()
	resp, err := client.VerifyAnchor(group.Roster, c.Args().First())
	if err != nil {
		return errors.New("Error: " + err.Error())
	}
	log.Infof("Verified: %v\n\tLocal chain: %v", resp.Verified, resp.Local)
	if resp.Remote != nil {
		log.Infof("\tRemote ledger: %v", resp.Remote.Anchored)
	} else {
		log.Info("\tRemote ledger: not checked")
	}
	return nil
}

// List every anchor referencing a DID.
func showAnchors(c *cli.Context) error {
	if c.NArg() < 1 {
		return xerrors.New("please give the DID to look up")
	}
	did := c.Args().First()
	group := parseConfig(c)
	client := anchorledger.NewClient()
	resp, err := client.AnchorsByDID(group.Roster, did)
	if err != nil {
		return errors.New("Error: " + err.Error())
	}
	log.Infof("%d anchor(s) for %s, newest first:", len(resp.Blocks), did)
	for _, block := range resp.Blocks {
		log.Infof("\tBlock %d (%s): %s %s", block.Index, block.Short(),
			block.Data.Kind, block.Data.ContentHash())
	}
	if len(resp.RemoteHashes) > 0 {
		log.Info("Remote registry:", resp.RemoteHashes)
	}
	return nil
}

// Export the whole chain as a JSON document.
func exportChain(c *cli.Context) error {
	group := parseConfig(c)
	client := anchorledger.NewClient()
	snapshot, err := client.ExportChain(group.Roster)
	if err != nil {
		return errors.New("Error: " + err.Error())
	}
	buf, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return xerrors.Errorf("couldn't encode chain: %v", err)
	}
	out := c.String("out")
	if out == "" {
		fmt.Println(string(buf))
		return nil
	}
	if err := ioutil.WriteFile(out, buf, 0644); err != nil {
		return xerrors.Errorf("couldn't write %s: %v", out, err)
	}
	log.Infof("Wrote %d blocks to %s", len(snapshot.Blocks), out)
	return nil
}

func showBlock(c *cli.Context) error {
	hash := c.String("hash")
	if hash != "" {
		var err error
		hash, err = utils.ParseDigest(hash)
		if err != nil {
			return xerrors.Errorf("couldn't parse hash: %v", err)
		}
	}
	blockIndex := c.Int("index")
	if blockIndex >= 0 && hash != "" {
		return xerrors.New("give either --index or --hash, not both")
	}

	group := parseConfig(c)
	client := anchorledger.NewClient()
	resp, err := client.GetBlock(group.Roster, hash, int64(blockIndex))
	if err != nil {
		return xerrors.Errorf("couldn't get block: %v", err)
	}
	log.Infof("%s", resp.String())
	return nil
}

// Show one node's ledger summary. Stats are node-local, so a peer URL
// argument picks the node to ask; without one a random group member answers.
func cmdStats(c *cli.Context) error {
	var si *network.ServerIdentity
	if c.NArg() > 0 {
		var err error
		si, err = utils.ConvertPeerURL(c.Args().First())
		if err != nil {
			return xerrors.Errorf("couldn't parse peer url: %v", err)
		}
	} else {
		si = parseConfig(c).Roster.RandomServerIdentity()
	}
	client := anchorledger.NewClient()
	resp, err := client.ChainStats(si)
	if err != nil {
		return errors.New("When asking for stats: " + err.Error())
	}
	s := resp.Stats
	log.Infof("Chain length: %d (head %d, difficulty %d)", s.Length, s.Height, s.Difficulty)
	log.Infof("Latest hash: %s", s.LatestHash)
	log.Infof("Anchors: %d credential(s), %d DID(s)", s.CredentialAnchors, s.DIDAnchors)
	log.Infof("Remote ledger: %s", s.RemoteState)
	log.Infof("Node: up %ds, instance %s", s.UptimeSeconds, s.InstanceToken)
	log.Infof("Served: %d store(s), %d verification(s)",
		resp.AnchorsStored, resp.VerificationsServed)
	return nil
}

// Re-validate the chain on a node.
func cmdValidate(c *cli.Context) error {
	group := parseConfig(c)
	client := anchorledger.NewClient()
	resp, err := client.ValidateChain(group.Roster)
	if err != nil {
		return errors.New("When validating the chain: " + err.Error())
	}
	if resp.Valid {
		log.Info("Chain valid.")
	} else {
		log.Info("Chain INVALID:", resp.Problem)
	}
	return nil
}
