package main

import (
	"fmt"

	"gopkg.in/urfave/cli.v1"
)

var cmds = cli.Commands{
	{
		Name:      "anchor",
		Usage:     "Anchor a credential or a DID document.",
		Aliases:   []string{"a"},
		ArgsUsage: "[credential|did]",
		Description: fmt.Sprint(`
            anchorledger anchor credential --id ID --did DID --hash HASH --issuer DID
            anchorledger anchor did --did DID --hash HASH --key PUBKEY
	    `),
		Subcommands: cli.Commands{
			{
				Name:   "credential",
				Usage:  "Anchor an issued credential",
				Action: anchorCredential,
				Flags: []cli.Flag{
					cli.StringFlag{
						Name:  "id",
						Usage: "identifier of the credential",
					},
					cli.StringFlag{
						Name:  "did",
						Usage: "DID of the credential subject",
					},
					cli.StringFlag{
						Name:  "hash",
						Usage: "SHA-256 hex digest of the credential",
					},
					cli.StringFlag{
						Name:  "issuer",
						Usage: "DID of the issuer",
					},
				},
			},
			{
				Name:   "did",
				Usage:  "Anchor a DID document",
				Action: anchorDID,
				Flags: []cli.Flag{
					cli.StringFlag{
						Name:  "did",
						Usage: "the DID the document describes",
					},
					cli.StringFlag{
						Name:  "hash",
						Usage: "SHA-256 hex digest of the DID document",
					},
					cli.StringFlag{
						Name:  "key",
						Usage: "public key bound to the DID",
					},
				},
			},
		},
	},
	{
		Name:      "verify",
		Usage:     "Check whether a content hash is anchored.",
		Aliases:   []string{"v"},
		ArgsUsage: "CONTENT-HASH",
		Action:    verifyAnchor,
	},
	{
		Name:      "anchors",
		Usage:     "List every anchor referencing a DID, newest first.",
		ArgsUsage: "DID",
		Action:    showAnchors,
	},
	{
		Name:    "export",
		Usage:   "Export the whole chain as JSON.",
		Aliases: []string{"e"},
		Action:  exportChain,
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "out",
				Usage: "write the export to this file instead of stdout",
			},
		},
	},
	{
		Name:    "block",
		Usage:   "Get latest block or a block given by an index or hash",
		Aliases: []string{"b"},
		Action:  showBlock,
		Flags: []cli.Flag{
			cli.IntFlag{
				Name:  "index",
				Value: -1,
				Usage: "give this block index",
			},
			cli.StringFlag{
				Name:  "hash",
				Usage: "give block hash to show",
			},
		},
	},
}
