package utils

import (
	"net/url"
	"time"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/suites"
	"go.dedis.ch/kyber/v3/util/encoding"
	"go.dedis.ch/onet/v3/network"
	"golang.org/x/xerrors"
)

// ConvertPeerURL parses a peer URL of the form tcp://pubkey@host:port into a
// server identity. The public key part is optional; a missing scheme selects
// TLS.
func ConvertPeerURL(peerURL string) (*network.ServerIdentity, error) {
	parse, err := url.Parse(peerURL)
	if err != nil {
		return nil, xerrors.Errorf("url parse error: %v", err)
	}
	suite, err := suites.Find("Ed25519")
	if err != nil {
		return nil, xerrors.Errorf("kyber suite: %v", err)
	}
	var point kyber.Point
	if parse.User.Username() != "" {
		point, err = encoding.StringHexToPoint(suite, parse.User.Username())
		if err != nil {
			return nil, xerrors.Errorf("parsing public key error: %v", err)
		}
	}
	var connType network.ConnType
	switch parse.Scheme {
	case "tcp":
		connType = network.PlainTCP
	default:
		connType = network.TLS
	}
	return network.NewServerIdentity(point, network.NewAddress(connType, parse.Host)), nil
}

// NowMillis returns the current time as epoch milliseconds, the timestamp
// unit used throughout the ledger.
func NowMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}
