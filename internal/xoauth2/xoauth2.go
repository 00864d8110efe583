// Package xoauth2 implements the SASL XOAUTH2 mechanism used by Gmail-style
// servers for IMAP and SMTP authentication.
package xoauth2

import "github.com/emersion/go-sasl"

// Mechanism is the SASL mechanism name on the wire.
const Mechanism = "XOAUTH2"

type client struct {
	username string
	token    string
}

// NewClient returns a sasl.Client whose initial response is
// "user=<username>\x01auth=Bearer <token>\x01\x01". The transport library
// base64-encodes the response on the wire.
func NewClient(username, token string) sasl.Client {
	return &client{username: username, token: token}
}

func (c *client) Start() (string, []byte, error) {
	ir := []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return Mechanism, ir, nil
}

// Next handles the challenge a server sends after rejecting the token: the
// mechanism requires an empty client response so the failure surfaces as a
// tagged NO instead of a stuck exchange.
func (c *client) Next(challenge []byte) ([]byte, error) {
	return []byte{}, nil
}
