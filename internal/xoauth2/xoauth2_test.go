package xoauth2

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart(t *testing.T) {
	mech, ir, err := NewClient("mina@gmail.com", "ya29.token").Start()
	require.NoError(t, err)

	assert.Equal(t, "XOAUTH2", mech)
	assert.Equal(t, "user=mina@gmail.com\x01auth=Bearer ya29.token\x01\x01", string(ir))
}

func TestWireEncoding(t *testing.T) {
	// The transport base64-encodes the initial response; decoding the wire
	// form must yield the user and auth segments.
	_, ir, err := NewClient("mina@gmail.com", "ya29.token").Start()
	require.NoError(t, err)

	wire := base64.StdEncoding.EncodeToString(ir)
	decoded, err := base64.StdEncoding.DecodeString(wire)
	require.NoError(t, err)

	segments := strings.Split(string(decoded), "\x01")
	require.Len(t, segments, 4)
	assert.Equal(t, "user=mina@gmail.com", segments[0])
	assert.Equal(t, "auth=Bearer ya29.token", segments[1])
	assert.Empty(t, segments[2])
	assert.Empty(t, segments[3])
}

func TestNextRespondsEmpty(t *testing.T) {
	c := NewClient("mina@gmail.com", "expired")

	resp, err := c.Next([]byte(`{"status":"401"}`))
	require.NoError(t, err)
	assert.NotNil(t, resp)
	assert.Empty(t, resp)
}
