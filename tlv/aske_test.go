package tlv

import (
	"crypto/ed25519"
	"testing"

	"github.com/eXcomm/mpenc-go/aske"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeMessageRoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	msg := &aske.Message{
		Source:           "alice",
		Dest:             "bob",
		Flow:             aske.Upflow,
		Members:          []string{"alice", "bob", "carol"},
		Nonces:           [][]byte{{1, 2, 3}, {4, 5, 6}},
		PubKeys:          []ed25519.PublicKey{pub},
		SessionSignature: []byte{0xAA, 0xBB},
	}

	encoded := EncodeMessage(msg)
	decoded, err := DecodeMessage(encoded)
	require.NoError(t, err)

	assert.Equal(t, msg.Source, decoded.Source)
	assert.Equal(t, msg.Dest, decoded.Dest)
	assert.Equal(t, msg.Flow, decoded.Flow)
	assert.Equal(t, msg.Members, decoded.Members)
	assert.Equal(t, msg.Nonces, decoded.Nonces)
	assert.Equal(t, msg.SessionSignature, decoded.SessionSignature)
	require.Len(t, decoded.PubKeys, 1)
	assert.Equal(t, pub, decoded.PubKeys[0])
}

func TestDecodeMessageRejectsUnknownType(t *testing.T) {
	bad := Encode(99, []byte("x"))
	_, err := DecodeMessage(bad)
	assert.Error(t, err)
}
