package keys

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func digest(b []byte) []byte {
	d := sha256.Sum256(b)
	return d[:]
}

func TestStaticKeyPair(t *testing.T) {
	t.Run("GenerateKeyPair", func(t *testing.T) {
		keyPair, err := GenerateStaticKeyPair()
		require.NoError(t, err)
		assert.NotNil(t, keyPair)
		assert.NotNil(t, keyPair.PublicKey())
		assert.NotNil(t, keyPair.PrivateKey())
	})

	t.Run("SignAndVerify", func(t *testing.T) {
		keyPair, err := GenerateStaticKeyPair()
		require.NoError(t, err)

		d := digest([]byte("test message"))

		signature, err := keyPair.Sign(d)
		require.NoError(t, err)
		assert.NotEmpty(t, signature)

		err = keyPair.Verify(keyPair.PublicKey(), d, signature)
		assert.NoError(t, err)

		wrongDigest := digest([]byte("wrong message"))
		err = keyPair.Verify(keyPair.PublicKey(), wrongDigest, signature)
		assert.Error(t, err)
		assert.Equal(t, ErrInvalidSignature, err)

		wrongSignature := make([]byte, len(signature))
		copy(wrongSignature, signature)
		wrongSignature[0] ^= 0xFF
		err = keyPair.Verify(keyPair.PublicKey(), d, wrongSignature)
		assert.Error(t, err)
		assert.Equal(t, ErrInvalidSignature, err)
	})

	t.Run("VerifyRejectsOtherKeysSignature", func(t *testing.T) {
		keyPair1, err := GenerateStaticKeyPair()
		require.NoError(t, err)
		keyPair2, err := GenerateStaticKeyPair()
		require.NoError(t, err)

		d := digest([]byte("test message"))
		signature, err := keyPair1.Sign(d)
		require.NoError(t, err)

		err = keyPair2.Verify(keyPair2.PublicKey(), d, signature)
		assert.Error(t, err)
	})

	t.Run("SignLargeMessageDigest", func(t *testing.T) {
		keyPair, err := GenerateStaticKeyPair()
		require.NoError(t, err)

		message := make([]byte, 1024*1024)
		for i := range message {
			message[i] = byte(i % 256)
		}
		d := digest(message)

		signature, err := keyPair.Sign(d)
		require.NoError(t, err)
		assert.NotEmpty(t, signature)

		err = keyPair.Verify(keyPair.PublicKey(), d, signature)
		assert.NoError(t, err)
	})
}
