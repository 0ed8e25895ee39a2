package aske

import (
	"testing"

	"github.com/eXcomm/mpenc-go/crypto"
	"github.com/eXcomm/mpenc-go/crypto/keys"
	"github.com/eXcomm/mpenc-go/crypto/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMembers(t *testing.T, ids ...string) (map[string]*Member, crypto.StaticKeyDirectory) {
	t.Helper()
	dir := storage.NewMemoryKeyDirectory()
	cap := crypto.Default()

	members := make(map[string]*Member, len(ids))
	for _, id := range ids {
		kp, err := keys.GenerateStaticKeyPair()
		require.NoError(t, err)
		dir.Put(id, kp.PublicKey())
		members[id] = NewMember(id, kp, dir, cap)
	}
	return members, dir
}

func TestUpflowDownflowThreeMembers(t *testing.T) {
	members, _ := newTestMembers(t, "A", "B", "C")
	a, b, c := members["A"], members["B"], members["C"]

	msgAB, err := a.Commit([]string{"B", "C"})
	require.NoError(t, err)
	assert.Equal(t, Upflow, msgAB.Flow)
	assert.Equal(t, "B", msgAB.Dest)

	msgBC, err := b.Upflow(msgAB)
	require.NoError(t, err)
	assert.Equal(t, "C", msgBC.Dest)

	msgC, err := c.Upflow(msgBC)
	require.NoError(t, err)
	assert.Equal(t, Downflow, msgC.Flow)
	assert.NotEmpty(t, msgC.SessionSignature)

	bOut, err := b.Downflow(msgC)
	require.NoError(t, err)
	require.NotNil(t, bOut)

	aOut, err := a.Downflow(msgC)
	require.NoError(t, err)
	require.NotNil(t, aOut)

	_, err = a.Downflow(bOut)
	require.NoError(t, err)
	_, err = c.Downflow(bOut)
	require.NoError(t, err)
	_, err = c.Downflow(aOut)
	require.NoError(t, err)
	none, err := b.Downflow(aOut)
	require.NoError(t, err)
	assert.Nil(t, none)

	assert.True(t, a.IsSessionAcknowledged())
	assert.True(t, b.IsSessionAcknowledged())
	assert.True(t, c.IsSessionAcknowledged())

	sidA, okA := a.SessionID()
	sidB, okB := b.SessionID()
	sidC, okC := c.SessionID()
	require.True(t, okA)
	require.True(t, okB)
	require.True(t, okC)
	assert.Equal(t, sidA, sidB)
	assert.Equal(t, sidB, sidC)
}

func applyFullHandshake(t *testing.T, a, b, c *Member) {
	t.Helper()
	msgAB, err := a.Commit([]string{"B", "C"})
	require.NoError(t, err)
	msgBC, err := b.Upflow(msgAB)
	require.NoError(t, err)
	msgC, err := c.Upflow(msgBC)
	require.NoError(t, err)

	bOut, err := b.Downflow(msgC)
	require.NoError(t, err)
	aOut, err := a.Downflow(msgC)
	require.NoError(t, err)

	_, err = a.Downflow(bOut)
	require.NoError(t, err)
	_, err = c.Downflow(bOut)
	require.NoError(t, err)
	_, err = c.Downflow(aOut)
	require.NoError(t, err)
	_, err = b.Downflow(aOut)
	require.NoError(t, err)
}

func TestExcludeThenRekey(t *testing.T) {
	members, _ := newTestMembers(t, "A", "B", "C")
	a, b, c := members["A"], members["B"], members["C"]
	applyFullHandshake(t, a, b, c)

	originalSID, _ := a.SessionID()
	cEphPub := c.eph.PublicKey()

	msg2, err := a.Exclude([]string{"C"})
	require.NoError(t, err)
	assert.Equal(t, Downflow, msg2.Flow)
	assert.NotContains(t, msg2.Members, "C")

	_, err = b.Downflow(msg2)
	require.NoError(t, err)

	newSID, ok := b.SessionID()
	require.True(t, ok)
	assert.NotEqual(t, originalSID, newSID)

	old, ok := a.oldEphemeralKeys["C"]
	require.True(t, ok)
	assert.Equal(t, cEphPub, old.Pub)
}

func TestCommitRejectsEmptyOtherMembers(t *testing.T) {
	members, _ := newTestMembers(t, "A")
	_, err := members["A"].Commit(nil)
	assert.Error(t, err)
}

func TestUpflowRejectsDuplicateMembers(t *testing.T) {
	members, _ := newTestMembers(t, "A", "B")
	msg := &Message{Source: "A", Members: []string{"A", "B", "A"}}
	_, err := members["A"].Upflow(msg)
	assert.Error(t, err)
}

func TestUpflowRejectsSelfNotInMembers(t *testing.T) {
	members, _ := newTestMembers(t, "A", "B")
	msg := &Message{Source: "B", Members: []string{"B", "C"}}
	_, err := members["A"].Upflow(msg)
	assert.Error(t, err)
}

func TestDownflowRejectsForgedSignature(t *testing.T) {
	members, _ := newTestMembers(t, "A", "B", "C")
	a, b, c := members["A"], members["B"], members["C"]

	msgAB, err := a.Commit([]string{"B", "C"})
	require.NoError(t, err)
	msgBC, err := b.Upflow(msgAB)
	require.NoError(t, err)
	msgC, err := c.Upflow(msgBC)
	require.NoError(t, err)

	forged := *msgC
	forged.SessionSignature = append([]byte(nil), msgC.SessionSignature...)
	forged.SessionSignature[0] ^= 0xFF

	_, err = b.Downflow(&forged)
	assert.Error(t, err)
}
