package session

import (
	"testing"
	"time"

	"github.com/eXcomm/mpenc-go/aske"
	"github.com/eXcomm/mpenc-go/crypto"
	"github.com/eXcomm/mpenc-go/crypto/keys"
	"github.com/eXcomm/mpenc-go/crypto/storage"
	"github.com/eXcomm/mpenc-go/messagelog"
	"github.com/eXcomm/mpenc-go/transcript"
	"github.com/stretchr/testify/require"
)

func newTestMember(t *testing.T, dir crypto.StaticKeyDirectory, id string) *aske.Member {
	t.Helper()
	kp, err := keys.GenerateStaticKeyPair()
	require.NoError(t, err)
	dir.Put(id, kp.PublicKey())
	return aske.NewMember(id, kp, dir, crypto.Default())
}

func newTestProcessor(t *testing.T, id string) (*Processor, *aske.Member) {
	t.Helper()
	dir := storage.NewMemoryKeyDirectory()
	member := newTestMember(t, dir, "A")
	_ = newTestMember(t, dir, "B") // registers B's static key in the shared directory
	tr := transcript.New()
	log := messagelog.New(nil)
	sub, err := log.GetSubscriberFor(tr)
	require.NoError(t, err)
	return NewProcessor(id, member, tr, log, sub, HandshakeConfig{Timeout: 50 * time.Millisecond}), member
}

func TestProcessorCommitEmitsStateChange(t *testing.T) {
	p, _ := newTestProcessor(t, "conv-1")

	var events []Event
	p.Watch(func(e Event) { events = append(events, e) })

	msg, err := p.Commit([]string{"B"})
	require.NoError(t, err)
	require.Equal(t, aske.Upflow, msg.Flow)

	require.NotEmpty(t, events)
	require.Equal(t, SNStateChange, events[len(events)-1].Kind)
	require.Equal(t, "UPFLOWING", events[len(events)-1].Context)
}

func TestProcessorJoinEmitsSNInclude(t *testing.T) {
	p, member := newTestProcessor(t, "conv-2")
	_, err := member.Commit([]string{"B"})
	require.NoError(t, err)

	var gotInclude bool
	p.Watch(func(e Event) {
		if e.Kind == SNInclude {
			gotInclude = true
			require.Equal(t, "C", e.Context)
		}
	})

	_, err = p.Join([]string{"C"})
	require.NoError(t, err)
	require.True(t, gotInclude)
}

func TestProcessorAcceptMessageEmitsNotAccepted(t *testing.T) {
	p, _ := newTestProcessor(t, "conv-3")

	var gotRejected bool
	p.Watch(func(e Event) {
		if e.Kind == NotAccepted {
			gotRejected = true
		}
	})

	bad := transcript.NewMsg("m1", "A", []transcript.MsgID{"missing-parent"}, []string{"B"}, nil)
	_, err := p.AcceptMessage(bad)
	require.Error(t, err)
	require.True(t, gotRejected)
}

func TestProcessorAcceptMessageEmitsMsgReadyAndFullyAcked(t *testing.T) {
	p, _ := newTestProcessor(t, "conv-4")

	var readyCount, ackedCount int
	p.Watch(func(e Event) {
		switch e.Kind {
		case MsgReady:
			readyCount++
		case MsgFullyAcked:
			ackedCount++
		}
	})

	m1 := transcript.NewMsg("m1", "A", nil, []string{"B"}, []byte("hello"))
	_, err := p.AcceptMessage(m1)
	require.NoError(t, err)
	require.Equal(t, 1, readyCount)
	require.Equal(t, 0, ackedCount)

	m2 := transcript.NewMsg("m2", "B", []transcript.MsgID{"m1"}, []string{"A"}, []byte("hi"))
	acked, err := p.AcceptMessage(m2)
	require.NoError(t, err)
	require.Equal(t, []transcript.MsgID{"m1"}, acked)
	require.Equal(t, 1, ackedCount)
}

func TestProcessorExpectMessageFiresNotDecryptedOnTimeout(t *testing.T) {
	p, _ := newTestProcessor(t, "conv-5")

	done := make(chan Event, 1)
	p.Watch(func(e Event) {
		if e.Kind == NotDecrypted {
			done <- e
		}
	})

	p.ExpectMessage("never-arrives", "B", 128)

	select {
	case e := <-done:
		require.Equal(t, "B", e.Sender)
		require.Equal(t, 128, e.Size)
	case <-time.After(time.Second):
		t.Fatal("expected NotDecrypted event within grace period")
	}
}

func TestProcessorCorrelationLabelAppearsAfterSessionID(t *testing.T) {
	a, memberA := newTestProcessor(t, "conv-7")

	_, ok := a.CorrelationLabel()
	require.False(t, ok)

	// A is last in the upflow chain, so processing it derives the session id.
	_, err := memberA.Upflow(&aske.Message{
		Source:  "B",
		Flow:    aske.Upflow,
		Members: []string{"B", "A"},
		Nonces:  [][]byte{make([]byte, 32)},
	})
	require.NoError(t, err)
	a.refreshState()

	label, ok := a.CorrelationLabel()
	require.True(t, ok)
	require.Len(t, label, 16) // 8 bytes hex-encoded
}

func TestProcessorExpectMessageCanceledByAccept(t *testing.T) {
	p, _ := newTestProcessor(t, "conv-6")

	var gotNotDecrypted bool
	p.Watch(func(e Event) {
		if e.Kind == NotDecrypted {
			gotNotDecrypted = true
		}
	})

	p.ExpectMessage("m1", "A", 64)
	m1 := transcript.NewMsg("m1", "A", nil, []string{"B"}, []byte("hi"))
	_, err := p.AcceptMessage(m1)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	require.False(t, gotNotDecrypted)
}
