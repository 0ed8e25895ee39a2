package messagelog

import (
	"testing"

	"github.com/eXcomm/mpenc-go/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogAppendsAndNotifies(t *testing.T) {
	tr := transcript.New()
	log := New(nil)

	var notified []transcript.MsgID
	log.Watch(func(index int, mId transcript.MsgID) {
		notified = append(notified, mId)
	})

	sub, err := log.GetSubscriberFor(tr)
	require.NoError(t, err)

	m1 := transcript.NewMsg("m1", "A", nil, []string{"B"}, nil)
	_, err = tr.Add(m1)
	require.NoError(t, err)
	require.NoError(t, sub(m1.ID))

	assert.Equal(t, 1, log.Length())
	assert.True(t, log.Has(m1.ID))
	idx, ok := log.IndexOf(m1.ID)
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Equal(t, []transcript.MsgID{m1.ID}, notified)
}

func TestLogSkipsIgnoredControlMessages(t *testing.T) {
	tr := transcript.New()
	isControl := func(tr *transcript.Transcript, mId transcript.MsgID) bool {
		m, ok := tr.Get(mId)
		return ok && len(m.Body) == 0
	}
	log := New(isControl)
	sub, err := log.GetSubscriberFor(tr)
	require.NoError(t, err)

	ctrl := transcript.NewMsg("ctrl", "A", nil, []string{"B"}, nil)
	_, err = tr.Add(ctrl)
	require.NoError(t, err)
	require.NoError(t, sub(ctrl.ID))
	assert.False(t, log.Has(ctrl.ID))

	payload := transcript.NewMsg("m2", "B", []transcript.MsgID{ctrl.ID}, []string{"A"}, []byte("hi"))
	_, err = tr.Add(payload)
	require.NoError(t, err)
	require.NoError(t, sub(payload.ID))
	require.True(t, log.Has(payload.ID))

	parents, ok := log.Parents(payload.ID)
	require.True(t, ok)
	assert.Empty(t, parents, "the only ancestor is the ignored control message")
}

func TestLogAtSupportsNegativeIndices(t *testing.T) {
	tr := transcript.New()
	log := New(nil)
	sub, err := log.GetSubscriberFor(tr)
	require.NoError(t, err)

	m1 := transcript.NewMsg("m1", "A", nil, []string{"B"}, nil)
	_, err = tr.Add(m1)
	require.NoError(t, err)
	require.NoError(t, sub(m1.ID))

	m2 := transcript.NewMsg("m2", "B", []transcript.MsgID{m1.ID}, []string{"A"}, nil)
	_, err = tr.Add(m2)
	require.NoError(t, err)
	require.NoError(t, sub(m2.ID))

	last, ok := log.At(-1)
	require.True(t, ok)
	assert.Equal(t, m2.ID, last)

	first, ok := log.At(-2)
	require.True(t, ok)
	assert.Equal(t, m1.ID, first)

	_, ok = log.At(-3)
	assert.False(t, ok)
}

func TestGetSubscriberForRejectsMultipleParents(t *testing.T) {
	tr := transcript.New()
	p1 := transcript.New()
	p2 := transcript.New()
	log := New(nil)

	_, err := log.GetSubscriberFor(tr, p1, p2)
	require.Error(t, err)
}

func TestLogFallsBackToParentTranscriptFrontier(t *testing.T) {
	parentTr := transcript.New()
	log := New(nil)

	parentSub, err := log.GetSubscriberFor(parentTr)
	require.NoError(t, err)
	pm := transcript.NewMsg("p1", "A", nil, []string{"B"}, nil)
	_, err = parentTr.Add(pm)
	require.NoError(t, err)
	require.NoError(t, parentSub(pm.ID))

	childTr := transcript.New()
	childSub, err := log.GetSubscriberFor(childTr, parentTr)
	require.NoError(t, err)

	cm := transcript.NewMsg("c1", "B", nil, []string{"A"}, nil)
	_, err = childTr.Add(cm)
	require.NoError(t, err)
	require.NoError(t, childSub(cm.ID))

	parents, ok := log.Parents(cm.ID)
	require.True(t, ok)
	assert.Equal(t, []transcript.MsgID{pm.ID}, parents)
}

func TestUnackedDropsFullyAckedMessages(t *testing.T) {
	tr := transcript.New()
	log := New(nil)
	sub, err := log.GetSubscriberFor(tr)
	require.NoError(t, err)

	m1 := transcript.NewMsg("m1", "A", nil, []string{"B"}, nil)
	_, err = tr.Add(m1)
	require.NoError(t, err)
	require.NoError(t, sub(m1.ID))

	assert.Equal(t, []transcript.MsgID{m1.ID}, log.Unacked())

	m2 := transcript.NewMsg("m2", "B", []transcript.MsgID{m1.ID}, nil, nil)
	_, err = tr.Add(m2)
	require.NoError(t, err)
	require.NoError(t, sub(m2.ID))

	assert.Empty(t, log.Unacked())
}
