// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package session

import (
	"sync"
	"time"

	"github.com/eXcomm/mpenc-go/aske"
	"github.com/eXcomm/mpenc-go/errs"
	"github.com/eXcomm/mpenc-go/internal/metrics"
	"github.com/eXcomm/mpenc-go/messagelog"
	"github.com/eXcomm/mpenc-go/transcript"
)

// HandshakeState is the informal state the ASKE spec describes: INIT ->
// UPFLOWING -> AWAITING_ACKS -> ACKED, re-entered (without losing member
// identity) by Join and Exclude.
type HandshakeState int

const (
	StateInit HandshakeState = iota
	StateUpflowing
	StateAwaitingAcks
	StateAcked
)

func (s HandshakeState) String() string {
	switch s {
	case StateUpflowing:
		return "UPFLOWING"
	case StateAwaitingAcks:
		return "AWAITING_ACKS"
	case StateAcked:
		return "ACKED"
	default:
		return "INIT"
	}
}

// Processor is the single owner of one conversation's ASKE Member,
// Transcript and MessageLog. Nothing here is safe for concurrent use
// across processors sharing state; a Processor itself serializes its own
// operations with a mutex so a transport goroutine and a UI goroutine
// can share one safely.
type Processor struct {
	mu sync.Mutex

	id         string
	member     *aske.Member
	transcript *transcript.Transcript
	log        *messagelog.Log
	subscriber messagelog.Subscriber

	hsCfg HandshakeConfig
	state HandshakeState

	correlationLabel string
	metadata         *Metadata
	replayGuard      func(source string, sid [32]byte) bool

	watchers []Watcher
	pending  map[transcript.MsgID]*time.Timer
}

// NewProcessor builds a Processor around an already-constructed Member,
// Transcript and (optional) MessageLog. sub, if non-nil, is the
// subscriber returned by log.GetSubscriberFor(tr, ...); it is invoked
// after every transcript message this Processor accepts.
func NewProcessor(id string, member *aske.Member, tr *transcript.Transcript, log *messagelog.Log, sub messagelog.Subscriber, hsCfg HandshakeConfig) *Processor {
	return &Processor{
		id:         id,
		member:     member,
		transcript: tr,
		log:        log,
		subscriber: sub,
		hsCfg:      withHandshakeDefaults(hsCfg),
		metadata:   NewMetadataBuilder().Build(),
		pending:    make(map[transcript.MsgID]*time.Timer),
	}
}

// ID returns the conversation id this Processor owns.
func (p *Processor) ID() string { return p.id }

// Metadata returns a snapshot of this conversation's lifecycle
// bookkeeping (status, creation/expiry timestamps, invite salt).
func (p *Processor) Metadata() Metadata {
	p.mu.Lock()
	defer p.mu.Unlock()
	return *p.metadata
}

// RefreshExpiry extends this conversation's metadata expiry to d from
// now. The owning Manager calls this whenever it refreshes its own
// idle-cleanup deadline for the conversation, keeping the two in sync.
func (p *Processor) RefreshExpiry(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metadata.ExpiresAt = time.Now().UTC().Add(d).Format(time.RFC3339)
}

// markExpired marks this conversation's metadata as expired. The owning
// Manager calls this just before evicting the conversation, so any
// caller still holding this Processor observes the terminal status.
func (p *Processor) markExpired() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metadata.Status = "expired"
}

// SetReplayGuard installs the callback Downflow consults to reject a
// session-id broadcast already processed from the same source for this
// conversation. The owning Manager wires this to its shared replay
// cache; a Processor built without a Manager (e.g. in tests or the demo
// CLI) simply performs no replay check.
func (p *Processor) SetReplayGuard(guard func(source string, sid [32]byte) bool) {
	p.mu.Lock()
	p.replayGuard = guard
	p.mu.Unlock()
}

// CorrelationLabel returns a short, non-secret label derived from the
// currently agreed session id via HKDF, suitable for log lines and
// metrics where tagging with the full 32-byte SID would be unwieldy. It
// reports false until a session id has been agreed.
func (p *Processor) CorrelationLabel() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.correlationLabel, p.correlationLabel != ""
}

// Member returns the underlying ASKE member state machine.
func (p *Processor) Member() *aske.Member { return p.member }

// Transcript returns the underlying causal-order DAG.
func (p *Processor) Transcript() *transcript.Transcript { return p.transcript }

// Watch registers a callback invoked for every Event this Processor
// emits, in emission order.
func (p *Processor) Watch(w Watcher) {
	p.mu.Lock()
	p.watchers = append(p.watchers, w)
	p.mu.Unlock()
}

func (p *Processor) emit(e Event) {
	if e.SessionID == "" {
		e.SessionID = p.id
	}
	for _, w := range p.watchers {
		w(e)
	}
}

func (p *Processor) refreshState() {
	next := StateInit
	switch {
	case p.member.IsSessionAcknowledged():
		next = StateAcked
	default:
		if _, hasSID := p.member.SessionID(); hasSID {
			next = StateAwaitingAcks
		} else if len(p.member.Members()) > 0 {
			next = StateUpflowing
		}
	}
	if sid, hasSID := p.member.SessionID(); hasSID {
		p.correlationLabel = deriveCorrelationLabel(sid)
	}

	if next != p.state {
		p.state = next
		if next == StateAcked {
			p.metadata.Status = "active"
		}
		metrics.MembershipChanges.WithLabelValues("state_change").Inc()
		p.emit(Event{Kind: SNStateChange, Context: next.String()})
	}
}

// Commit initiates a fresh handshake with otherMembers.
func (p *Processor) Commit(otherMembers []string) (*aske.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	metrics.HandshakesInitiated.WithLabelValues("commit").Inc()
	start := time.Now()
	msg, err := p.member.Commit(otherMembers)
	metrics.HandshakeDuration.WithLabelValues("commit").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.HandshakesFailed.WithLabelValues(failureLabel(err)).Inc()
		return nil, err
	}
	p.refreshState()
	return msg, nil
}

// Upflow processes an inbound upflow message.
func (p *Processor) Upflow(msg *aske.Message) (*aske.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	out, err := p.member.Upflow(msg)
	metrics.HandshakeDuration.WithLabelValues("upflow").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.HandshakesFailed.WithLabelValues(failureLabel(err)).Inc()
		return nil, err
	}
	p.refreshState()
	return out, nil
}

// Downflow processes an inbound broadcast acknowledgement.
func (p *Processor) Downflow(msg *aske.Message) (*aske.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.replayGuard != nil {
		sid := aske.DeriveSessionID(p.member.SHA256, msg.Members, msg.Nonces)
		if p.replayGuard(msg.Source, sid) {
			err := errs.New(errs.StateInvalid, "replayed downflow broadcast from %q", msg.Source)
			metrics.HandshakesFailed.WithLabelValues(failureLabel(err)).Inc()
			return nil, err
		}
	}

	start := time.Now()
	out, err := p.member.Downflow(msg)
	metrics.HandshakeDuration.WithLabelValues("downflow").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.HandshakesFailed.WithLabelValues(failureLabel(err)).Inc()
		return nil, err
	}
	wasAcked := p.state == StateAcked
	p.refreshState()
	if !wasAcked && p.state == StateAcked {
		metrics.HandshakesCompleted.WithLabelValues("success").Inc()
	}
	return out, nil
}

// Join admits newMembers, emitting SNInclude alongside the upflow to send.
func (p *Processor) Join(newMembers []string) (*aske.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	metrics.HandshakesInitiated.WithLabelValues("join").Inc()
	msg, err := p.member.Join(newMembers)
	if err != nil {
		metrics.HandshakesFailed.WithLabelValues(failureLabel(err)).Inc()
		return nil, err
	}
	metrics.MembershipChanges.WithLabelValues("include").Inc()
	p.refreshState()
	p.emit(Event{Kind: SNInclude, Context: joinSubjects(newMembers)})
	return msg, nil
}

// Exclude re-keys the session without excludeMembers, emitting SNExclude
// alongside the downflow to broadcast.
func (p *Processor) Exclude(excludeMembers []string) (*aske.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	metrics.HandshakesInitiated.WithLabelValues("exclude").Inc()
	msg, err := p.member.Exclude(excludeMembers)
	if err != nil {
		metrics.HandshakesFailed.WithLabelValues(failureLabel(err)).Inc()
		return nil, err
	}
	metrics.MembershipChanges.WithLabelValues("exclude").Inc()
	p.refreshState()
	p.emit(Event{Kind: SNExclude, Context: joinSubjects(excludeMembers)})
	return msg, nil
}

// ExpectMessage notes that a still-opaque message mId was received from
// sender and starts the grace-period clock: if AcceptMessage for mId has
// not been called by the time the handshake timeout elapses, a
// NotDecrypted event fires. Decryption itself happens outside this
// module; this only tracks whether it happened in time.
func (p *Processor) ExpectMessage(mId transcript.MsgID, sender string, size int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	timer := time.AfterFunc(p.hsCfg.Timeout, func() {
		p.mu.Lock()
		_, stillPending := p.pending[mId]
		delete(p.pending, mId)
		p.mu.Unlock()
		if stillPending {
			metrics.NotDecryptedEvents.Inc()
			p.emit(Event{Kind: NotDecrypted, Sender: sender, MsgID: mId, Size: size, Context: p.id})
		}
	})
	p.pending[mId] = timer
}

// AcceptMessage validates and inserts msg into the transcript, cancels
// any pending grace-period timer for it, forwards it to the message log
// subscriber if one is attached, and emits the resulting events.
func (p *Processor) AcceptMessage(msg *transcript.Msg) ([]transcript.MsgID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.pending[msg.ID]; ok {
		t.Stop()
		delete(p.pending, msg.ID)
	}

	start := time.Now()
	acked, err := p.transcript.Add(msg)
	metrics.TranscriptValidationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MessagesAdded.WithLabelValues("rejected").Inc()
		p.emit(Event{Kind: NotAccepted, Sender: msg.Author, MsgID: msg.ID, Err: err})
		return nil, err
	}
	metrics.MessagesAdded.WithLabelValues("accepted").Inc()
	metrics.MessageSize.Observe(float64(len(msg.Body)))

	if p.subscriber != nil {
		if err := p.subscriber(msg.ID); err != nil {
			return acked, err
		}
		if idx, ok := p.log.IndexOf(msg.ID); ok {
			p.emit(Event{Kind: MsgReady, Sender: msg.Author, MsgID: msg.ID, Size: idx})
		}
	}

	if len(acked) > 0 {
		metrics.AcksPropagated.Add(float64(len(acked)))
	}
	for _, a := range acked {
		p.emit(Event{Kind: MsgFullyAcked, MsgID: a})
	}
	return acked, nil
}

// NotFullyAcked emits a NotFullyAcked event carrying the transcript's
// current unacked set, for callers that poll rather than watch.
func (p *Processor) NotFullyAcked() []transcript.MsgID {
	p.mu.Lock()
	defer p.mu.Unlock()

	unacked := p.transcript.Unacked()
	p.emit(Event{Kind: NotFullyAcked, Context: p.id})
	return unacked
}

func joinSubjects(pids []string) string {
	out := ""
	for i, pid := range pids {
		if i > 0 {
			out += ","
		}
		out += pid
	}
	return out
}

func failureLabel(err error) string {
	e, ok := err.(*errs.Error)
	if !ok {
		return "other"
	}
	switch e.Kind {
	case errs.AuthenticationFailedKind:
		return "authentication"
	case errs.UnknownPeerKind:
		return "unknown_peer"
	case errs.MalformedTLVKind, errs.MalformedMessageKind:
		return "malformed"
	default:
		return "other"
	}
}
