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

package aske

import (
	"crypto/ed25519"

	"github.com/eXcomm/mpenc-go/crypto"
	"github.com/eXcomm/mpenc-go/errs"
)

// OldEphemeralKey retains what a Member knew about a participant who has
// since been excluded from the session.
type OldEphemeralKey struct {
	Pub           ed25519.PublicKey
	Authenticated bool
}

// Member is one participant's view of the key-exchange state machine. It
// is not safe for concurrent use: the core is single-threaded
// cooperative, and callers that want parallelism must shard by session.
type Member struct {
	id string

	members []string
	nonce   []byte
	eph     crypto.EphemeralKeyPair

	nonces           [][]byte
	ephemeralPubKeys []ed25519.PublicKey
	authenticated    []bool

	hasSessionID bool
	sessionID    [32]byte

	oldEphemeralKeys map[string]OldEphemeralKey

	staticKeyPair crypto.StaticKeyPair
	staticDir     crypto.StaticKeyDirectory
	cap           crypto.Capability
}

// NewMember creates a fresh Member identified by id, ready to commit a
// session with other participants.
func NewMember(id string, staticKeyPair crypto.StaticKeyPair, staticDir crypto.StaticKeyDirectory, capability crypto.Capability) *Member {
	return &Member{
		id:               id,
		oldEphemeralKeys: make(map[string]OldEphemeralKey),
		staticKeyPair:    staticKeyPair,
		staticDir:        staticDir,
		cap:              capability,
	}
}

// ID returns the member's own participant id.
func (m *Member) ID() string { return m.id }

// SHA256 exposes the member's hash capability so callers (e.g. the
// session glue layer) can compute a tentative SID for an inbound
// message, such as to check it against a replay guard, before handing
// the message to Downflow.
func (m *Member) SHA256(data ...[]byte) [32]byte { return m.cap.SHA256(data...) }

// SessionID returns the currently agreed session id, if any has been
// derived yet.
func (m *Member) SessionID() ([32]byte, bool) { return m.sessionID, m.hasSessionID }

// Members returns the current positional member list.
func (m *Member) Members() []string { return append([]string(nil), m.members...) }

// IsSessionAcknowledged reports whether every member has authenticated.
func (m *Member) IsSessionAcknowledged() bool {
	if len(m.authenticated) == 0 {
		return false
	}
	for _, ok := range m.authenticated {
		if !ok {
			return false
		}
	}
	return true
}

// Commit initiates an upflow addressed to self followed by
// otherMembers. It resets any prior nonce/ephemeral key state.
func (m *Member) Commit(otherMembers []string) (*Message, error) {
	if len(otherMembers) == 0 {
		return nil, errs.New(errs.InputInvalid, "commit requires at least one other member")
	}
	m.nonce = nil
	m.eph = nil

	members := make([]string, 0, len(otherMembers)+1)
	members = append(members, m.id)
	members = append(members, otherMembers...)

	msg := &Message{
		Source:  m.id,
		Dest:    "",
		Flow:    Upflow,
		Members: members,
	}
	return m.Upflow(msg)
}

// Upflow processes an upflow message passing through this member,
// contributing a fresh nonce and ephemeral keypair and forwarding to the
// next member, or completing the chain and emitting the downflow
// broadcast if self is last.
func (m *Member) Upflow(msg *Message) (*Message, error) {
	if hasDuplicates(msg.Members) {
		return nil, errs.New(errs.InputInvalid, "upflow members contain duplicates")
	}
	if len(msg.Nonces) > len(msg.Members) {
		return nil, errs.New(errs.InputInvalid, "upflow has more nonces than members")
	}
	if len(msg.PubKeys) > len(msg.Members) {
		return nil, errs.New(errs.InputInvalid, "upflow has more public keys than members")
	}
	myPos := indexOf(msg.Members, m.id)
	if myPos < 0 {
		return nil, errs.New(errs.InputInvalid, "self is not a member of the upflow")
	}

	m.members = append([]string(nil), msg.Members...)
	m.nonces = cloneBytesSlice(msg.Nonces)
	m.ephemeralPubKeys = append([]ed25519.PublicKey(nil), msg.PubKeys...)

	nonce, err := m.cap.RandomBytes(32)
	if err != nil {
		return nil, err
	}
	eph, err := m.cap.GenerateEphemeral()
	if err != nil {
		return nil, err
	}
	m.nonce = nonce
	m.eph = eph
	m.nonces = append(m.nonces, nonce)
	m.ephemeralPubKeys = append(m.ephemeralPubKeys, eph.PublicKey())

	out := &Message{
		Source:  m.id,
		Flow:    Upflow,
		Members: append([]string(nil), m.members...),
		Nonces:  cloneBytesSlice(m.nonces),
		PubKeys: append([]ed25519.PublicKey(nil), m.ephemeralPubKeys...),
	}

	if myPos == len(m.members)-1 {
		m.sessionID = DeriveSessionID(m.cap.SHA256, m.members, m.nonces)
		m.hasSessionID = true
		m.authenticated = make([]bool, len(m.members))
		m.authenticated[myPos] = true

		out.Flow = Downflow
		out.Dest = ""
		sig, err := m.signSessionAck()
		if err != nil {
			return nil, err
		}
		out.SessionSignature = sig
		return out, nil
	}

	out.Dest = m.members[myPos+1]
	return out, nil
}

// Downflow processes a broadcast acknowledgement. It returns (nil, nil)
// when this member has already broadcast its own acknowledgement for
// the current session and has nothing further to emit.
func (m *Member) Downflow(msg *Message) (*Message, error) {
	if hasDuplicates(msg.Members) {
		return nil, errs.New(errs.InputInvalid, "downflow members contain duplicates")
	}

	sid := DeriveSessionID(m.cap.SHA256, msg.Members, msg.Nonces)
	alreadyCurrent := m.hasSessionID && sid == m.sessionID

	if !alreadyCurrent {
		m.members = append([]string(nil), msg.Members...)
		m.nonces = cloneBytesSlice(msg.Nonces)
		m.ephemeralPubKeys = append([]ed25519.PublicKey(nil), msg.PubKeys...)
		m.sessionID = sid
		m.hasSessionID = true
		m.authenticated = make([]bool, len(m.members))
		if myPos := indexOf(m.members, m.id); myPos >= 0 {
			m.authenticated[myPos] = true
		}
	}

	senderPos := indexOf(m.members, msg.Source)
	if err := m.verifySessionAck(senderPos, msg.SessionSignature); err != nil {
		return nil, err
	}
	m.authenticated[senderPos] = true

	if alreadyCurrent {
		return nil, nil
	}

	sig, err := m.signSessionAck()
	if err != nil {
		return nil, err
	}
	out := &Message{
		Source:           m.id,
		Flow:             Downflow,
		Members:          append([]string(nil), m.members...),
		Nonces:           cloneBytesSlice(m.nonces),
		PubKeys:          append([]ed25519.PublicKey(nil), m.ephemeralPubKeys...),
		SessionSignature: sig,
	}
	return out, nil
}

// Join appends newMembers to the session and emits an upflow addressed
// to the first of them, carrying the current positional state.
func (m *Member) Join(newMembers []string) (*Message, error) {
	if len(newMembers) == 0 {
		return nil, errs.New(errs.InputInvalid, "join requires at least one new member")
	}
	combined := append(append([]string(nil), m.members...), newMembers...)
	if hasDuplicates(combined) {
		return nil, errs.New(errs.InputInvalid, "join would duplicate an existing member")
	}

	m.members = combined
	return &Message{
		Source:  m.id,
		Dest:    newMembers[0],
		Flow:    Upflow,
		Members: append([]string(nil), m.members...),
		Nonces:  cloneBytesSlice(m.nonces),
		PubKeys: append([]ed25519.PublicKey(nil), m.ephemeralPubKeys...),
	}, nil
}

// Exclude removes excludeMembers from the session, re-derives the
// session id, resets authentication, and returns a fresh downflow
// broadcast.
func (m *Member) Exclude(excludeMembers []string) (*Message, error) {
	if len(excludeMembers) == 0 {
		return nil, errs.New(errs.InputInvalid, "exclude requires at least one member")
	}
	for _, pid := range excludeMembers {
		if pid == m.id {
			return nil, errs.New(errs.InputInvalid, "cannot exclude self")
		}
		if indexOf(m.members, pid) < 0 {
			return nil, errs.New(errs.InputInvalid, "exclude member %q is not in the session", pid)
		}
	}

	excludeSet := make(map[string]bool, len(excludeMembers))
	for _, pid := range excludeMembers {
		excludeSet[pid] = true
	}

	newMembers := make([]string, 0, len(m.members))
	newNonces := make([][]byte, 0, len(m.nonces))
	newPubKeys := make([]ed25519.PublicKey, 0, len(m.ephemeralPubKeys))
	for i, pid := range m.members {
		if excludeSet[pid] {
			var pub ed25519.PublicKey
			if i < len(m.ephemeralPubKeys) {
				pub = m.ephemeralPubKeys[i]
			}
			var authed bool
			if i < len(m.authenticated) {
				authed = m.authenticated[i]
			}
			m.oldEphemeralKeys[pid] = OldEphemeralKey{Pub: pub, Authenticated: authed}
			continue
		}
		newMembers = append(newMembers, pid)
		if i < len(m.nonces) {
			newNonces = append(newNonces, m.nonces[i])
		}
		if i < len(m.ephemeralPubKeys) {
			newPubKeys = append(newPubKeys, m.ephemeralPubKeys[i])
		}
	}

	m.members = newMembers
	m.nonces = newNonces
	m.ephemeralPubKeys = newPubKeys
	m.sessionID = DeriveSessionID(m.cap.SHA256, m.members, m.nonces)
	m.hasSessionID = true
	m.authenticated = make([]bool, len(m.members))
	if myPos := indexOf(m.members, m.id); myPos >= 0 {
		m.authenticated[myPos] = true
	}

	sig, err := m.signSessionAck()
	if err != nil {
		return nil, err
	}
	return &Message{
		Source:           m.id,
		Flow:             Downflow,
		Members:          append([]string(nil), m.members...),
		Nonces:           cloneBytesSlice(m.nonces),
		PubKeys:          append([]ed25519.PublicKey(nil), m.ephemeralPubKeys...),
		SessionSignature: sig,
	}, nil
}

// OldEphemeralKeys returns what this member retains about previously
// excluded participants, keyed by pid.
func (m *Member) OldEphemeralKeys() map[string]OldEphemeralKey {
	out := make(map[string]OldEphemeralKey, len(m.oldEphemeralKeys))
	for k, v := range m.oldEphemeralKeys {
		out[k] = v
	}
	return out
}

// signSessionAck computes ack_bytes = id || ek_pub || nonce ||
// sessionId and signs its SHA-256 digest with the member's static key.
func (m *Member) signSessionAck() ([]byte, error) {
	if !m.hasSessionID {
		return nil, errs.New(errs.StateInvalid, "session id missing")
	}
	ackBytes := [][]byte{[]byte(m.id), m.eph.PublicKey(), m.nonce, m.sessionID[:]}
	digest := m.cap.SHA256(ackBytes...)
	return m.cap.SignStatic(m.staticKeyPair, digest[:])
}

// verifySessionAck reconstructs ack_bytes from the member's positional
// slot for senderPos and checks signature against the static key
// directory.
func (m *Member) verifySessionAck(senderPos int, signature []byte) error {
	if !m.hasSessionID {
		return errs.New(errs.StateInvalid, "session id missing")
	}
	if senderPos < 0 {
		return errs.New(errs.StateInvalid, "member not in list")
	}
	if senderPos >= len(m.ephemeralPubKeys) || m.ephemeralPubKeys[senderPos] == nil {
		return errs.New(errs.StateInvalid, "ephemeral pub missing")
	}
	pid := m.members[senderPos]
	pub, err := m.staticDir.Get(pid)
	if err != nil {
		return err
	}
	if pub == nil {
		return errs.New(errs.StateInvalid, "static pub missing")
	}

	var nonce []byte
	if senderPos < len(m.nonces) {
		nonce = m.nonces[senderPos]
	}
	ackBytes := [][]byte{[]byte(pid), m.ephemeralPubKeys[senderPos], nonce, m.sessionID[:]}
	digest := m.cap.SHA256(ackBytes...)
	if err := m.cap.VerifyStatic(pub, digest[:], signature); err != nil {
		return errs.AuthenticationFailed(pid)
	}
	return nil
}

func indexOf(members []string, pid string) int {
	for i, p := range members {
		if p == pid {
			return i
		}
	}
	return -1
}

func hasDuplicates(members []string) bool {
	seen := make(map[string]bool, len(members))
	for _, pid := range members {
		if seen[pid] {
			return true
		}
		seen[pid] = true
	}
	return false
}

func cloneBytesSlice(in [][]byte) [][]byte {
	out := make([][]byte, len(in))
	for i, b := range in {
		out[i] = append([]byte(nil), b...)
	}
	return out
}
