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

// Package session wires one ASKE Member, one Transcript and one
// MessageLog together into the processor that owns a single
// conversation, and translates their synchronous verdicts into the
// user-visible event stream (SNStateChange, SNInclude, SNExclude,
// NotDecrypted, and the MsgReady/MsgFullyAcked/NotAccepted/NotFullyAcked
// passthroughs). Timeouts live here, not in the core: the core never
// blocks, so the grace period that turns a still-unready message into
// NotDecrypted is this package's responsibility.
package session

import (
	"time"

	"github.com/eXcomm/mpenc-go/transcript"
)

const GeneralPrefix = "conv-"

// EventKind names the events the session layer surfaces above the core.
type EventKind string

const (
	// SNStateChange reports a transition in the owning Member's
	// handshake state (see aske.Member): INIT/UPFLOWING/AWAITING_ACKS/ACKED.
	SNStateChange EventKind = "SNStateChange"
	// SNInclude reports that Join produced an upflow admitting new
	// members.
	SNInclude EventKind = "SNInclude"
	// SNExclude reports that Exclude re-keyed the session without some
	// members.
	SNExclude EventKind = "SNExclude"
	// NotDecrypted reports a message announced via ExpectMessage that was
	// not passed to AcceptMessage within the handshake Timeout.
	NotDecrypted EventKind = "NotDecrypted"
	// MsgReady passes through a message log append.
	MsgReady EventKind = "MsgReady"
	// MsgFullyAcked passes through transcript.Add's returned ack set.
	MsgFullyAcked EventKind = "MsgFullyAcked"
	// NotAccepted passes through a transcript.Add validation failure.
	NotAccepted EventKind = "NotAccepted"
	// NotFullyAcked passes through Transcript.Unacked() on request.
	NotFullyAcked EventKind = "NotFullyAcked"
)

// Event is the single shape every user-visible notification takes.
// Fields not relevant to Kind are left zero.
type Event struct {
	Kind      EventKind
	SessionID string
	Sender    string
	MsgID     transcript.MsgID
	Size      int
	Context   string
	Err       error
}

// Watcher receives every Event a Processor emits, in emission order.
type Watcher func(Event)

// HandshakeConfig mirrors config.HandshakeConfig. A Processor uses only
// Timeout, as the grace period of ExpectMessage; MaxRetries and
// RetryBackoff are defaulted but drive no retry.
type HandshakeConfig struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Config governs how long a Manager keeps idle conversations around and
// how many it will track at once. It mirrors config.SessionConfig.
type Config struct {
	MaxIdleTime     time.Duration
	CleanupInterval time.Duration
	MaxSessions     int
}

func withDefaults(c Config) Config {
	if c.MaxIdleTime == 0 {
		c.MaxIdleTime = 30 * time.Minute
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = 5 * time.Minute
	}
	if c.MaxSessions == 0 {
		c.MaxSessions = 10000
	}
	return c
}

func withHandshakeDefaults(c HandshakeConfig) HandshakeConfig {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 1 * time.Second
	}
	return c
}

// Status summarizes a Manager's conversations for health/metrics reporting.
type Status struct {
	TotalConversations   int
	ActiveConversations  int
	ExpiredConversations int
}
