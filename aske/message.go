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

// Package aske implements the Authenticated Signature Key Exchange state
// machine: a dynamic set of participants agree on per-session ephemeral
// signing keys, authenticated by long-term keys resolved through a
// directory capability.
package aske

import "crypto/ed25519"

// Flow names the direction of an ASKE message: upflow travels
// member-to-member adding contributions, downflow is the broadcast
// acknowledgement phase.
type Flow int

const (
	Upflow Flow = iota
	Downflow
)

func (f Flow) String() string {
	if f == Downflow {
		return "DOWNFLOW"
	}
	return "UPFLOW"
}

// Message is the immutable envelope passed upflow and downflow during
// key agreement. Construction here does not validate the invariants a
// Member enforces; it is a plain value.
type Message struct {
	Source           string
	Dest             string
	Flow             Flow
	Members          []string
	Nonces           [][]byte
	PubKeys          []ed25519.PublicKey
	SessionSignature []byte
}
