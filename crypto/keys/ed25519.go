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

package keys

import (
	"crypto/ed25519"
	"crypto/rand"
)

// ephemeralKeyPair is the fresh, per-session Ed25519 keypair every ASKE
// participant generates during Member.Upflow.
type ephemeralKeyPair struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// GenerateEphemeralKeyPair generates a new Ed25519 keypair, using the
// standard library's crypto/ed25519.
func GenerateEphemeralKeyPair() (*ephemeralKeyPair, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &ephemeralKeyPair{privateKey: privateKey, publicKey: publicKey}, nil
}

func (kp *ephemeralKeyPair) PublicKey() ed25519.PublicKey   { return kp.publicKey }
func (kp *ephemeralKeyPair) PrivateKey() ed25519.PrivateKey { return kp.privateKey }

func (kp *ephemeralKeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.privateKey, message)
}

func (kp *ephemeralKeyPair) Verify(pub ed25519.PublicKey, message, signature []byte) bool {
	return ed25519.Verify(pub, message, signature)
}
