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

package crypto

import (
	"crypto/ed25519"
	"crypto/rsa"
)

// KeyType names the two key shapes this module signs with: fresh
// per-session Ed25519 ephemerals and long-term RSA static keys.
type KeyType string

const (
	KeyTypeEd25519 KeyType = "Ed25519"
	KeyTypeRSA     KeyType = "RSA"
)

// EphemeralKeyPair is a per-session, per-participant Ed25519 signing
// keypair.
type EphemeralKeyPair interface {
	PublicKey() ed25519.PublicKey
	PrivateKey() ed25519.PrivateKey
	Sign(message []byte) []byte
	Verify(pub ed25519.PublicKey, message, signature []byte) bool
}

// StaticKeyPair is a long-term RSA signing keypair belonging to one
// participant, used only to authenticate session-acknowledgement bytes.
type StaticKeyPair interface {
	PublicKey() *rsa.PublicKey
	PrivateKey() *rsa.PrivateKey
	Sign(digest []byte) ([]byte, error)
	Verify(pub *rsa.PublicKey, digest, signature []byte) error
}

// StaticKeyDirectory resolves a participant's long-term public key.
type StaticKeyDirectory interface {
	Get(pid string) (*rsa.PublicKey, error)
	Put(pid string, pub *rsa.PublicKey)
}

// Capability is the small, synchronous set of primitives the ASKE state
// machine is built against. Nothing in this module's core
// packages constructs keys or randomness directly; they all go through
// this interface so the primitives can be swapped (e.g. in tests) without
// touching protocol logic.
type Capability interface {
	SHA256(data ...[]byte) [32]byte
	RandomBytes(n int) ([]byte, error)
	GenerateEphemeral() (EphemeralKeyPair, error)
	SignStatic(kp StaticKeyPair, digest []byte) ([]byte, error)
	VerifyStatic(pub *rsa.PublicKey, digest, signature []byte) error
}
