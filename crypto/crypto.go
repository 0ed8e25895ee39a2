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

// Package crypto provides the Capability abstraction the ASKE state
// machine is built against, plus its default implementation. Real
// implementations of the individual primitives live in subpackages:
//   - crypto/keys: Ed25519 ephemeral and RSA static key pairs
//   - crypto/storage: the static key directory
package crypto

import (
	stdcrypto "crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"

	"github.com/eXcomm/mpenc-go/crypto/keys"
)

// defaultCapability implements Capability using the standard library's
// crypto/ed25519, crypto/rsa, crypto/sha256 and crypto/rand.
type defaultCapability struct{}

// Default returns the stdlib-backed Capability used outside of tests.
func Default() Capability {
	return defaultCapability{}
}

func (defaultCapability) SHA256(data ...[]byte) [32]byte {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func (defaultCapability) RandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return buf, nil
}

func (defaultCapability) GenerateEphemeral() (EphemeralKeyPair, error) {
	return keys.GenerateEphemeralKeyPair()
}

func (defaultCapability) SignStatic(kp StaticKeyPair, digest []byte) ([]byte, error) {
	return kp.Sign(digest)
}

func (defaultCapability) VerifyStatic(pub *rsa.PublicKey, digest, signature []byte) error {
	return rsa.VerifyPKCS1v15(pub, stdcrypto.SHA256, digest, signature)
}
