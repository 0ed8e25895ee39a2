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
	stdcrypto "crypto"
	"crypto/rand"
	"crypto/rsa"
	"errors"
)

// ErrInvalidSignature is returned by staticKeyPair.Verify when a PKCS#1
// v1.5 signature does not match the supplied digest and public key.
var ErrInvalidSignature = errors.New("invalid signature")

// staticKeyPair is a long-term RSA signing keypair, resolved for peers
// through a StaticKeyDirectory and used only to authenticate
// session-acknowledgement bytes.
//
// Signs and verifies with standard rsa.SignPKCS1v15/VerifyPKCS1v15 over
// a caller-supplied digest, rather than composing PKCS#1 padding with
// raw private-key encryption the way the original construction did —
// see DESIGN.md for the reasoning.
type staticKeyPair struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

// GenerateStaticKeyPair generates a new 2048-bit RSA keypair.
func GenerateStaticKeyPair() (*staticKeyPair, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return &staticKeyPair{privateKey: privateKey, publicKey: &privateKey.PublicKey}, nil
}

func (kp *staticKeyPair) PublicKey() *rsa.PublicKey   { return kp.publicKey }
func (kp *staticKeyPair) PrivateKey() *rsa.PrivateKey { return kp.privateKey }

// Sign signs a SHA-256 digest with PKCS#1 v1.5.
func (kp *staticKeyPair) Sign(digest []byte) ([]byte, error) {
	return rsa.SignPKCS1v15(rand.Reader, kp.privateKey, stdcrypto.SHA256, digest)
}

// Verify checks a PKCS#1 v1.5 signature over a SHA-256 digest.
func (kp *staticKeyPair) Verify(pub *rsa.PublicKey, digest, signature []byte) error {
	if err := rsa.VerifyPKCS1v15(pub, stdcrypto.SHA256, digest, signature); err != nil {
		return ErrInvalidSignature
	}
	return nil
}
