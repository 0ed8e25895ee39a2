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
	"crypto/sha256"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/hkdf"
)

// correlationInfo labels the HKDF expand step so a correlation label can
// never collide with a key derived from the same SID for another
// purpose.
var correlationInfo = []byte("mpenc-log-correlation")

// deriveCorrelationLabel turns an agreed session id into a short,
// non-secret label for log lines and metrics, instead of printing or
// tagging metrics with the full 32-byte SID. The SID is already known to
// every session member (it is exchanged in the clear during the
// handshake), so this buys label brevity and stable metrics
// cardinality, not confidentiality.
func deriveCorrelationLabel(sid [32]byte) string {
	r := hkdf.New(sha256.New, sid[:], nil, correlationInfo)
	out := make([]byte, 8)
	if _, err := io.ReadFull(r, out); err != nil {
		// HKDF-Expand over SHA-256 can only fail if the requested length
		// exceeds 255*32 bytes; 8 bytes never does.
		panic(err)
	}
	return hex.EncodeToString(out)
}
