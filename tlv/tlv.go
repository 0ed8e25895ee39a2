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

// Package tlv implements the wire framing ASKE messages are serialised
// with: type:u16be || length:u16be || value.
package tlv

import (
	"encoding/binary"

	"github.com/eXcomm/mpenc-go/errs"
)

const headerLen = 4

// Encode frames a single type/value unit.
func Encode(typ uint16, value []byte) []byte {
	out := make([]byte, headerLen+len(value))
	binary.BigEndian.PutUint16(out[0:2], typ)
	binary.BigEndian.PutUint16(out[2:4], uint16(len(value)))
	copy(out[headerLen:], value)
	return out
}

// Decode parses one unit from the front of data, returning its type,
// value (nil for a zero-length unit), and the remaining bytes, which
// may contain further units.
func Decode(data []byte) (typ uint16, value []byte, rest []byte, err error) {
	if len(data) < headerLen {
		return 0, nil, nil, errs.New(errs.MalformedTLVKind, "buffer shorter than a TLV header (%d bytes)", len(data))
	}
	typ = binary.BigEndian.Uint16(data[0:2])
	length := binary.BigEndian.Uint16(data[2:4])
	if len(data)-headerLen < int(length) {
		return 0, nil, nil, errs.New(errs.MalformedTLVKind, "declared length %d exceeds remaining buffer (%d bytes)", length, len(data)-headerLen)
	}
	if length > 0 {
		value = append([]byte(nil), data[headerLen:headerLen+int(length)]...)
	}
	rest = data[headerLen+int(length):]
	return typ, value, rest, nil
}
