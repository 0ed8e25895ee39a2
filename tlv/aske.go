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

package tlv

import (
	"crypto/ed25519"

	"github.com/eXcomm/mpenc-go/aske"
	"github.com/eXcomm/mpenc-go/errs"
)

// Fixed TLV type assignment for an ASKE message.
const (
	TypeSource           uint16 = 1
	TypeDest             uint16 = 2
	TypeFlow             uint16 = 3
	TypeMember           uint16 = 4
	TypeNonce            uint16 = 5
	TypePubKey           uint16 = 6
	TypeSessionSignature uint16 = 7
)

// EncodeMessage serialises an ASKE message as an ordered sequence of
// TLVs: source, dest, flow, one TLV per member, one per nonce, one per
// public key, then the session signature (present only when non-empty).
func EncodeMessage(msg *aske.Message) []byte {
	var out []byte
	out = append(out, Encode(TypeSource, []byte(msg.Source))...)
	out = append(out, Encode(TypeDest, []byte(msg.Dest))...)
	out = append(out, Encode(TypeFlow, []byte{byte(msg.Flow)})...)
	for _, pid := range msg.Members {
		out = append(out, Encode(TypeMember, []byte(pid))...)
	}
	for _, n := range msg.Nonces {
		out = append(out, Encode(TypeNonce, n)...)
	}
	for _, pk := range msg.PubKeys {
		out = append(out, Encode(TypePubKey, pk)...)
	}
	if len(msg.SessionSignature) > 0 {
		out = append(out, Encode(TypeSessionSignature, msg.SessionSignature)...)
	}
	return out
}

// DecodeMessage parses bytes produced by EncodeMessage back into an
// ASKE message.
func DecodeMessage(data []byte) (*aske.Message, error) {
	msg := &aske.Message{}
	rest := data
	for len(rest) > 0 {
		typ, value, next, err := Decode(rest)
		if err != nil {
			return nil, err
		}
		rest = next

		switch typ {
		case TypeSource:
			msg.Source = string(value)
		case TypeDest:
			msg.Dest = string(value)
		case TypeFlow:
			if len(value) != 1 {
				return nil, errs.New(errs.MalformedMessageKind, "flow field must be one byte")
			}
			msg.Flow = aske.Flow(value[0])
		case TypeMember:
			msg.Members = append(msg.Members, string(value))
		case TypeNonce:
			msg.Nonces = append(msg.Nonces, value)
		case TypePubKey:
			msg.PubKeys = append(msg.PubKeys, ed25519.PublicKey(value))
		case TypeSessionSignature:
			msg.SessionSignature = value
		default:
			return nil, errs.New(errs.MalformedMessageKind, "unknown ASKE TLV type %d", typ)
		}
	}
	return msg, nil
}
