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

// Package transcript implements the append-only, causally-ordered DAG
// that records payload messages exchanged under an acknowledged ASKE
// session.
package transcript

import "github.com/google/uuid"

// MsgID is an opaque, unique message identifier.
type MsgID string

// NewMsgID mints a fresh unique message id.
func NewMsgID() MsgID {
	return MsgID(uuid.New().String())
}

// Msg is one entry in a Transcript: an author's contribution, causally
// linked to the parents it was composed with knowledge of.
type Msg struct {
	ID      MsgID
	Author  string
	Parents map[MsgID]struct{}
	Readers map[string]struct{}
	Body    []byte
}

// NewMsg constructs a Msg from convenience slices.
func NewMsg(id MsgID, author string, parents []MsgID, readers []string, body []byte) *Msg {
	m := &Msg{
		ID:      id,
		Author:  author,
		Parents: make(map[MsgID]struct{}, len(parents)),
		Readers: make(map[string]struct{}, len(readers)),
		Body:    body,
	}
	for _, p := range parents {
		m.Parents[p] = struct{}{}
	}
	for _, r := range readers {
		m.Readers[r] = struct{}{}
	}
	return m
}

// Members returns {author} ∪ readers.
func (m *Msg) Members() map[string]struct{} {
	out := make(map[string]struct{}, len(m.Readers)+1)
	out[m.Author] = struct{}{}
	for r := range m.Readers {
		out[r] = struct{}{}
	}
	return out
}
