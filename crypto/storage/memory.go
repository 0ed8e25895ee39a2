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

// Package storage provides in-memory implementations of the static key
// directory.
package storage

import (
	"sort"
	"sync"

	"crypto/rsa"

	"github.com/eXcomm/mpenc-go/crypto"
	"github.com/eXcomm/mpenc-go/errs"
)

// memoryKeyDirectory implements StaticKeyDirectory over an in-memory map
// keyed by participant id.
type memoryKeyDirectory struct {
	keys map[string]*rsa.PublicKey
	mu   sync.RWMutex
}

// NewMemoryKeyDirectory creates a new in-memory static key directory.
func NewMemoryKeyDirectory() crypto.StaticKeyDirectory {
	return &memoryKeyDirectory{
		keys: make(map[string]*rsa.PublicKey),
	}
}

// Get resolves pid's long-term public key.
func (d *memoryKeyDirectory) Get(pid string) (*rsa.PublicKey, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	pub, ok := d.keys[pid]
	if !ok {
		return nil, errs.UnknownPeer(pid)
	}
	return pub, nil
}

// Put records pid's long-term public key, overwriting any prior value.
func (d *memoryKeyDirectory) Put(pid string, pub *rsa.PublicKey) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.keys[pid] = pub
}

// PIDs returns all known participant ids in sorted order. Not part of
// StaticKeyDirectory; useful for diagnostics and tests.
func (d *memoryKeyDirectory) PIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]string, 0, len(d.keys))
	for id := range d.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
