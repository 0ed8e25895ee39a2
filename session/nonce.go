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
	"sync"
	"time"
)

// NonceCache stores seen (conversation, token) pairs with a TTL, guarding
// Manager.SeenDownflowReplay against a transport layer redelivering a
// downflow broadcast this process already processed. The "nonce" here is
// not an ASKE per-participant nonce (those live in aske.Message.Nonces);
// it is the replay-guard's own token, keyed by conversation id.
type NonceCache struct {
	ttl  time.Duration
	data sync.Map // convID -> *sync.Map (token -> expiryUnix)
	tick *time.Ticker
	stop chan struct{}
}

// NewNonceCache creates a TTL-based replay cache (typical TTL: 5–10 minutes).
func NewNonceCache(ttl time.Duration) *NonceCache {
	nc := &NonceCache{
		ttl:  ttl,
		stop: make(chan struct{}),
		tick: time.NewTicker(time.Minute),
	}
	go nc.gcLoop()
	return nc
}

// Seen returns true if (convID, token) was seen before; otherwise it
// records the pair and returns false.
func (n *NonceCache) Seen(convID, token string) bool {
	if convID == "" || token == "" {
		return false
	}
	exp := time.Now().Add(n.ttl).Unix()

	v, _ := n.data.LoadOrStore(convID, &sync.Map{}) // inner: token -> expiryUnix
	m := v.(*sync.Map)

	if old, ok := m.Load(token); ok {
		if prevExp, _ := old.(int64); prevExp >= time.Now().Unix() {
			return true // replay
		}
	}
	m.Store(token, exp)
	return false
}

// DeleteKey removes every token recorded for convID, called when a
// Manager evicts or closes the conversation.
func (n *NonceCache) DeleteKey(convID string) {
	n.data.Delete(convID)
}

// Close stops the background GC.
func (n *NonceCache) Close() {
	close(n.stop)
	if n.tick != nil {
		n.tick.Stop()
	}
}

func (n *NonceCache) gcLoop() {
	for {
		select {
		case <-n.tick.C:
			now := time.Now().Unix()
			n.data.Range(func(k, v any) bool {
				m := v.(*sync.Map)
				empty := true
				m.Range(func(tk, tv any) bool {
					if exp, _ := tv.(int64); exp < now {
						m.Delete(tk)
					} else {
						empty = false
					}
					return true
				})
				if empty {
					n.data.Delete(k)
				}
				return true
			})
		case <-n.stop:
			return
		}
	}
}
