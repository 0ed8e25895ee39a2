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
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/eXcomm/mpenc-go/aske"
	"github.com/eXcomm/mpenc-go/internal/metrics"
	"github.com/eXcomm/mpenc-go/messagelog"
	"github.com/eXcomm/mpenc-go/transcript"
)

// Manager owns every Processor (one per conversation) a process is
// handling, their idle-cleanup lifecycle, and a session-id replay guard
// shared across them.
type Manager struct {
	mu            sync.RWMutex
	conversations map[string]*Processor
	lastActivity  map[string]time.Time

	cfg           Config
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}

	replay *NonceCache
}

// NewManager creates a Manager with the given conversation-lifecycle
// policy, applying defaults for any zero field.
func NewManager(cfg Config) *Manager {
	cfg = withDefaults(cfg)
	m := &Manager{
		conversations: make(map[string]*Processor),
		lastActivity:  make(map[string]time.Time),
		cfg:           cfg,
		stopCleanup:   make(chan struct{}),
		replay:        NewNonceCache(10 * time.Minute),
	}
	m.cleanupTicker = time.NewTicker(cfg.CleanupInterval)
	go m.runCleanup()
	return m
}

// CreateConversation registers a new Processor under id, built from an
// already-constructed Member, Transcript and optional MessageLog.
func (m *Manager) CreateConversation(id string, member *aske.Member, tr *transcript.Transcript, log *messagelog.Log, sub messagelog.Subscriber, hsCfg HandshakeConfig) (*Processor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conversations[id]; exists {
		metrics.ConversationsCreated.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("conversation %s already exists", id)
	}
	if len(m.conversations) >= m.cfg.MaxSessions {
		metrics.ConversationsCreated.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("conversation limit reached (%d)", m.cfg.MaxSessions)
	}

	p := NewProcessor(id, member, tr, log, sub, hsCfg)
	p.RefreshExpiry(m.cfg.MaxIdleTime)
	p.SetReplayGuard(func(source string, sid [32]byte) bool {
		return m.SeenDownflowReplay(id, source, sid)
	})
	m.conversations[id] = p
	m.lastActivity[id] = time.Now()
	metrics.ConversationsCreated.WithLabelValues("success").Inc()
	metrics.ConversationsActive.Inc()
	return p, nil
}

// GetConversation returns the Processor for id, refreshing its idle
// deadline.
func (m *Manager) GetConversation(id string) (*Processor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.conversations[id]
	if ok {
		m.lastActivity[id] = time.Now()
		p.RefreshExpiry(m.cfg.MaxIdleTime)
	}
	return p, ok
}

// RemoveConversation drops a conversation and its replay-guard state.
func (m *Manager) RemoveConversation(id string) {
	m.mu.Lock()
	p, existed := m.conversations[id]
	delete(m.conversations, id)
	delete(m.lastActivity, id)
	m.mu.Unlock()

	if existed {
		p.markExpired()
		metrics.ConversationsClosed.Inc()
		metrics.ConversationsActive.Dec()
	}
	m.replay.DeleteKey(id)
}

// ListConversations returns the ids of every tracked conversation.
func (m *Manager) ListConversations() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.conversations))
	for id := range m.conversations {
		out = append(out, id)
	}
	return out
}

// Stats reports conversation counts for health and metrics reporting.
func (m *Manager) Stats() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{
		TotalConversations:  len(m.conversations),
		ActiveConversations: len(m.conversations),
	}
}

// SeenDownflowReplay reports whether a downflow broadcasting session id
// sid from source has already been processed for conversation convID,
// guarding against a transport layer redelivering the exact same
// broadcast. The token is keyed by (source, sid) rather than sid alone:
// a legitimate session-acknowledgement phase has every member broadcast
// its own downflow for the same sid, so keying on sid alone would reject
// the second and later members' genuine broadcasts, not just replays.
func (m *Manager) SeenDownflowReplay(convID, source string, sid [32]byte) bool {
	return m.replay.Seen(convID, source+":"+hex.EncodeToString(sid[:]))
}

// Close stops background cleanup and releases every tracked conversation.
func (m *Manager) Close() error {
	close(m.stopCleanup)
	m.cleanupTicker.Stop()
	m.replay.Close()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations = make(map[string]*Processor)
	m.lastActivity = make(map[string]time.Time)
	return nil
}

func (m *Manager) runCleanup() {
	for {
		select {
		case <-m.cleanupTicker.C:
			m.cleanupIdle()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *Manager) cleanupIdle() {
	cutoff := time.Now().Add(-m.cfg.MaxIdleTime)

	m.mu.Lock()
	var stale []string
	for id, last := range m.lastActivity {
		if last.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		if p, ok := m.conversations[id]; ok {
			p.markExpired()
		}
		delete(m.conversations, id)
		delete(m.lastActivity, id)
	}
	m.mu.Unlock()

	for range stale {
		metrics.ConversationsClosed.Inc()
		metrics.ConversationsActive.Dec()
	}
	for _, id := range stale {
		m.replay.DeleteKey(id)
	}
}
