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
	"testing"
	"time"

	"github.com/eXcomm/mpenc-go/aske"
	"github.com/eXcomm/mpenc-go/crypto"
	"github.com/eXcomm/mpenc-go/crypto/keys"
	"github.com/eXcomm/mpenc-go/crypto/storage"
	"github.com/eXcomm/mpenc-go/messagelog"
	"github.com/eXcomm/mpenc-go/transcript"
	"github.com/stretchr/testify/require"
)

func buildConversation(t *testing.T) (*aske.Member, *transcript.Transcript, *messagelog.Log, messagelog.Subscriber) {
	t.Helper()
	dir := storage.NewMemoryKeyDirectory()
	kp, err := keys.GenerateStaticKeyPair()
	require.NoError(t, err)
	dir.Put("A", kp.PublicKey())
	member := aske.NewMember("A", kp, dir, crypto.Default())
	tr := transcript.New()
	log := messagelog.New(nil)
	sub, err := log.GetSubscriberFor(tr)
	require.NoError(t, err)
	return member, tr, log, sub
}

func TestManagerCreateGetRemove(t *testing.T) {
	mgr := NewManager(Config{CleanupInterval: time.Hour, MaxIdleTime: time.Hour})
	defer mgr.Close()

	member, tr, log, sub := buildConversation(t)

	p, err := mgr.CreateConversation("conv-1", member, tr, log, sub, HandshakeConfig{})
	require.NoError(t, err)
	require.Equal(t, "conv-1", p.ID())

	got, ok := mgr.GetConversation("conv-1")
	require.True(t, ok)
	require.Same(t, p, got)

	mgr.RemoveConversation("conv-1")
	_, ok = mgr.GetConversation("conv-1")
	require.False(t, ok)
}

func TestManagerRejectsDuplicateConversation(t *testing.T) {
	mgr := NewManager(Config{})
	defer mgr.Close()

	member, tr, log, sub := buildConversation(t)
	_, err := mgr.CreateConversation("dup", member, tr, log, sub, HandshakeConfig{})
	require.NoError(t, err)

	member2, tr2, log2, sub2 := buildConversation(t)
	_, err = mgr.CreateConversation("dup", member2, tr2, log2, sub2, HandshakeConfig{})
	require.Error(t, err)
}

func TestManagerEnforcesMaxSessions(t *testing.T) {
	mgr := NewManager(Config{MaxSessions: 1})
	defer mgr.Close()

	member, tr, log, sub := buildConversation(t)
	_, err := mgr.CreateConversation("one", member, tr, log, sub, HandshakeConfig{})
	require.NoError(t, err)

	member2, tr2, log2, sub2 := buildConversation(t)
	_, err = mgr.CreateConversation("two", member2, tr2, log2, sub2, HandshakeConfig{})
	require.Error(t, err)
}

func TestManagerCleansUpIdleConversations(t *testing.T) {
	mgr := NewManager(Config{MaxIdleTime: 20 * time.Millisecond, CleanupInterval: 10 * time.Millisecond})
	defer mgr.Close()

	member, tr, log, sub := buildConversation(t)
	_, err := mgr.CreateConversation("idle", member, tr, log, sub, HandshakeConfig{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, id := range mgr.ListConversations() {
			if id == "idle" {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)
}

func TestManagerSeenDownflowReplay(t *testing.T) {
	mgr := NewManager(Config{})
	defer mgr.Close()

	var sid [32]byte
	sid[0] = 0x42

	require.False(t, mgr.SeenDownflowReplay("conv-x", "A", sid))
	require.True(t, mgr.SeenDownflowReplay("conv-x", "A", sid))
	require.False(t, mgr.SeenDownflowReplay("conv-x", "B", sid), "a distinct source broadcasting the same sid is not a replay")
}
