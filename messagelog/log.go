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

// Package messagelog derives a linear, observable sequence of payload
// messages from one or more transcripts.
package messagelog

import (
	"github.com/eXcomm/mpenc-go/errs"
	"github.com/eXcomm/mpenc-go/transcript"
)

// ShouldIgnore decides whether a transcript entry is a control message
// that should never appear in the derived log.
type ShouldIgnore func(tr *transcript.Transcript, mId transcript.MsgID) bool

// Subscriber is returned by GetSubscriberFor. The owner of the
// Transcript calls it with the id every message that transcript accepts
// (in accept-order); the Log decides whether it belongs in the linear
// view.
type Subscriber func(mId transcript.MsgID) error

type entry struct {
	id      transcript.MsgID
	tr      *transcript.Transcript
	parents []transcript.MsgID
}

type subscription struct {
	tr           *transcript.Transcript
	parent       *transcript.Transcript
	lastFrontier []transcript.MsgID
}

// Log is DefaultMessageLog: a linearised, observable view derived from
// one or more Transcripts.
type Log struct {
	shouldIgnore ShouldIgnore

	entries  []entry
	indexOf  map[transcript.MsgID]int
	subs     map[*transcript.Transcript]*subscription
	lastSub  *subscription
	watchers []func(index int, mId transcript.MsgID)
}

// New creates an empty Log. shouldIgnore may be nil to treat every
// transcript entry as payload.
func New(shouldIgnore ShouldIgnore) *Log {
	return &Log{
		shouldIgnore: shouldIgnore,
		indexOf:      make(map[transcript.MsgID]int),
		subs:         make(map[*transcript.Transcript]*subscription),
	}
}

// Watch registers a callback invoked whenever a new entry is appended.
func (l *Log) Watch(fn func(index int, mId transcript.MsgID)) {
	l.watchers = append(l.watchers, fn)
}

// GetSubscriberFor subscribes tr to this log, optionally spawned from a
// single parent transcript whose resolved frontier is used as a
// fallback when tr's own earliest entries have no in-transcript
// payload parents. Passing more than one parent is rejected: this log
// supports at most one parent transcript per new transcript.
func (l *Log) GetSubscriberFor(tr *transcript.Transcript, parents ...*transcript.Transcript) (Subscriber, error) {
	if len(parents) > 1 {
		return nil, errs.NotImplemented
	}
	sub := &subscription{tr: tr}
	if len(parents) == 1 {
		sub.parent = parents[0]
	}
	l.subs[tr] = sub
	l.lastSub = sub

	return func(mId transcript.MsgID) error {
		return l.accept(sub, mId)
	}, nil
}

func (l *Log) accept(sub *subscription, mId transcript.MsgID) error {
	if l.shouldIgnore != nil && l.shouldIgnore(sub.tr, mId) {
		return nil
	}

	parents := l.resolvePayloadParents(sub.tr, mId)
	if len(parents) == 0 && sub.parent != nil {
		if parentSub, ok := l.subs[sub.parent]; ok {
			parents = append([]transcript.MsgID(nil), parentSub.lastFrontier...)
		}
	}

	idx := len(l.entries)
	l.entries = append(l.entries, entry{id: mId, tr: sub.tr, parents: parents})
	l.indexOf[mId] = idx
	sub.lastFrontier = []transcript.MsgID{mId}
	l.lastSub = sub

	for _, w := range l.watchers {
		w(idx, mId)
	}
	return nil
}

// resolvePayloadParents walks tr backward from mId's direct parents,
// skipping ignored control messages, and returns the nearest non-ignored
// ancestor along each branch.
func (l *Log) resolvePayloadParents(tr *transcript.Transcript, mId transcript.MsgID) []transcript.MsgID {
	var out []transcript.MsgID
	visited := make(map[transcript.MsgID]bool)
	queue := tr.Pre(mId)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true

		if l.shouldIgnore != nil && l.shouldIgnore(tr, cur) {
			queue = append(queue, tr.Pre(cur)...)
			continue
		}
		out = append(out, cur)
	}
	return out
}

// At returns the mId at index i, supporting negative indices counted
// from the end.
func (l *Log) At(i int) (transcript.MsgID, bool) {
	if i < 0 {
		i += len(l.entries)
	}
	if i < 0 || i >= len(l.entries) {
		return "", false
	}
	return l.entries[i].id, true
}

// IndexOf returns the log position of mId.
func (l *Log) IndexOf(mId transcript.MsgID) (int, bool) {
	idx, ok := l.indexOf[mId]
	return idx, ok
}

// CurParents returns the frontier of the most recently active
// subscribed transcript.
func (l *Log) CurParents() []transcript.MsgID {
	if l.lastSub == nil {
		return nil
	}
	return append([]transcript.MsgID(nil), l.lastSub.lastFrontier...)
}

// Length returns the number of entries in the log.
func (l *Log) Length() int { return len(l.entries) }

// Slice returns entries [i:j).
func (l *Log) Slice(i, j int) []transcript.MsgID {
	if i < 0 {
		i = 0
	}
	if j > len(l.entries) {
		j = len(l.entries)
	}
	if i >= j {
		return nil
	}
	out := make([]transcript.MsgID, 0, j-i)
	for _, e := range l.entries[i:j] {
		out = append(out, e.id)
	}
	return out
}

// Has reports whether mId is present in the log.
func (l *Log) Has(mId transcript.MsgID) bool {
	_, ok := l.indexOf[mId]
	return ok
}

// Get returns the underlying Msg for a logged mId.
func (l *Log) Get(mId transcript.MsgID) (*transcript.Msg, bool) {
	idx, ok := l.indexOf[mId]
	if !ok {
		return nil, false
	}
	return l.entries[idx].tr.Get(mId)
}

// Parents returns the recorded payload parents for a logged mId.
func (l *Log) Parents(mId transcript.MsgID) ([]transcript.MsgID, bool) {
	idx, ok := l.indexOf[mId]
	if !ok {
		return nil, false
	}
	return append([]transcript.MsgID(nil), l.entries[idx].parents...), true
}

// UnackBy delegates to the owning transcript's UnackBy for a logged
// mId.
func (l *Log) UnackBy(mId transcript.MsgID) (map[string]struct{}, bool) {
	idx, ok := l.indexOf[mId]
	if !ok {
		return nil, false
	}
	return l.entries[idx].tr.UnackBy(mId), true
}

// Unacked returns not-fully-acked mIds across all tracked transcripts,
// in log order.
func (l *Log) Unacked() []transcript.MsgID {
	var out []transcript.MsgID
	for _, e := range l.entries {
		if len(e.tr.UnackBy(e.id)) > 0 {
			out = append(out, e.id)
		}
	}
	return out
}
