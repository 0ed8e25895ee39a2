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

package transcript

import (
	"sort"

	"github.com/eXcomm/mpenc-go/errs"
)

// Transcript is the append-only causal-order DAG of accepted messages
// for one session (BaseTranscript). It is not safe for concurrent use;
// callers that want parallelism should shard by session.
type Transcript struct {
	messages    map[MsgID]*Msg
	acceptOrder []MsgID
	acceptIndex map[MsgID]int

	parents    map[MsgID]map[MsgID]struct{}
	successors map[MsgID]map[MsgID]struct{}
	byAuthor   map[string][]MsgID
	authorIdx  map[MsgID]int // position of this msg within byAuthor[author]

	context map[MsgID]map[string]MsgID
	unackby map[MsgID]map[string]struct{}

	merger Merger

	poisoned bool
}

// New creates an empty Transcript.
func New() *Transcript {
	t := &Transcript{
		messages:    make(map[MsgID]*Msg),
		acceptIndex: make(map[MsgID]int),
		parents:     make(map[MsgID]map[MsgID]struct{}),
		successors:  make(map[MsgID]map[MsgID]struct{}),
		byAuthor:    make(map[string][]MsgID),
		authorIdx:   make(map[MsgID]int),
		context:     make(map[MsgID]map[string]MsgID),
		unackby:     make(map[MsgID]map[string]struct{}),
	}
	t.merger = Merger{
		Pre:     t.directParentList,
		Le:      t.Le,
		Members: t.membersOf,
	}
	return t
}

// Size returns the count of accepted messages.
func (t *Transcript) Size() int { return len(t.messages) }

// All returns a snapshot of accepted messages in accept-order.
func (t *Transcript) All() []MsgID {
	return append([]MsgID(nil), t.acceptOrder...)
}

// Has reports whether mId has been accepted.
func (t *Transcript) Has(mId MsgID) bool {
	_, ok := t.messages[mId]
	return ok
}

// Poisoned reports whether this transcript has entered its terminal
// failure state and is refusing all further operations.
func (t *Transcript) Poisoned() bool { return t.poisoned }

// Min returns the frontier of messages with no accepted parents.
func (t *Transcript) Min() []MsgID {
	var out []MsgID
	for id, m := range t.messages {
		if len(m.Parents) == 0 {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return t.acceptIndex[out[i]] < t.acceptIndex[out[j]] })
	return out
}

// Max returns the frontier of messages with no accepted successors.
func (t *Transcript) Max() []MsgID {
	var out []MsgID
	for id := range t.messages {
		if len(t.successors[id]) == 0 {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return t.acceptIndex[out[i]] < t.acceptIndex[out[j]] })
	return out
}

// Pre returns mId's direct parents.
func (t *Transcript) Pre(mId MsgID) []MsgID { return t.directParentList(mId) }

// Suc returns mId's direct children.
func (t *Transcript) Suc(mId MsgID) []MsgID {
	set := t.successors[mId]
	out := make([]MsgID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return t.acceptIndex[out[i]] < t.acceptIndex[out[j]] })
	return out
}

// AllAuthors returns the set of PIDs that have authored at least one
// accepted message.
func (t *Transcript) AllAuthors() map[string]struct{} {
	out := make(map[string]struct{}, len(t.byAuthor))
	for author, msgs := range t.byAuthor {
		if len(msgs) > 0 {
			out[author] = struct{}{}
		}
	}
	return out
}

// Author returns the author of mId.
func (t *Transcript) Author(mId MsgID) (string, bool) {
	m, ok := t.messages[mId]
	if !ok {
		return "", false
	}
	return m.Author, true
}

// By returns the frozen list of mIds authored by uId, in authorship
// order (which equals accept-order restricted to uId).
func (t *Transcript) By(uId string) []MsgID {
	return append([]MsgID(nil), t.byAuthor[uId]...)
}

// Get returns the Msg for mId.
func (t *Transcript) Get(mId MsgID) (*Msg, bool) {
	m, ok := t.messages[mId]
	return m, ok
}

// UnackBy returns the set of readers of mId that have not yet produced
// a descendant message (an implicit ack).
func (t *Transcript) UnackBy(mId MsgID) map[string]struct{} {
	out := make(map[string]struct{})
	for pid := range t.unackby[mId] {
		out[pid] = struct{}{}
	}
	return out
}

// Unacked returns the sorted (by accept-index) list of mIds that are
// not yet fully acked.
func (t *Transcript) Unacked() []MsgID {
	var out []MsgID
	for id, ub := range t.unackby {
		if len(ub) > 0 {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return t.acceptIndex[out[i]] < t.acceptIndex[out[j]] })
	return out
}

// PreByAuthor returns the previous message by mId's own author, if any.
func (t *Transcript) PreByAuthor(mId MsgID) (MsgID, bool) {
	m, ok := t.messages[mId]
	if !ok {
		return "", false
	}
	idx := t.authorIdx[mId]
	if idx == 0 {
		return "", false
	}
	return t.byAuthor[m.Author][idx-1], true
}

// PreReader returns the latest message authored by ruId that mId can
// see, or false if none.
func (t *Transcript) PreReader(mId MsgID, ruId string) (MsgID, bool) {
	if !t.Has(mId) {
		return "", false
	}
	if ctx, ok := t.context[mId]; ok {
		if v, ok2 := ctx[ruId]; ok2 {
			return v, true
		}
	}

	var best MsgID
	found := false
	visited := make(map[MsgID]bool)
	queue := t.directParentList(mId)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		m := t.messages[cur]
		if m.Author == ruId {
			if !found || t.acceptIndex[cur] > t.acceptIndex[best] {
				best, found = cur, true
			}
			continue
		}
		queue = append(queue, t.directParentList(cur)...)
	}
	return best, found
}

// PreUntil returns the ancestor closure of mId, stopping expansion (but
// including) any node satisfying pred.
func (t *Transcript) PreUntil(mId MsgID, pred func(MsgID) bool) map[MsgID]struct{} {
	out := make(map[MsgID]struct{})
	queue := t.directParentList(mId)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, ok := out[cur]; ok {
			continue
		}
		out[cur] = struct{}{}
		if pred != nil && pred(cur) {
			continue
		}
		queue = append(queue, t.directParentList(cur)...)
	}
	return out
}

// SucReader returns the first descendant of mId authored by ruId.
func (t *Transcript) SucReader(mId MsgID, ruId string) (MsgID, bool) {
	visited := make(map[MsgID]bool)
	queue := t.Suc(mId)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		m := t.messages[cur]
		if m.Author == ruId {
			return cur, true
		}
		queue = append(queue, t.Suc(cur)...)
	}
	return "", false
}

// MergeMembers merges the member sets of parents into the membership a
// new message built on them would see.
func (t *Transcript) MergeMembers(parents []MsgID) (map[string]struct{}, error) {
	return t.merger.Merge(parents)
}

// Le reports the causal a ≤ b relation. Reflexive.
func (t *Transcript) Le(a, b MsgID) bool {
	if a == b {
		return true
	}
	if !t.Has(a) || !t.Has(b) {
		return false
	}
	ma, mb := t.messages[a], t.messages[b]
	if ma.Author == mb.Author {
		return t.authorIdx[a] <= t.authorIdx[b]
	}
	if _, isReader := mb.Readers[ma.Author]; isReader {
		pre, ok := t.context[b][ma.Author]
		if !ok {
			return false
		}
		return t.authorIdx[a] <= t.authorIdx[pre]
	}
	if t.acceptIndex[a] > t.acceptIndex[b] {
		return false
	}
	_, reachable := t.bfsFindAncestor(b, a)
	return reachable
}

// Ge reports the causal b ≤ a relation.
func (t *Transcript) Ge(a, b MsgID) bool { return t.Le(b, a) }

// Add validates and inserts msg, returning the previously-unacked
// messages that became fully acked by this insertion, in topological
// (accept) order.
func (t *Transcript) Add(msg *Msg) ([]MsgID, error) {
	if t.poisoned {
		return nil, errs.Poisoned
	}
	if err := t.validate(msg); err != nil {
		return nil, err
	}

	parentList := make([]MsgID, 0, len(msg.Parents))
	for p := range msg.Parents {
		parentList = append(parentList, p)
	}
	if _, err := t.merger.Merge(parentList); err != nil {
		return nil, err
	}

	return t.commit(msg, parentList)
}

func (t *Transcript) validate(msg *Msg) error {
	if msg.ID == "" {
		return errs.New(errs.InputInvalid, "message id is empty")
	}
	if msg.Author == "" {
		return errs.New(errs.InputInvalid, "message author is empty")
	}
	if t.Has(msg.ID) {
		return errs.New(errs.StateInvalid, "message %q already present", msg.ID)
	}
	if _, self := msg.Parents[msg.ID]; self {
		return errs.New(errs.InputInvalid, "message %q references itself as a parent", msg.ID)
	}
	if _, self := msg.Readers[msg.Author]; self {
		return errs.New(errs.InputInvalid, "author %q cannot be its own reader", msg.Author)
	}

	seenAuthors := make(map[string]MsgID, len(msg.Parents))
	for p := range msg.Parents {
		pm, ok := t.messages[p]
		if !ok {
			return errs.New(errs.StateInvalid, "parent %q is missing", p)
		}
		if pm.Author != msg.Author {
			if _, allowed := pm.Readers[msg.Author]; !allowed {
				return errs.New(errs.StateInvalid, "author %q was not a reader of parent %q", msg.Author, p)
			}
		}
		if other, dup := seenAuthors[pm.Author]; dup {
			return errs.New(errs.InputInvalid, "parents %q and %q share author %q", other, p, pm.Author)
		}
		seenAuthors[pm.Author] = p
	}

	if prevID, ok := t.lastByAuthor(msg.Author); ok {
		if _, reachable := t.bfsFindAncestorAmong(parentsOf(msg), prevID); !reachable {
			return errs.New(errs.StateInvalid, "message from %q does not succeed its own previous message %q", msg.Author, prevID)
		}
	}
	return nil
}

func (t *Transcript) commit(msg *Msg, parentList []MsgID) ([]MsgID, error) {
	t.messages[msg.ID] = msg
	idx := len(t.acceptOrder)
	t.acceptOrder = append(t.acceptOrder, msg.ID)
	t.acceptIndex[msg.ID] = idx

	parentSet := make(map[MsgID]struct{}, len(msg.Parents))
	for p := range msg.Parents {
		parentSet[p] = struct{}{}
	}
	t.parents[msg.ID] = parentSet
	for p := range msg.Parents {
		if t.successors[p] == nil {
			t.successors[p] = make(map[MsgID]struct{})
		}
		t.successors[p][msg.ID] = struct{}{}
	}

	t.authorIdx[msg.ID] = len(t.byAuthor[msg.Author])
	t.byAuthor[msg.Author] = append(t.byAuthor[msg.Author], msg.ID)

	t.context[msg.ID] = t.computeContext(msg, parentList)

	t.unackby[msg.ID] = make(map[string]struct{}, len(msg.Readers))
	for r := range msg.Readers {
		t.unackby[msg.ID][r] = struct{}{}
	}

	return t.propagateAcks(msg.ID, msg.Author, parentList), nil
}

func (t *Transcript) computeContext(msg *Msg, parentList []MsgID) map[string]MsgID {
	merged := make(map[string]MsgID)
	for _, p := range parentList {
		for pid, candidate := range t.context[p] {
			existing, ok := merged[pid]
			if !ok || t.Ge(candidate, existing) {
				merged[pid] = candidate
			}
		}
		if pm, ok := t.messages[p]; ok {
			merged[pm.Author] = p
		}
	}
	out := make(map[string]MsgID, len(msg.Readers))
	for r := range msg.Readers {
		if v, ok := merged[r]; ok {
			out[r] = v
		}
	}
	return out
}

func (t *Transcript) propagateAcks(mId MsgID, author string, parentList []MsgID) []MsgID {
	var acked []MsgID
	visited := make(map[MsgID]bool)
	queue := append([]MsgID(nil), parentList...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true

		ub := t.unackby[cur]
		if ub == nil {
			continue
		}
		if _, has := ub[author]; !has {
			continue
		}
		delete(ub, author)
		if len(ub) == 0 {
			acked = append(acked, cur)
		}
		queue = append(queue, t.directParentList(cur)...)
	}
	sort.Slice(acked, func(i, j int) bool { return t.acceptIndex[acked[i]] < t.acceptIndex[acked[j]] })
	return acked
}

func (t *Transcript) lastByAuthor(author string) (MsgID, bool) {
	msgs := t.byAuthor[author]
	if len(msgs) == 0 {
		return "", false
	}
	return msgs[len(msgs)-1], true
}

func (t *Transcript) directParentList(mId MsgID) []MsgID {
	set := t.parents[mId]
	out := make([]MsgID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return t.acceptIndex[out[i]] < t.acceptIndex[out[j]] })
	return out
}

func (t *Transcript) membersOf(mId MsgID) map[string]struct{} {
	m, ok := t.messages[mId]
	if !ok {
		return map[string]struct{}{}
	}
	return m.Members()
}

// bfsFindAncestor reports whether target is an ancestor of (or equal
// to) start.
func (t *Transcript) bfsFindAncestor(start, target MsgID) (MsgID, bool) {
	if start == target {
		return start, true
	}
	visited := make(map[MsgID]bool)
	queue := t.directParentList(start)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		if cur == target {
			return cur, true
		}
		queue = append(queue, t.directParentList(cur)...)
	}
	return "", false
}

func (t *Transcript) bfsFindAncestorAmong(starts []MsgID, target MsgID) (MsgID, bool) {
	for _, s := range starts {
		if s == target {
			return s, true
		}
	}
	visited := make(map[MsgID]bool)
	queue := append([]MsgID(nil), starts...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		if cur == target {
			return cur, true
		}
		queue = append(queue, t.directParentList(cur)...)
	}
	return "", false
}

func parentsOf(msg *Msg) []MsgID {
	out := make([]MsgID, 0, len(msg.Parents))
	for p := range msg.Parents {
		out = append(out, p)
	}
	return out
}
