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

import "github.com/eXcomm/mpenc-go/errs"

// Merger composes the member set a new message should see, from the
// member sets of its parents. It is parameterised by the graph's own
// pre/le/members queries rather than by closure-captured state, so
// it can be swapped or tested against a fake graph independently of a
// live Transcript.
type Merger struct {
	Pre     func(MsgID) []MsgID
	Le      func(a, b MsgID) bool
	Members func(MsgID) map[string]struct{}
}

// Merge combines the member sets of parents into the member set the new
// message should see. Two parents that disagree on membership are only
// reconcilable when one is causally derived from the other (in which
// case the causally later set wins); otherwise the change is a genuine
// conflict and Merge fails.
func (m Merger) Merge(parents []MsgID) (map[string]struct{}, error) {
	if len(parents) == 0 {
		return map[string]struct{}{}, nil
	}

	result := cloneSet(m.Members(parents[0]))
	winner := parents[0]
	for _, p := range parents[1:] {
		pm := m.Members(p)
		if setsEqual(result, pm) {
			continue
		}
		switch {
		case m.Le(winner, p):
			result = cloneSet(pm)
			winner = p
		case m.Le(p, winner):
			// winner already causally later; keep it.
		default:
			return nil, errs.New(errs.StateInvalid, "conflicting membership change across concurrent parents")
		}
	}
	return result, nil
}

func cloneSet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}

func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
