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

package aske

import "sort"

// DeriveSessionID computes SID = sha256(concat(sorted pids) ||
// concat(nonces reordered to match)). Empty pids are skipped. The
// result is invariant under any permutation of the (members[i],
// nonces[i]) pairs, since sorting is keyed only on the pid.
func DeriveSessionID(sha256 func(data ...[]byte) [32]byte, members []string, nonces [][]byte) [32]byte {
	type pair struct {
		pid   string
		nonce []byte
	}
	pairs := make([]pair, 0, len(members))
	for i, pid := range members {
		if pid == "" {
			continue
		}
		var nonce []byte
		if i < len(nonces) {
			nonce = nonces[i]
		}
		pairs = append(pairs, pair{pid: pid, nonce: nonce})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].pid < pairs[j].pid })

	data := make([][]byte, 0, len(pairs)*2)
	for _, p := range pairs {
		data = append(data, []byte(p.pid))
	}
	for _, p := range pairs {
		data = append(data, p.nonce)
	}
	return sha256(data...)
}
