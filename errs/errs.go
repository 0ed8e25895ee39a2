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

// Package errs defines the error taxonomy shared by the aske, transcript,
// messagelog, and tlv packages: the error kinds of a message exchange
// protocol, not of any one component.
package errs

import "fmt"

// Kind classifies an error into one of the taxonomy buckets a caller can
// branch on with errors.Is/errors.As, independent of the offending
// component.
type Kind int

const (
	// InputInvalid covers malformed caller input: null ids, self in
	// readers, duplicate members, self-referential parents, empty
	// exclude/join/commit sets.
	InputInvalid Kind = iota
	// StateInvalid covers violations of a component's own invariants:
	// message already present, parent missing, per-author total-order
	// violation, secret-parent.
	StateInvalid
	// AuthenticationFailedKind covers a session-signature verification
	// failure for a specific peer.
	AuthenticationFailedKind
	// UnknownPeerKind covers a static-key-directory miss.
	UnknownPeerKind
	// MalformedTLVKind covers a TLV framing violation.
	MalformedTLVKind
	// MalformedMessageKind covers a structurally invalid decoded message.
	MalformedMessageKind
	// PoisonedKind is the terminal state of a transcript that failed
	// mid-commit.
	PoisonedKind
	// NotImplementedKind is reserved for features explicitly deferred,
	// e.g. multi-parent message-log subscription.
	NotImplementedKind
)

func (k Kind) String() string {
	switch k {
	case InputInvalid:
		return "InputInvalid"
	case StateInvalid:
		return "StateInvalid"
	case AuthenticationFailedKind:
		return "AuthenticationFailed"
	case UnknownPeerKind:
		return "UnknownPeer"
	case MalformedTLVKind:
		return "MalformedTLV"
	case MalformedMessageKind:
		return "MalformedMessage"
	case PoisonedKind:
		return "Poisoned"
	case NotImplementedKind:
		return "NotImplemented"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned by this module's packages.
// It carries a Kind for programmatic dispatch and an optional PID for the
// two kinds that are peer-scoped.
type Error struct {
	Kind Kind
	PID  string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.PID != "" {
		return fmt.Sprintf("%s(%s): %s", e.Kind, e.PID, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, errs.Poisoned) match on Kind alone, since the
// sentinel values below carry no PID or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind wrapping a lower-level cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// AuthenticationFailed reports a session-signature verification failure
// for the given peer.
func AuthenticationFailed(pid string) *Error {
	return &Error{Kind: AuthenticationFailedKind, PID: pid, Msg: "session signature verification failed"}
}

// UnknownPeer reports a static-key-directory miss for the given peer.
func UnknownPeer(pid string) *Error {
	return &Error{Kind: UnknownPeerKind, PID: pid, Msg: "no static public key on file"}
}

// Sentinels for Kind-only matching, e.g. errors.Is(err, errs.Poisoned).
var (
	Poisoned       = &Error{Kind: PoisonedKind, Msg: "transcript is poisoned"}
	NotImplemented = &Error{Kind: NotImplementedKind, Msg: "not implemented"}
)
