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
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Metadata describes one conversation's lifecycle bookkeeping: the
// status a Processor moves through as its ASKE handshake progresses
// (proposed -> active -> expired), independent of the handshake/
// transcript state itself.
type Metadata struct {
	ID        string `json:"id"`
	Status    string `json:"status,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
	Salt      string `json:"salt,omitempty"`
}

// MetadataBuilder constructs Metadata instances with a fluent API.
type MetadataBuilder struct {
	metadata Metadata
}

// NewMetadataBuilder initializes a builder with default values: a fresh
// conversation id, "proposed" status, the current time, and a random
// invite salt.
func NewMetadataBuilder() *MetadataBuilder {
	now := time.Now().UTC()
	salt, _ := GenerateSalt()
	return &MetadataBuilder{
		metadata: Metadata{
			ID:        GeneralPrefix + uuid.NewString(),
			CreatedAt: now.Format(time.RFC3339),
			Status:    "proposed",
			Salt:      salt,
		},
	}
}

// WithStatus overrides the metadata status (e.g. "proposed", "active", "expired").
func (b *MetadataBuilder) WithStatus(status string) *MetadataBuilder {
	b.metadata.Status = status
	return b
}

// WithCreatedAt sets a custom creation timestamp.
func (b *MetadataBuilder) WithCreatedAt(t time.Time) *MetadataBuilder {
	b.metadata.CreatedAt = t.Format(time.RFC3339)
	return b
}

// WithExpiresAfter sets ExpiresAt to CreatedAt + duration.
func (b *MetadataBuilder) WithExpiresAfter(d time.Duration) *MetadataBuilder {
	created, err := time.Parse(time.RFC3339, b.metadata.CreatedAt)
	if err != nil {
		created = time.Now().UTC()
		b.metadata.CreatedAt = created.Format(time.RFC3339)
	}
	b.metadata.ExpiresAt = created.Add(d).Format(time.RFC3339)
	return b
}

// Build returns the constructed metadata.
func (b *MetadataBuilder) Build() *Metadata {
	return &b.metadata
}

// GenerateSalt generates a cryptographically secure 32-byte salt,
// base64url-encoded without padding, used as Metadata's invite salt. The
// conversation id is generated separately and does not depend on it.
func GenerateSalt() (string, error) {
	const saltSize = 32 // 256 bits
	saltBytes := make([]byte, saltSize)

	if _, err := rand.Read(saltBytes); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(saltBytes), nil
}
