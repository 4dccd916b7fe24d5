// Copyright 2026 The CyberCode Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package id generates opaque identifiers for persisted rows.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// NewUUIDv7 returns a time-ordered UUID string.
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Suffix returns n lowercase hex characters taken from the random tail of a
// fresh UUIDv7. n is clamped to [1, 12].
func Suffix(n int) string {
	if n < 1 {
		n = 1
	}
	if n > 12 {
		n = 12
	}
	s := strings.ReplaceAll(NewUUIDv7(), "-", "")
	return s[len(s)-n:]
}
