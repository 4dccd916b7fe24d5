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

package naming

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

const (
	// MaxNameLength is the host's limit for container and profile names.
	MaxNameLength = 63

	namespacePrefix = "c3"
	maxUserLength   = 24
	digestLength    = 10
)

var (
	validName   = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)
	validSuffix = regexp.MustCompile(`^[a-z0-9]{1,16}$`)
)

// Sanitize lowercases s, drops every character outside [a-z0-9-],
// collapses hyphen runs, trims leading and trailing hyphens and bounds
// the result to max characters.
func Sanitize(s string, max int) string {
	var b strings.Builder
	lastHyphen := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case r == '-':
			if !lastHyphen {
				b.WriteRune(r)
			}
			lastHyphen = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if max > 0 && len(out) > max {
		out = strings.TrimRight(out[:max], "-")
	}
	return out
}

// SafeUser reduces the local part of an e-mail address to [a-z0-9].
func SafeUser(email string) string {
	local, _, _ := strings.Cut(email, "@")
	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > maxUserLength {
		out = out[:maxUserLength]
	}
	if out == "" {
		out = "user"
	}
	return out
}

// Namespace is the name prefix shared by every instance of one owner.
func Namespace(email string) string {
	return fmt.Sprintf("%s-%s", namespacePrefix, SafeUser(email))
}

// Container builds an instance name from a caller-supplied prefix and a
// uniqueness suffix. The prefix is sanitized; the suffix must already be
// lowercase alphanumeric.
func Container(prefix, suffix string) (string, error) {
	if !validSuffix.MatchString(suffix) {
		return "", fmt.Errorf("invalid name suffix %q", suffix)
	}
	p := Sanitize(prefix, MaxNameLength-len(suffix)-1)
	if p == "" {
		return "", fmt.Errorf("name prefix %q has no usable characters", prefix)
	}
	return fmt.Sprintf("%s-%s", p, suffix), nil
}

// InNamespace reports whether container was derived for the owner of email.
func InNamespace(email, container string) bool {
	rest, ok := strings.CutPrefix(container, Namespace(email)+"-")
	return ok && validSuffix.MatchString(rest)
}

// Network is the isolated bridge network of an organization.
func Network(organizationID string) string {
	return fmt.Sprintf("c3n-%s", digest(organizationID))
}

// Profile is the host profile binding an organization's instances to its network.
func Profile(organizationID string) string {
	return fmt.Sprintf("c3-org-%s", digest(organizationID))
}

// Valid reports whether name satisfies the host's naming constraints.
func Valid(name string) bool {
	return len(name) <= MaxNameLength && validName.MatchString(name)
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:digestLength]
}
