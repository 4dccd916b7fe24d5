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

// Package naming derives host-facing resource names.
//
// Instances are named {namespace}-{suffix}, where the namespace is
// "c3-" followed by the owner's e-mail local part reduced to [a-z0-9].
// Per-organization networks and profiles use a short digest of the
// organization id so they fit the host's interface name limits.
package naming
