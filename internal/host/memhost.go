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

package host

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemoryHost is an in-process Executor that models the host's networks,
// profiles and containers. It backs the noop host driver and tests.
type MemoryHost struct {
	mu         sync.Mutex
	networks   map[string]bool
	profiles   map[string]string // profile -> attached network, "" if none
	containers map[string]memContainer
	failures   map[string]error
	calls      []string
}

type memContainer struct {
	image   string
	profile string
}

// NewMemoryHost returns an empty host.
func NewMemoryHost() *MemoryHost {
	return &MemoryHost{
		networks:   make(map[string]bool),
		profiles:   make(map[string]string),
		containers: make(map[string]memContainer),
		failures:   make(map[string]error),
	}
}

// FailOn makes every later call of op return err. A nil err clears it.
func (h *MemoryHost) FailOn(op string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		delete(h.failures, op)
		return
	}
	h.failures[op] = err
}

// Containers lists the containers currently on the host.
func (h *MemoryHost) Containers() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.containers))
	for name := range h.containers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasNetwork reports whether network exists.
func (h *MemoryHost) HasNetwork(network string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.networks[network]
}

// Calls returns the ops executed so far.
func (h *MemoryHost) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func (h *MemoryHost) Run(ctx context.Context, cmd Command) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls = append(h.calls, cmd.Op())
	if err, ok := h.failures[cmd.Op()]; ok {
		return "", err
	}

	a := cmd.argv
	switch cmd.Op() {
	case "network_show":
		if !h.networks[a[3]] {
			return "", notFound("Network")
		}
		return fmt.Sprintf("name: %s\ntype: bridge\n", a[3]), nil
	case "network_create":
		if h.networks[a[3]] {
			return "", alreadyExists("network")
		}
		h.networks[a[3]] = true
		return "", nil
	case "profile_show":
		if _, ok := h.profiles[a[3]]; !ok {
			return "", notFound("Profile")
		}
		return fmt.Sprintf("name: %s\n", a[3]), nil
	case "profile_create":
		if _, ok := h.profiles[a[3]]; ok {
			return "", alreadyExists("profile")
		}
		h.profiles[a[3]] = ""
		return "", nil
	case "profile_nic":
		network, ok := h.profiles[a[4]]
		if !ok || network == "" {
			return "", &ExitError{Status: 1, Stderr: "Error: Device doesn't exist"}
		}
		return network + "\n", nil
	case "profile_attach":
		network, ok := h.profiles[a[4]]
		if !ok {
			return "", notFound("Profile")
		}
		if network != "" {
			return "", &ExitError{Status: 1, Stderr: "Error: The device already exists"}
		}
		h.profiles[a[4]] = strings.TrimPrefix(a[7], "network=")
		return "", nil
	case "launch":
		name, profile := a[3], a[7]
		if _, ok := h.containers[name]; ok {
			return "", alreadyExists("instance")
		}
		if _, ok := h.profiles[profile]; !ok {
			return "", notFound("Profile")
		}
		h.containers[name] = memContainer{image: a[2], profile: profile}
		return "", nil
	case "info":
		c, ok := h.containers[a[2]]
		if !ok {
			return "", notFound("Instance")
		}
		return fmt.Sprintf("Name: %s\nStatus: RUNNING\nImage: %s\n", a[2], c.image), nil
	case "delete":
		if _, ok := h.containers[a[2]]; !ok {
			return "", notFound("Instance")
		}
		delete(h.containers, a[2])
		return "", nil
	default:
		return "", &ExitError{Status: 2, Stderr: fmt.Sprintf("unsupported command %s", cmd.Op())}
	}
}

// Start opens an echo shell in a running container.
func (h *MemoryHost) Start(ctx context.Context, cmd Command, _ PTY) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls = append(h.calls, cmd.Op())
	if err, ok := h.failures[cmd.Op()]; ok {
		return nil, err
	}
	if cmd.Op() != "shell" {
		return nil, &ExitError{Status: 2, Stderr: fmt.Sprintf("unsupported command %s", cmd.Op())}
	}
	if _, ok := h.containers[cmd.argv[2]]; !ok {
		return nil, notFound("Instance")
	}
	return newEchoProcess(), nil
}

func notFound(what string) error {
	return &ExitError{Status: 1, Stderr: fmt.Sprintf("Error: %s not found", what)}
}

func alreadyExists(what string) error {
	return &ExitError{Status: 1, Stderr: fmt.Sprintf("Error: The %s already exists", what)}
}

// echoProcess writes its input back as output until closed.
type echoProcess struct {
	r    *io.PipeReader
	w    *io.PipeWriter
	done chan struct{}
	once sync.Once
}

func newEchoProcess() *echoProcess {
	r, w := io.Pipe()
	return &echoProcess{r: r, w: w, done: make(chan struct{})}
}

func (p *echoProcess) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *echoProcess) Write(b []byte) (int, error) { return p.w.Write(b) }

func (p *echoProcess) Wait() error {
	<-p.done
	return nil
}

func (p *echoProcess) Close() error {
	p.once.Do(func() {
		close(p.done)
		_ = p.w.Close()
	})
	return nil
}
