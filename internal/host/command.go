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
	"fmt"
	"regexp"

	"github.com/alessio/shellescape"
	"github.com/cybercodeedulabs/cybercode-backend/internal/naming"
)

// Resource bounds accepted by the create template.
const (
	MaxCPU     = 64
	MaxRAMGiB  = 256
	MaxDiskGiB = 2048
)

var (
	imageRefPattern  = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*:[a-z0-9][a-z0-9./_-]*$`)
	shellUserPattern = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)
)

// Command is one invocation of a fixed template. It can only be built by
// the constructors in this file, each of which validates its parameters.
type Command struct {
	op   string
	argv []string
}

// Op names the template.
func (c Command) Op() string { return c.op }

// Args returns a copy of the argument vector.
func (c Command) Args() []string { return append([]string(nil), c.argv...) }

// String renders the command line sent to the remote shell.
func (c Command) String() string { return shellescape.QuoteCommand(c.argv) }

func checkName(kind, name string) error {
	if !naming.Valid(name) {
		return fmt.Errorf("invalid %s name %q", kind, name)
	}
	return nil
}

func checkRange(what string, v, max int) error {
	if v < 1 || v > max {
		return fmt.Errorf("%s must be between 1 and %d, got %d", what, max, v)
	}
	return nil
}

func networkShow(network string) (Command, error) {
	if err := checkName("network", network); err != nil {
		return Command{}, err
	}
	return Command{op: "network_show", argv: []string{"lxc", "network", "show", network}}, nil
}

func networkCreate(network string) (Command, error) {
	if err := checkName("network", network); err != nil {
		return Command{}, err
	}
	return Command{op: "network_create", argv: []string{
		"lxc", "network", "create", network, "ipv4.address=auto", "ipv4.nat=true", "ipv6.address=none",
	}}, nil
}

func profileShow(profile string) (Command, error) {
	if err := checkName("profile", profile); err != nil {
		return Command{}, err
	}
	return Command{op: "profile_show", argv: []string{"lxc", "profile", "show", profile}}, nil
}

func profileCreate(profile string) (Command, error) {
	if err := checkName("profile", profile); err != nil {
		return Command{}, err
	}
	return Command{op: "profile_create", argv: []string{"lxc", "profile", "create", profile}}, nil
}

func profileNIC(profile string) (Command, error) {
	if err := checkName("profile", profile); err != nil {
		return Command{}, err
	}
	return Command{op: "profile_nic", argv: []string{"lxc", "profile", "device", "get", profile, "eth0", "network"}}, nil
}

func profileAttach(profile, network string) (Command, error) {
	if err := checkName("profile", profile); err != nil {
		return Command{}, err
	}
	if err := checkName("network", network); err != nil {
		return Command{}, err
	}
	return Command{op: "profile_attach", argv: []string{
		"lxc", "profile", "device", "add", profile, "eth0", "nic", "network=" + network, "name=eth0",
	}}, nil
}

func launch(imageRef, name, profile string, cpu, ramGiB, diskGiB int) (Command, error) {
	if !imageRefPattern.MatchString(imageRef) {
		return Command{}, fmt.Errorf("invalid image reference %q", imageRef)
	}
	if err := checkName("container", name); err != nil {
		return Command{}, err
	}
	if err := checkName("profile", profile); err != nil {
		return Command{}, err
	}
	if err := checkRange("cpu", cpu, MaxCPU); err != nil {
		return Command{}, err
	}
	if err := checkRange("ram", ramGiB, MaxRAMGiB); err != nil {
		return Command{}, err
	}
	if err := checkRange("disk", diskGiB, MaxDiskGiB); err != nil {
		return Command{}, err
	}
	return Command{op: "launch", argv: []string{
		"lxc", "launch", imageRef, name,
		"--profile", "default", "--profile", profile,
		"-c", fmt.Sprintf("limits.cpu=%d", cpu),
		"-c", fmt.Sprintf("limits.memory=%dGiB", ramGiB),
		"-c", "limits.memory.swap=false",
		"-d", fmt.Sprintf("root,size=%dGiB", diskGiB),
	}}, nil
}

func info(name string) (Command, error) {
	if err := checkName("container", name); err != nil {
		return Command{}, err
	}
	return Command{op: "info", argv: []string{"lxc", "info", name}}, nil
}

func destroy(name string) (Command, error) {
	if err := checkName("container", name); err != nil {
		return Command{}, err
	}
	return Command{op: "delete", argv: []string{"lxc", "delete", name, "--force"}}, nil
}

func shell(name, user string) (Command, error) {
	if err := checkName("container", name); err != nil {
		return Command{}, err
	}
	if !shellUserPattern.MatchString(user) || user == "root" {
		return Command{}, fmt.Errorf("invalid shell user %q", user)
	}
	return Command{op: "shell", argv: []string{"lxc", "exec", name, "--", "su", "-", user}}, nil
}
