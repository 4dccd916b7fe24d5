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
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/cybercodeedulabs/cybercode-backend/internal/id"
	"github.com/cybercodeedulabs/cybercode-backend/internal/naming"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) Run(ctx context.Context, cmd Command) (string, error) {
	args := m.Called(ctx, cmd.Op())
	return args.String(0), args.Error(1)
}

func (m *mockExecutor) Start(ctx context.Context, cmd Command, pty PTY) (Process, error) {
	args := m.Called(ctx, cmd.Op())
	if p := args.Get(0); p != nil {
		return p.(Process), args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestProvisioner(t *testing.T, exec Executor, timeout time.Duration) *Provisioner {
	t.Helper()
	p, err := NewProvisioner(exec, Config{CommandTimeout: timeout})
	require.NoError(t, err)
	return p
}

func orgSpec(org string) Spec {
	name, _ := naming.Container("c3-alice", id.Suffix(8))
	return Spec{
		InstanceID:     "inst-1",
		OrganizationID: org,
		Name:           name,
		Image:          "ubuntu-22.04",
		CPU:            1,
		RAMGiB:         1,
		DiskGiB:        2,
	}
}

func count(calls []string, op string) int {
	n := 0
	for _, c := range calls {
		if c == op {
			n++
		}
	}
	return n
}

// TestPurpose: Validates that provisioning creates the organization network and profile once and reuses them.
// Scope: Unit Test
// Security: Instances of one organization share a network no other organization is attached to
// Expected: First launch creates network and profile; second reuses them; another org gets its own network.
// Test Case ID: HST-03
func TestProvisioner_ProvisionIdempotentNetwork(t *testing.T) {
	mem := NewMemoryHost()
	p := newTestProvisioner(t, mem, time.Second)
	ctx := context.Background()

	r1, err := p.Provision(ctx, orgSpec("org-a"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(r1.ContainerName, "c3-alice-"))

	r2, err := p.Provision(ctx, orgSpec("org-a"))
	require.NoError(t, err)
	assert.NotEqual(t, r1.ContainerName, r2.ContainerName)

	calls := mem.Calls()
	assert.Equal(t, 1, count(calls, "network_create"))
	assert.Equal(t, 1, count(calls, "profile_create"))
	assert.Equal(t, 1, count(calls, "profile_attach"))
	assert.Equal(t, 2, count(calls, "launch"))

	_, err = p.Provision(ctx, orgSpec("org-b"))
	require.NoError(t, err)
	assert.Equal(t, 2, count(mem.Calls(), "network_create"))
	assert.Len(t, mem.Containers(), 3)
}

// TestPurpose: Validates the image allow-list is enforced before any host call.
// Scope: Unit Test
// Security: Arbitrary images cannot be pulled onto the host
// Expected: ErrImageNotAllowed and no commands executed.
// Test Case ID: HST-04
func TestProvisioner_RejectsUnknownImage(t *testing.T) {
	mem := NewMemoryHost()
	p := newTestProvisioner(t, mem, time.Second)

	spec := orgSpec("org-a")
	spec.Image = "kali-rolling"
	_, err := p.Provision(context.Background(), spec)
	assert.ErrorIs(t, err, ErrImageNotAllowed)
	assert.Empty(t, mem.Calls())
	assert.False(t, p.SupportsImage("kali-rolling"))
	assert.True(t, p.SupportsImage("debian-12"))
}

// TestPurpose: Validates termination outcomes are reported distinctly.
// Scope: Unit Test
// Expected: Existing containers are removed, missing ones yield ErrNotFound, refused deletes yield ErrRejected.
// Test Case ID: HST-05
func TestProvisioner_Terminate(t *testing.T) {
	mem := NewMemoryHost()
	p := newTestProvisioner(t, mem, time.Second)
	ctx := context.Background()

	r, err := p.Provision(ctx, orgSpec("org-a"))
	require.NoError(t, err)
	require.NoError(t, p.Terminate(ctx, r.ContainerName))
	assert.Empty(t, mem.Containers())

	err = p.Terminate(ctx, r.ContainerName)
	assert.ErrorIs(t, err, ErrNotFound)

	r, err = p.Provision(ctx, orgSpec("org-a"))
	require.NoError(t, err)
	mem.FailOn("delete", &ExitError{Status: 1, Stderr: "Error: permission denied"})
	err = p.Terminate(ctx, r.ContainerName)
	assert.ErrorIs(t, err, ErrRejected)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{r.ContainerName}, mem.Containers())
}

// TestPurpose: Validates a hung host command is cut off by the per-command timeout.
// Scope: Unit Test
// Expected: The call returns within the timeout with an error matching ErrTimeout.
// Test Case ID: HST-06
func TestProvisioner_CommandTimeout(t *testing.T) {
	m := new(mockExecutor)
	m.On("Run", mock.Anything, "network_show").
		Run(func(args mock.Arguments) { <-args.Get(0).(context.Context).Done() }).
		Return("", context.DeadlineExceeded)

	p := newTestProvisioner(t, m, 20*time.Millisecond)
	start := time.Now()
	_, err := p.Provision(context.Background(), orgSpec("org-a"))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
	m.AssertExpectations(t)
}

// TestPurpose: Validates concurrent creation of the organization network is tolerated.
// Scope: Unit Test
// Expected: A create that loses the race is accepted once the network is visible.
// Test Case ID: HST-07
func TestProvisioner_NetworkCreateRace(t *testing.T) {
	exists := &ExitError{Status: 1, Stderr: "Error: The network already exists"}
	m := new(mockExecutor)
	m.On("Run", mock.Anything, "network_show").Return("", notFound("Network")).Once()
	m.On("Run", mock.Anything, "network_create").Return("", exists).Once()
	m.On("Run", mock.Anything, "network_show").Return("name: x\n", nil).Once()
	m.On("Run", mock.Anything, "profile_show").Return("name: p\n", nil).Once()
	m.On("Run", mock.Anything, "profile_nic").Return("", &ExitError{Status: 1}).Once()
	m.On("Run", mock.Anything, "profile_attach").Return("", nil).Once()
	m.On("Run", mock.Anything, "launch").Return("", nil).Once()

	p := newTestProvisioner(t, m, time.Second)
	_, err := p.Provision(context.Background(), orgSpec("org-a"))
	require.NoError(t, err)
	m.AssertExpectations(t)
}

// TestPurpose: Validates a timed-out launch is cleaned up on the host.
// Scope: Unit Test
// Expected: A timeout is followed by a forced delete of the name; a rejected launch is not.
// Test Case ID: HST-08
func TestProvisioner_LaunchTimeoutDiscards(t *testing.T) {
	m := new(mockExecutor)
	m.On("Run", mock.Anything, "network_show").Return("", nil)
	m.On("Run", mock.Anything, "profile_show").Return("", nil)
	m.On("Run", mock.Anything, "profile_nic").Return(naming.Network("org-a")+"\n", nil)
	m.On("Run", mock.Anything, "launch").Return("", context.DeadlineExceeded).Once()
	m.On("Run", mock.Anything, "delete").Return("", nil).Once()

	p := newTestProvisioner(t, m, time.Second)
	_, err := p.Provision(context.Background(), orgSpec("org-a"))
	assert.ErrorIs(t, err, ErrTimeout)
	m.AssertNumberOfCalls(t, "Run", 5)

	m.On("Run", mock.Anything, "launch").Return("", &ExitError{Status: 1, Stderr: "Error: no space"}).Once()
	_, err = p.Provision(context.Background(), orgSpec("org-a"))
	assert.ErrorIs(t, err, ErrRejected)
	m.AssertNumberOfCalls(t, "Run", 9)
	m.AssertExpectations(t)
}

// TestPurpose: Validates a profile bound to a foreign network is refused.
// Scope: Unit Test
// Security: An instance can never join another organization's network
// Expected: ErrRejected before launch.
// Test Case ID: HST-09
func TestProvisioner_ProfileBoundElsewhere(t *testing.T) {
	m := new(mockExecutor)
	m.On("Run", mock.Anything, "network_show").Return("", nil).Once()
	m.On("Run", mock.Anything, "profile_show").Return("", nil).Once()
	m.On("Run", mock.Anything, "profile_nic").Return("c3n-ffffffffff\n", nil).Once()

	p := newTestProvisioner(t, m, time.Second)
	_, err := p.Provision(context.Background(), orgSpec("org-a"))
	assert.ErrorIs(t, err, ErrRejected)
	m.AssertNotCalled(t, "Run", mock.Anything, "launch")
}

// TestPurpose: Validates the shell opens only for containers on the host.
// Scope: Unit Test
// Expected: Bytes written to the shell are echoed back; a missing container is an error.
// Test Case ID: HST-10
func TestProvisioner_OpenShell(t *testing.T) {
	mem := NewMemoryHost()
	p := newTestProvisioner(t, mem, time.Second)
	ctx := context.Background()

	r, err := p.Provision(ctx, orgSpec("org-a"))
	require.NoError(t, err)

	proc, err := p.OpenShell(ctx, r.ContainerName, PTY{Term: "xterm-color", Cols: 80, Rows: 24})
	require.NoError(t, err)

	go func() { _, _ = proc.Write([]byte("ls\n")) }()
	buf := make([]byte, 3)
	_, err = io.ReadFull(proc, buf)
	require.NoError(t, err)
	assert.Equal(t, "ls\n", string(buf))
	require.NoError(t, proc.Close())
	assert.NoError(t, proc.Wait())

	_, err = p.OpenShell(ctx, "c3-alice-00000000", PTY{})
	assert.True(t, errors.Is(err, ErrRejected))
}

// TestPurpose: Validates failed host commands are logged with their operation.
// Scope: Unit Test
// Expected: A refused launch logs a warning carrying host_op; routine show misses stay below info level.
// Test Case ID: HST-11
func TestProvisioner_LogsFailedHostOp(t *testing.T) {
	var buf bytes.Buffer
	mem := NewMemoryHost()
	mem.FailOn("launch", &ExitError{Status: 1, Stderr: "Error: storage pool is full"})
	p, err := NewProvisioner(mem, Config{
		CommandTimeout: time.Second,
		Logger:         slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})),
	})
	require.NoError(t, err)

	_, err = p.Provision(context.Background(), orgSpec("org-a"))
	require.ErrorIs(t, err, ErrRejected)

	logs := buf.String()
	assert.Contains(t, logs, `"host_op":"launch"`)
	assert.Contains(t, logs, `"level":"WARN"`)
	assert.NotContains(t, logs, `"host_op":"network_show"`)
}
