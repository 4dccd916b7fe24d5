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

package metrics

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Compute groups the instruments recorded by the instance lifecycle.
type Compute struct {
	created         metric.Int64Counter
	failed          metric.Int64Counter
	terminated      metric.Int64Counter
	denied          metric.Int64Counter
	hostCalls       metric.Float64Histogram
	terminalActive  metric.Int64UpDownCounter
	terminalAttempt metric.Int64Counter
}

// NewCompute registers the lifecycle instruments on m.
func NewCompute(m *Meter) (*Compute, error) {
	var c Compute
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var err error
	c.created, err = m.counter("compute.instances.created", "Instances reserved by create requests")
	add(err)
	c.failed, err = m.counter("compute.instances.failed", "Instances whose provisioning failed")
	add(err)
	c.terminated, err = m.counter("compute.instances.terminated", "Instances removed after host cleanup")
	add(err)
	c.denied, err = m.counter("compute.requests.denied", "Create requests rejected by policy")
	add(err)
	c.hostCalls, err = m.seconds("compute.host.call.duration", "Duration of host control-plane calls")
	add(err)
	c.terminalActive, err = m.gauge("terminal.sessions.active", "Attached terminal sessions")
	add(err)
	c.terminalAttempt, err = m.counter("terminal.sessions.attempts", "Terminal connection attempts by outcome")
	add(err)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &c, nil
}

// InstancesCreated adds n reserved instances.
func (c *Compute) InstancesCreated(ctx context.Context, n int, freeTier bool) {
	if c == nil {
		return
	}
	c.created.Add(ctx, int64(n), metric.WithAttributes(attribute.Bool("free_tier", freeTier)))
}

// InstanceFailed counts a provisioning failure.
func (c *Compute) InstanceFailed(ctx context.Context, reason string) {
	if c == nil {
		return
	}
	c.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// InstanceTerminated counts a completed termination.
func (c *Compute) InstanceTerminated(ctx context.Context) {
	if c == nil {
		return
	}
	c.terminated.Add(ctx, 1)
}

// RequestDenied counts a policy rejection by code.
func (c *Compute) RequestDenied(ctx context.Context, code string) {
	if c == nil {
		return
	}
	c.denied.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}

// HostCall records the duration and outcome of a host operation.
func (c *Compute) HostCall(ctx context.Context, op string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.hostCalls.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("error", err != nil),
	))
}

// TerminalAttached tracks an attached session; call the returned func on close.
func (c *Compute) TerminalAttached(ctx context.Context) func() {
	if c == nil {
		return func() {}
	}
	c.terminalActive.Add(ctx, 1)
	return func() { c.terminalActive.Add(context.WithoutCancel(ctx), -1) }
}

// TerminalAttempt counts a terminal connection by outcome.
func (c *Compute) TerminalAttempt(ctx context.Context, outcome string) {
	if c == nil {
		return
	}
	c.terminalAttempt.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
