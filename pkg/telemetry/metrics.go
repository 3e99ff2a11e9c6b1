// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RoleMetrics records per-role execution counts and latencies through the
// global OTEL meter. It satisfies the orchestration kernel's metrics sink
// contract.
type RoleMetrics struct {
	executions metric.Int64Counter
	latency    metric.Float64Histogram
	circuits   metric.Int64Counter
	safeMode   metric.Int64Gauge
}

// NewRoleMetrics creates the role metric instruments.
func NewRoleMetrics() (*RoleMetrics, error) {
	meter := otel.Meter("telos/orchestrator")

	executions, err := meter.Int64Counter(
		"telos.role.executions",
		metric.WithDescription("Role executions by role and outcome"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram(
		"telos.role.latency_ms",
		metric.WithDescription("Role call latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	circuits, err := meter.Int64Counter(
		"telos.circuit.trips",
		metric.WithDescription("Circuit breaker trips by role"),
	)
	if err != nil {
		return nil, err
	}

	safeMode, err := meter.Int64Gauge(
		"telos.safemode.active",
		metric.WithDescription("Whether the kernel sits in safe mode (0 or 1)"),
	)
	if err != nil {
		return nil, err
	}

	return &RoleMetrics{
		executions: executions,
		latency:    latency,
		circuits:   circuits,
		safeMode:   safeMode,
	}, nil
}

// RecordRoleExecution counts one role call with its outcome label.
func (m *RoleMetrics) RecordRoleExecution(role string, outcome string) {
	if m == nil {
		return
	}
	m.executions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("role", role),
		attribute.String("outcome", outcome),
	))
}

// RecordRoleLatencyMs records one role call duration.
func (m *RoleMetrics) RecordRoleLatencyMs(role string, ms float64) {
	if m == nil {
		return
	}
	m.latency.Record(context.Background(), ms, metric.WithAttributes(
		attribute.String("role", role),
	))
}

// RecordCircuitTrip counts a breaker trip for the given role.
func (m *RoleMetrics) RecordCircuitTrip(role string) {
	if m == nil {
		return
	}
	m.circuits.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("role", role),
	))
}

// RecordSafeMode publishes the current safe-mode flag.
func (m *RoleMetrics) RecordSafeMode(active bool) {
	if m == nil {
		return
	}
	value := int64(0)
	if active {
		value = 1
	}
	m.safeMode.Record(context.Background(), value)
}
