// Package telemetry exposes the otel metric instruments this module's
// claim, merge, and readiness hot paths report into. Instruments are
// created eagerly against the global meter provider (the no-op default
// until Init runs), matching the delegating-provider pattern the otel
// global package is designed around: a caller can wire a real
// MeterProvider at any point via Init and every instrument created here
// before or after that point starts emitting through it.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const instrumentationName = "github.com/eluent/eluent"

var meter = otel.Meter(instrumentationName)

var (
	claimAttempts    = mustCounter("eluent.claim.attempts", "claim/release protocol invocations, by outcome")
	staleReleases    = mustCounter("eluent.claim.stale_releases", "atoms auto-released by stale-claim reconciliation")
	mergeRuns        = mustCounter("eluent.merge.runs", "three-way merge invocations")
	mergeConflicts   = mustCounter("eluent.merge.conflicts", "atoms with concurrent edits on both sides of a merge")
	readinessQueries = mustCounter("eluent.readiness.queries", "Ready() calls, by result size bucket")
)

func mustCounter(name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		// Only reachable if name violates otel's instrument-name grammar,
		// which is fixed above and never user-supplied.
		panic(fmt.Sprintf("telemetry: create counter %s: %v", name, err))
	}
	return c
}

// Init wires a stdout-exporting MeterProvider as the process global, for
// local/dev visibility — spec.md carries no remote metrics backend
// requirement, so stdout is the always-available default the CLI starts
// with. Returned shutdown flushes and stops the periodic reader; callers
// should defer it.
func Init() (shutdown func(context.Context) error, err error) {
	exporter, err := stdoutmetric.New(stdoutmetric.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("telemetry: create stdout metric exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	otel.SetMeterProvider(provider)
	return provider.Shutdown, nil
}

// RecordClaimAttempt reports one Claim/Release/Heartbeat call's outcome:
// "success", the failing kinded error's Kind (e.g. "already_claimed",
// "terminal_state", "not_found"), or "error".
func RecordClaimAttempt(ctx context.Context, outcome string) {
	claimAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordStaleRelease reports a stale-claim reconciliation pass that
// released n in_progress atoms back to open (spec.md §4.7).
func RecordStaleRelease(ctx context.Context, n int) {
	if n == 0 {
		return
	}
	staleReleases.Add(ctx, int64(n))
}

// RecordMerge reports one three-way merge run over atomCount atoms,
// conflictCount of which had concurrent edits on both sides since base.
func RecordMerge(ctx context.Context, atomCount, conflictCount int) {
	mergeRuns.Add(ctx, 1, metric.WithAttributes(attribute.Int("atom_count", atomCount)))
	if conflictCount > 0 {
		mergeConflicts.Add(ctx, int64(conflictCount))
	}
}

// RecordReadinessQuery reports one Ready() call returning resultCount atoms.
func RecordReadinessQuery(ctx context.Context, resultCount int) {
	readinessQueries.Add(ctx, 1, metric.WithAttributes(attribute.Int("result_count", resultCount)))
}
