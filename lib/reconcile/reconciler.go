// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/wardenhq/warden/lib/clock"
	"github.com/wardenhq/warden/lib/gateway"
	"github.com/wardenhq/warden/lib/gatewayapi"
	"github.com/wardenhq/warden/lib/policy"
	"github.com/wardenhq/warden/lib/probe"
	"github.com/wardenhq/warden/lib/statestore"
	"github.com/wardenhq/warden/lib/status"
	"github.com/wardenhq/warden/lib/sysop"
)

// DefaultRepairLimit is how many consecutive failed repairs are
// tolerated before the incident opens, when the configuration leaves
// it unset.
const DefaultRepairLimit = 3

// defaultCheckTimeout bounds one invariant check.
const defaultCheckTimeout = 10 * time.Second

// Executor sends privileged commands to the gateway. Satisfied by
// *gateway.Client; tests substitute fakes.
type Executor interface {
	Execute(ctx context.Context, command gatewayapi.Command) (gatewayapi.ExecutionResult, error)
}

// Config assembles one reconciliation loop instance.
type Config struct {
	// InvariantName names the invariant; it keys the drift state, the
	// status directory, and the incident files.
	InvariantName string

	// Check probes the invariant. A failing check is drift. Required.
	Check probe.Probe

	// CheckTimeout bounds one check. Zero means the default.
	CheckTimeout time.Duration

	// Client reaches the gateway for the repair. Required.
	Client Executor

	// Fallback, when non-nil, performs the repair directly if the
	// gateway is unavailable. Used only when the process already
	// holds privilege (see Euid); this is the documented exception,
	// not general-purpose privilege escalation.
	Fallback *sysop.Operations

	// Euid reports the effective UID for the fallback privilege
	// check. Nil means os.Geteuid.
	Euid func() int

	// Guard, when non-nil, is consulted before any repair because the
	// repair could sever the operator's remote access. A Skip
	// decision stops the run. Nil means the repair is considered
	// access-safe and runs unguarded.
	Guard func(ctx context.Context) policy.Decision

	// Target and Port are the routing destination the invariant
	// requires; the repair re-points routing at them.
	Target string
	Port   int

	// SettleDelay is the pause between the repair and the re-check.
	SettleDelay time.Duration

	// RepairLimit is the consecutive failed-repair count that opens
	// the incident. Zero means DefaultRepairLimit.
	RepairLimit int

	// DegradedMarker, when set, is a flag file other subsystems leave
	// while this invariant is broken; a successful repair removes it.
	DegradedMarker string

	// RemediationSteps go into the incident for the operator.
	RemediationSteps []string

	// Store persists the drift state. Required.
	Store statestore.Store

	// Status writes the per-run artifact. Required.
	Status *status.Writer

	// Incidents persists the terminal escalation. Required.
	Incidents *IncidentWriter

	// Clock supplies time. Nil means the real clock.
	Clock clock.Clock

	// Logger is required.
	Logger *slog.Logger
}

// Report is the caller-visible outcome of one reconciliation run.
type Report struct {
	// OK reports whether the invariant holds at the end of the run
	// (either it already held or the repair restored it).
	OK bool

	// Action is what the run did: "no_drift", "skipped_unsafe",
	// "repaired", "repair_failed", "incident_open".
	Action string

	// DriftDetected reports whether the initial check found drift.
	DriftDetected bool

	// Detail carries the failure detail, empty on success.
	Detail string
}

// Reconciler is one configured reconciliation loop.
type Reconciler struct {
	config Config
}

// NewReconciler validates the configuration and returns a reconciler.
func NewReconciler(config Config) (*Reconciler, error) {
	if config.InvariantName == "" {
		return nil, fmt.Errorf("reconcile: InvariantName is required")
	}
	if config.Check == nil {
		return nil, fmt.Errorf("reconcile: Check is required")
	}
	if config.Client == nil {
		return nil, fmt.Errorf("reconcile: Client is required")
	}
	if config.Store == nil {
		return nil, fmt.Errorf("reconcile: Store is required")
	}
	if config.Status == nil {
		return nil, fmt.Errorf("reconcile: Status is required")
	}
	if config.Incidents == nil {
		return nil, fmt.Errorf("reconcile: Incidents is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("reconcile: Logger is required")
	}
	if config.Target == "" || config.Port < 1 || config.Port > 65535 {
		return nil, fmt.Errorf("reconcile: routing target and port are required")
	}
	if config.RepairLimit <= 0 {
		config.RepairLimit = DefaultRepairLimit
	}
	if config.CheckTimeout <= 0 {
		config.CheckTimeout = defaultCheckTimeout
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Euid == nil {
		config.Euid = os.Geteuid
	}
	return &Reconciler{config: config}, nil
}

// Run executes one reconciliation tick. The returned error covers
// infrastructure failures only; drift, failed repairs, and open
// incidents are all carried in the Report and the status artifact.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	cfg := r.config
	logger := cfg.Logger.With("invariant", cfg.InvariantName)

	state, err := cfg.Store.LoadDrift(ctx, cfg.InvariantName)
	if err != nil {
		return Report{}, fmt.Errorf("reconcile: loading drift state for %s: %w", cfg.InvariantName, err)
	}

	result := r.check(ctx)
	if result.OK {
		if state.IncidentOpen {
			logger.Info("invariant recovered, closing escalation state")
		}
		state.DriftDetected = false
		state.RepairCount = 0
		state.IncidentOpen = false
		if err := r.saveState(ctx, state); err != nil {
			return Report{}, err
		}
		report := Report{OK: true, Action: "no_drift"}
		return report, r.writeStatus(report)
	}

	logger.Warn("drift detected", "detail", result.Detail)
	state.DriftDetected = true

	// Terminal: incident already open. Re-check only; the incident
	// stays until a check passes or a human resolves it.
	if state.IncidentOpen {
		if _, err := cfg.Incidents.Open(cfg.InvariantName, r.incidentSummary(result.Detail), cfg.RemediationSteps, state.RepairCount, cfg.Clock.Now()); err != nil {
			logger.Error("refreshing incident failed", "error", err)
		}
		if err := r.saveState(ctx, state); err != nil {
			return Report{}, err
		}
		report := Report{Action: "incident_open", DriftDetected: true, Detail: result.Detail}
		return report, r.writeStatus(report)
	}

	// The repair rewrites routing for the remote-access path, so it
	// is gated on the safety policy when a guard is configured.
	if cfg.Guard != nil && cfg.Guard(ctx) != policy.Remediate {
		logger.Warn("repair skipped by safety policy")
		if err := r.saveState(ctx, state); err != nil {
			return Report{}, err
		}
		report := Report{Action: "skipped_unsafe", DriftDetected: true, Detail: result.Detail}
		return report, r.writeStatus(report)
	}

	repairErr := r.repair(ctx, logger)
	state.LastRepairAttempt = cfg.Clock.Now().UTC()

	if repairErr == nil {
		if cfg.SettleDelay > 0 {
			cfg.Clock.Sleep(cfg.SettleDelay)
		}
		recheck := r.check(ctx)
		if recheck.OK {
			r.clearDegradedMarker(logger)
			state.DriftDetected = false
			state.RepairCount = 0
			if err := r.saveState(ctx, state); err != nil {
				return Report{}, err
			}
			logger.Info("invariant repaired")
			report := Report{OK: true, Action: "repaired", DriftDetected: true}
			return report, r.writeStatus(report)
		}
		repairErr = fmt.Errorf("invariant still failing after repair: %s", recheck.Detail)
	}

	// Failed repair. No in-run retry; count it and possibly escalate.
	logger.Error("repair failed", "error", repairErr)
	state.RepairCount++
	detail := repairErr.Error()

	if state.RepairCount >= cfg.RepairLimit {
		incident, err := cfg.Incidents.Open(cfg.InvariantName, r.incidentSummary(detail), cfg.RemediationSteps, state.RepairCount, cfg.Clock.Now())
		if err != nil {
			logger.Error("opening incident failed", "error", err)
		} else {
			logger.Error("repair limit reached, incident opened",
				"incident_id", incident.ID,
				"repair_count", state.RepairCount,
			)
			state.IncidentOpen = true
		}
	}
	if err := r.saveState(ctx, state); err != nil {
		return Report{}, err
	}
	report := Report{Action: "repair_failed", DriftDetected: true, Detail: detail}
	return report, r.writeStatus(report)
}

// check runs the invariant probe under its timeout.
func (r *Reconciler) check(ctx context.Context) probe.Result {
	checkCtx, cancel := context.WithTimeout(ctx, r.config.CheckTimeout)
	defer cancel()
	return r.config.Check.Check(checkCtx)
}

// repair re-points routing at the required target: reset then apply,
// the one supported repair sequence. Prefers the gateway; falls back
// to direct execution only when the gateway is unreachable and this
// process already runs privileged.
func (r *Reconciler) repair(ctx context.Context, logger *slog.Logger) error {
	cfg := r.config

	reset := gatewayapi.NewResetRouting()
	result, err := cfg.Client.Execute(ctx, reset)
	if err == nil && result.OK {
		apply, buildErr := gatewayapi.NewApplyRouting(cfg.Target, cfg.Port)
		if buildErr != nil {
			return fmt.Errorf("building apply-routing command: %w", buildErr)
		}
		result, err = cfg.Client.Execute(ctx, apply)
		if err == nil {
			if !result.OK {
				return fmt.Errorf("gateway rejected apply-routing: %s", result.Reason)
			}
			return nil
		}
	} else if err == nil {
		return fmt.Errorf("gateway rejected reset-routing: %s", result.Reason)
	}

	if !errors.Is(err, gateway.ErrUnavailable) {
		return fmt.Errorf("gateway repair: %w", err)
	}
	if cfg.Fallback == nil || cfg.Euid() != 0 {
		return fmt.Errorf("gateway unavailable and no privileged fallback: %w", err)
	}

	logger.Warn("gateway unavailable, repairing via direct privileged fallback")
	if outcome := cfg.Fallback.ResetRouting(ctx); !outcome.OK() {
		return fmt.Errorf("direct reset-routing: %s", outcome.String())
	}
	if outcome := cfg.Fallback.ApplyRouting(ctx, cfg.Target, cfg.Port); !outcome.OK() {
		return fmt.Errorf("direct apply-routing: %s", outcome.String())
	}
	return nil
}

// clearDegradedMarker removes the flag file dependents leave while
// the invariant is broken. A missing marker is fine.
func (r *Reconciler) clearDegradedMarker(logger *slog.Logger) {
	if r.config.DegradedMarker == "" {
		return
	}
	if err := os.Remove(r.config.DegradedMarker); err != nil && !os.IsNotExist(err) {
		logger.Warn("removing degraded marker failed",
			"path", r.config.DegradedMarker,
			"error", err,
		)
	}
}

func (r *Reconciler) incidentSummary(detail string) string {
	return fmt.Sprintf("Automated repair of %q keeps failing; routing should point at %s:%d. Last failure: %s",
		r.config.InvariantName, r.config.Target, r.config.Port, detail)
}

func (r *Reconciler) saveState(ctx context.Context, state statestore.DriftState) error {
	state.InvariantName = r.config.InvariantName
	if err := r.config.Store.SaveDrift(ctx, r.config.InvariantName, state); err != nil {
		return fmt.Errorf("reconcile: saving drift state for %s: %w", r.config.InvariantName, err)
	}
	return nil
}

func (r *Reconciler) writeStatus(report Report) error {
	record := status.Record{
		Monitor:       r.config.InvariantName,
		OK:            report.OK,
		Detail:        report.Detail,
		Action:        report.Action,
		DriftDetected: report.DriftDetected,
		TimestampUTC:  r.config.Clock.Now().UTC(),
	}
	if err := r.config.Status.Write(record); err != nil {
		return fmt.Errorf("reconcile: writing status for %s: %w", r.config.InvariantName, err)
	}
	return nil
}
