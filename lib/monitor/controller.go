// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wardenhq/warden/lib/clock"
	"github.com/wardenhq/warden/lib/probe"
	"github.com/wardenhq/warden/lib/statestore"
	"github.com/wardenhq/warden/lib/status"
)

// DefaultThreshold is the consecutive-failure count that triggers
// escalation when the configuration leaves it unset.
const DefaultThreshold = 3

// defaultProbeTimeout bounds a single probe when the configuration
// leaves it unset.
const defaultProbeTimeout = 10 * time.Second

// Escalator performs the threshold-gated remediation, typically a
// service restart through the privileged gateway. Its error is logged
// and recorded but never aborts the controller run.
type Escalator interface {
	Escalate(ctx context.Context) error
}

// EscalateFunc adapts a function to the Escalator interface.
type EscalateFunc func(ctx context.Context) error

// Escalate implements Escalator.
func (f EscalateFunc) Escalate(ctx context.Context) error { return f(ctx) }

// Config assembles one watchdog instance.
type Config struct {
	// MonitorID names this monitor. It is the state-store key and the
	// status artifact directory, so it must be unique per target.
	MonitorID string

	// Probe is the health check. Required.
	Probe probe.Probe

	// ProbeTimeout bounds a single probe. Zero means the default.
	ProbeTimeout time.Duration

	// Threshold is the consecutive-failure count at which the
	// escalation fires. Zero means DefaultThreshold.
	Threshold int

	// Escalator runs the remediation once the threshold is reached.
	// Required.
	Escalator Escalator

	// SettleDelay, when positive, is how long to wait after an
	// escalation before the informational re-probe. Zero skips the
	// re-probe.
	SettleDelay time.Duration

	// Store persists the failure counter. Required.
	Store statestore.Store

	// Status writes the per-invocation artifact. Required.
	Status *status.Writer

	// Clock supplies time. Nil means the real clock.
	Clock clock.Clock

	// Logger is required.
	Logger *slog.Logger
}

// Report is the caller-visible outcome of one controller invocation.
// Healthy, failed-below-threshold, and escalated are three distinct
// states: a probe failure is reported as a failure even when the
// threshold has not yet been reached.
type Report struct {
	// Healthy reports whether the probe passed.
	Healthy bool

	// ConsecutiveFailures is the counter value after this run. Zero
	// after a success and after an escalation reset.
	ConsecutiveFailures int

	// Escalated reports whether this run fired the escalation.
	Escalated bool

	// Detail is the probe's failure detail, empty when healthy.
	Detail string
}

// Controller is one configured watchdog instance.
type Controller struct {
	config Config
}

// NewController validates the configuration and returns a controller.
func NewController(config Config) (*Controller, error) {
	if config.MonitorID == "" {
		return nil, fmt.Errorf("monitor: MonitorID is required")
	}
	if config.Probe == nil {
		return nil, fmt.Errorf("monitor: Probe is required")
	}
	if config.Escalator == nil {
		return nil, fmt.Errorf("monitor: Escalator is required")
	}
	if config.Store == nil {
		return nil, fmt.Errorf("monitor: Store is required")
	}
	if config.Status == nil {
		return nil, fmt.Errorf("monitor: Status is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("monitor: Logger is required")
	}
	if config.Threshold <= 0 {
		config.Threshold = DefaultThreshold
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = defaultProbeTimeout
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	return &Controller{config: config}, nil
}

// Run executes one watchdog invocation. The returned error covers
// infrastructure failures (state store unreadable, artifact unwritable);
// probe failure and escalation outcome are carried in the Report. A
// status record is written on every path, including a best-effort
// "error" record when the state store itself is unreadable, so
// external pollers see the run either way.
func (c *Controller) Run(ctx context.Context) (Report, error) {
	cfg := c.config
	logger := cfg.Logger.With("monitor", cfg.MonitorID)

	counter, err := cfg.Store.LoadCounter(ctx, cfg.MonitorID)
	if err != nil {
		err = fmt.Errorf("monitor: loading counter for %s: %w", cfg.MonitorID, err)
		if writeErr := c.writeStatus(status.Record{
			OK:     false,
			Detail: err.Error(),
			Action: "error",
		}); writeErr != nil {
			logger.Error("writing status for aborted run failed", "error", writeErr)
		}
		return Report{}, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
	result := cfg.Probe.Check(probeCtx)
	cancel()

	if result.OK {
		report := Report{Healthy: true}
		if counter.ConsecutiveFailures > 0 {
			logger.Info("target recovered",
				"previous_failures", counter.ConsecutiveFailures,
			)
		}
		if err := c.saveCounter(ctx, counter, 0, "probe_ok"); err != nil {
			return report, err
		}
		return report, c.writeStatus(status.Record{
			OK:     true,
			Action: "none",
		})
	}

	counter.ConsecutiveFailures++
	logger.Warn("probe failed",
		"detail", result.Detail,
		"consecutive_failures", counter.ConsecutiveFailures,
		"threshold", cfg.Threshold,
	)

	if counter.ConsecutiveFailures < cfg.Threshold {
		if err := c.saveCounter(ctx, counter, counter.ConsecutiveFailures, "probe_fail"); err != nil {
			return Report{}, err
		}
		report := Report{
			ConsecutiveFailures: counter.ConsecutiveFailures,
			Detail:              result.Detail,
		}
		return report, c.writeStatus(status.Record{
			OK:                  false,
			Detail:              result.Detail,
			Action:              "none",
			ConsecutiveFailures: counter.ConsecutiveFailures,
		})
	}

	// Threshold reached. Escalate best-effort, then reset the counter
	// regardless of the escalation outcome: a still-broken target gets
	// a fresh threshold run on subsequent ticks instead of escalating
	// on every single one.
	logger.Warn("failure threshold reached, escalating",
		"consecutive_failures", counter.ConsecutiveFailures,
	)
	if err := cfg.Escalator.Escalate(ctx); err != nil {
		logger.Error("escalation failed", "error", err)
	}
	if err := c.saveCounter(ctx, counter, 0, "escalated"); err != nil {
		return Report{}, err
	}

	detail := result.Detail
	if settle := c.settleRecheck(ctx, logger); settle != "" {
		detail = detail + "; " + settle
	}

	report := Report{
		Escalated: true,
		Detail:    detail,
	}
	return report, c.writeStatus(status.Record{
		OK:                  false,
		Detail:              detail,
		Action:              "escalated",
		ConsecutiveFailures: cfg.Threshold,
	})
}

// settleRecheck re-probes once after the settle delay. Informational
// only: the result is logged and folded into the status detail, the
// reset counter stands either way.
func (c *Controller) settleRecheck(ctx context.Context, logger *slog.Logger) string {
	if c.config.SettleDelay <= 0 {
		return ""
	}
	c.config.Clock.Sleep(c.config.SettleDelay)

	probeCtx, cancel := context.WithTimeout(ctx, c.config.ProbeTimeout)
	result := c.config.Probe.Check(probeCtx)
	cancel()

	if result.OK {
		logger.Info("target healthy after escalation")
		return "escalation_recovered"
	}
	logger.Warn("target still unhealthy after escalation", "detail", result.Detail)
	return "still_unhealthy_after_escalation"
}

// saveCounter persists the counter with the given value and action.
func (c *Controller) saveCounter(ctx context.Context, counter statestore.FailureCounter, value int, action string) error {
	counter.MonitorID = c.config.MonitorID
	counter.ConsecutiveFailures = value
	counter.LastAction = action
	counter.LastUpdated = c.config.Clock.Now().UTC()
	if err := c.config.Store.SaveCounter(ctx, c.config.MonitorID, counter); err != nil {
		return fmt.Errorf("monitor: saving counter for %s: %w", c.config.MonitorID, err)
	}
	return nil
}

// writeStatus stamps and writes the invocation's status record.
func (c *Controller) writeStatus(record status.Record) error {
	record.Monitor = c.config.MonitorID
	record.TimestampUTC = c.config.Clock.Now().UTC()
	if err := c.config.Status.Write(record); err != nil {
		return fmt.Errorf("monitor: writing status for %s: %w", c.config.MonitorID, err)
	}
	return nil
}
