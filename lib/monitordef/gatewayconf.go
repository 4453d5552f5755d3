// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package monitordef

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// GatewayConfig is the warden-gateway service configuration.
type GatewayConfig struct {
	// SocketPath is where the gateway listens.
	SocketPath string `yaml:"socket_path"`

	// SecretFile holds the shared MAC secret. Must be mode 0600 or
	// stricter; the gateway refuses group- or world-readable secrets.
	SecretFile string `yaml:"secret_file"`

	// OperationTimeoutSeconds bounds each privileged operation. Zero
	// takes the default of 60.
	OperationTimeoutSeconds int `yaml:"operation_timeout_seconds,omitempty"`

	// RoutedPort is the externally routed port the routing actions
	// manage.
	RoutedPort int `yaml:"routed_port"`

	// DisabledActions lists allow-listed actions this deployment
	// refuses anyway.
	DisabledActions []string `yaml:"disabled_actions,omitempty"`
}

// defaultOperationTimeout applies when the config leaves the
// operation timeout unset.
const defaultOperationTimeout = 60 * time.Second

// OperationTimeout returns the configured operation timeout.
func (c GatewayConfig) OperationTimeout() time.Duration {
	if c.OperationTimeoutSeconds <= 0 {
		return defaultOperationTimeout
	}
	return time.Duration(c.OperationTimeoutSeconds) * time.Second
}

// LoadGatewayConfig reads and validates the gateway YAML config.
func LoadGatewayConfig(path string) (GatewayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GatewayConfig{}, fmt.Errorf("monitordef: reading %s: %w", path, err)
	}
	return ParseGatewayConfig(data)
}

// ParseGatewayConfig decodes and validates the gateway YAML config.
// Unknown keys are rejected.
func ParseGatewayConfig(data []byte) (GatewayConfig, error) {
	var config GatewayConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil {
		return GatewayConfig{}, fmt.Errorf("monitordef: decoding gateway config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return GatewayConfig{}, err
	}
	return config, nil
}

// Validate checks the gateway config field by field.
func (c GatewayConfig) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("monitordef: gateway socket_path is required")
	}
	if c.SecretFile == "" {
		return fmt.Errorf("monitordef: gateway secret_file is required")
	}
	if c.RoutedPort < 1 || c.RoutedPort > 65535 {
		return fmt.Errorf("monitordef: gateway routed_port %d out of range", c.RoutedPort)
	}
	if c.OperationTimeoutSeconds < 0 {
		return fmt.Errorf("monitordef: gateway operation_timeout_seconds must not be negative")
	}
	for _, action := range c.DisabledActions {
		switch action {
		case "restart-service", "apply-routing", "reset-routing":
		default:
			return fmt.Errorf("monitordef: gateway disabled action %q is not in the allow-list", action)
		}
	}
	return nil
}
