// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// warden-gateway is the privileged execution gateway: the single
// process on a host permitted to run the allow-listed privileged
// operations, reachable only over a filesystem-permission-restricted
// Unix socket.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wardenhq/warden/lib/gateway"
	"github.com/wardenhq/warden/lib/gatewayapi"
	"github.com/wardenhq/warden/lib/monitordef"
	"github.com/wardenhq/warden/lib/sysop"
	"github.com/wardenhq/warden/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "warden-gateway: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "/etc/warden/gateway.yaml", "path to the gateway YAML config")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("warden-gateway %s\n", version.Full())
		return nil
	}

	config, err := monitordef.LoadGatewayConfig(configPath)
	if err != nil {
		return err
	}

	secret, err := gatewayapi.LoadSecret(config.SecretFile)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	disabled := make(map[gatewayapi.Action]bool, len(config.DisabledActions))
	for _, action := range config.DisabledActions {
		disabled[gatewayapi.Action(action)] = true
	}

	server, err := gateway.NewServer(gateway.Config{
		SocketPath: config.SocketPath,
		Secret:     secret,
		Operations: &sysop.Operations{
			Runner:     sysop.ExecRunner{},
			Timeout:    config.OperationTimeout(),
			RoutedPort: config.RoutedPort,
			Logger:     logger,
		},
		Disabled: disabled,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Serve blocks until the signal arrives, then drains in-flight
	// requests before returning.
	if err := server.Serve(ctx); err != nil {
		return err
	}
	logger.Info("gateway stopped")
	return nil
}
