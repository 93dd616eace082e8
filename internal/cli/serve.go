// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - HTTP API server command.

package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeranaias/vibeforge/internal/server"
)

const shutdownGrace = 10 * time.Second

// HandleServe runs the HTTP API until interrupted.
func HandleServe(args []string) error {
	parsed := NewArgParser(args)

	rt, err := NewRuntime(parsed.Flag("model"))
	if err != nil {
		return err
	}
	defer rt.Close()

	addr := parsed.FlagOr("addr", rt.Config.Server.Addr)

	srv := server.NewServer(server.Config{
		Addr:          addr,
		AllowedOrigin: rt.Config.Server.AllowedOrigin,
		RatePerSecond: rt.Config.Server.RatePerSecond,
		Burst:         rt.Config.Server.Burst,
	}, rt.Service)

	log.Printf("SERVE: model %s", rt.Config.OpenRouter.Model)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-stop:
		log.Printf("SERVE: received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
