package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string

	// Ready, if set, receives the bound address once the server listens
	// (tests use it with --listen 127.0.0.1:0).
	Ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the agent and its HTTP surface",
		Long: `Install and activate the current asset snapshot, then serve the app.

Asset requests are answered cache-first with an offline fallback, and the
/api routes accept vacations for delivery. Pending records are flushed on
startup, whenever connectivity returns, and while a delivery trigger is
registered.

Example:
  vacatrack serve --config vacatrack.yaml
  vacatrack serve --db /tmp/agent.db --listen 127.0.0.1:9000 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	a, err := openAgent(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Error("error closing agent", "error", closeErr)
		}
	}()

	listen := a.Config().Listen
	if opts.Listen != "" {
		listen = opts.Listen
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := a.Start(ctx); err != nil {
		return outputError(f, classify(err), "failed to start agent", err, ExitFailure)
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return outputError(f, ErrCodeGeneric, "failed to listen", err, ExitCommandError)
	}
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	addr := ln.Addr().String()
	slog.Info("serving", "addr", addr, "snapshot", a.Cache().Name())
	fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s\n", addr)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
	if opts.Ready != nil {
		opts.Ready <- addr
	}

	var failure error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		failure = err
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		failure = errors.Join(failure, err)
	}
	if failure != nil {
		return WrapExitError(ExitFailure, "server error", failure)
	}

	slog.Info("agent stopped gracefully")
	return nil
}
