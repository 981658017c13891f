package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zulandar/tracker/internal/api"
	"github.com/zulandar/tracker/internal/digest"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the digest scheduler",
		Long:  "Starts the JSON API. When digest.recipient is configured, the activity digest runs on digest.schedule in the same process.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return runServe(cmd, a, port)
			})
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default from config)")
	return cmd
}

func runServe(cmd *cobra.Command, a *app, port int) error {
	if port == 0 {
		port = a.cfg.Server.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var wg sync.WaitGroup
	if a.cfg.Digest.Enabled() {
		runner, err := digest.New(a.cfg.Digest, a.cfg.Location(), a.store, a.notifier, a.log)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runner.Start(ctx); err != nil {
				a.log.Errorw("digest scheduler stopped", "error", err)
			}
		}()
	}

	err := api.Start(ctx, api.StartOpts{
		Service:  a.svc,
		Port:     port,
		Location: a.cfg.Location(),
		Logger:   a.log,
		Out:      cmd.OutOrStdout(),
	})
	cancel()
	wg.Wait()
	return err
}
