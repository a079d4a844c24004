// Command nodenetrunner hosts one or more nodenets and drives their
// runner loops.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baldhumanity/nodenet-go/nodenet"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	var host string
	var port int
	var resourcePath string

	root := &cobra.Command{
		Use:   "nodenetrunner",
		Short: "Hosts nodenets and drives their step loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(host, port, resourcePath)
		},
	}
	root.Flags().StringVar(&host, "host", "localhost", "host recorded in the server config and startup log (no listener is opened)")
	root.Flags().IntVar(&port, "port", 6543, "port recorded in the server config and startup log (no listener is opened)")
	root.Flags().StringVar(&resourcePath, "resource-path", ".", "directory holding persisted nodenet documents")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func serve(host string, port int, resourcePath string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("starting logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg := nodenet.DefaultRuntimeConfig()
	cfg.Server.Host = host
	cfg.Server.Port = port
	cfg.Engine.ResourcePath = resourcePath

	rt := nodenet.NewRuntime(resourcePath, cfg, logger)
	defer rt.Close()

	control := nodenet.NewControl(rt)

	sugar := logger.Sugar()
	sugar.Infow("nodenetrunner starting", "host", host, "port", port, "resource_path", resourcePath)

	ctx, stop := signal.NotifyContext(context.Background(), notifySignals()...)
	defer stop()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sugar.Infow("nodenetrunner shutting down")
			return nil
		case <-ticker.C:
			for _, uid := range rt.ListNodenets() {
				nn, err := rt.GetNodenet(uid)
				if err != nil {
					continue
				}
				if !nn.IsActive {
					continue
				}
				if _, err := control.StepNodenet(nn); err != nil {
					sugar.Errorw("step failed", "nodenet", uid, "error", err)
				}
			}
		}
	}
}

func notifySignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}
