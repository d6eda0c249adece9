package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"prodigy/internal/bootstrap"
)

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the counsel HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := bootstrap.NewContainer()
			c.MustInitConfig()
			if port > 0 {
				c.Config.HTTP.Port = port
			}
			c.MustInitCore()
			c.MustInitApplication()

			if err := c.Start(); err != nil {
				c.Shutdown()
				return err
			}

			serveUntilSignal(c.Context)
			c.Shutdown()
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides HTTP_PORT)")
	return cmd
}

// serveUntilSignal blocks until SIGINT/SIGTERM or the container's context ends
func serveUntilSignal(ctx context.Context) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case <-sig:
	case <-ctx.Done():
	}
}
