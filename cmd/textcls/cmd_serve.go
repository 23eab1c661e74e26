package main

import (
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/born-ml/textcls/internal/config"
	"github.com/born-ml/textcls/internal/server"
)

func newServeCmd(env config.Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Serve the model over HTTP",
		Args:    cobra.NoArgs,
		RunE:    RunServer,
	}
	cmd.Flags().String("addr", env.Addr, "Listen address (TEXTCLS_ADDR)")
	cmd.SetUsageTemplate(cmd.UsageTemplate() + `
Environment Variables:
      TEXTCLS_CONFIG      Model file
      TEXTCLS_WEIGHTS     Checkpoint overriding the model file weights
      TEXTCLS_ADDR        Listen address (default "` + config.DefaultAddr + `")
      TEXTCLS_DEVICE      Backend: cpu, autodiff or webgpu
      TEXTCLS_LOG_LEVEL   debug, info, warn or error
`)
	return cmd
}

// RunServer loads the model and serves it until interrupted.
func RunServer(cmd *cobra.Command, _ []string) error {
	s, release, err := openFromFlags(cmd, true)
	if err != nil {
		return err
	}
	defer release()

	addr, _ := cmd.Flags().GetString("addr")
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = server.Serve(ctx, ln, s)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
