package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/born-ml/textcls/internal/config"
)

const version = "v0.1.0-dev"

// NewCLI builds the root command.
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	env := config.LoadEnv()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: env.LogLevel})))

	rootCmd := &cobra.Command{
		Use:           "textcls",
		Short:         "Neural text classifiers on Born",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if v, _ := cmd.Flags().GetBool("version"); v {
				versionHandler(cmd, args)
				return
			}
			cmd.Print(cmd.UsageString())
		},
	}
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
	rootCmd.PersistentFlags().StringP("config", "c", env.Config, "Model file (TEXTCLS_CONFIG)")
	rootCmd.PersistentFlags().StringP("weights", "w", env.Weights, "Checkpoint to load (TEXTCLS_WEIGHTS)")
	rootCmd.PersistentFlags().String("device", env.Device, "Backend: cpu, autodiff or webgpu (TEXTCLS_DEVICE)")

	rootCmd.AddCommand(
		newSummaryCmd(),
		newInitCmd(),
		newPredictCmd(),
		newServeCmd(env),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run:   versionHandler,
	}
}

func versionHandler(cmd *cobra.Command, _ []string) {
	fmt.Fprintf(cmd.OutOrStdout(), "textcls version %s\n", version)
}

// openFromFlags loads the model file named by --config and builds the
// classifier on the --device backend.
func openFromFlags(cmd *cobra.Command, loadWeights bool) (session, func(), error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return nil, nil, fmt.Errorf("no model file: pass --config or set TEXTCLS_CONFIG")
	}
	f, err := config.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}

	weights, _ := cmd.Flags().GetString("weights")
	if !loadWeights {
		weights = ""
		f.Weights = ""
	}
	device, _ := cmd.Flags().GetString("device")

	s, release, err := openSession(device, f, weights)
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("model loaded", "config", path, "architecture", f.Architecture, "device", device)
	return s, release, nil
}
