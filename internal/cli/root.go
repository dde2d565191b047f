// Package cli implements the resonance command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/resonance/internal/config"
	"github.com/ewilliams-labs/resonance/internal/logging"
)

// BuildInfo is stamped at link time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// app carries state shared by subcommands after the root pre-run.
type app struct {
	configPath string
	cfg        *config.Config
	build      BuildInfo
}

// NewRootCmd builds the resonance command tree.
func NewRootCmd(build BuildInfo) *cobra.Command {
	a := &app{build: build}

	root := &cobra.Command{
		Use:   "resonance",
		Short: "Listening-history insights: personality, stress and recommendations",
		Long: `resonance derives a listening personality, stress indicators and
content-based recommendations from a user's listening history.

Configuration is read from defaults, then resonance.yaml (or the file named by
--config or RESONANCE_CONFIG), then RESONANCE_<SECTION>_<KEY> variables.`,
		Version:       build.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			logging.Init(logging.Config{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Caller: cfg.Logging.Caller,
				Output: os.Stderr,
			})
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default resonance.yaml)")

	root.AddCommand(
		newServeCmd(a),
		newImportCmd(a),
		newAnalyzeCmd(a),
		newVersionCmd(a),
	)
	return root
}

// Execute runs the command tree and reports a failure on stderr.
func Execute(build BuildInfo) int {
	if err := NewRootCmd(build).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Version:  %s\n", a.build.Version)
			fmt.Fprintf(out, "Commit:   %s\n", a.build.Commit)
			fmt.Fprintf(out, "Built:    %s\n", a.build.Date)
			return nil
		},
	}
}
