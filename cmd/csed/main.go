// csed CLI - runs a oneM2M CSE resource dispatch engine.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/getcsed/csed/pkg/config"
	"github.com/getcsed/csed/pkg/cse"
	"github.com/getcsed/csed/pkg/logging"
)

// Build-time variables set via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "csed",
		Short:         "oneM2M CSE resource dispatch and discovery engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newVersionCommand())
	return root
}

func newServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the CSE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			logCfg := logging.Config{
				Level:  logging.ParseLevel(cfg.Logging.Level),
				Format: logging.ParseFormat(cfg.Logging.Format),
			}
			log := logging.New(logCfg)
			if cfg.Logging.File != "" {
				fileLog, err := logging.NewWithFile(logCfg, cfg.Logging.File)
				if err != nil {
					return fmt.Errorf("opening log file: %w", err)
				}
				log = fileLog
			}

			c, err := cse.New(cfg, log)
			if err != nil {
				return fmt.Errorf("starting CSE: %w", err)
			}
			log.Info("csed running", "version", Version, "csi", cfg.CSE.ID)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			s := <-sig
			log.Info("shutting down", "signal", s.String())
			c.Shutdown()
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML configuration file")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("csed %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		},
	}
}
