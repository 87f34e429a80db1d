package main

import (
	"github.com/spf13/cobra"

	"github.com/huynhanx03/go-cqueue/pkg/settings"
)

type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "cqueue",
		Short:         "Unbounded concurrent FIFO queue workbench",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logger.log_level")

	cmd.AddCommand(newStressCmd(opts))
	return cmd
}

// loadConfig returns the file configuration, or the defaults without one.
func (o *rootOptions) loadConfig() (*settings.Config, error) {
	if o.configFile == "" {
		cfg := settings.Default()
		return &cfg, nil
	}
	return settings.Load(o.configFile)
}
