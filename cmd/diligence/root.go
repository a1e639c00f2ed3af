package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hupe1980/diligence"
	"github.com/hupe1980/diligence/config"
	"github.com/hupe1980/diligence/logging"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configFile string
	verbose    bool
}

// newService builds the research service from configuration. Tests replace it.
var newService = func(ctx context.Context, cfg *config.Config, logger logging.Logger) (*diligence.Diligence, error) {
	return diligence.NewFromConfig(ctx, cfg, logger)
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "diligence",
		Short: "Company due-diligence research agents",
		Long: `Diligence decomposes a research request into focus areas, delegates each one to a
specialized agent equipped with registry, web and professional-network lookups and
synthesizes the findings into a report you can question further.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "configuration file path")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newResearchCmd(flags),
		newChatCmd(flags),
		newServeCmd(flags),
		newConfigCmd(flags),
	)
	return root
}

func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, err
	}
	if flags.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, out io.Writer) logging.Logger {
	return diligence.NewLogger(cfg.Log, out)
}

// closeService flushes pending spans of svc.
func closeService(svc *diligence.Diligence) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.Close(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
