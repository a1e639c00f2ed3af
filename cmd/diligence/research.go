package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/diligence"
	"github.com/hupe1980/diligence/core"
	"github.com/spf13/cobra"
)

type researchFlags struct {
	focusAreas   []string
	jurisdiction string
	sessionID    string
	out          outputOptions
}

func addResearchFlags(cmd *cobra.Command, f *researchFlags) {
	cmd.Flags().StringSliceVarP(&f.focusAreas, "focus", "f", nil, "focus areas to research (default: Profile, Leadership, Financials)")
	cmd.Flags().StringVarP(&f.jurisdiction, "jurisdiction", "j", "", "jurisdiction of the subject company")
	cmd.Flags().StringVar(&f.sessionID, "session", "", "session id (generated when empty)")
	cmd.Flags().StringVarP(&f.out.format, "output", "o", "markdown", "output format: markdown or json")
	cmd.Flags().StringVar(&f.out.style, "style", "auto", "markdown style: auto, dark, light, notty or plain")
	cmd.Flags().IntVar(&f.out.width, "width", 100, "word wrap width")
}

func newResearchCmd(flags *globalFlags) *cobra.Command {
	f := &researchFlags{}
	cmd := &cobra.Command{
		Use:   "research [company]",
		Short: "Research a company and print the report",
		Long: `Run a full research pass on a company. Each focus area becomes one report section;
sections whose data sources fail are reported as failed instead of aborting the run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, rep, err := runResearch(ctx, flags, f, args[0])
			if err != nil {
				return err
			}
			defer closeService(svc)
			return writeReport(cmd.OutOrStdout(), rep, f.out)
		},
	}
	addResearchFlags(cmd, f)
	return cmd
}

// runResearch builds the service and runs one research pass. On success the
// caller owns the service and must close it.
func runResearch(ctx context.Context, flags *globalFlags, f *researchFlags, subject string) (*diligence.Diligence, *core.Report, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, nil, err
	}

	svc, err := newService(ctx, cfg, newLogger(cfg, os.Stderr))
	if err != nil {
		return nil, nil, err
	}

	req, err := core.NewResearchRequest(subject, f.jurisdiction, f.focusAreas, f.sessionID)
	if err != nil {
		closeService(svc)
		return nil, nil, err
	}

	rep, err := svc.RunResearch(ctx, req)
	if err != nil {
		closeService(svc)
		return nil, nil, err
	}
	return svc, rep, nil
}
