package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hupe1980/diligence/api"
	"github.com/hupe1980/diligence/core"
	"github.com/spf13/cobra"
)

func newChatCmd(flags *globalFlags) *cobra.Command {
	f := &researchFlags{}
	cmd := &cobra.Command{
		Use:   "chat [company]",
		Short: "Research a company, then ask follow-up questions",
		Long: `Run a research pass and open an interactive session grounded in the resulting
report. Type a question and press enter. Commands: /report prints the report
again, /quit ends the session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, rep, err := runResearch(ctx, flags, f, args[0])
			if err != nil {
				return err
			}
			defer closeService(svc)
			out := cmd.OutOrStdout()
			if err := writeReport(out, rep, f.out); err != nil {
				return err
			}
			if rep.OverallStatus == core.OverallFailed {
				fmt.Fprintln(out, "No data could be gathered; follow-up questions are unavailable.")
				return nil
			}
			return chatLoop(ctx, svc, rep.Provenance.SessionID, cmd.InOrStdin(), out, f.out)
		},
	}
	addResearchFlags(cmd, f)
	return cmd
}

func chatLoop(ctx context.Context, svc api.Service, sessionID string, in io.Reader, out io.Writer, opts outputOptions) error {
	defer func() { _ = svc.EndSession(sessionID) }()

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/report":
			rep, ok := svc.Report(sessionID)
			if !ok {
				fmt.Fprintln(out, "no report stored for this session")
				continue
			}
			if err := writeReport(out, rep, opts); err != nil {
				return err
			}
			continue
		}

		answer, err := svc.AskFollowup(ctx, sessionID, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if err := renderMarkdown(out, answer, opts); err != nil {
			return err
		}
	}
}
