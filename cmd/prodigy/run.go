package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"prodigy/internal/agents"
	"prodigy/internal/bootstrap"
	"prodigy/internal/domain/counsel"
	counselsvc "prodigy/internal/services/counsel"
	"prodigy/pkg/errors"
)

type runOptions struct {
	briefPath string
	outDir    string
	noSave    bool
	asJSON    bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate one project brief and write the counsel report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrief(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.briefPath, "brief", "b", "", "path to the project brief (.json, .yaml or .yml)")
	cmd.Flags().StringVar(&opts.outDir, "out", "", "report directory (overrides REPORTS_DIR)")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "do not write the report file")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the full report as JSON instead of the summary")
	_ = cmd.MarkFlagRequired("brief")
	return cmd
}

func runBrief(cmd *cobra.Command, opts runOptions) error {
	brief, err := counsel.LoadBrief(opts.briefPath)
	if err != nil {
		return err
	}

	c := bootstrap.NewContainer()
	c.MustInitConfig()
	if opts.outDir != "" {
		c.Config.Reports.Dir = opts.outDir
	}
	if opts.noSave {
		c.Config.Reports.Save = false
	}
	c.MustInitCore()
	if c.Repos.Usage != nil {
		c.Repos.Usage.Start(c.Context)
	}
	defer c.Shutdown()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c.Log.Infow("Running counsel", "idea", brief.IdeaName, "brief", opts.briefPath)
	out, err := c.Services.Counsel.Evaluate(ctx, brief)
	if err != nil {
		return errors.Wrapf(err, "counsel run for %q", brief.IdeaName)
	}
	if out.SaveErr != nil {
		c.Log.Warnw("Run finished but was not saved everywhere", "error", out.SaveErr)
	}

	w := cmd.OutOrStdout()
	if opts.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(out.Run.Report())
	}
	printSummary(w, out)
	return nil
}

// printSummary writes the human-readable verdict of a finished run
func printSummary(w io.Writer, out *counselsvc.Outcome) {
	run := out.Run
	rule := strings.Repeat("=", 60)

	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "COUNSEL SUMMARY: %s\n", run.Brief.IdeaName)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Overall score:  %.1f / 10 (spread %.1f)\n", run.Aggregate.Score, run.Aggregate.Spread)
	fmt.Fprintf(w, "Decision:       %s\n", run.Aggregate.Decision)
	if run.Synthesis != nil && run.Synthesis.Verdict != "" {
		fmt.Fprintf(w, "Verdict:        %s\n", run.Synthesis.Verdict)
	}
	fmt.Fprintln(w)

	for _, p := range agents.Profiles() {
		s, ok := run.Summaries[p.Key]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %-34s %4.1f  %s\n", p.Identity, s.Score, s.Decision)
	}

	if run.Challenged() {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Devil's Advocate: %s\n", run.Challenge.WeakestAssumption)
		if len(run.ReAnalyzed) > 0 {
			names := make([]string, 0, len(run.ReAnalyzed))
			for _, k := range run.ReAnalyzed {
				names = append(names, k.String())
			}
			fmt.Fprintf(w, "Re-analyzed:      %s\n", strings.Join(names, ", "))
		}
	}

	if run.Synthesis != nil && len(run.Synthesis.NextSteps) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Next steps:")
		for i, step := range run.Synthesis.NextSteps {
			fmt.Fprintf(w, "  %d. %s\n", i+1, step)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s calls, %s tokens, $%s in %s\n",
		humanize.Comma(int64(run.Usage.Calls)),
		humanize.Comma(int64(run.Usage.PromptTokens+run.Usage.CompletionTokens)),
		humanize.FtoaWithDigits(run.Usage.CostUSD, 4),
		run.Duration().Round(time.Second),
	)
	if out.ReportPath != "" {
		fmt.Fprintf(w, "Report saved to %s\n", out.ReportPath)
	}
}
