package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	coreerrors "github.com/adalundhe/subspace/core/errors"
	"github.com/adalundhe/subspace/core/recognizer"
)

type evaluateOptions struct {
	holdout float64
	seed    uint64
	json    bool
}

func newEvaluateCmd(root *rootOptions) *cobra.Command {
	opts := &evaluateOptions{}

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Measure accuracy on a stratified holdout split",
		Long: `Split the samples into training and holdout sets per label, train on the
training split and report how many holdout samples are recognized correctly.

Examples:
  subspace evaluate --data faces.csv
  subspace evaluate --data faces.csv --holdout 0.3 --seed 7 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, root, opts)
		},
	}

	cmd.Flags().Float64Var(&opts.holdout, "holdout", 0, "Fraction of each label held out for testing (default from config)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Shuffle seed for the split (default from config)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output as JSON")

	return cmd
}

func runEvaluate(cmd *cobra.Command, root *rootOptions, opts *evaluateOptions) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	holdout := root.settings.Dataset.Holdout
	if cmd.Flags().Changed("holdout") {
		holdout = opts.holdout
	}
	seed := root.settings.Dataset.Seed
	if cmd.Flags().Changed("seed") {
		seed = opts.seed
	}

	cfg, err := root.recognizerConfig()
	if err != nil {
		return err
	}
	set, err := root.loadSamples(ctx)
	if err != nil {
		return err
	}
	train, test, err := set.Split(holdout, seed)
	if err != nil {
		return coreerrors.WrapWithTier(coreerrors.TierUserFixable, "split samples", err)
	}
	if test.Len() == 0 {
		return coreerrors.NewTieredError(coreerrors.TierUserFixable, "holdout split is empty", nil).
			WithHint("every label needs at least two samples, or raise --holdout")
	}

	r := recognizer.New(recognizer.WithLogger(root.logger))
	if err := r.Train(ctx, train, cfg); err != nil {
		return err
	}
	report, err := recognizer.Evaluate(ctx, r, test)
	if err != nil {
		return err
	}

	if opts.json {
		return outputJSON(cmd.OutOrStdout(), report)
	}
	return outputEvaluateReport(cmd.OutOrStdout(), cfg, train.Len(), report)
}

func outputJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func outputEvaluateReport(w io.Writer, cfg recognizer.Config, trained int, report recognizer.Report) error {
	fmt.Fprintf(w, "%s%sEvaluation%s\n", colorBold, colorCyan, colorReset)
	fmt.Fprintf(w, "%s%s%s\n", colorGray, strings.Repeat("-", 40), colorReset)
	fmt.Fprintf(w, "%sAlgorithm:%s  %s (%d components)\n", colorGray, colorReset, cfg.Algorithm, cfg.Components)
	fmt.Fprintf(w, "%sMetric:%s     %s, k=%d\n", colorGray, colorReset, cfg.Metric.Name(), cfg.K)
	fmt.Fprintf(w, "%sTrained on:%s %d samples\n", colorGray, colorReset, trained)
	fmt.Fprintf(w, "%sAccuracy:%s   %s%d/%d (%.1f%%)%s\n", colorGray, colorReset,
		accuracyColor(report.Accuracy), report.Correct, report.Total, 100*report.Accuracy, colorReset)
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tCORRECT\tTOTAL\tACCURACY")
	for _, l := range report.Labels {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f%%\n", l.Label, l.Correct, l.Total, 100*l.Accuracy)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(report.Misses) > 0 {
		fmt.Fprintln(w)
		for _, m := range report.Misses {
			fmt.Fprintf(w, "%smiss:%s holdout #%d want %s got %s\n", colorYellow, colorReset, m.Index, m.Want, m.Got)
		}
	}
	return nil
}

func accuracyColor(acc float64) string {
	switch {
	case acc >= 0.9:
		return colorGreen
	case acc >= 0.5:
		return colorYellow
	default:
		return colorRed
	}
}
