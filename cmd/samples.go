package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/adalundhe/subspace/core/dataset"
	coreerrors "github.com/adalundhe/subspace/core/errors"
)

type samplesOptions struct {
	replace bool
	json    bool
}

// samplesListOutput is the JSON output for samples list.
type samplesListOutput struct {
	Path   string               `json:"path"`
	Total  int                  `json:"total"`
	Labels []dataset.LabelCount `json:"labels"`
}

func newSamplesCmd(root *rootOptions) *cobra.Command {
	opts := &samplesOptions{}

	cmd := &cobra.Command{
		Use:   "samples",
		Short: "Manage the sample store",
		Long: `Manage the SQLite sample store. Without --db the store lives in the user
data directory.

Subcommands:
  import   - Append labeled samples from a CSV file
  list     - Show sample counts per label`,
	}

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Append labeled samples from a CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSamplesImport(cmd, root, opts)
		},
	}
	importCmd.Flags().BoolVar(&opts.replace, "replace", false, "Delete existing samples before importing")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show sample counts per label",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSamplesList(cmd, root, opts)
		},
	}
	listCmd.Flags().BoolVar(&opts.json, "json", false, "Output as JSON")

	cmd.AddCommand(importCmd)
	cmd.AddCommand(listCmd)
	return cmd
}

func (o *rootOptions) storePath() string {
	if o.settings.Dataset.Store != "" {
		return o.settings.Dataset.Store
	}
	return o.dirs.SamplesDB()
}

func runSamplesImport(cmd *cobra.Command, root *rootOptions, opts *samplesOptions) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	path := root.settings.Dataset.Path
	if path == "" {
		return coreerrors.NewTieredError(coreerrors.TierUserFixable, "nothing to import", nil).
			WithHint("pass --data samples.csv")
	}
	set, err := dataset.LoadCSV(path)
	if err != nil {
		return coreerrors.WrapWithTier(coreerrors.TierPermanent, "load samples from "+path, err)
	}

	store, err := dataset.OpenStore(ctx, root.storePath())
	if err != nil {
		return coreerrors.WrapWithTier(coreerrors.TierPermanent, "open sample store", err)
	}
	defer store.Close()

	write := store.AddSet
	if opts.replace {
		write = store.ReplaceSet
	}
	if err := write(ctx, set); err != nil {
		return coreerrors.WrapWithTier(coreerrors.TierPermanent, "import samples", err)
	}
	total, err := store.Count(ctx)
	if err != nil {
		return coreerrors.WrapWithTier(coreerrors.TierPermanent, "count samples", err)
	}

	root.logger.Info("samples imported",
		slog.String("path", store.Path()),
		slog.Int("imported", set.Len()),
		slog.Int("total", total))
	fmt.Fprintf(cmd.OutOrStdout(), "%sImported%s %d samples into %s (%d total)\n",
		colorGreen, colorReset, set.Len(), store.Path(), total)
	return nil
}

func runSamplesList(cmd *cobra.Command, root *rootOptions, opts *samplesOptions) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	store, err := dataset.OpenStore(ctx, root.storePath())
	if err != nil {
		return coreerrors.WrapWithTier(coreerrors.TierPermanent, "open sample store", err)
	}
	defer store.Close()

	labels, err := store.Labels(ctx)
	if err != nil {
		return coreerrors.WrapWithTier(coreerrors.TierPermanent, "list samples", err)
	}
	out := samplesListOutput{Path: store.Path(), Labels: labels}
	for _, l := range labels {
		out.Total += l.Count
	}

	if opts.json {
		return outputJSON(cmd.OutOrStdout(), out)
	}
	return outputSamplesList(cmd.OutOrStdout(), out)
}

func outputSamplesList(w io.Writer, out samplesListOutput) error {
	fmt.Fprintf(w, "%s%sSample Store%s\n", colorBold, colorCyan, colorReset)
	fmt.Fprintf(w, "%s%s%s\n", colorGray, strings.Repeat("-", 40), colorReset)
	fmt.Fprintf(w, "%sPath:%s    %s\n", colorGray, colorReset, out.Path)
	fmt.Fprintf(w, "%sSamples:%s %d\n", colorGray, colorReset, out.Total)
	if len(out.Labels) == 0 {
		return nil
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tSAMPLES")
	for _, l := range out.Labels {
		fmt.Fprintf(tw, "%s\t%d\n", l.Label, l.Count)
	}
	return tw.Flush()
}
