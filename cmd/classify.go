package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adalundhe/subspace/core/dataset"
	coreerrors "github.com/adalundhe/subspace/core/errors"
	"github.com/adalundhe/subspace/core/recognizer"
)

type classifyOptions struct {
	query string
	json  bool
}

// classifyResult is one line of classify output.
type classifyResult struct {
	Row   int    `json:"row"`
	Label string `json:"label"`
}

func newClassifyCmd(root *rootOptions) *cobra.Command {
	opts := &classifyOptions{}

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Train on all samples and label query vectors",
		Long: `Train on every configured sample, then print the recognized label of each
row in the query CSV. Query rows carry floats only.

Examples:
  subspace classify --data faces.csv --query queries.csv
  subspace classify --db samples.db --query queries.csv --k 1 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "CSV of query vectors")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

func runClassify(cmd *cobra.Command, root *rootOptions, opts *classifyOptions) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	cfg, err := root.recognizerConfig()
	if err != nil {
		return err
	}
	set, err := root.loadSamples(ctx)
	if err != nil {
		return err
	}
	queries, err := dataset.LoadVectorsCSV(opts.query)
	if err != nil {
		return coreerrors.WrapWithTier(coreerrors.TierPermanent, "load queries from "+opts.query, err)
	}

	r := recognizer.New(recognizer.WithLogger(root.logger))
	if err := r.Train(ctx, set, cfg); err != nil {
		return err
	}
	labels, err := r.RecognizeBatch(ctx, queries)
	if err != nil {
		return err
	}

	results := make([]classifyResult, len(labels))
	for i, label := range labels {
		results[i] = classifyResult{Row: i, Label: label}
	}
	if opts.json {
		return outputJSON(cmd.OutOrStdout(), results)
	}
	for _, res := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", res.Row, res.Label)
	}
	return nil
}
