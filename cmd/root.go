// Package cmd provides the subspace command line interface.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adalundhe/subspace/core/config"
	"github.com/adalundhe/subspace/core/dataset"
	coreerrors "github.com/adalundhe/subspace/core/errors"
	"github.com/adalundhe/subspace/core/recognizer"
	"github.com/adalundhe/subspace/core/storage"
)

// =============================================================================
// Output Colors
// =============================================================================

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// =============================================================================
// Root Command
// =============================================================================

// rootOptions carries the global flags and the state PersistentPreRunE
// resolves from them.
type rootOptions struct {
	configPath     string
	logLevel       string
	logFormat      string
	algorithm      string
	metric         string
	components     int
	k              int
	regularization float64
	data           string
	db             string

	dirs     *storage.Dirs
	settings *config.Config
	logger   *slog.Logger
}

// resolveDirs locates the user config and data directories.
var resolveDirs = storage.ResolveDirs

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "subspace",
		Short: "Subspace projection and nearest-neighbor recognition",
		Long: `Subspace fits a PCA, LDA or LPP projection over labeled sample vectors
and classifies new vectors by distance-weighted k-nearest-neighbor vote.

Samples are read from CSV files (label first, then one float per column)
or from a SQLite sample store built with 'subspace samples import'.

Examples:
  subspace evaluate --data faces.csv --algorithm lda --regularization 0.01
  subspace classify --data faces.csv --query queries.csv
  subspace samples import --data faces.csv
  subspace samples list`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	pflags := root.PersistentFlags()
	pflags.StringVar(&opts.configPath, "config", "", "Path to a config file layered over user and project config")
	pflags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pflags.StringVar(&opts.logFormat, "log-format", "", "Log format: text or json")
	pflags.StringVar(&opts.algorithm, "algorithm", "", "Subspace algorithm: pca, lda, lpp")
	pflags.StringVar(&opts.metric, "metric", "", "Distance metric: euclidean, manhattan, cosine")
	pflags.IntVar(&opts.components, "components", 0, "Subspace dimension")
	pflags.IntVar(&opts.k, "k", 0, "Number of neighbors that vote")
	pflags.Float64Var(&opts.regularization, "regularization", 0, "Ridge added to the within-class scatter")
	pflags.StringVar(&opts.data, "data", "", "Labeled samples CSV")
	pflags.StringVar(&opts.db, "db", "", "Sample store database")

	root.AddCommand(newEvaluateCmd(opts))
	root.AddCommand(newClassifyCmd(opts))
	root.AddCommand(newSamplesCmd(opts))

	return root
}

// Execute runs the CLI. Failures are reported on stderr with a hint when the
// error carries one.
func Execute() error {
	root := newRootCmd()
	err := root.Execute()
	if err != nil {
		reportError(root.ErrOrStderr(), err)
	}
	return err
}

func reportError(w io.Writer, err error) {
	fmt.Fprintf(w, "%sError:%s %v\n", colorRed, colorReset, err)
	if coreerrors.GetBehavior(err).ShowHint {
		if hint := coreerrors.GetHint(err); hint != "" {
			fmt.Fprintf(w, "%sHint:%s %s\n", colorYellow, colorReset, hint)
		}
	}
}

// resolve loads layered configuration, overlays flags the user set and
// builds the logger.
func (o *rootOptions) resolve(cmd *cobra.Command) error {
	if o.dirs == nil {
		o.dirs = resolveDirs()
	}
	manager := config.NewManager(o.dirs)
	defer manager.Close()

	var files []string
	if o.configPath != "" {
		files = append(files, o.configPath)
	}
	if err := manager.Load(files...); err != nil {
		return coreerrors.NewTieredError(coreerrors.TierUserFixable, "load config", err).
			WithHint("check the YAML syntax of your config files")
	}
	o.settings = manager.Merge(o.flagOverlay(cmd))

	logger, err := newLogger(cmd.ErrOrStderr(), o.settings.Log.Level, o.settings.Log.Format)
	if err != nil {
		return coreerrors.NewTieredError(coreerrors.TierUserFixable, "configure logging", err)
	}
	o.logger = logger
	return nil
}

// flagOverlay returns a Config holding only the flags set on the command
// line. Zero-valued flags do not override loaded values.
func (o *rootOptions) flagOverlay(cmd *cobra.Command) *config.Config {
	overlay := &config.Config{}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		overlay.Log.Level = o.logLevel
	}
	if flags.Changed("log-format") {
		overlay.Log.Format = o.logFormat
	}
	if flags.Changed("algorithm") {
		overlay.Recognizer.Algorithm = o.algorithm
	}
	if flags.Changed("metric") {
		overlay.Recognizer.Metric = o.metric
	}
	if flags.Changed("components") {
		overlay.Recognizer.Components = o.components
	}
	if flags.Changed("k") {
		overlay.Recognizer.K = o.k
	}
	if flags.Changed("regularization") {
		overlay.Recognizer.Regularization = o.regularization
	}
	if flags.Changed("data") {
		overlay.Dataset.Path = o.data
	}
	if flags.Changed("db") {
		overlay.Dataset.Store = o.db
	}
	return overlay
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q", level)
		}
	}
	handlerOpts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

// recognizerConfig resolves the recognizer settings into a Config.
func (o *rootOptions) recognizerConfig() (recognizer.Config, error) {
	return recognizer.ConfigFromSettings(o.settings.Recognizer)
}

// loadSamples reads the training set from the sample store when one is
// configured, otherwise from the samples CSV.
func (o *rootOptions) loadSamples(ctx context.Context) (dataset.TrainingSet, error) {
	ds := o.settings.Dataset
	switch {
	case ds.Store != "":
		store, err := dataset.OpenStore(ctx, ds.Store)
		if err != nil {
			return dataset.TrainingSet{}, coreerrors.WrapWithTier(coreerrors.TierPermanent, "open sample store", err)
		}
		defer store.Close()
		set, err := store.Load(ctx)
		if err != nil {
			return dataset.TrainingSet{}, coreerrors.WrapWithTier(coreerrors.TierPermanent, "load samples from "+ds.Store, err)
		}
		return set, nil
	case ds.Path != "":
		set, err := dataset.LoadCSV(ds.Path)
		if err != nil {
			return dataset.TrainingSet{}, coreerrors.WrapWithTier(coreerrors.TierPermanent, "load samples from "+ds.Path, err)
		}
		return set, nil
	default:
		return dataset.TrainingSet{}, coreerrors.NewTieredError(coreerrors.TierUserFixable, "no samples configured", nil).
			WithHint("pass --data samples.csv or --db samples.db, or set dataset.path in config")
	}
}

// signalContext is canceled on interrupt or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
