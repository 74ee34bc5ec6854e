package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/patrol/internal/config"
	"github.com/JaimeStill/patrol/internal/export"
	"github.com/JaimeStill/patrol/internal/inference"
	"github.com/JaimeStill/patrol/internal/items"
	"github.com/JaimeStill/patrol/internal/prompts"
	"github.com/JaimeStill/patrol/internal/workflow"
	"github.com/JaimeStill/patrol/pkg/credentials"
)

type runOptions struct {
	files     []string
	encoding  string
	column    string
	keys      []string
	model     string
	slow      bool
	refine    bool
	out       string
	format    string
	riskyOnly bool
	interval  time.Duration
}

func newRunCommand(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Screen listing files and write the results",
		Long: `Screen every item in the given CSV, TSV, or XLSX files. The first
interrupt stops the run at the next wave boundary and still writes the
results gathered so far; a second interrupt aborts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadScreening(global.configFile)
			if err != nil {
				return err
			}

			logger := global.logger()
			client := inference.NewGemini(&cfg.Inference, prompts.Defaults, logger)

			return screen(cmd.Context(), cfg, client, opts, logger, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&opts.files, "file", "f", nil, "Listing file to screen (repeatable)")
	flags.StringVar(&opts.encoding, "encoding", "", "Text encoding of CSV/TSV files: utf-8 or shift_jis")
	flags.StringVar(&opts.column, "column", "", "Header name, zero-based index, or column letter (A, B, ...) of the product text")
	flags.StringSliceVar(&opts.keys, "keys", nil, "API keys, comma separated (defaults to configured keys)")
	flags.StringVar(&opts.model, "model", "", "Model name (defaults to configured model)")
	flags.BoolVar(&opts.slow, "slow", false, "Use slow-mode concurrency and pacing")
	flags.BoolVar(&opts.refine, "refine", false, "Refine flagged items after screening")
	flags.StringVarP(&opts.out, "out", "o", "", "Output file (defaults to the generated export name)")
	flags.StringVar(&opts.format, "format", "", "Output format: csv or xlsx (defaults to the --out extension)")
	flags.BoolVar(&opts.riskyOnly, "risky-only", false, "Write only flagged items")
	flags.DurationVar(&opts.interval, "progress", 2*time.Second, "Progress report interval (0 disables)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func screen(
	ctx context.Context,
	cfg *config.Config,
	client inference.Client,
	opts *runOptions,
	logger *slog.Logger,
	out io.Writer,
) error {
	format, err := outputFormat(opts.format, opts.out)
	if err != nil {
		return err
	}

	sources, err := readSources(opts.files)
	if err != nil {
		return err
	}

	list, err := items.Load(sources, items.Options{
		Encoding:      items.Encoding(opts.encoding),
		Column:        opts.column,
		MaxTextLength: cfg.Screening.MaxTextLength,
	})
	if err != nil {
		return err
	}

	keys := opts.keys
	if len(keys) == 0 {
		keys = cfg.Inference.APIKeys
	}

	model := opts.model
	if model == "" {
		model = cfg.Inference.Model
	}

	rt := &workflow.Runtime{Client: client, Logger: logger}
	rc := cfg.Screening.RunConfig(model, cfg.Inference.FallbackModel, opts.slow)

	run, err := workflow.NewRun(rt, rc, list, credentials.New(keys...))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer watchSignals(run, cancel, logger)()
	defer reportProgress(run, opts.interval, out)()

	fmt.Fprintf(out, "screening %d items from %d file(s) with %s\n", len(list), len(sources), model)

	if err := run.Screen(ctx); err != nil {
		return err
	}
	if opts.refine && run.State().State() == workflow.StateCompleted {
		if _, err := run.Refine(ctx); err != nil {
			return err
		}
	}

	summarize(run, out)

	return write(run.Results(), export.Options{
		Format:    format,
		RiskyOnly: opts.riskyOnly,
		Location:  cfg.Location(),
	}, opts.out, out)
}

func readSources(files []string) ([]items.Source, error) {
	sources := make([]items.Source, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		sources = append(sources, items.Source{Name: filepath.Base(f), Data: data})
	}
	return sources, nil
}

// outputFormat resolves the export format from the flag, falling back to
// the output file extension.
func outputFormat(flag, out string) (export.Format, error) {
	if flag == "" && out != "" {
		flag = strings.TrimPrefix(strings.ToLower(filepath.Ext(out)), ".")
	}
	return export.ParseFormat(flag)
}

// watchSignals maps the first interrupt to a graceful stop and the second
// to cancellation. The returned func releases the handler.
func watchSignals(run *workflow.Run, cancel context.CancelFunc, logger *slog.Logger) func() {
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		stopped := false
		for {
			select {
			case <-sig:
				if stopped {
					logger.Warn("aborting run")
					cancel()
					return
				}
				stopped = true
				logger.Warn("stop requested, finishing current wave")
				run.Stop()
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sig)
		close(done)
	}
}

func reportProgress(run *workflow.Run, interval time.Duration, out io.Writer) func() {
	if interval <= 0 {
		return func() {}
	}

	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				p := run.Progress()
				if p.State == workflow.StateRefining {
					fmt.Fprintf(out, "refining %d/%d, live keys %d\n", p.RefineDone, p.RefineTotal, p.LiveKeys)
				} else {
					fmt.Fprintf(out, "%s %d/%d (%d%%), live keys %d\n", p.State, p.Completed, p.Total, p.PercentScreen, p.LiveKeys)
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}

func summarize(run *workflow.Run, out io.Writer) {
	p := run.Progress()
	fmt.Fprintf(out, "%s: %d/%d screened, %d refined, %d key(s) quarantined\n",
		p.State, p.Completed, p.Total, p.RefineDone, p.Quarantined)
	if p.Message != "" {
		fmt.Fprintln(out, p.Message)
	}

	counts := run.Counts()
	for _, l := range workflow.Levels() {
		if n := counts[l]; n > 0 {
			fmt.Fprintf(out, "  %-8s %d\n", l, n)
		}
	}
}

func write(results []workflow.Result, opts export.Options, path string, out io.Writer) error {
	file, err := export.Render(results, opts, time.Now())
	if errors.Is(err, export.ErrNoRows) {
		fmt.Fprintln(out, "no results to write")
		return nil
	}
	if err != nil {
		return err
	}

	if path == "" {
		path = file.Name
	}
	if err := os.WriteFile(path, file.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Fprintf(out, "wrote %d row(s) to %s\n", file.Rows, path)
	return nil
}
