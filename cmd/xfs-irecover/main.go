package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/xfsirecover/internal/config"
	"github.com/bamsammich/xfsirecover/internal/engine"
	"github.com/bamsammich/xfsirecover/internal/event"
	"github.com/bamsammich/xfsirecover/internal/filter"
	"github.com/bamsammich/xfsirecover/internal/stats"
	"github.com/bamsammich/xfsirecover/internal/ui"
	"github.com/bamsammich/xfsirecover/internal/xfsdb"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

// options holds the raw command-line values before they are resolved
// against the config file.
type options struct {
	device         string
	outputDir      string
	startInode     uint64
	maxInodes      uint64
	sizeCutoff     string
	truncThreshold string
	minSize        string
	dryRun         bool
	debugger       string
	timeout        time.Duration
	bwLimit        string
	noJournal      bool
	resume         bool
	verbose        bool
	quiet          bool
	logFile        string
	noProgress     bool
	showVersion    bool
}

func registerFlags(fs *pflag.FlagSet, o *options) {
	fs.BoolVar(&o.showVersion, "version", false, "print version and exit")

	fs.StringVarP(&o.device, "device", "D", "", "device or image holding the XFS filesystem (required)")
	fs.StringVarP(&o.outputDir, "output", "o", "", "existing directory to write recovered files into (required)")
	fs.Uint64VarP(&o.startInode, "start", "r", 0, "start at the specified inode")
	fs.Uint64VarP(&o.maxInodes, "max-inodes", "N", 0, "maximum number of inodes to scan (default: all)")
	fs.StringVarP(&o.sizeCutoff, "size-cutoff", "s", "1G", "do not extract files of SIZE or larger (\"none\" extracts every size)")
	fs.StringVarP(&o.truncThreshold, "truncate-threshold", "t", "0",
		"files whose size is below SIZE are not subject to truncation")
	fs.BoolVarP(&o.dryRun, "dry-run", "n", false, "list candidates without writing anything")

	fs.StringVar(&o.debugger, "debugger", xfsdb.DefaultDebugger, "xfs_db binary to query metadata with")
	fs.StringVar(&o.minSize, "min-size", "0", "skip files smaller than SIZE (e.g. 4K)")
	fs.DurationVar(&o.timeout, "timeout", 0, "give up when xfs_db does not answer within this long (0 waits forever)")
	fs.StringVar(&o.bwLimit, "bwlimit", "", "device read bandwidth limit (e.g. 50M)")
	fs.BoolVar(&o.noJournal, "no-journal", false, "do not record progress for --resume")
	fs.BoolVar(&o.resume, "resume", false, "continue an interrupted run from its journal")

	fs.BoolVarP(&o.verbose, "verbose", "v", false, "verbose output")
	fs.BoolVarP(&o.quiet, "quiet", "q", false, "suppress all output except errors")
	fs.StringVar(&o.logFile, "log", "", "write structured JSON log to FILE")
	fs.BoolVar(&o.noProgress, "no-progress", false, "disable progress display")
}

func newRootCmd(o *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "xfs-irecover -D <device> -o <dir> [flags]",
		Short: "Recover deleted files from an unmounted XFS filesystem by scanning inodes",
		Long: "xfs-irecover walks the inode table of an XFS device, asks xfs_db for the extent map of\n" +
			"every regular file it finds, and copies those extents into <dir>/<inode number>.\n" +
			"The filesystem must not be mounted; the device is only ever read.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.showVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "xfs-irecover %s\n", version)
				return nil
			}
			return runRecover(cmd, o)
		},
	}
	registerFlags(rootCmd.Flags(), o)
	rootCmd.AddCommand(newDocsCmd())
	return rootCmd
}

func run(args []string) int {
	var o options
	rootCmd := newRootCmd(&o)
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

func runRecover(cmd *cobra.Command, o *options) error {
	if o.device == "" {
		return errors.New("-D/--device is required")
	}
	if o.outputDir == "" {
		return errors.New("-o/--output is required")
	}

	closeLog, err := setupLogging(o.verbose, o.quiet, o.logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	cfgFile, err := config.Load()
	if err != nil {
		slog.Warn("failed to load config", "error", err)
	}
	if err := applyConfigDefaults(cmd.Flags(), cfgFile.Defaults, o); err != nil {
		return err
	}

	engineCfg, err := o.engineConfig()
	if err != nil {
		return err
	}
	if engineCfg.DryRun {
		slog.Info("dry run mode")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := stats.NewCollector()
	events := make(chan event.Event, 256)
	engineCfg.Events = events
	engineCfg.Stats = collector

	// When --log is set, tee events through a logging goroutine that
	// writes structured records before forwarding to the presenter.
	presenterEvents := (<-chan event.Event)(events)
	if o.logFile != "" {
		teed := make(chan event.Event, 256)
		go func() {
			for ev := range events {
				ui.LogEvent(context.Background(), slog.Default(), ev)
				teed <- ev
			}
			close(teed)
		}()
		presenterEvents = teed
	}

	isTTY := ui.IsTTY(os.Stderr.Fd())
	presenter := ui.NewPresenter(ui.Config{
		Writer:     cmd.OutOrStdout(),
		ErrWriter:  cmd.ErrOrStderr(),
		Stats:      collector,
		IsTTY:      isTTY,
		Width:      ui.TermWidth(os.Stderr.Fd()),
		Quiet:      o.quiet,
		Verbose:    o.verbose,
		NoProgress: o.noProgress,
	})

	slog.Debug("starting recovery",
		"device", engineCfg.Device,
		"output", engineCfg.OutputDir,
		"start", engineCfg.StartInode,
		"max_inodes", engineCfg.MaxInodes,
		"size_cutoff", engineCfg.SizeCutoff,
		"truncate_threshold", engineCfg.TruncateThreshold,
		"journal", engineCfg.Journal,
	)

	var presenterErr error
	var presenterWg sync.WaitGroup
	presenterWg.Add(1)
	go func() {
		defer presenterWg.Done()
		presenterErr = presenter.Run(presenterEvents)
	}()

	result := engine.Run(ctx, engineCfg)
	stop()
	close(events)
	presenterWg.Wait()
	if presenterErr != nil {
		fmt.Fprintf(os.Stderr, "presenter: %v\n", presenterErr)
	}

	if summary := presenter.Summary(); summary != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), summary)
	}

	return exitFor(result)
}

// exitFor maps a run result to the process exit status: 0 when every
// candidate was handled, 1 when the scan ran but some inodes were lost or
// it was interrupted, 2 when it could not run at all.
func exitFor(result engine.Result) error {
	if result.Err != nil {
		if errors.Is(result.Err, context.Canceled) {
			slog.Warn("recovery interrupted, rerun with --resume to continue", "next_inode", result.Next)
			return &exitError{code: 1}
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", result.Err)
		return &exitError{code: 2}
	}
	if result.Stats.FilesFailed > 0 || result.Stats.FilesPartial > 0 {
		return &exitError{code: 1}
	}
	return nil
}

// setupLogging installs the default slog logger. The returned func closes
// the log file, if any.
func setupLogging(verbose, quiet bool, logFile string) (func(), error) {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	} else if !quiet {
		logLevel = slog.LevelInfo
	}
	textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})

	var logHandler slog.Handler = textHandler
	closer := func() {}
	if logFile != "" {
		lf, err := os.Create(logFile)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		closer = func() { lf.Close() }
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
	}
	slog.SetDefault(slog.New(logHandler))
	return closer, nil
}

// applyConfigDefaults applies config file defaults for flags not explicitly
// set on the CLI.
func applyConfigDefaults(fs *pflag.FlagSet, defaults config.DefaultsConfig, o *options) error {
	setString := func(flag string, dst *string, v *string) {
		if !fs.Changed(flag) && v != nil {
			*dst = *v
		}
	}
	setString("debugger", &o.debugger, defaults.Debugger)
	setString("size-cutoff", &o.sizeCutoff, defaults.SizeCutoff)
	setString("truncate-threshold", &o.truncThreshold, defaults.TruncateThreshold)
	setString("min-size", &o.minSize, defaults.MinSize)
	setString("bwlimit", &o.bwLimit, defaults.BWLimit)

	if !fs.Changed("no-journal") && defaults.Journal != nil {
		o.noJournal = !*defaults.Journal
	}
	if !fs.Changed("timeout") {
		d, ok, err := defaults.TimeoutDuration()
		if err != nil {
			return err
		}
		if ok {
			o.timeout = d
		}
	}
	return nil
}

// engineConfig resolves size strings and flag combinations into an
// engine.Config.
func (o *options) engineConfig() (engine.Config, error) {
	cfg := engine.Config{
		Device:     o.device,
		OutputDir:  o.outputDir,
		StartInode: o.startInode,
		MaxInodes:  o.maxInodes,
		DryRun:     o.dryRun,
		Debugger:   o.debugger,
		Timeout:    o.timeout,
		Journal:    !o.noJournal && !o.dryRun,
		Resume:     o.resume,
	}

	var err error
	if strings.EqualFold(strings.TrimSpace(o.sizeCutoff), "none") {
		cfg.SizeCutoff = filter.NoCutoff
	} else if cfg.SizeCutoff, err = parseSizeFlag("size-cutoff", o.sizeCutoff); err != nil {
		return engine.Config{}, err
	}
	if cfg.TruncateThreshold, err = parseSizeFlag("truncate-threshold", o.truncThreshold); err != nil {
		return engine.Config{}, err
	}
	if cfg.MinSize, err = parseSizeFlag("min-size", o.minSize); err != nil {
		return engine.Config{}, err
	}
	if o.bwLimit != "" {
		bw, err := filter.ParseSize(o.bwLimit)
		if err != nil {
			return engine.Config{}, fmt.Errorf("invalid --bwlimit: %w", err)
		}
		if bw <= 0 {
			return engine.Config{}, fmt.Errorf("invalid --bwlimit: %q must be positive", o.bwLimit)
		}
		cfg.BWLimit = bw
	}
	if o.timeout < 0 {
		return engine.Config{}, fmt.Errorf("invalid --timeout: %s", o.timeout)
	}

	if o.resume && !cfg.Journal {
		return engine.Config{}, errors.New("--resume needs the journal; drop --no-journal and --dry-run")
	}
	return cfg, nil
}

func parseSizeFlag(name, value string) (uint64, error) {
	if value == "" {
		return 0, nil
	}
	n, err := filter.ParseBytes(value)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return n, nil
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
