// =============================================================================
// main.go - gtpengine command
// =============================================================================
//
// The gtpengine command runs the sample engine over the line protocol. It
// reads commands from standard input, or from the input files given on the
// command line, and writes responses to standard output. Log output goes to
// standard error so that it never mixes with responses.
//
// Usage:
//
//	gtpengine [flags] [input files]
//	gtpengine drive <engine> [engine args...]
//
// Settings come from an optional YAML file (--settings); flags given on the
// command line override it.
//
// =============================================================================

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gtpkit/gtpengine/gtpengine"
	"github.com/gtpkit/gtpengine/internal/config"
	"github.com/gtpkit/gtpengine/internal/sample"
)

const (
	// version is the version of the gtpengine command.
	version = "0.1.0"

	copyright = "Copyright (c) 2026 the gtpengine authors"
)

// options holds the command-line flags.
type options struct {
	settings  string
	setupFile string
	name      string
	quiet     bool
	verbose   bool
	ponder    bool
	interrupt bool
	workers   int
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "gtpengine [flags] [input files]",
		Short: "Line protocol engine with sample commands",
		Long: `gtpengine reads protocol commands from standard input, or from the given
input files in order, and writes one response block per command to standard
output.

Lines starting with '#' are comments. With --interrupt, the directive
'# interrupt' stops a running command and '# gtpengine-sleep N' pauses input
processing for N seconds.`,
		Version:      version,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.settings, "settings", "", "YAML settings file")
	flags.StringVar(&opts.setupFile, "config", "", "command file executed at startup")
	flags.StringVar(&opts.name, "name", "", "engine name reported by the name command")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "don't print log messages")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&opts.ponder, "ponder", false, "ponder while waiting for commands")
	flags.BoolVar(&opts.interrupt, "interrupt", false, "handle interrupt and sleep directives")
	flags.IntVar(&opts.workers, "workers", 0, "worker goroutines for sample-primes")

	cmd.AddCommand(newDriveCmd())
	return cmd
}

// loadConfig reads the settings file and applies the flags that were set.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.settings)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("config") {
		cfg.SetupFile = opts.setupFile
	}
	if flags.Changed("name") {
		cfg.Name = opts.name
	}
	if flags.Changed("ponder") {
		cfg.Ponder = opts.ponder
	}
	if flags.Changed("interrupt") {
		cfg.Interrupt = opts.interrupt
	}
	if flags.Changed("workers") {
		cfg.Sample.Workers = opts.workers
	}
	if opts.verbose {
		cfg.LogLevel = zapcore.DebugLevel.String()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the production logger writing to standard error, or a
// no-op logger in quiet mode.
func newLogger(cfg *config.Config, quiet bool) (*zap.Logger, error) {
	if quiet {
		return zap.NewNop(), nil
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func startupMessage(cfg *config.Config) string {
	return fmt.Sprintf("%s %s\n%s\n", cfg.Name, cfg.Version, copyright)
}

func run(cmd *cobra.Command, opts *options, args []string) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, opts.quiet)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if !opts.quiet {
		fmt.Fprint(cmd.ErrOrStderr(), startupMessage(cfg))
	}

	engine, err := sample.NewEngine(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()

	if cfg.SetupFile != "" {
		if err := engine.ExecuteFile(cfg.SetupFile, nil); err != nil {
			return err
		}
	}

	out := bufio.NewWriter(cmd.OutOrStdout())
	defer out.Flush()

	if len(args) > 0 {
		for _, path := range args {
			if err := runFile(engine, path, out); err != nil {
				return err
			}
		}
		return nil
	}

	var in gtpengine.LineReader
	if cmd.InOrStdin() == os.Stdin {
		editor := NewLineEditor(os.Stdin)
		defer editor.Close()
		setupSignalHandler(func() {
			editor.Close()
			logger.Sync()
		})
		in = editor
	} else {
		in = gtpengine.NewLineScanner(cmd.InOrStdin())
	}
	return engine.MainLoop(in, out)
}

// runFile runs the main loop over the commands in the file at path.
func runFile(engine *gtpengine.Engine, path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error file '%s': %w", path, err)
	}
	defer f.Close()
	return engine.MainLoop(gtpengine.NewLineScanner(f), out)
}

// setupSignalHandler runs cleanup and exits when the process receives
// SIGINT or SIGTERM.
func setupSignalHandler(cleanup func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		cleanup()
		os.Exit(0)
	}()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
