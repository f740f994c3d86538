package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sambeau/hyper/config"
	"github.com/sambeau/hyper/pkg/hyper/evaluator"
	"github.com/sambeau/hyper/pkg/hyper/tdom"
)

// Version is set at build time via -ldflags
var Version = "0.1.0-dev"

func main() {
	ctx := context.Background()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main entry point, designed for testability (Mat Ryer pattern)
func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	flags := flag.NewFlagSet("hyper", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var (
		configPath  = flags.String("config", "", "Path to config file")
		devProfile  = flags.String("dev", "", "Apply a developer profile from the config")
		debug       = flags.Bool("debug", false, "Write generated listings next to templates")
		showVersion = flags.Bool("version", false, "Show version")
		showHelp    = flags.Bool("help", false, "Show help")
	)

	if err := flags.Parse(args); err != nil {
		return err
	}

	if *showHelp {
		printUsage(stdout)
		return nil
	}

	if *showVersion {
		fmt.Fprintf(stdout, "hyper version %s\n", Version)
		return nil
	}

	rest := flags.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return fmt.Errorf("no command given")
	}
	command, cmdArgs := rest[0], rest[1:]

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, configFile, err := config.LoadWithPath(*configPath, getenv)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Apply CLI overrides
	if *devProfile != "" {
		if err := config.ApplyDeveloper(cfg, *devProfile); err != nil {
			return err
		}
	}
	if *debug {
		cfg.Debug.Enabled = true
	}

	// Full validation after CLI overrides applied
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	for _, w := range config.Warnings(cfg) {
		fmt.Fprintf(stderr, "warning: %s\n", w)
	}

	logger, closeLog, err := newLogger(cfg.Logging, stdout, stderr)
	if err != nil {
		return err
	}
	defer closeLog()
	if configFile != "" {
		logger.With("config").Debugf("loaded %s", configFile)
	}

	tdom.SetCacheSize(cfg.Cache.ParseSize)
	ctx = evaluator.WithLocale(ctx, cfg.Locale)

	app := &app{cfg: cfg, log: logger, stdout: stdout, stderr: stderr}
	switch command {
	case "compile":
		return app.compile(cmdArgs)
	case "render":
		return app.render(ctx, cmdArgs)
	case "check":
		return app.check(cmdArgs)
	case "watch":
		return app.watch(ctx, cmdArgs)
	case "repl":
		return app.repl(ctx)
	default:
		return fmt.Errorf("unknown command %q (run 'hyper --help' for usage)", command)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `hyper - A hypermedia template compiler

Usage:
  hyper [options] <command> [arguments]

Commands:
  compile FILE                 Print the generated listing for a template
  render FILE|NAME [flags]     Render a template to stdout
      --prop NAME=VALUE        Set a prop (repeatable; VALUE may be JSON)
      --props JSON             Set props from a JSON object
      --content NAME           Load a configured content source into a prop
      -o PATH                  Write output to PATH instead of stdout
  check [DIR]                  Compile every template and report errors
      --json                   Write failures as JSON lines
  watch [DIR]                  Recompile templates as they change
  repl                         Start an interactive session

Options:
  --config PATH    Path to config file (default: auto-detect)
  --dev NAME       Apply a developer profile from the config
  --debug          Write <name>.gen.txt listings
  --version        Show version
  --help           Show this help

Config Resolution:
  1. --config flag
  2. HYPER_CONFIG environment variable
  3. ./hyper.yaml
  4. ~/.config/hyper/hyper.yaml

Examples:
  hyper compile templates/card.hyper
  hyper render card --prop title=Hello --prop 'tags=["a","b"]'
  hyper render templates/blog.hyper --content posts
  hyper --dev alice watch

`)
}
