// ABOUTME: CLI entrypoint for PromptMint: runs the generation API server or drives the workflows.
// ABOUTME: Parses flags, loads configuration, installs signal handling and dispatches subcommands.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/2389-research/promptmint/config"
)

var version = "dev"

// options holds everything parsed from flags and positional arguments.
type options struct {
	serverMode  bool
	configPath  string
	bind        string
	serverURL   string
	showVersion bool
	command     string
	args        []string
}

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
	}

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	os.Exit(run(opts, os.Stdout, os.Stderr))
}

// parseFlags parses command-line flags. Flags must precede the subcommand.
func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("promptmint", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&opts.serverMode, "server", false, "Run the image generation API server")
	fs.StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	fs.StringVar(&opts.bind, "bind", "", "Listen address for -server (overrides PROMPTMINT_BIND)")
	fs.StringVar(&opts.serverURL, "server-url", "", "Base URL of the generation API (overrides PROMPTMINT_SERVER_URL)")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	fs.Usage = func() {
		printHelp(stderr, version)
	}

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		opts.command = fs.Arg(0)
		opts.args = fs.Args()[1:]
	}
	return opts, nil
}

// run dispatches to the requested mode and returns the process exit code.
func run(opts options, stdout, stderr io.Writer) int {
	if opts.showVersion {
		fmt.Fprintf(stdout, "promptmint %s\n", version)
		return 0
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.serverMode {
		return runServer(ctx, cfg, stderr)
	}
	if opts.command == "" {
		printHelp(stderr, version)
		return 0
	}

	cmd, ok := commands[opts.command]
	if !ok {
		fmt.Fprintf(stderr, "error: unknown command %q\n", opts.command)
		return 2
	}

	a, err := openApp(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer a.Close()

	if err := cmd(ctx, a, opts.args, stdout); err != nil {
		fmt.Fprintf(stderr, "error: %s\n", describeError(err))
		return 1
	}
	return 0
}

func loadConfig(opts options) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, err
	}
	if opts.bind != "" {
		cfg.Bind = opts.bind
	}
	if opts.serverURL != "" {
		cfg.ServerURL = opts.serverURL
	}
	return cfg, nil
}
