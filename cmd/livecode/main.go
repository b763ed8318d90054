// Package main is the entry point for LiveCode.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/livecode/internal/app"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer application.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags() app.Options {
	var opts app.Options
	var (
		surfaceKind string
		addr        string
		output      string
		logLevel    string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to a project settings file (.toml or .yaml)")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to a project settings file (shorthand)")
	flag.StringVar(&opts.WorkspacePath, "workspace", "", "Workspace directory searched for .livecode.toml")
	flag.StringVar(&opts.WorkspacePath, "w", "", "Workspace directory (shorthand)")
	flag.StringVar(&surfaceKind, "surface", "", "Panel surface: web or file")
	flag.StringVar(&addr, "addr", "", "Listen address for the web surface")
	flag.StringVar(&output, "o", "", "Output file for the file surface")
	flag.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&opts.Debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&opts.Debug, "d", false, "Enable debug logging (shorthand)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "LiveCode - evaluate a file while you edit it\n\n")
		fmt.Fprintf(os.Stderr, "Usage: livecode [options] file\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  livecode main.py                     Serve the panel on the default address\n")
		fmt.Fprintf(os.Stderr, "  livecode -addr :9000 main.py         Serve on another port\n")
		fmt.Fprintf(os.Stderr, "  livecode -surface file -o out.html main.py\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("LiveCode %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	if logLevel != "" {
		if _, err := app.ParseLevel(logLevel); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", logLevel)
			os.Exit(1)
		}
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	opts.SourcePath = flag.Arg(0)
	opts.Overrides = overrides(surfaceKind, addr, output, logLevel)
	return opts
}

// overrides turns set flags into the highest settings layer.
func overrides(surfaceKind, addr, output, logLevel string) map[string]any {
	surface := map[string]any{}
	if surfaceKind != "" {
		surface["kind"] = surfaceKind
	}
	if addr != "" {
		surface["addr"] = addr
	}
	if output != "" {
		surface["output"] = output
	}

	out := map[string]any{}
	if len(surface) > 0 {
		out["surface"] = surface
	}
	if logLevel != "" {
		out["logging"] = map[string]any{"level": logLevel}
	}
	return out
}
