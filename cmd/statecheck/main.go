// statecheck vets client store definitions in CI: it reports server-shaped
// data in initial state and invalid persist keys.
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
	"time"
)

const (
	exitOK       = 0
	exitFindings = 1
	exitUsage    = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return exitUsage
	}
	switch args[0] {
	case "scan":
		return cmdScan(ctx, args[1:], stdout, stderr)
	case "describe":
		return cmdDescribe(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		usage(stderr)
		return exitUsage
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `statecheck - vet client store definitions

Usage: statecheck <command> [options] [args]

Commands:
  scan <files...>    Build every store definition and report violations
  describe <file>    Print how each field of each store is classified
  help               Show this help message

Scan options:
  -config <path>     Classifier config (TOML, YAML or JSON)
  -watch             Re-scan when a definition or the config changes
  -json              Emit JSON instead of text
  -report <path>     Also write a JSON gate report to path

Describe options:
  -openapi           Emit store state as OpenAPI component schemas`)
}

func cmdScan(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	watch := fs.Bool("watch", false, "re-scan on change")
	asJSON := fs.Bool("json", false, "emit JSON")
	reportPath := fs.String("report", "", "write a JSON gate report to this path")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "Usage: statecheck scan [-config file] [-watch] [-json] [-report path] <definition files...>")
		return exitUsage
	}

	s, err := newScanner(*configPath, fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return exitUsage
	}
	defer s.Close()

	report := func() int {
		results := s.Scan(ctx)
		if err := writeResults(stdout, results, *asJSON); err != nil {
			fmt.Fprintf(stderr, "Error writing results: %v\n", err)
		}
		if *reportPath != "" {
			if err := writeGateReport(*reportPath, buildGateReport(fs.Args(), results, time.Now())); err != nil {
				fmt.Fprintf(stderr, "Error writing report: %v\n", err)
				return exitUsage
			}
		}
		if hasFindings(results) {
			return exitFindings
		}
		return exitOK
	}

	code := report()
	if !*watch {
		return code
	}
	onError := func(err error) { fmt.Fprintf(stderr, "Error reloading config: %v\n", err) }
	if err := s.Watch(ctx, func() { code = report() }, onError); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(stderr, "Error watching: %v\n", err)
		return exitUsage
	}
	return code
}

func cmdDescribe(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("describe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	asJSON := fs.Bool("json", false, "emit JSON")
	asOpenAPI := fs.Bool("openapi", false, "emit an OpenAPI document")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: statecheck describe [-config file] [-json | -openapi] <definition file>")
		return exitUsage
	}
	s, err := newScanner(*configPath, fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return exitUsage
	}
	defer s.Close()

	if *asOpenAPI {
		document, err := s.OpenAPI(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFindings
		}
		if err := writeJSON(stdout, document); err != nil {
			fmt.Fprintf(stderr, "Error writing results: %v\n", err)
			return exitFindings
		}
		return exitOK
	}

	described, err := s.Describe(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFindings
	}
	if err := writeDescriptions(stdout, described, *asJSON); err != nil {
		fmt.Fprintf(stderr, "Error writing results: %v\n", err)
		return exitFindings
	}
	return exitOK
}
