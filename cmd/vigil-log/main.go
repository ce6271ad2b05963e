// Command vigil-log is a tool for viewing and analyzing vigil liveness log
// files.
//
// Log files are created by wiring a log.FileLogger into a keepalive.Manager
// or transport.Conn as the protocol logger.
//
// Usage:
//
//	vigil-log <command> [flags] <file.vlog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSONL or CSV format
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View all events
//	vigil-log view probe.vlog
//
//	# View only liveness-layer events
//	vigil-log view --layer liveness probe.vlog
//
//	# Export to JSONL
//	vigil-log export --format jsonl probe.vlog
//
//	# Filter by connection and save to new file
//	vigil-log filter --conn-id abc12345 -o filtered.vlog probe.vlog
//
//	# Show statistics
//	vigil-log stats probe.vlog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/vigil-proto/vigil-go/cmd/vigil-log/commands"
	"github.com/vigil-proto/vigil-go/pkg/log"
)

const usage = `vigil-log - Vigil Liveness Log Analyzer

Usage:
  vigil-log <command> [flags] <file.vlog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSONL or CSV format
  filter   Filter log file and write to new file
  stats    Show statistics about the log file

Use "vigil-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// filterFlags registers the shared filter flags on fs and returns a builder
// that assembles the filter after parsing.
func filterFlags(fs *flag.FlagSet) func() *log.Filter {
	connID := fs.String("conn-id", "", "Filter by connection ID")
	layer := fs.String("layer", "", "Filter by layer (transport, liveness)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (frame, control, state, error)")

	return func() *log.Filter {
		filter := &log.Filter{ConnectionID: *connID}
		if *layer != "" {
			l, err := commands.ParseLayer(*layer)
			if err != nil {
				fatal(err)
			}
			filter.Layer = &l
		}
		if *direction != "" {
			d, err := commands.ParseDirection(*direction)
			if err != nil {
				fatal(err)
			}
			filter.Direction = &d
		}
		if *category != "" {
			c, err := commands.ParseCategory(*category)
			if err != nil {
				fatal(err)
			}
			filter.Category = &c
		}
		return filter
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	buildFilter := filterFlags(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	if err := commands.RunView(path, buildFilter(), os.Stdout); err != nil {
		fatal(err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	format := fs.String("format", commands.FormatJSONL, "Output format (jsonl, csv)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	if err := commands.RunExport(path, *format, os.Stdout); err != nil {
		fatal(err)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	out := fs.String("o", "", "Output file path (required)")
	buildFilter := filterFlags(fs)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)
	if *out == "" {
		fatal(fmt.Errorf("output file path required (-o)"))
	}

	matched, err := commands.RunFilter(path, buildFilter(), *out)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Wrote %d events to %s\n", matched, *out)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fatal(err)
	}
}

func requirePath(fs *flag.FlagSet) string {
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
