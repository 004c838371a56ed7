package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"portscan/logging"
	"portscan/report"
	"portscan/scanner"
)

// Options holds the flag values of the scan command.
type Options struct {
	Ports       string
	Timeout     float64
	Output      string
	Verbose     bool
	Concurrency int
	JSON        bool
	ShowClosed  bool
}

// Execute runs the root command with os.Args.
func Execute() error {
	return NewRootCommand(os.Stdout, os.Stderr).Execute()
}

// NewRootCommand builds the command tree writing results to stdout and
// diagnostics to stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &Options{}

	rootCmd := &cobra.Command{
		Use:   "portscan <ip>",
		Short: "Concurrent TCP connect scanner with banner capture",
		Long: `portscan probes one target across a set of TCP ports using a bounded
pool of concurrent connection attempts and reports open ports together
with any greeting the service sends immediately after connect.

Port expressions are either a comma list (80,443,8080) or a single
inclusive range (1-1024).

Examples:
  portscan 192.0.2.10
  portscan 192.0.2.10 -p 22,80,443 -v
  portscan scanme.nmap.org -p 1-65535 -t 0.5 -c 500 -o results.txt`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), args[0], opts, stdout, stderr)
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.Flags().StringVarP(&opts.Ports, "ports", "p", "1-1024", "Comma-separated list of ports or range (e.g., 80,443 or 1-1024)")
	rootCmd.Flags().Float64VarP(&opts.Timeout, "timeout", "t", 1.0, "Timeout in seconds for each port probe")
	rootCmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Output file to save results")
	rootCmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Print each result as it is collected")
	rootCmd.Flags().IntVarP(&opts.Concurrency, "concurrency", "c", scanner.DefaultConcurrency, "Number of concurrent probes")
	rootCmd.Flags().BoolVar(&opts.JSON, "json", false, "Print the complete result set as JSON")
	rootCmd.Flags().BoolVar(&opts.ShowClosed, "show-closed", false, "Include closed ports in console and file output")

	rootCmd.AddCommand(newServeCommand(stderr))

	return rootCmd
}

func runScan(ctx context.Context, host string, opts *Options, stdout, stderr io.Writer) error {
	logger := logging.Configure(stderr)
	logging.SetVerbose(opts.Verbose)

	ports, err := scanner.ResolvePorts(opts.Ports)
	if err != nil {
		return err
	}
	if opts.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", opts.Timeout)
	}
	timeout := time.Duration(opts.Timeout * float64(time.Second))

	req, err := scanner.NewRequest(host, ports, timeout, opts.Concurrency)
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reportOpts := report.Options{ShowClosed: opts.ShowClosed}
	engine := scanner.NewEngine(scanner.TCPProbe, logger)
	if opts.Verbose && !opts.JSON {
		engine.OnOutcome = func(o scanner.Outcome) {
			if reportOpts.Visible(o) {
				fmt.Fprintln(stdout, report.Line(o))
			}
		}
	}

	result, err := engine.Run(ctx, req)
	if err != nil {
		return err
	}

	if opts.JSON {
		if err := report.WriteJSON(stdout, result); err != nil {
			return err
		}
	}

	if opts.Output != "" {
		if err := report.WriteFile(opts.Output, result, reportOpts); err != nil {
			var writeErr *report.OutputWriteError
			if errors.As(err, &writeErr) && !opts.Verbose && !opts.JSON {
				// Nothing reached the console yet; keep the results visible.
				_ = report.WriteLines(stdout, result, reportOpts)
			}
			return err
		}
	}

	fmt.Fprintln(stdout, "Scan complete.")
	return nil
}
