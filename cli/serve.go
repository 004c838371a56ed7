package cli

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"portscan/api"
	"portscan/config"
	"portscan/logging"
)

func newServeCommand(stderr io.Writer) *cobra.Command {
	var (
		envFile string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the asynchronous scan API",
		Long: `serve starts the HTTP API. Configuration comes from the environment,
optionally seeded from an env file:

  LISTEN_ADDR       listen address (default :8080)
  API_KEY           bearer token required on /api/v1 (required)
  REDIS_ADDR        Redis address; empty selects the in-memory store
  RATE_LIMIT        requests per client per window (default 60)
  RATE_WINDOW       rate limit window (default 1m)
  SCAN_WORKERS      scan tasks processed concurrently (default 5)
  SCAN_CONCURRENCY  default probes per task (default 100)
  SCAN_TIMEOUT      default per-probe timeout (default 1s)`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.Configure(os.Stdout)
			logging.SetVerbose(verbose)

			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			cfg, err := config.Load(files...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return api.Run(ctx, cfg, logger)
		},
	}
	cmd.SetErr(stderr)

	cmd.Flags().StringVar(&envFile, "env-file", "", "Env file to load before reading the environment (default .env)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	return cmd
}
