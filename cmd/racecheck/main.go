package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/park285/tictactoe-server/internal/apiclient"
	"github.com/park285/tictactoe-server/internal/racecheck"
)

type options struct {
	baseURL  string
	attempts int
	position int64
	timeout  time.Duration
}

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "racecheck",
		Short:         "Send concurrent moves to one cell and verify only one is stored",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			client := apiclient.New(opts.baseURL,
				apiclient.WithTimeout(opts.timeout),
				apiclient.WithMaxConnsPerHost(opts.attempts),
			)
			res, err := racecheck.Run(ctx, client, opts.attempts, opts.position)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.String())
			for msg, n := range res.Errors {
				fmt.Fprintf(cmd.OutOrStdout(), "  %3d x %s\n", n, msg)
			}
			if !res.OK() {
				return fmt.Errorf("expected exactly one accepted move")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "http://localhost:3002", "server base URL")
	cmd.Flags().IntVarP(&opts.attempts, "attempts", "n", 20, "number of concurrent moves")
	cmd.Flags().Int64Var(&opts.position, "position", 4, "cell every request targets")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "overall deadline")
	return cmd
}
