package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/strainwise/convmem/pkg/client"
)

const serverEnv = "CONVMEMCTL_SERVER"

type rootOptions struct {
	server  string
	timeout time.Duration
	format  string
}

// newRootCmd builds the command tree writing to out.
func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "convmemctl",
		Short:         "Operate a convmem server",
		Long:          "Inspect, export and erase conversational memory on a running convmem server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	root.PersistentFlags().StringVarP(&opts.server, "server", "s", "", "Server URL (default: $"+serverEnv+" or http://localhost:8080)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Per-request timeout")
	root.PersistentFlags().StringVarP(&opts.format, "format", "f", "json", "Output format: json or text")

	root.AddCommand(
		newRecordCmd(opts),
		newContextCmd(opts),
		newProfileCmd(opts),
		newSettingsCmd(opts),
		newSessionCmd(opts),
		newFeedbackCmd(opts),
		newExportCmd(opts),
		newEraseCmd(opts),
		newAnalyticsCmd(opts),
		newStatusCmd(opts),
		newKeygenCmd(),
		newVersionCmd(),
	)
	return root
}

func (o *rootOptions) serverURL() string {
	if o.server != "" {
		return o.server
	}
	if env := os.Getenv(serverEnv); env != "" {
		return env
	}
	return "http://localhost:8080"
}

func (o *rootOptions) client() (*client.Client, error) {
	opts := client.DefaultOptions(o.serverURL())
	opts.Timeout = o.timeout
	opts.UserAgent = "convmemctl"
	return client.NewClient(opts)
}

func (o *rootOptions) textOutput() (bool, error) {
	switch o.format {
	case "json":
		return false, nil
	case "text":
		return true, nil
	default:
		return false, fmt.Errorf("unknown format %q (want json or text)", o.format)
	}
}

// withClient runs fn with a client bound to the command context.
func (o *rootOptions) withClient(fn func(ctx context.Context, c *client.Client) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if _, err := o.textOutput(); err != nil {
			return err
		}
		c, err := o.client()
		if err != nil {
			return err
		}
		return fn(cmd.Context(), c)
	}
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
