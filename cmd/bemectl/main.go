// Command bemectl loads optimisation experiments, prints their derived views,
// writes and converts re-simulation requests and maintains the experiment
// catalog.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/spf13/cobra"

	"bemekit/internal/errs"
	"bemekit/internal/logging"
	"bemekit/internal/metrics"
	"bemekit/pkg/bemekit"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if code := errs.CodeOf(err); code != "" {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out, errOut io.Writer) error {
	a := &app{out: out, errOut: errOut}
	return a.execute(ctx, args)
}

// app carries the state shared by the subcommands of one invocation.
type app struct {
	out    io.Writer
	errOut io.Writer
	// fs replaces the host filesystem in tests.
	fs billy.Filesystem

	cfg    cliConfig
	rec    *metrics.Recorder
	client *bemekit.Client
}

func (a *app) execute(ctx context.Context, args []string) (err error) {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	defer func() {
		err = errors.Join(err, a.close())
	}()
	return root.ExecuteContext(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bemectl",
		Short:         "Inspect and re-simulate optimisation experiments",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	registerGlobalFlags(root.PersistentFlags())
	root.AddCommand(
		a.loadCmd(),
		a.releaseCmd(),
		a.viewsCmd(),
		a.individualCmd(),
		a.requestCmd(),
		a.convertCmd(),
		a.simulateCmd(),
		a.catalogCmd(),
	)
	return root
}

// clientFor builds the client on first use so that commands which need none
// (release) do not open the catalog.
func (a *app) clientFor(ctx context.Context) (*bemekit.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	log, err := logging.New(a.cfg.LogLevel, a.cfg.LogDevelopment)
	if err != nil {
		return nil, err
	}
	a.rec = metrics.NewRecorder()
	opts := a.cfg.clientOptions()
	opts.Logger = log
	opts.Metrics = a.rec
	opts.FS = a.fs
	client, err := bemekit.New(opts)
	if err != nil {
		return nil, err
	}
	if err := client.Init(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	a.client = client
	return client, nil
}

func (a *app) close() error {
	var err error
	if a.cfg.MetricsOut != "" && a.rec != nil {
		err = a.rec.WriteTextfile(a.cfg.MetricsOut)
	}
	if a.client != nil {
		err = errors.Join(err, a.client.Close())
	}
	return err
}
