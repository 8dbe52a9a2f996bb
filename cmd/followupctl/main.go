// Command followupctl operates the follow-up engine from a shell: it lists
// due work, executes or previews single follow-ups, runs batches and manages
// sequences against the configured state store.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/dhima/followup-engine/internal/app"
	"github.com/dhima/followup-engine/internal/logging"
	"github.com/dhima/followup-engine/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := logging.NewLoggerWithEncoding(cfg.Environment, cfg.LogLevel, "console")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	components, err := app.Build(ctx, cfg, logger.Zap())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer components.Close()

	if err := run(ctx, os.Args[1:], os.Stdout, components); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, components *app.App) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("followupctl"),
		kong.Description("Operate the follow-up engine."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Bind(components),
		kong.BindTo(out, (*io.Writer)(nil)),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kctx.Run(&cli.Globals)
}
