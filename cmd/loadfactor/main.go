package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ritzau/load-factors/pkg/analysis"
	"github.com/ritzau/load-factors/pkg/analysis/api"
	"github.com/ritzau/load-factors/pkg/config"
	"github.com/ritzau/load-factors/pkg/loadfactor"
	"github.com/ritzau/load-factors/pkg/logging"
	"github.com/ritzau/load-factors/pkg/output"
	"github.com/ritzau/load-factors/pkg/pubsub"
	"github.com/ritzau/load-factors/pkg/source"
	"github.com/ritzau/load-factors/pkg/watcher"
	"github.com/ritzau/load-factors/pkg/web"
	"github.com/spf13/pflag"
)

const usage = `Usage: loadfactor --entry NAME [--file PATH | DECLARATION...]

Computes top-down load factors for a DAG of services. Each declaration has
the form "name=dep1|dep2|...". The entry point starts with load 1 and every
declared dependency receives the sum of the loads of the services that use it.

Flags:
`

func main() {
	flags := pflag.NewFlagSet("loadfactor", pflag.ContinueOnError)
	config.RegisterFlags(flags)
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		logging.Fatal("invalid configuration", "error", err)
	}

	level := logging.ParseLevel(cfg.Verbosity, cfg.VerboseCnt)
	if cfg.JSONLogs {
		logging.SetJSONOutput(level)
	} else {
		logging.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg, flags.Args(), os.Stdout))
}

// run executes the configured mode and returns the process exit code
func run(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) int {
	if cfg.Entry == "" {
		logging.Error("missing entry point", "hint", "pass --entry NAME")
		return 2
	}

	src, err := selectSource(cfg, args)
	if err != nil {
		logging.Error("no declarations", "error", err)
		return 2
	}

	runner := analysis.NewRunner(nil)
	var publisher *pubsub.SSEPublisher
	if cfg.WebMode {
		publisher = pubsub.NewSSEPublisher()
		// New subscribers only need the latest result
		publisher.ConfigureTopic(pubsub.TopicLoadFactors, pubsub.TopicConfig{
			BufferSize: 10,
			ReplayAll:  false,
		})
		runner = analysis.NewRunner(publisher)
	}

	opts := analysis.Options{Entry: cfg.Entry, Strict: cfg.Strict, Reason: "initial analysis"}

	if src != nil {
		if err := compute(ctx, runner, src, opts, cfg.Format, stdout); err != nil && !cfg.WebMode && !cfg.Watch {
			return 1
		}
	}

	if !cfg.WebMode && !cfg.Watch {
		return 0
	}

	if cfg.Watch {
		go watch(ctx, runner, src, opts, cfg.Format, stdout)
	}

	if cfg.WebMode {
		server := web.NewServer(runner, publisher, cfg.Strict)
		if err := server.Start(ctx, cfg.Port); err != nil {
			logging.Error("web server failed", "error", err)
			return 1
		}
		return 0
	}

	<-ctx.Done()
	return 0
}

// selectSource picks the declaration file or positional arguments. In web
// mode without either, there is nothing to compute up front.
func selectSource(cfg *config.Config, args []string) (api.Source, error) {
	switch {
	case cfg.File != "" && len(args) > 0:
		return nil, fmt.Errorf("use either --file or positional declarations, not both")
	case cfg.File != "":
		return &source.FileSource{Path: cfg.File}, nil
	case len(args) > 0:
		return &source.StaticSource{Label: "args", Lines: args}, nil
	case cfg.WebMode:
		return nil, nil
	default:
		return nil, fmt.Errorf("pass --file PATH or declarations as arguments")
	}
}

func compute(ctx context.Context, runner *analysis.Runner, src api.Source, opts analysis.Options, format string, stdout io.Writer) error {
	report, err := runner.Run(ctx, src, opts)
	if err != nil {
		var malformed *loadfactor.MalformedDeclarationError
		if errors.As(err, &malformed) {
			logging.Error("malformed declaration",
				"source", src.Name(),
				"lineNumber", malformed.LineNumber,
				"line", malformed.Line)
		} else {
			logging.Error("analysis failed", "source", src.Name(), "error", err)
		}
		return err
	}

	if format == "json" {
		return output.WriteJSON(stdout, *report)
	}
	output.PrintReport(stdout, *report)
	return nil
}

func watch(ctx context.Context, runner *analysis.Runner, src api.Source, opts analysis.Options, format string, stdout io.Writer) {
	fw, err := watcher.NewFileWatcher(src.Name())
	if err != nil {
		logging.Error("cannot watch declarations", "error", err)
		return
	}
	if err := fw.Start(ctx); err != nil {
		logging.Error("cannot watch declarations", "error", err)
		return
	}

	debouncer := watcher.NewDebouncer(fw.Events(), 200*time.Millisecond, 2*time.Second)
	debouncer.Start(ctx)

	for event := range debouncer.Output() {
		change := watcher.AnalyzeChanges(event)
		if !change.Recompute {
			logging.Warn(change.Reason, "path", event.Path)
			continue
		}

		logging.Info(change.Reason, "path", event.Path, "events", event.Count)
		opts.Reason = change.Reason
		_ = compute(ctx, runner, src, opts, format, stdout)
	}
}
