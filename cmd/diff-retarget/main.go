// diff-retarget prints where the last difficulty retarget happened and when
// the next one is due.
//
// Usage:
//
//	diff-retarget [--retarget-blocks N] [--block-time M]   Report once
//	diff-retarget --watch 10m --notify                      Keep reporting
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

	"github.com/Klingon-tech/coinrpc-tools/config"
	klog "github.com/Klingon-tech/coinrpc-tools/internal/log"
	"github.com/Klingon-tech/coinrpc-tools/internal/notify"
	"github.com/Klingon-tech/coinrpc-tools/internal/retarget"
	"github.com/Klingon-tech/coinrpc-tools/internal/rpcclient"
)

func main() {
	cfg, flags, err := config.LoadRetarget(os.Args[1:])
	switch {
	case errors.Is(err, flag.ErrHelp):
		config.PrintRetargetUsage(os.Stdout)
		return
	case errors.Is(err, config.ErrVersion):
		fmt.Printf("diff-retarget version %s\n", config.Version)
		return
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		config.PrintRetargetUsage(os.Stderr)
		os.Exit(1)
	}

	if flags.WriteConfig != "" {
		if err := config.WriteSampleConfig(flags.WriteConfig); err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Wrote %s\n", flags.WriteConfig)
		return
	}

	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fatal("init logging: %v", err)
	}

	creds, err := config.ResolveCredentials(cfg.Coin, cfg.RPC)
	if err != nil {
		fatal("%v", err)
	}
	client := rpcclient.New(creds.Host, creds.Port, creds.User, creds.Password,
		rpcclient.WithTimeout(cfg.RPC.Timeout),
	)
	klog.RPC.Debug().Str("endpoint", client.Endpoint()).Str("credentials", creds.Source).Msg("Using node")

	reporter, err := retarget.NewReporter(client, retarget.Config{
		Interval:  cfg.Interval,
		BlockTime: cfg.BlockTime,
		MaxWalk:   cfg.MaxWalk,
	})
	if err != nil {
		fatal("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := sinkFor(cfg)

	if cfg.Watch == 0 {
		rep, err := reporter.Report(ctx)
		if err != nil {
			stop()
			if errors.Is(err, rpcclient.ErrUnauthorized) {
				fatal("%v (check the credentials in %s)", err, creds.Source)
			}
			fatal("unable to read chain from node: %v", err)
		}
		fmt.Println(rep)
		sink.Notify(notificationTitle, rep.String())
		return
	}

	w := newWatcher(os.Stdout, sink)
	if err := reporter.Watch(ctx, cfg.Watch, w.handle); err != nil {
		stop()
		if errors.Is(err, rpcclient.ErrUnauthorized) {
			fatal("%v (check the credentials in %s)", err, creds.Source)
		}
		fatal("%v", err)
	}
}

func sinkFor(cfg *config.RetargetConfig) notify.Sink {
	var sinks []notify.Sink
	if cfg.Notify {
		sinks = append(sinks, notify.Desktop())
	}
	if cfg.NotifyCmd != "" {
		sinks = append(sinks, notify.Command(cfg.NotifyCmd))
	}
	return notify.Multi(sinks...)
}

const notificationTitle = "Difficulty retarget"

// watcher prints every report and notifies when the retarget window moves.
type watcher struct {
	out      io.Writer
	sink     notify.Sink
	lastSeen int64
	seen     bool
}

func newWatcher(out io.Writer, sink notify.Sink) *watcher {
	return &watcher{out: out, sink: sink}
}

func (w *watcher) handle(rep *retarget.Report, err error) error {
	if err != nil {
		// A node that never answered is a configuration problem, not an outage.
		if !w.seen {
			return fmt.Errorf("unable to read chain from node: %w", err)
		}
		klog.Retarget.Warn().Err(err).Msg("Retarget report failed, retrying at next interval")
		return nil
	}
	fmt.Fprintf(w.out, "%s\n\n", rep)

	last := rep.Window.LastRetargetHeight
	if !w.seen || last != w.lastSeen {
		w.sink.Notify(notificationTitle, rep.String())
	}
	w.seen, w.lastSeen = true, last
	return nil
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
