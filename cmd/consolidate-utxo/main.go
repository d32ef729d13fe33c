// consolidate-utxo merges the UTXOs of one or more wallet addresses into
// batched transactions paying a single destination.
//
// Usage:
//
//	consolidate-utxo FROM[,FROM...] TO [options]   Consolidate
//	consolidate-utxo --help                         Show help
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/Klingon-tech/coinrpc-tools/config"
	"github.com/Klingon-tech/coinrpc-tools/internal/consolidate"
	"github.com/Klingon-tech/coinrpc-tools/internal/fee"
	klog "github.com/Klingon-tech/coinrpc-tools/internal/log"
	"github.com/Klingon-tech/coinrpc-tools/internal/rpcclient"
)

func main() {
	cfg, flags, err := config.LoadConsolidate(os.Args[1:])
	switch {
	case errors.Is(err, flag.ErrHelp):
		config.PrintConsolidateUsage(os.Stdout)
		return
	case errors.Is(err, config.ErrVersion):
		fmt.Printf("consolidate-utxo version %s\n", config.Version)
		return
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		config.PrintConsolidateUsage(os.Stderr)
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

	passphrase := cfg.Passphrase
	if cfg.AskPassphrase {
		pw, err := readPassword("Wallet passphrase: ")
		if err != nil {
			fatal("reading passphrase: %v", err)
		}
		passphrase = string(pw)
	}

	client := rpcclient.New(creds.Host, creds.Port, creds.User, creds.Password,
		rpcclient.WithTimeout(cfg.RPC.Timeout),
		rpcclient.WithWallet(cfg.RPC.Wallet),
	)
	klog.RPC.Debug().Str("endpoint", client.Endpoint()).Str("credentials", creds.Source).Msg("Using node")

	fees := fee.NewEstimator(client, cfg.MinFeeRate)
	klog.Fee.Debug().Str("floor", fees.Floor().String()).Int64("conf_target", cfg.MinConfirms).Msg("Fee estimator ready")

	engine, err := consolidate.New(client, fees, consolidate.Config{
		Sources:          cfg.Sources,
		Destination:      cfg.Destination,
		MaxInputs:        cfg.MaxInputs,
		MaxTotalTx:       cfg.MaxTotalTx,
		MinConfirms:      cfg.MinConfirms,
		MaxConfirms:      cfg.MaxConfirms,
		Pause:            cfg.Pause,
		DryRun:           cfg.DryRun,
		Passphrase:       passphrase,
		UnlockTimeout:    cfg.UnlockTimeout,
		SignaturePadding: consolidate.DefaultSignaturePadding,
	})
	if err != nil {
		fatal("%v", err)
	}
	engine.SetObserver(newPrinter(os.Stdout, cfg.Sources, cfg.Destination))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := engine.Run(ctx)
	if err != nil {
		if summary != nil {
			printSummary(os.Stdout, summary, cfg.DryRun)
		}
		interrupted := ctx.Err() != nil
		stop()
		switch {
		case interrupted:
			fatal("interrupted, nothing more was sent: %v", err)
		case errors.Is(err, rpcclient.ErrUnauthorized):
			fatal("%v (check the credentials in %s)", err, creds.Source)
		default:
			fatal("%v", err)
		}
	}

	if summary.Eligible == 0 {
		fmt.Println("No unspent transactions found")
		return
	}
	if summary.CapReached {
		fmt.Println("Max number of transactions hit.")
	}
	printSummary(os.Stdout, summary, cfg.DryRun)
}

// ── Terminal helpers ────────────────────────────────────────────────────

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
