package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
)

// Version is reported by --version.
const Version = "0.1.0"

// ErrVersion is returned by the loaders when --version was given.
var ErrVersion = errors.New("version requested")

// commonFlags are shared by every tool.
type commonFlags struct {
	Help        bool
	Version     bool
	WriteConfig string

	Coin       string
	DataDir    string
	RPCConfig  string
	RPCHost    string
	RPCPort    int
	RPCTimeout time.Duration

	LogLevel string
	LogFile  string
	LogJSON  bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.BoolVar(&c.Help, "help", false, "Show help message")
	fs.BoolVar(&c.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&c.Version, "version", false, "Show version information")
	fs.StringVar(&c.WriteConfig, "write-rpc-config", "", "Write a sample RPC config file and exit")

	fs.StringVar(&c.Coin, "coin-name", DefaultCoinName, "Coin name used to locate the node's data directory")
	fs.StringVar(&c.DataDir, "datadir", "", "Node data directory")
	fs.StringVar(&c.RPCConfig, "rpc-config", DefaultConfigPath, "RPC config file path")
	fs.StringVar(&c.RPCHost, "rpc-host", "", "RPC host (overrides config files)")
	fs.IntVar(&c.RPCPort, "rpc-port", 0, "RPC port (overrides config files)")
	fs.DurationVar(&c.RPCTimeout, "rpc-timeout", 0, "RPC request timeout")

	fs.StringVar(&c.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&c.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&c.LogJSON, "log-json", false, "Output logs as JSON")
}

func (c *commonFlags) apply(coin *Coin, rpc *RPCConfig, log *LogConfig) {
	*coin = Coin(c.Coin)
	rpc.ConfigPath = c.RPCConfig
	rpc.DataDir = expandHome(c.DataDir)
	rpc.Host = c.RPCHost
	rpc.Port = c.RPCPort
	if c.RPCTimeout != 0 {
		rpc.Timeout = c.RPCTimeout
	}
	if c.LogLevel != "" {
		log.Level = c.LogLevel
	}
	if c.LogFile != "" {
		log.File = c.LogFile
	}
	log.JSON = c.LogJSON
}

// ConsolidateFlags holds parsed consolidate-utxo flags.
type ConsolidateFlags struct {
	commonFlags

	DryRun        bool
	MaxInputs     int
	MaxTotalTx    int
	MinConfirms   int64
	MaxConfirms   int64
	PauseSeconds  float64
	Passphrase    string
	AskPassphrase bool
	UnlockTimeout time.Duration
	MinFeeRate    float64 // coins per kB
	Wallet        string

	// Positional arguments
	Args []string
}

// ParseConsolidateFlags parses consolidate-utxo arguments. Options may come
// before or after the positional arguments.
func ParseConsolidateFlags(args []string) (*ConsolidateFlags, error) {
	d := DefaultConsolidate()
	f := &ConsolidateFlags{}
	fs := flag.NewFlagSet("consolidate-utxo", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	f.commonFlags.register(fs)

	fs.BoolVar(&f.DryRun, "dry-run", false, "Build and sign but do not broadcast")
	fs.BoolVar(&f.DryRun, "n", false, "Dry run (shorthand)")
	fs.IntVar(&f.MaxInputs, "max-tx-count", d.MaxInputs, "Maximum inputs per transaction")
	fs.IntVar(&f.MaxTotalTx, "max-total-tx", d.MaxTotalTx, "Maximum transactions per run")
	fs.Int64Var(&f.MinConfirms, "min-confirms", d.MinConfirms, "Minimum confirmations of spent UTXOs")
	fs.Int64Var(&f.MaxConfirms, "max-confirms", d.MaxConfirms, "Maximum confirmations of spent UTXOs")
	fs.Float64Var(&f.PauseSeconds, "pause-time", d.Pause.Seconds(), "Seconds to wait before each broadcast")
	fs.StringVar(&f.Passphrase, "wallet-passphrase", "", "Wallet passphrase for unlocking")
	fs.BoolVar(&f.AskPassphrase, "ask-passphrase", false, "Prompt for the wallet passphrase")
	fs.DurationVar(&f.UnlockTimeout, "unlock-timeout", d.UnlockTimeout, "How long the wallet stays unlocked")
	fs.Float64Var(&f.MinFeeRate, "min-fee-rate", d.MinFeeRate.ToBTC(), "Fee rate per kB when the node cannot estimate")
	fs.StringVar(&f.Wallet, "rpc-wallet", "", "Wallet name on multiwallet nodes")

	rest, err := parseInterleaved(fs, args)
	if err != nil {
		return nil, err
	}
	f.Args = rest
	return f, nil
}

// RetargetFlags holds parsed diff-retarget flags.
type RetargetFlags struct {
	commonFlags

	Interval         int64
	BlockTimeMinutes float64
	MaxWalk          int
	Watch            time.Duration
	Notify           bool
	NotifyCmd        string

	// Positional arguments
	Args []string
}

// ParseRetargetFlags parses diff-retarget arguments.
func ParseRetargetFlags(args []string) (*RetargetFlags, error) {
	d := DefaultRetarget()
	f := &RetargetFlags{}
	fs := flag.NewFlagSet("diff-retarget", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	f.commonFlags.register(fs)

	fs.Int64Var(&f.Interval, "retarget-blocks", d.Interval, "Blocks between difficulty retargets")
	fs.Float64Var(&f.BlockTimeMinutes, "block-time", d.BlockTime.Minutes(), "Target block time in minutes")
	fs.IntVar(&f.MaxWalk, "max-walk", 0, "Maximum blocks to walk back (0 = unlimited)")
	fs.DurationVar(&f.Watch, "watch", 0, "Repeat the report at this interval")
	fs.BoolVar(&f.Notify, "notify", false, "Send a desktop notification with the report")
	fs.StringVar(&f.NotifyCmd, "notify-cmd", "", "Run this command with the report title and body")

	rest, err := parseInterleaved(fs, args)
	if err != nil {
		return nil, err
	}
	f.Args = rest
	return f, nil
}

// parseInterleaved parses flags that may appear between positional
// arguments. flag.Parse stops at the first positional, so parsing resumes
// after each one. Everything after "--" is positional.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		consumed := len(args) - len(rest)
		if consumed > 0 && args[consumed-1] == "--" {
			return append(positional, rest...), nil
		}
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

// LoadConsolidate builds the consolidate-utxo configuration with the
// following precedence:
// 1. Default values
// 2. Command-line flags
//
// Credentials are resolved separately with ResolveCredentials. Returns
// flag.ErrHelp when help was requested.
func LoadConsolidate(args []string) (*ConsolidateConfig, *ConsolidateFlags, error) {
	flags, err := ParseConsolidateFlags(args)
	if err != nil {
		return nil, nil, err
	}
	if flags.Help {
		return nil, flags, flag.ErrHelp
	}
	if flags.Version {
		return nil, flags, ErrVersion
	}

	cfg := DefaultConsolidate()
	flags.apply(&cfg.Coin, &cfg.RPC, &cfg.Log)
	cfg.RPC.Wallet = flags.Wallet

	if flags.WriteConfig == "" {
		if len(flags.Args) != 2 {
			return nil, flags, fmt.Errorf("expected FROM_ADDRESS and TO_ADDRESS, got %d argument(s)", len(flags.Args))
		}
		cfg.Sources = parseStringList(flags.Args[0])
		cfg.Destination = strings.TrimSpace(flags.Args[1])
	}

	cfg.DryRun = flags.DryRun
	cfg.MaxInputs = flags.MaxInputs
	cfg.MaxTotalTx = flags.MaxTotalTx
	cfg.MinConfirms = flags.MinConfirms
	cfg.MaxConfirms = flags.MaxConfirms
	cfg.Pause = pauseDuration(flags.PauseSeconds)
	cfg.Passphrase = flags.Passphrase
	cfg.AskPassphrase = flags.AskPassphrase
	cfg.UnlockTimeout = flags.UnlockTimeout

	rate, err := btcutil.NewAmount(flags.MinFeeRate)
	if err != nil {
		return nil, flags, fmt.Errorf("invalid --min-fee-rate: %w", err)
	}
	cfg.MinFeeRate = rate

	if flags.WriteConfig == "" {
		if err := ValidateConsolidate(cfg); err != nil {
			return nil, flags, fmt.Errorf("invalid config: %w", err)
		}
	}
	return cfg, flags, nil
}

// LoadRetarget builds the diff-retarget configuration from defaults and
// flags. Returns flag.ErrHelp when help was requested.
func LoadRetarget(args []string) (*RetargetConfig, *RetargetFlags, error) {
	flags, err := ParseRetargetFlags(args)
	if err != nil {
		return nil, nil, err
	}
	if flags.Help {
		return nil, flags, flag.ErrHelp
	}
	if flags.Version {
		return nil, flags, ErrVersion
	}
	if len(flags.Args) != 0 {
		return nil, flags, fmt.Errorf("unexpected argument %q", flags.Args[0])
	}

	cfg := DefaultRetarget()
	flags.apply(&cfg.Coin, &cfg.RPC, &cfg.Log)
	cfg.Interval = flags.Interval
	cfg.BlockTime = time.Duration(flags.BlockTimeMinutes * float64(time.Minute))
	cfg.MaxWalk = flags.MaxWalk
	cfg.Watch = flags.Watch
	cfg.Notify = flags.Notify
	cfg.NotifyCmd = flags.NotifyCmd

	if err := ValidateRetarget(cfg); err != nil {
		return nil, flags, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, flags, nil
}

// pauseDuration converts --pause-time seconds, never going below MinPause.
func pauseDuration(seconds float64) time.Duration {
	d := time.Duration(seconds * float64(time.Second))
	if d < MinPause {
		return MinPause
	}
	return d
}

// PrintConsolidateUsage writes consolidate-utxo help to w.
func PrintConsolidateUsage(w io.Writer) {
	usage := `consolidate-utxo - merge the UTXOs of one or more addresses

Usage:
  consolidate-utxo FROM_ADDRESS[,FROM_ADDRESS...] TO_ADDRESS [options]
  consolidate-utxo --help

Consolidation Options:
  --dry-run, -n         Build and sign transactions but do not broadcast
  --max-tx-count N      Maximum inputs per transaction (default: 555)
  --max-total-tx N      Maximum transactions per run (default: 600)
  --min-confirms N      Minimum confirmations (default: 100)
  --max-confirms N      Maximum confirmations (default: 99999999)
  --pause-time N        Seconds to wait before each broadcast (default: 5, min: 0.1)
  --min-fee-rate X      Fee per kB when the node cannot estimate (default: 0.001)

Wallet Options:
  --wallet-passphrase S Passphrase used when the wallet is locked
  --ask-passphrase      Prompt for the passphrase instead
  --unlock-timeout D    How long the wallet stays unlocked (default: 15m)
  --rpc-wallet NAME     Wallet name on multiwallet nodes
` + commonUsage + `
Examples:
  # Preview consolidating two addresses
  consolidate-utxo addr1,addr2 dest --dry-run

  # Consolidate with a locked wallet
  consolidate-utxo addr1 dest --ask-passphrase --pause-time 1
`
	fmt.Fprint(w, usage)
}

// PrintRetargetUsage writes diff-retarget help to w.
func PrintRetargetUsage(w io.Writer) {
	usage := `diff-retarget - report the last and next difficulty retarget

Usage:
  diff-retarget [options]
  diff-retarget --help

Retarget Options:
  --retarget-blocks N   Blocks between difficulty retargets (default: 2016)
  --block-time M        Target block time in minutes (default: 2.5)
  --max-walk N          Give up after walking back N blocks (default: unlimited)
  --watch D             Repeat the report every D (e.g. 10m)
  --notify              Send a desktop notification with each report
  --notify-cmd PATH     Run PATH with the report title and body
` + commonUsage + `
Examples:
  # Bitcoin-style schedule on a 10 minute chain
  diff-retarget --retarget-blocks 2016 --block-time 10

  # Notify when the retarget height changes
  diff-retarget --watch 10m --notify
`
	fmt.Fprint(w, usage)
}

const commonUsage = `
RPC Options:
  --rpc-config PATH     RPC config file with rpc_user, rpc_password, rpc_host,
                        rpc_port (default: ./coinrpc.conf)
  --coin-name NAME      Coin whose node .conf is read when no RPC config file
                        exists (default: "the holy roger")
  --datadir PATH        Node data directory (default: per-OS location)
  --rpc-host HOST       RPC host, overrides config files
  --rpc-port PORT       RPC port, overrides config files
  --rpc-timeout D       RPC request timeout (default: 5m20s)
  --write-rpc-config P  Write a sample RPC config file to P and exit

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path
  --log-json      Output logs as JSON

  --help, -h      Show this help message
  --version       Show version information
`

