// Package config handles tool configuration.
//
// Configuration is split into two categories:
//   - Node connection: RPC credentials resolved from a tool config file,
//     the node's native .conf file or its cookie file
//   - Run settings: per-invocation options from defaults and flags
package config

import (
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/btcsuite/btcd/btcutil"
)

// DefaultCoinName is the coin whose data directory is searched by default.
const DefaultCoinName = "the holy roger"

// Coin names the node software whose data directory holds the native
// configuration. "bit coin" maps to ~/.bitcoin/bitcoin.conf on Linux and
// ~/Library/Application Support/BitCoin on macOS.
type Coin string

// Slug returns the lower-case, space-free form used in file names.
func (c Coin) Slug() string {
	return strings.ToLower(strings.Join(strings.Fields(string(c)), ""))
}

// Pretty returns the capitalised, space-free form used for macOS and
// Windows directories.
func (c Coin) Pretty() string {
	words := strings.Fields(strings.ToLower(string(c)))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, "")
}

// =============================================================================
// Tool Configuration (immutable once loaded)
// =============================================================================

// RPCConfig holds node connection settings.
type RPCConfig struct {
	ConfigPath string // tool config file with rpc_* keys
	DataDir    string // node data directory, DefaultDataDir when empty
	Host       string // overrides the resolved host when set
	Port       int    // overrides the resolved port when non-zero
	Wallet     string // multiwallet name, empty for the default wallet
	Timeout    time.Duration
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
	File  string
	JSON  bool
}

// ConsolidateConfig holds the settings for one consolidate-utxo run.
type ConsolidateConfig struct {
	Coin Coin
	RPC  RPCConfig
	Log  LogConfig

	Sources     []string
	Destination string

	MaxInputs   int
	MaxTotalTx  int
	MinConfirms int64
	MaxConfirms int64
	Pause       time.Duration
	DryRun      bool

	Passphrase    string
	AskPassphrase bool
	UnlockTimeout time.Duration

	MinFeeRate btcutil.Amount // per kB floor when the node cannot estimate
}

// RetargetConfig holds the settings for one diff-retarget run.
type RetargetConfig struct {
	Coin Coin
	RPC  RPCConfig
	Log  LogConfig

	Interval  int64
	BlockTime time.Duration
	MaxWalk   int

	Watch     time.Duration // zero reports once
	Notify    bool
	NotifyCmd string
}

// Credentials are the resolved node RPC connection details.
type Credentials struct {
	User     string
	Password string
	Host     string
	Port     int

	Source string // file the credentials came from
}

// Address returns host:port.
func (c *Credentials) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL returns the node's HTTP endpoint without credentials.
func (c *Credentials) URL() string {
	return "http://" + c.Address() + "/"
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific data directory of the coin's
// node.
//
//	Linux:   ~/.<slug>
//	macOS:   ~/Library/Application Support/<Pretty>
//	Windows: %APPDATA%\<Pretty>
func DefaultDataDir(coin Coin) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + coin.Slug()
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", coin.Pretty())
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, coin.Pretty())
		}
		return filepath.Join(home, "AppData", "Roaming", coin.Pretty())
	default:
		return filepath.Join(home, "."+coin.Slug())
	}
}

// NativeConfPath returns the node's own configuration file.
func NativeConfPath(dataDir string, coin Coin) string {
	return filepath.Join(dataDir, coin.Slug()+".conf")
}

// CookiePath returns the node's RPC cookie file.
func CookiePath(dataDir string) string {
	return filepath.Join(dataDir, ".cookie")
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
