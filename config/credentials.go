package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	klog "github.com/Klingon-tech/coinrpc-tools/internal/log"
)

// ErrNoConfig is returned when no source of RPC credentials can be read.
var ErrNoConfig = errors.New("no rpc configuration found")

// Keys accepted in a tool config file, in lookup order.
var (
	toolUserKeys     = []string{"rpc_user", "rpcuser"}
	toolPasswordKeys = []string{"rpc_password", "rpcpassword"}
	toolHostKeys     = []string{"rpc_host", "rpchost", "rpcconnect"}
	toolPortKeys     = []string{"rpc_port", "rpcport"}
)

// Keys read from the node's native configuration file.
var (
	nativeUserKeys     = []string{"rpcuser"}
	nativePasswordKeys = []string{"rpcpassword"}
	nativeHostKeys     = []string{"rpchost", "rpcconnect"}
	nativePortKeys     = []string{"rpcport"}
)

// ResolveCredentials locates the node's RPC credentials:
//
//  1. The tool config file at rpc.ConfigPath, if it exists.
//  2. Otherwise the node's native <slug>.conf in rpc.DataDir (DefaultDataDir
//     when empty), defaulting the host to 127.0.0.1 and the port to 9662.
//  3. When the native conf has no rpcpassword, the node's .cookie file.
//
// rpc.Host and rpc.Port override the resolved values.
func ResolveCredentials(coin Coin, rpc RPCConfig) (*Credentials, error) {
	logger := klog.Config

	creds, err := resolveFiles(rpc.ConfigPath, rpc.DataDir, coin)
	if err != nil {
		return nil, err
	}

	if rpc.Host != "" {
		creds.Host = rpc.Host
	}
	if rpc.Port != 0 {
		creds.Port = rpc.Port
	}

	logger.Debug().
		Str("source", creds.Source).
		Str("endpoint", creds.URL()).
		Str("user", creds.User).
		Msg("Resolved RPC credentials")
	return creds, nil
}

func resolveFiles(explicitPath, dataDir string, coin Coin) (*Credentials, error) {
	if explicitPath != "" {
		path := expandHome(explicitPath)
		if _, err := os.Stat(path); err == nil {
			return loadToolConfig(path)
		}
		if explicitPath != DefaultConfigPath {
			klog.Config.Warn().Str("path", path).Msg("RPC config file not found, using node configuration")
		}
	}

	if dataDir == "" {
		dataDir = DefaultDataDir(coin)
	}
	return loadNativeConfig(dataDir, coin)
}

// loadToolConfig reads a tool config file. Every key is optional; missing
// values fall back to the node defaults.
func loadToolConfig(path string) (*Credentials, error) {
	values, err := LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading rpc config %s: %w", path, err)
	}

	creds := &Credentials{Host: DefaultRPCHost, Port: DefaultRPCPort, Source: path}
	if err := applyCredentialValues(creds, values, toolUserKeys, toolPasswordKeys, toolHostKeys, toolPortKeys); err != nil {
		return nil, fmt.Errorf("rpc config %s: %w", path, err)
	}
	return creds, nil
}

func loadNativeConfig(dataDir string, coin Coin) (*Credentials, error) {
	confPath := NativeConfPath(dataDir, coin)
	creds := &Credentials{Host: DefaultRPCHost, Port: DefaultRPCPort}

	confFound := false
	if _, err := os.Stat(confPath); err == nil {
		values, err := LoadFile(confPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", confPath, err)
		}
		if err := applyCredentialValues(creds, values, nativeUserKeys, nativePasswordKeys, nativeHostKeys, nativePortKeys); err != nil {
			return nil, fmt.Errorf("%s: %w", confPath, err)
		}
		creds.Source = confPath
		confFound = true
	}

	if creds.Password != "" {
		return creds, nil
	}

	cookiePath := CookiePath(dataDir)
	user, pass, err := readCookie(cookiePath)
	if err == nil {
		creds.User, creds.Password, creds.Source = user, pass, cookiePath
		return creds, nil
	}
	if confFound {
		return nil, fmt.Errorf("%w: %s has no rpcpassword and %s is unreadable", ErrNoConfig, confPath, cookiePath)
	}
	return nil, fmt.Errorf("%w: tried %s and %s", ErrNoConfig, confPath, cookiePath)
}

func applyCredentialValues(creds *Credentials, values map[string]string, userKeys, passKeys, hostKeys, portKeys []string) error {
	if v, ok := lookup(values, userKeys); ok {
		creds.User = v
	}
	if v, ok := lookup(values, passKeys); ok {
		creds.Password = v
	}
	if v, ok := lookup(values, hostKeys); ok && v != "" {
		creds.Host = v
	}
	if v, ok := lookup(values, portKeys); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid rpc port %q", v)
		}
		creds.Port = port
	}
	return nil
}

func lookup(values map[string]string, keys []string) (string, bool) {
	for _, k := range keys {
		if v, ok := values[k]; ok {
			return v, true
		}
	}
	return "", false
}

// readCookie parses a node cookie file ("user:password").
func readCookie(path string) (user, pass string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	line := strings.TrimSpace(string(data))
	user, pass, ok := strings.Cut(line, ":")
	if !ok || pass == "" {
		return "", "", fmt.Errorf("malformed cookie file %s", path)
	}
	return user, pass, nil
}
