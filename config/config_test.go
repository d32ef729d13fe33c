package config

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestCoin_Names(t *testing.T) {
	tests := []struct {
		coin   Coin
		slug   string
		pretty string
	}{
		{"the holy roger", "theholyroger", "TheHolyRoger"},
		{"bit coin", "bitcoin", "BitCoin"},
		{"bitcoin", "bitcoin", "Bitcoin"},
		{"  Lite  Coin ", "litecoin", "LiteCoin"},
	}
	for _, tt := range tests {
		if got := tt.coin.Slug(); got != tt.slug {
			t.Errorf("Coin(%q).Slug() = %q, want %q", tt.coin, got, tt.slug)
		}
		if got := tt.coin.Pretty(); got != tt.pretty {
			t.Errorf("Coin(%q).Pretty() = %q, want %q", tt.coin, got, tt.pretty)
		}
	}
}

func TestDefaultDataDir_Linux(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("linux layout only")
	}
	home := t.TempDir()
	t.Setenv("HOME", home)

	got := DefaultDataDir(DefaultCoinName)
	if want := filepath.Join(home, ".theholyroger"); got != want {
		t.Errorf("DefaultDataDir = %q, want %q", got, want)
	}
	if got := NativeConfPath(got, DefaultCoinName); got != filepath.Join(home, ".theholyroger", "theholyroger.conf") {
		t.Errorf("NativeConfPath = %q", got)
	}
}

func TestCredentials_URL(t *testing.T) {
	c := &Credentials{Host: "127.0.0.1", Port: 9662}
	if got := c.URL(); got != "http://127.0.0.1:9662/" {
		t.Errorf("URL = %q", got)
	}
	c.Host = "::1"
	if got := c.Address(); got != "[::1]:9662" {
		t.Errorf("Address = %q", got)
	}
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got := expandHome("~/x.conf"); got != filepath.Join(home, "x.conf") {
		t.Errorf("expandHome = %q", got)
	}
	if got := expandHome("/etc/x.conf"); got != "/etc/x.conf" {
		t.Errorf("expandHome changed an absolute path: %q", got)
	}
	if got := expandHome("~other/x"); got != "~other/x" {
		t.Errorf("expandHome = %q", got)
	}
}
