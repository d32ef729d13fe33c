//go:build linux

package notify

import "os/exec"

func desktopCommand(title, body string) *exec.Cmd {
	return exec.Command("notify-send", "-a", "coinrpc-tools", title, body)
}
