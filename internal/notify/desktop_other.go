//go:build !linux && !darwin && !windows

package notify

import "os/exec"

func desktopCommand(string, string) *exec.Cmd {
	return nil
}
