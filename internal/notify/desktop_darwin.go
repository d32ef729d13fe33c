//go:build darwin

package notify

import (
	"os/exec"
	"strings"
)

func desktopCommand(title, body string) *exec.Cmd {
	script := `display notification "` + escapeAppleScript(body) +
		`" with title "` + escapeAppleScript(title) + `"`
	return exec.Command("osascript", "-e", script)
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
