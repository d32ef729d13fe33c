// Package notify delivers operator notifications to the desktop or to a
// user-supplied command. Delivery is fire-and-forget: failures are logged
// at debug level and never reach the caller.
package notify

import (
	"os/exec"

	klog "github.com/Klingon-tech/coinrpc-tools/internal/log"
)

// Sink receives notifications.
type Sink interface {
	Notify(title, body string)
}

// Nop discards every notification.
var Nop Sink = nopSink{}

type nopSink struct{}

func (nopSink) Notify(string, string) {}

// start launches cmd without waiting for it. Tests replace it.
var start = func(cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	// Reap the child so long-running watchers do not collect zombies.
	go func() { _ = cmd.Wait() }()
	return nil
}

// Desktop returns a sink that raises a native OS notification.
func Desktop() Sink {
	return desktopSink{}
}

type desktopSink struct{}

func (desktopSink) Notify(title, body string) {
	cmd := desktopCommand(title, body)
	if cmd == nil {
		klog.Notify.Debug().Msg("Desktop notifications unsupported on this platform")
		return
	}
	run(cmd)
}

// Command returns a sink that runs path with the title and body as its two
// arguments.
func Command(path string) Sink {
	return commandSink{path: path}
}

type commandSink struct {
	path string
}

func (s commandSink) Notify(title, body string) {
	run(exec.Command(s.path, title, body))
}

// Multi fans a notification out to every sink.
func Multi(sinks ...Sink) Sink {
	switch len(sinks) {
	case 0:
		return Nop
	case 1:
		return sinks[0]
	}
	return multiSink(sinks)
}

type multiSink []Sink

func (m multiSink) Notify(title, body string) {
	for _, s := range m {
		s.Notify(title, body)
	}
}

func run(cmd *exec.Cmd) {
	if err := start(cmd); err != nil {
		klog.Notify.Debug().Err(err).Str("cmd", cmd.Path).Msg("Notification failed")
		return
	}
	klog.Notify.Debug().Str("cmd", cmd.Path).Msg("Notification sent")
}
