package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/Klingon-tech/coinrpc-tools/config"
	"github.com/Klingon-tech/coinrpc-tools/internal/notify"
	"github.com/Klingon-tech/coinrpc-tools/internal/retarget"
	"github.com/Klingon-tech/coinrpc-tools/internal/rpcclient"
)

type recordingSink struct {
	bodies []string
}

func (s *recordingSink) Notify(_, body string) {
	s.bodies = append(s.bodies, body)
}

func report(last int64) *retarget.Report {
	return &retarget.Report{Window: retarget.Window{
		TipHeight:          last + 3,
		CurrentDifficulty:  2,
		PreviousDifficulty: 1,
		LastRetargetHeight: last,
		NextRetargetHeight: last + 2016,
	}}
}

func TestWatcher_NotifiesOnChange(t *testing.T) {
	var out bytes.Buffer
	sink := &recordingSink{}
	w := newWatcher(&out, sink)

	steps := []struct {
		rep *retarget.Report
		err error
	}{
		{report(100), nil},
		{report(100), nil},
		{nil, errors.New("connection refused")},
		{report(2116), nil},
		{report(2116), nil},
	}
	for _, s := range steps {
		if err := w.handle(s.rep, s.err); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	if len(sink.bodies) != 2 {
		t.Fatalf("notifications = %d, want 2", len(sink.bodies))
	}
	if !strings.Contains(sink.bodies[1], "Last retarget @ 2116") {
		t.Errorf("second notification = %q", sink.bodies[1])
	}
	if n := strings.Count(out.String(), "Current Diff:"); n != 4 {
		t.Errorf("printed %d reports, want 4", n)
	}
}

// refusingNode rejects every call the way a node with bad credentials does.
type refusingNode struct{ calls int }

func (n *refusingNode) GetBestBlockHash(context.Context) (*chainhash.Hash, error) {
	n.calls++
	return nil, fmt.Errorf("getbestblockhash: %w", rpcclient.ErrUnauthorized)
}

func (n *refusingNode) GetBlock(context.Context, string) (*btcjson.GetBlockVerboseResult, error) {
	return nil, rpcclient.ErrUnauthorized
}

func (n *refusingNode) GetNetworkHashPS(context.Context) (float64, error) {
	return 0, rpcclient.ErrUnauthorized
}

func TestWatcher_FirstFailureIsFatal(t *testing.T) {
	sink := &recordingSink{}
	w := newWatcher(&bytes.Buffer{}, sink)

	err := w.handle(nil, rpcclient.ErrUnauthorized)
	if !errors.Is(err, rpcclient.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if len(sink.bodies) != 0 {
		t.Errorf("notifications = %d, want 0", len(sink.bodies))
	}
}

func TestWatch_UnreachableNodeStops(t *testing.T) {
	node := &refusingNode{}
	reporter, err := retarget.NewReporter(node, retarget.Config{})
	if err != nil {
		t.Fatalf("NewReporter: %v", err)
	}
	w := newWatcher(&bytes.Buffer{}, &recordingSink{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = reporter.Watch(ctx, time.Millisecond, w.handle)
	if !errors.Is(err, rpcclient.ErrUnauthorized) {
		t.Fatalf("Watch = %v, want ErrUnauthorized", err)
	}
	if node.calls != 1 {
		t.Errorf("node calls = %d, want 1", node.calls)
	}
}

func TestSinkFor(t *testing.T) {
	if s := sinkFor(&config.RetargetConfig{}); s != notify.Nop {
		t.Errorf("no flags should give Nop, got %T", s)
	}
	if s := sinkFor(&config.RetargetConfig{NotifyCmd: "/bin/true"}); s == notify.Nop {
		t.Error("--notify-cmd should give a command sink")
	}
}
