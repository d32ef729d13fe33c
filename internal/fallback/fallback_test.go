package fallback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	klog "github.com/Klingon-tech/coinrpc-tools/internal/log"
)

func failing(name string, calls *[]string) Step[int] {
	return Step[int]{Name: name, Run: func(context.Context) (int, error) {
		*calls = append(*calls, name)
		return 0, errors.New(name + " down")
	}}
}

func succeeding(name string, v int, calls *[]string) Step[int] {
	return Step[int]{Name: name, Run: func(context.Context) (int, error) {
		*calls = append(*calls, name)
		return v, nil
	}}
}

func TestFirst_ShortCircuits(t *testing.T) {
	var calls []string
	res, err := First(context.Background(),
		failing("a", &calls),
		succeeding("b", 2, &calls),
		succeeding("c", 3, &calls),
	)
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if res.Value != 2 || res.Step != "b" {
		t.Errorf("result = %+v, want value 2 from b", res)
	}
	if strings.Join(calls, ",") != "a,b" {
		t.Errorf("calls = %v, want [a b]", calls)
	}
}

func TestFirst_AllFail(t *testing.T) {
	var calls []string
	_, err := First(context.Background(), failing("a", &calls), failing("b", &calls))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "a: a down") || !strings.Contains(err.Error(), "b: b down") {
		t.Errorf("error should mention both steps: %v", err)
	}
}

func TestFirst_NoSteps(t *testing.T) {
	if _, err := First[int](context.Background()); !errors.Is(err, ErrNoSteps) {
		t.Errorf("err = %v, want ErrNoSteps", err)
	}
}

func TestFirst_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls []string
	_, err := First(ctx, succeeding("a", 1, &calls))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(calls) != 0 {
		t.Errorf("no step should run, got %v", calls)
	}
}

func TestValue(t *testing.T) {
	var calls []string
	res, err := First(context.Background(), failing("a", &calls), Value("floor", 7))
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if res.Value != 7 || res.Step != "floor" {
		t.Errorf("result = %+v", res)
	}
}

func TestFirst_LogsFailedSteps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool.log")
	if err := klog.Init("debug", true, path); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = klog.Init("info", false, "") })

	var calls []string
	if _, err := First(context.Background(), failing("smart", &calls), succeeding("raw", 1, &calls)); err != nil {
		t.Fatalf("First: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"component":"fallback"`) || !strings.Contains(string(data), `"step":"smart"`) {
		t.Errorf("log file = %q", data)
	}
}
