package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

type testConfig struct {
	Address string `env:"CMD_TEST_ADDRESS" envDefault:"127.0.0.1:8080"`
	Mode    string `env:"CMD_TEST_MODE" envDefault:"server"`
}

func TestParseConfigReadsEnvAndFlags(t *testing.T) {
	t.Setenv("CMD_TEST_ADDRESS", "env:9000")
	t.Setenv("CMD_TEST_MODE", "env-mode")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfgRef := testConfig{}
	if err := ParseConfig(&cfgRef); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs.StringVar(&cfgRef.Address, "address", cfgRef.Address, "address")
	fs.StringVar(&cfgRef.Mode, "mode", cfgRef.Mode, "mode")

	if err := ParseArgs(fs, []string{"-address", "flag:9001"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if cfgRef.Address != "flag:9001" {
		t.Fatalf("expected flag value for address, got %q", cfgRef.Address)
	}
	if cfgRef.Mode != "env-mode" {
		t.Fatalf("expected env default mode, got %q", cfgRef.Mode)
	}
}

func TestParseConfigRejectsNilTarget(t *testing.T) {
	if err := ParseConfig[testConfig](nil); err == nil {
		t.Fatal("expected nil target error")
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, []string{}); err == nil {
		t.Fatal("expected parse args to reject nil parser")
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	if err := RunWithTelemetry(context.Background(), "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(context.Background(), ServiceSessions, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunWithTelemetryAndOptionsShutsDownAfterRun(t *testing.T) {
	var order []string
	opts := RunOptions{
		SetupTelemetry: func(context.Context, string) (func(context.Context) error, error) {
			order = append(order, "setup")
			return func(context.Context) error {
				order = append(order, "shutdown")
				return nil
			}, nil
		},
	}
	runErr := errors.New("stopped")
	err := RunWithTelemetryAndOptions(context.Background(), ServiceSessions, opts, func(context.Context) error {
		order = append(order, "run")
		return runErr
	})
	if !errors.Is(err, runErr) {
		t.Fatalf("err = %v, want %v", err, runErr)
	}
	want := []string{"setup", "run", "shutdown"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRunWithTelemetryAndOptionsReportsSetupFailure(t *testing.T) {
	opts := RunOptions{
		SetupTelemetry: func(context.Context, string) (func(context.Context) error, error) {
			return nil, errors.New("bad endpoint")
		},
	}
	called := false
	err := RunWithTelemetryAndOptions(context.Background(), ServiceSessions, opts, func(context.Context) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("expected setup error")
	}
	if called {
		t.Fatal("run must not be called after setup failure")
	}
}
