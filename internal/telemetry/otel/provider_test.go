package otel

import (
	"context"
	"errors"
	"testing"
)

func TestEnvBool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value     string
		defaultOn bool
		want      bool
	}{
		{value: "", defaultOn: false, want: false},
		{value: "", defaultOn: true, want: true},
		{value: "1", defaultOn: false, want: true},
		{value: "true", defaultOn: false, want: true},
		{value: "ON", defaultOn: false, want: true},
		{value: "enabled", defaultOn: false, want: true},
		{value: "0", defaultOn: true, want: false},
		{value: "off", defaultOn: true, want: false},
		{value: "disabled", defaultOn: true, want: false},
		{value: "banana", defaultOn: true, want: true},
		{value: "banana", defaultOn: false, want: false},
	}

	for _, tt := range tests {
		if got := EnvBool(tt.value, tt.defaultOn); got != tt.want {
			t.Errorf("EnvBool(%q, %v) = %v, want %v", tt.value, tt.defaultOn, got, tt.want)
		}
	}
}

func TestSetupDisabledIsInert(t *testing.T) {
	t.Parallel()

	p, err := Setup(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}

	inst := p.Stages()
	if inst == nil {
		t.Fatal("disabled provider must still hand out instruments")
	}

	// The full handle lifecycle must be a no-op, including on errors.
	h := inst.StageStarted(context.Background(), "build")
	if h.Context() == nil {
		t.Fatal("handle context must not be nil")
	}
	h.End(errors.New("boom"))

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
}

func TestSetupMetricsOnly(t *testing.T) {
	t.Parallel()

	p, err := Setup(context.Background(), Config{EnableMetrics: true})
	if err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}
	defer p.Shutdown(context.Background())

	inst := p.Stages()
	if inst == nil || !inst.meterEnabled {
		t.Fatal("metrics-enabled provider must carry meter instruments")
	}
	if inst.traceEnabled {
		t.Fatal("traces were not requested")
	}

	h := inst.StageStarted(context.Background(), "database")
	h.End(nil)
	h2 := inst.StageStarted(context.Background(), "database")
	h2.End(errors.New("boom"))
}

func TestShutdownIsIdempotent(t *testing.T) {
	t.Parallel()

	p, err := Setup(context.Background(), Config{EnableMetrics: true})
	if err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}

func TestNilHandlesAreSafe(t *testing.T) {
	t.Parallel()

	var inst *StageInstruments
	h := inst.StageStarted(context.Background(), "verify")
	h.End(nil)

	var nilHandle *StageHandle
	nilHandle.End(nil)
	if nilHandle.Context() == nil {
		t.Fatal("nil handle must fall back to a background context")
	}

	var p *Provider
	if p.Stages() != nil {
		t.Fatal("nil provider must return nil instruments")
	}
}
