package main

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestToFields(t *testing.T) {
	tests := []struct {
		name  string
		input []any
		want  []string
	}{
		{"empty input", []any{}, nil},
		{"pairs", []any{"a", "x", "b", 123, "c", true}, []string{"a", "b", "c"}},
		{"time and duration", []any{"t", time.Now(), "d", time.Second}, []string{"t", "d"}},
		{"error value", []any{"error", errors.New("boom")}, []string{"error"}},
		{"odd number of args", []any{"key1", "val1", "key2"}, []string{"key1", "arg#2"}},
		{"non-string key", []any{123, "value"}, []string{"123"}},
		{"nil value", []any{"a", nil}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := toFields(tt.input...)
			if len(fields) != len(tt.want) {
				t.Fatalf("expected %d fields, got %d: %+v", len(tt.want), len(fields), fields)
			}
			for i, f := range fields {
				if f.Key != tt.want[i] {
					t.Errorf("field %d: expected key %q, got %q", i, tt.want[i], f.Key)
				}
			}
		})
	}
}

func TestWarnAttachesErrorValue(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &zapLogger{core: zap.New(core)}

	l.Warn("mqtt connection lost", "error", errors.New("EOF"))

	if ctx := logs.All()[0].ContextMap(); ctx["error"] != "EOF" {
		t.Fatalf("expected error field, got %v", ctx)
	}
}

func TestZapLoggerErrorAttachesError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &zapLogger{core: zap.New(core)}

	l.WithName("tier").WithValues("sensor", "home").Error(errors.New("timeout"), "Error fetching data", "resource", "http://x")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.LoggerName != "tier" {
		t.Errorf("expected logger name tier, got %q", e.LoggerName)
	}
	ctx := e.ContextMap()
	if ctx["error"] != "timeout" || ctx["resource"] != "http://x" || ctx["sensor"] != "home" {
		t.Errorf("unexpected context: %v", ctx)
	}
}

func TestLogOptionsValidate(t *testing.T) {
	o := NewLogOptions()
	if errs := o.Validate(); len(errs) != 0 {
		t.Fatalf("defaults should validate, got %v", errs)
	}
	o.Level = "loud"
	o.Format = "xml"
	if errs := o.Validate(); len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	opts := NewLogOptions()
	opts.Level = "loud"
	if _, err := newLogger(opts); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}
