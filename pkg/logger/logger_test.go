package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{input: "debug", want: zerolog.DebugLevel},
		{input: "WARN", want: zerolog.WarnLevel},
		{input: "  error  ", want: zerolog.ErrorLevel},
		{input: "", want: zerolog.InfoLevel},
		{input: "nonsense", want: zerolog.InfoLevel},
	}
	for _, tc := range tests {
		if got := ParseLevel(tc.input); got != tc.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestContextFieldsFlowThrough(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf})

	ctx := logg.WithFarmID(context.Background(), "farm-123")
	ctx = logg.WithIdempotencyKey(ctx, "key-abc")
	logg.Info(ctx, "hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["farm_id"] != "farm-123" {
		t.Fatalf("missing farm_id field: %v", entry)
	}
	if entry["idempotency_key"] != "key-abc" {
		t.Fatalf("missing idempotency_key field: %v", entry)
	}
	if entry["service"] != "test" {
		t.Fatalf("missing service field: %v", entry)
	}
}

func TestNilContextFallsBackToBase(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf})

	logg.Info(nil, "no context")

	if buf.Len() == 0 {
		t.Fatal("expected log output for nil context")
	}
}
