package pagination

import (
	"encoding/base64"
	"testing"
	"time"
)

func TestNormalizeLimit(t *testing.T) {
	cases := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "zero uses default", limit: 0, want: DefaultLimit},
		{name: "negative uses default", limit: -5, want: DefaultLimit},
		{name: "within range", limit: 40, want: 40},
		{name: "over max clamps", limit: 500, want: MaxLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeLimit(tc.limit); got != tc.want {
				t.Fatalf("expected %d got %d", tc.want, got)
			}
		})
	}
}

func TestCursorRoundTrip(t *testing.T) {
	original := Cursor{
		OccurredAt: time.Date(2025, 6, 15, 10, 30, 0, 123456789, time.UTC),
		Seq:        42,
	}

	encoded := EncodeCursor(original)
	parsed, err := ParseCursor(encoded)
	if err != nil {
		t.Fatalf("parse cursor: %v", err)
	}
	if !parsed.OccurredAt.Equal(original.OccurredAt) {
		t.Fatalf("timestamp mismatch: %s vs %s", parsed.OccurredAt, original.OccurredAt)
	}
	if parsed.Seq != original.Seq {
		t.Fatalf("seq mismatch: %d vs %d", parsed.Seq, original.Seq)
	}
}

func TestParseCursorErrors(t *testing.T) {
	if cursor, err := ParseCursor("  "); err != nil || cursor != nil {
		t.Fatalf("blank cursor should be nil, got %v %v", cursor, err)
	}
	if _, err := ParseCursor("!!!not-base64!!!"); err == nil {
		t.Fatalf("expected error for invalid base64")
	}
	if _, err := ParseCursor("bm8tc2VwYXJhdG9y"); err == nil {
		t.Fatalf("expected error for missing separator")
	}
	badSeq := base64.StdEncoding.EncodeToString([]byte("2025-06-15T10:30:00Z|not-a-seq"))
	if _, err := ParseCursor(badSeq); err == nil {
		t.Fatalf("expected error for non-numeric seq")
	}
}

func TestWindowContains(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)
	window := Window{From: &from, To: &to}

	if !window.Contains(from) {
		t.Fatalf("lower bound should be inclusive")
	}
	if !window.Contains(to) {
		t.Fatalf("upper bound should be inclusive")
	}
	if window.Contains(from.Add(-time.Second)) {
		t.Fatalf("before window should be excluded")
	}
	if window.Contains(to.Add(time.Second)) {
		t.Fatalf("after window should be excluded")
	}

	open := Window{}
	if !open.Contains(time.Now()) {
		t.Fatalf("open window should contain everything")
	}
}
