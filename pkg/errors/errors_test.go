package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataFor_KnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
	}{
		{CodeValidation, http.StatusBadRequest, false},
		{CodeIdempotency, http.StatusConflict, false},
		{CodeInsufficientFunds, http.StatusUnprocessableEntity, false},
		{CodePartialSettlement, http.StatusBadGateway, true},
		{CodeDependencyTimeout, http.StatusGatewayTimeout, true},
		{CodeDependency, http.StatusServiceUnavailable, true},
	}
	for _, tc := range tests {
		meta := MetadataFor(tc.code)
		if meta.HTTPStatus != tc.status {
			t.Fatalf("%s: status = %d, want %d", tc.code, meta.HTTPStatus, tc.status)
		}
		if meta.Retryable != tc.retryable {
			t.Fatalf("%s: retryable = %v, want %v", tc.code, meta.Retryable, tc.retryable)
		}
	}
}

func TestMetadataFor_UnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("NOT_A_CODE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unexpected status for unknown code: %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("socket closed")
	err := Wrap(CodeDependency, cause, "ocr call failed")

	if !stdErrors.Is(err, cause) {
		t.Fatal("wrapped error should match its cause with errors.Is")
	}
	typed := As(fmt.Errorf("outer: %w", err))
	if typed == nil {
		t.Fatal("As should find the typed error through wrapping")
	}
	if typed.Code() != CodeDependency {
		t.Fatalf("code = %s, want %s", typed.Code(), CodeDependency)
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(New(CodeValidation, "bad input")) {
		t.Fatal("validation errors are not retryable")
	}
	if !Retryable(New(CodeDependencyTimeout, "ocr timed out")) {
		t.Fatal("timeouts are retryable")
	}
	if Retryable(stdErrors.New("plain")) {
		t.Fatal("untyped errors are not retryable")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(CodePartialSettlement, "withdrawal pending").
		WithDetails(map[string]any{"step": "withdrawal"})
	details, ok := err.Details().(map[string]any)
	if !ok || details["step"] != "withdrawal" {
		t.Fatalf("unexpected details: %v", err.Details())
	}
}

func TestDumpCollectsChain(t *testing.T) {
	cause := stdErrors.New("root")
	err := Wrap(CodeDependency, cause, "middle")

	dump := Dump(fmt.Errorf("top: %w", err))
	if dump.Code != CodeDependency {
		t.Fatalf("dump code = %s", dump.Code)
	}
	if len(dump.Chain) < 3 {
		t.Fatalf("expected full chain, got %v", dump.Chain)
	}
}
