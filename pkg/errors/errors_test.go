package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("disk full")
	err := Wrap(CodeStorageWrite, cause, "flush notification state")

	if err.Code() != CodeStorageWrite {
		t.Fatalf("expected storage write code, got %s", err.Code())
	}
	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to survive errors.Is")
	}
}

func TestWrapNilCauseBehavesLikeNew(t *testing.T) {
	err := Wrap(CodeMalformedPayload, nil, "missing notification block")
	if err.Unwrap() != nil {
		t.Fatal("expected nil cause")
	}
	if err.Message() != "missing notification block" {
		t.Fatalf("unexpected message %q", err.Message())
	}
}

func TestAsFindsTypedErrorInChain(t *testing.T) {
	inner := New(CodeUpstreamSync, "backend did not ack token")
	wrapped := Wrap(CodeDependency, inner, "sync token")

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeDependency {
		t.Fatalf("expected outermost code, got %s", typed.Code())
	}
}

func TestAsReturnsNilForPlainError(t *testing.T) {
	if As(stdErrors.New("plain")) != nil {
		t.Fatal("expected nil for untyped error")
	}
}

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("BOGUS"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(New(CodeStorageWrite, "write failed")) {
		t.Fatal("storage write failures should be retryable")
	}
	if IsRetryable(New(CodeMalformedPayload, "bad shape")) {
		t.Fatal("malformed payloads are never retryable")
	}
	if IsRetryable(stdErrors.New("plain")) {
		t.Fatal("untyped errors are not retryable")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	err := Wrap(CodeStorageWrite, stdErrors.New("io failure"), "persist records")
	dump := Dump(err)

	if dump.Code != CodeStorageWrite {
		t.Fatalf("expected storage code in dump, got %s", dump.Code)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected 2 chain entries, got %d", len(dump.Chain))
	}
}
