package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := stdErrors.New("boom")
	err := Wrap(CodeInternal, cause, "engine blew up")

	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to satisfy errors.Is")
	}
	if err.Code() != CodeInternal {
		t.Fatalf("unexpected code: %s", err.Code())
	}
}

func TestAsUnwrapsNestedError(t *testing.T) {
	t.Parallel()

	inner := New(CodeShortage, "not enough speakers")
	outer := fmt.Errorf("reserve failed: %w", inner)

	typed := As(outer)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeShortage {
		t.Fatalf("unexpected code: %s", typed.Code())
	}
}

func TestHasCode(t *testing.T) {
	t.Parallel()

	err := New(CodeDuplicateScan, "tag seen recently")
	if !HasCode(err, CodeDuplicateScan) {
		t.Fatal("expected HasCode to match")
	}
	if HasCode(err, CodeShortage) {
		t.Fatal("expected HasCode mismatch")
	}
	if HasCode(nil, CodeShortage) {
		t.Fatal("nil error should never match")
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	t.Parallel()

	meta := MetadataFor(Code("NOPE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestDetailsRoundTrip(t *testing.T) {
	t.Parallel()

	details := map[string]any{"item": "speaker", "requested": 3, "available": 1}
	err := New(CodeShortage, "insufficient stock").WithDetails(details)
	if err.Details() == nil {
		t.Fatal("expected details payload")
	}
}
