package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeInvalidState, status: http.StatusUnprocessableEntity, publicMsg: "operation not allowed in current state", detailsOK: true},
		{code: CodeInsufficientStock, status: http.StatusConflict, publicMsg: "insufficient stock", detailsOK: true},
		{code: CodeDuplicateOrder, status: http.StatusConflict, publicMsg: "duplicate order"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected", retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsMatchesWrappedCode(t *testing.T) {
	err := fmt.Errorf("placing order: %w", New(CodeDuplicateOrder, "dup"))
	if !Is(err, CodeDuplicateOrder) {
		t.Fatalf("expected wrapped duplicate order code to match")
	}
	if Is(err, CodeConflict) {
		t.Fatalf("unexpected match for conflict code")
	}
	if Is(nil, CodeConflict) {
		t.Fatalf("nil error should never match")
	}
}

func TestInsufficientStockNamesProducts(t *testing.T) {
	err := InsufficientStock([]string{"Laptop", "Mouse"})
	if err.Code() != CodeInsufficientStock {
		t.Fatalf("unexpected code %s", err.Code())
	}
	want := "The following products are unavailable given their respective requested quantities: Laptop, Mouse."
	if err.Message() != want {
		t.Fatalf("unexpected message %q", err.Message())
	}
	details, ok := err.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected map details, got %T", err.Details())
	}
	if names, _ := details["products"].([]string); len(names) != 2 {
		t.Fatalf("expected two product names, got %v", details["products"])
	}
}

func TestDumpFlattensPostgresErrors(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_products_name", Message: "duplicate key value"}
	err := Wrap(CodeConflict, fmt.Errorf("insert product: %w", pgErr), "product name taken")

	fields := Dump(err).Fields()
	if fields["error_code"] != CodeConflict {
		t.Fatalf("unexpected code %v", fields["error_code"])
	}
	if fields["pg_code"] != "23505" || fields["pg_constraint"] != "ux_products_name" {
		t.Fatalf("postgres fields missing: %v", fields)
	}
	if _, ok := fields["pg_table"]; ok {
		t.Fatalf("empty postgres fields should be omitted: %v", fields)
	}
	if chain, _ := fields["error_chain"].([]string); len(chain) != 3 {
		t.Fatalf("expected three chain entries, got %v", fields["error_chain"])
	}

	plain := Dump(stdErrors.New("boom")).Fields()
	if _, ok := plain["pg_code"]; ok || len(plain) != 1 {
		t.Fatalf("plain errors only carry the message: %v", plain)
	}
}
