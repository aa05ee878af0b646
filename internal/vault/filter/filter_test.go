package filter

import (
	"testing"

	apperrors "github.com/louisbranch/legacyvault/internal/platform/errors"
)

func TestParseTransferFilterEmpty(t *testing.T) {
	cond, err := ParseTransferFilter("   ")
	if err != nil {
		t.Fatalf("parse empty filter: %v", err)
	}
	if !cond.Empty() {
		t.Fatalf("expected empty condition, got %q", cond.Clause)
	}
}

func TestParseTransferFilterEquality(t *testing.T) {
	cond, err := ParseTransferFilter(`transfer_status = "pending"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "transfer_status = ?" {
		t.Fatalf("clause = %q", cond.Clause)
	}
	if len(cond.Params) != 1 || cond.Params[0] != "pending" {
		t.Fatalf("params = %v, want [pending]", cond.Params)
	}
}

func TestParseTransferFilterConjunction(t *testing.T) {
	cond, err := ParseTransferFilter(`transfer_status = "pending" AND asset_id = "asset-1"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(transfer_status = ? AND asset_id = ?)" {
		t.Fatalf("clause = %q", cond.Clause)
	}
	if len(cond.Params) != 2 {
		t.Fatalf("params = %v, want 2 values", cond.Params)
	}
}

func TestParseTransferFilterUnknownField(t *testing.T) {
	_, err := ParseTransferFilter(`secret_column = "x"`)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if got := apperrors.CodeOf(err); got != apperrors.CodeFilterInvalid {
		t.Fatalf("code = %s, want %s", got, apperrors.CodeFilterInvalid)
	}
}

func TestParseTransferFilterMalformed(t *testing.T) {
	_, err := ParseTransferFilter(`transfer_status = `)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if got := apperrors.CodeOf(err); got != apperrors.CodeFilterInvalid {
		t.Fatalf("code = %s, want %s", got, apperrors.CodeFilterInvalid)
	}
}
