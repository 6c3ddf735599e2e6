package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestWrapPreservesCauseAndCode(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := fmt.Errorf("save: %w", Wrap(CodeDependency, cause, "persist quotation"))

	typed := As(err)
	if typed == nil {
		t.Fatal("expected typed error in chain")
	}
	if typed.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", typed.Code())
	}
	if !IsCode(err, CodeDependency) {
		t.Fatal("expected IsCode to match")
	}
	if IsCode(err, CodeValidation) {
		t.Fatal("expected IsCode to reject other codes")
	}
}

func TestMetadataFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("UNKNOWN"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected 500 fallback, got %d", meta.HTTPStatus)
	}
	if MetadataFor(CodeImportFailed).HTTPStatus != http.StatusUnprocessableEntity {
		t.Fatal("expected import rejection to map to 422")
	}
}

func TestDumpExtractsPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "quotation_documents_pkey", TableName: "quotation_documents"}
	err := Wrap(CodeDependency, pgErr, "save quotation")

	d := Dump(err)
	if d.Code != CodeDependency || !d.Retryable {
		t.Fatalf("unexpected code metadata: %+v", d)
	}
	if d.PGCode != "23505" || d.PGTable != "quotation_documents" {
		t.Fatalf("expected pg details, got %+v", d)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %v", d.Chain)
	}

	fields := d.Fields()
	if fields["pg_constraint"] != "quotation_documents_pkey" {
		t.Fatalf("expected pg_constraint in fields, got %v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatal("unexpected pg_column field")
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || d.Chain != nil {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}
