package pgutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestCheckSchema(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "vanish", want: "vanish"},
		{in: "  vanish_it_01  ", want: "vanish_it_01"},
		{in: "", wantErr: true},
		{in: "bad-name", wantErr: true},
		{in: `x"; DROP TABLE users; --`, wantErr: true},
		{in: "1abc", wantErr: true},
	}

	for _, tc := range cases {
		got, err := CheckSchema(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("CheckSchema(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("CheckSchema(%q)=(%q,%v) want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestIdent(t *testing.T) {
	t.Parallel()

	if got := Ident("vanish", "drops"); got != `"vanish"."drops"` {
		t.Fatalf("Ident=%s", got)
	}
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "Drops_Token_Idx"})
	if c, ok := UniqueViolation(unique); !ok || c != "drops_token_idx" {
		t.Fatalf("UniqueViolation=(%q,%v)", c, ok)
	}
	if IsForeignKeyViolation(unique) {
		t.Fatalf("unique violation misclassified as FK")
	}

	fk := &pgconn.PgError{Code: "23503"}
	if !IsForeignKeyViolation(fk) {
		t.Fatalf("expected FK violation")
	}
	if _, ok := UniqueViolation(errors.New("boom")); ok {
		t.Fatalf("plain error misclassified")
	}
}
