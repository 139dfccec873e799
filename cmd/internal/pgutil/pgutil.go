// Package pgutil holds the small PostgreSQL helpers shared by the pgx-backed stores.
package pgutil

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultSchema is the schema every store and the migrator use unless told otherwise.
const DefaultSchema = "vanish"

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ReadWrite is the transaction mode used for every conditional transition.
// READ COMMITTED is sufficient: a conditional UPDATE re-checks its WHERE clause
// against the latest committed row version after acquiring the row lock.
var ReadWrite = pgx.TxOptions{
	IsoLevel:   pgx.ReadCommitted,
	AccessMode: pgx.ReadWrite,
}

// ReadOnly is used by reporting queries.
var ReadOnly = pgx.TxOptions{
	IsoLevel:   pgx.ReadCommitted,
	AccessMode: pgx.ReadOnly,
}

// ValidIdent reports whether s is a plain PostgreSQL identifier.
func ValidIdent(s string) bool {
	return identRe.MatchString(s)
}

// CheckSchema trims and validates a schema name.
func CheckSchema(schema string) (string, error) {
	schema = strings.TrimSpace(schema)
	if schema == "" {
		return "", fmt.Errorf("pgutil: empty schema")
	}
	if !ValidIdent(schema) {
		return "", fmt.Errorf("pgutil: invalid schema identifier %q", schema)
	}
	return schema, nil
}

// Ident safely quotes a schema-qualified identifier: "schema"."name".
func Ident(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

// UniqueViolation returns the violated constraint name when err is a unique_violation.
func UniqueViolation(err error) (constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != codeUniqueViolation {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(pgErr.ConstraintName)), true
}

// IsForeignKeyViolation reports whether err is a foreign_key_violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation
}
