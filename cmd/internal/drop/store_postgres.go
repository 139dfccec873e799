package drop

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vanish/cmd/identity"
	"vanish/cmd/internal/pgutil"
)

// PostgresStore implements Store over PostgreSQL.
//
// Consume is a single UPDATE ... WHERE <full predicate> RETURNING plus the view insert in the same
// READ COMMITTED transaction. A concurrent consumer blocked on the row lock re-evaluates the
// predicate against the committed row, so the last view cannot be spent twice.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

var _ Store = (*PostgresStore)(nil)

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the Postgres schema (default "vanish").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		name, err := pgutil.CheckSchema(schema)
		if err != nil {
			return fmt.Errorf("drop: %w", err)
		}
		s.schema = name
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore. The pool is owned by the caller.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: pgutil.DefaultSchema}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("drop: nil pool")
	}
	return st, nil
}

const dropColumns = `id, token, owner_id, kind, title, body, ttl_ms, max_views, used_views,
       created_at, expires_at, revoked_at, first_viewed_at, last_viewed_at, exhausted_at`

func (s *PostgresStore) drops() string { return pgutil.Ident(s.schema, "drops") }
func (s *PostgresStore) views() string { return pgutil.Ident(s.schema, "views") }

func (s *PostgresStore) Insert(ctx context.Context, d Drop) error {
	const op = "drop.Insert"

	if s == nil || s.pool == nil {
		return identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "nil store"}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.drops()+` (id, token, owner_id, kind, title, body, ttl_ms, max_views, used_views, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10)`,
		d.ID, d.Token, d.OwnerID, string(d.Kind()), d.Title, d.Payload.Content(),
		d.TTL.Milliseconds(), d.MaxViews, d.CreatedAt, d.ExpiresAt,
	)
	if err != nil {
		if c, ok := pgutil.UniqueViolation(err); ok {
			if c == "drops_pkey" {
				return identity.ConflictError{Op: op, Field: "id"}
			}
			return identity.ConflictError{Op: op, Field: "token"}
		}
		if pgutil.IsForeignKeyViolation(err) {
			return identity.NotFoundError{Op: op, Resource: "owner"}
		}
		return identity.Unavailable(op, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Drop, error) {
	const op = "drop.Get"

	if s == nil || s.pool == nil {
		return Drop{}, identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "nil store"}
	}

	d, err := scanDrop(s.pool.QueryRow(ctx, `SELECT `+dropColumns+` FROM `+s.drops()+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Drop{}, identity.NotFoundError{Op: op, Resource: "drop"}
		}
		return Drop{}, identity.Unavailable(op, err)
	}
	return d, nil
}

// statusPredicate mirrors Drop.Status for SQL filtering. now binds the evaluation instant.
func statusPredicate(st Status, now func() string) string {
	if st == StatusRevoked {
		return `revoked_at IS NOT NULL`
	}
	at := now()
	switch st {
	case StatusExpired:
		return `revoked_at IS NULL AND expires_at <= ` + at
	case StatusExhausted:
		return `revoked_at IS NULL AND expires_at > ` + at + ` AND used_views >= max_views`
	default:
		return `revoked_at IS NULL AND expires_at > ` + at + ` AND used_views < max_views`
	}
}

func (s *PostgresStore) List(ctx context.Context, q ListQuery) ([]Drop, error) {
	const op = "drop.List"

	if s == nil || s.pool == nil {
		return nil, identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "nil store"}
	}
	if !q.All && q.OwnerID == nil {
		return []Drop{}, nil
	}

	var (
		args  []any
		where []string
	)
	bind := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if q.Status != nil {
		where = append(where, statusPredicate(*q.Status, func() string { return bind(q.Now) }))
	}
	if !q.All {
		where = append(where, `owner_id = `+bind(*q.OwnerID))
	}

	sql := `SELECT ` + dropColumns + ` FROM ` + s.drops()
	if len(where) > 0 {
		sql += ` WHERE (` + strings.Join(where, `) AND (`) + `)`
	}
	sql += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, identity.Unavailable(op, err)
	}
	defer rows.Close()

	out := make([]Drop, 0)
	for rows.Next() {
		d, err := scanDrop(rows)
		if err != nil {
			return nil, identity.Unavailable(op, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, identity.Unavailable(op, err)
	}
	return out, nil
}

func (s *PostgresStore) Revoke(ctx context.Context, id string, now time.Time) (bool, error) {
	const op = "drop.Revoke"

	if s == nil || s.pool == nil {
		return false, identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "nil store"}
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+s.drops()+` SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		id, now,
	)
	if err != nil {
		return false, identity.Unavailable(op, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Consume(ctx context.Context, in ConsumeRecord) (Drop, error) {
	const op = "drop.Consume"

	if s == nil || s.pool == nil {
		return Drop{}, identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "nil store"}
	}

	tx, err := s.pool.BeginTx(ctx, pgutil.ReadWrite)
	if err != nil {
		return Drop{}, identity.Unavailable(op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	d, err := scanDrop(tx.QueryRow(ctx,
		`UPDATE `+s.drops()+`
		    SET used_views      = used_views + 1,
		        first_viewed_at = COALESCE(first_viewed_at, $2),
		        last_viewed_at  = $2,
		        exhausted_at    = CASE WHEN used_views + 1 >= max_views
		                               THEN COALESCE(exhausted_at, $2)
		                               ELSE exhausted_at END
		  WHERE token = $1
		    AND revoked_at IS NULL
		    AND expires_at > $2
		    AND used_views < max_views
		RETURNING `+dropColumns,
		in.Token, in.Now,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Drop{}, identity.OpError{Op: op, Kind: identity.ErrNotActive}
		}
		return Drop{}, identity.Unavailable(op, err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO `+s.views()+` (id, drop_id, viewed_at, ua, ip) VALUES ($1, $2, $3, $4, $5)`,
		in.View.ID, d.ID, in.Now, in.View.UserAgent, in.View.IP,
	); err != nil {
		return Drop{}, identity.Unavailable(op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Drop{}, identity.Unavailable(op, err)
	}
	return d, nil
}

func scanDrop(row pgx.Row) (Drop, error) {
	var (
		d       Drop
		kind    string
		content string
		ttlMs   int64
	)
	if err := row.Scan(
		&d.ID, &d.Token, &d.OwnerID, &kind, &d.Title, &content, &ttlMs, &d.MaxViews, &d.UsedViews,
		&d.CreatedAt, &d.ExpiresAt, &d.RevokedAt, &d.FirstViewedAt, &d.LastViewedAt, &d.ExhaustedAt,
	); err != nil {
		return Drop{}, err
	}
	d.Payload = payloadOf(Kind(kind), content)
	d.TTL = time.Duration(ttlMs) * time.Millisecond
	d.CreatedAt = d.CreatedAt.UTC()
	d.ExpiresAt = d.ExpiresAt.UTC()
	for _, p := range []**time.Time{&d.RevokedAt, &d.FirstViewedAt, &d.LastViewedAt, &d.ExhaustedAt} {
		if *p != nil {
			t := (*p).UTC()
			*p = &t
		}
	}
	return d, nil
}
