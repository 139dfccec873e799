package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"vanish/cmd/identity"
	"vanish/cmd/internal/pgutil"
)

// SQLSource aggregates in PostgreSQL through database/sql and sqlx.
type SQLSource struct {
	db     *sqlx.DB
	drops  string
	views  string
	closer func() error
}

var _ Source = (*SQLSource)(nil)

// NewSQLSource reads from schema through db.
func NewSQLSource(db *sqlx.DB, schema string) (*SQLSource, error) {
	if db == nil {
		return nil, errors.New("report: nil db")
	}
	name, err := pgutil.CheckSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	return &SQLSource{
		db:    db,
		drops: pgutil.Ident(name, "drops"),
		views: pgutil.Ident(name, "views"),
	}, nil
}

// OpenSQLSource shares pool with the pgx stores through the pgx database/sql driver.
func OpenSQLSource(pool *pgxpool.Pool, schema string) (*SQLSource, error) {
	if pool == nil {
		return nil, errors.New("report: nil pool")
	}
	db := sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")
	src, err := NewSQLSource(db, schema)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	src.closer = db.Close
	return src, nil
}

// Close releases the database/sql handle. The underlying pool stays open.
func (s *SQLSource) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer()
}

type baseRow struct {
	ID            string         `db:"id"`
	OwnerID       sql.NullString `db:"owner_id"`
	CreatedAt     time.Time      `db:"created_at"`
	FirstViewedAt sql.NullTime   `db:"first_viewed_at"`
	ExhaustedAt   sql.NullTime   `db:"exhausted_at"`
	MaxViews      int            `db:"max_views"`
	UsedViews     int            `db:"used_views"`
}

func (s *SQLSource) DropBase(ctx context.Context, dropID string) (Base, error) {
	const op = "report.DropBase"

	var row baseRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, owner_id, created_at, first_viewed_at, exhausted_at, max_views, used_views
		   FROM `+s.drops+` WHERE id = $1`,
		dropID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Base{}, identity.NotFoundError{Op: op, Resource: "drop"}
		}
		return Base{}, identity.Unavailable(op, err)
	}

	b := Base{
		DropID:    row.ID,
		CreatedAt: row.CreatedAt.UTC(),
		MaxViews:  row.MaxViews,
		UsedViews: row.UsedViews,
	}
	if row.OwnerID.Valid {
		b.OwnerID = &row.OwnerID.String
	}
	if row.FirstViewedAt.Valid {
		t := row.FirstViewedAt.Time.UTC()
		b.FirstViewedAt = &t
	}
	if row.ExhaustedAt.Valid {
		t := row.ExhaustedAt.Time.UTC()
		b.ExhaustedAt = &t
	}
	return b, nil
}

type bucketRow struct {
	Bucket time.Time `db:"bucket"`
	Count  int       `db:"c"`
}

func (s *SQLSource) ViewsPerMinute(ctx context.Context, dropID string, since time.Time) ([]Bucket, error) {
	const op = "report.ViewsPerMinute"

	var rows []bucketRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT date_trunc('minute', viewed_at) AS bucket, count(*)::int AS c
		   FROM `+s.views+`
		  WHERE drop_id = $1 AND viewed_at >= $2
		  GROUP BY 1
		  ORDER BY 1`,
		dropID, since,
	)
	if err != nil {
		return nil, identity.Unavailable(op, err)
	}
	out := make([]Bucket, len(rows))
	for i, r := range rows {
		out[i] = Bucket{Start: r.Bucket.UTC(), Count: r.Count}
	}
	return out, nil
}

func (s *SQLSource) UniqueIPs(ctx context.Context, dropID string, since time.Time) (int, error) {
	const op = "report.UniqueIPs"

	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT count(DISTINCT ip)::int
		   FROM `+s.views+`
		  WHERE drop_id = $1 AND viewed_at >= $2 AND ip IS NOT NULL`,
		dropID, since,
	)
	if err != nil {
		return 0, identity.Unavailable(op, err)
	}
	return n, nil
}

type overviewRow struct {
	TotalDrops     int `db:"total_drops"`
	ExhaustedDrops int `db:"exhausted_drops"`
	TotalViews     int `db:"total_views"`
}

func (s *SQLSource) Overview(ctx context.Context, since time.Time) (Overview, error) {
	const op = "report.Overview"

	var row overviewRow
	err := s.db.GetContext(ctx, &row,
		`SELECT count(*)::int                                           AS total_drops,
		        COALESCE(sum(CASE WHEN exhausted_at IS NOT NULL THEN 1 ELSE 0 END), 0)::int AS exhausted_drops,
		        COALESCE(sum(used_views), 0)::int                       AS total_views
		   FROM `+s.drops+`
		  WHERE created_at >= $1`,
		since,
	)
	if err != nil {
		return Overview{}, identity.Unavailable(op, err)
	}
	return Overview(row), nil
}
