package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vanish/cmd/internal/pgutil"
)

// PostgresStore implements Store over PostgreSQL.
//
// Design notes:
//   - The pgx pool is owned by the caller; this store must NOT close it.
//   - Schema/table identifiers are quoted via pgx.Identifier.
//   - Composite transitions run in one READ COMMITTED transaction; the conditional UPDATE or the
//     singleton insert is the linearization point.
//   - Unique violations are mapped to ConflictError by constraint name.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

var _ Store = (*PostgresStore)(nil)

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the Postgres schema used by the identity store (default "vanish").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		name, err := pgutil.CheckSchema(schema)
		if err != nil {
			return fmt.Errorf("identity: %w", err)
		}
		s.schema = name
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: pgutil.DefaultSchema,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) table(name string) string {
	return pgutil.Ident(s.schema, name)
}

const userColumns = `id, email, display_name, role, created_at`

func (s *PostgresStore) BootstrapOwner(ctx context.Context, in BootstrapRecord) (User, error) {
	const op = "identity.BootstrapOwner"

	if s == nil || s.pool == nil {
		return User{}, nilStore(op)
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if err := validBootstrap(op, in); err != nil {
		return User{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgutil.ReadWrite)
	if err != nil {
		return User{}, Unavailable(op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.insertUser(ctx, tx, in.Owner); err != nil {
		return User{}, s.classify(op, err, "owner")
	}

	// The singleton primary key serializes racing bootstraps; the NOT EXISTS guard rejects a
	// bootstrap after invited users already exist.
	tag, err := tx.Exec(ctx,
		`INSERT INTO `+s.table("bootstrap")+` (singleton, owner_id, created_at)
		 SELECT true, $1, $2
		 WHERE NOT EXISTS (SELECT 1 FROM `+s.table("users")+` WHERE id <> $1)`,
		in.Owner.User.ID, in.Owner.User.CreatedAt,
	)
	if err != nil {
		return User{}, s.classify(op, err, "owner")
	}
	if tag.RowsAffected() != 1 {
		return User{}, ConflictError{Op: op, Field: "owner"}
	}

	if err := s.insertSession(ctx, tx, in.Session); err != nil {
		return User{}, s.classify(op, err, "session")
	}

	if err := tx.Commit(ctx); err != nil {
		return User{}, s.classify(op, err, "owner")
	}
	return normalizedUser(in.Owner.User), nil
}

func (s *PostgresStore) RedeemInvite(ctx context.Context, in RedeemRecord) (User, Invite, error) {
	const op = "identity.RedeemInvite"

	if s == nil || s.pool == nil {
		return User{}, Invite{}, nilStore(op)
	}
	if err := ctx.Err(); err != nil {
		return User{}, Invite{}, err
	}
	if err := validRedeem(op, in); err != nil {
		return User{}, Invite{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgutil.ReadWrite)
	if err != nil {
		return User{}, Invite{}, Unavailable(op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// used_by references a user inserted below; the FK is deferred to commit.
	inv, err := scanInvite(tx.QueryRow(ctx,
		`UPDATE `+s.table("invites")+`
		    SET used_by = $2, used_at = $3
		  WHERE token_hash = $1
		    AND used_at IS NULL
		    AND expires_at > $3
		RETURNING id, token_hash, created_by, created_at, expires_at, max_uses, used_by, used_at`,
		in.TokenHash, in.User.User.ID, in.Now,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, Invite{}, notActive(op, "invite unknown, used or expired")
		}
		return User{}, Invite{}, Unavailable(op, err)
	}

	if err := s.insertUser(ctx, tx, in.User); err != nil {
		return User{}, Invite{}, s.classify(op, err, "user")
	}
	if err := s.insertSession(ctx, tx, in.Session); err != nil {
		return User{}, Invite{}, s.classify(op, err, "session")
	}

	if err := tx.Commit(ctx); err != nil {
		return User{}, Invite{}, s.classify(op, err, "user")
	}
	return normalizedUser(in.User.User), inv, nil
}

func (s *PostgresStore) CreateInvite(ctx context.Context, in Invite) (Invite, error) {
	const op = "identity.CreateInvite"

	if s == nil || s.pool == nil {
		return Invite{}, nilStore(op)
	}
	if err := ctx.Err(); err != nil {
		return Invite{}, err
	}
	if err := validInvite(op, in); err != nil {
		return Invite{}, err
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table("invites")+` (id, token_hash, created_by, created_at, expires_at, max_uses)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		in.ID, in.TokenHash, in.CreatedBy, in.CreatedAt, in.ExpiresAt, in.MaxUses,
	)
	if err != nil {
		return Invite{}, s.classify(op, err, "invite")
	}
	in.UsedBy, in.UsedAt = nil, nil
	return in, nil
}

func (s *PostgresStore) GetInviteByTokenHash(ctx context.Context, tokenHash string) (Invite, error) {
	const op = "identity.GetInviteByTokenHash"

	if s == nil || s.pool == nil {
		return Invite{}, nilStore(op)
	}
	if err := ctx.Err(); err != nil {
		return Invite{}, err
	}

	inv, err := scanInvite(s.pool.QueryRow(ctx,
		`SELECT id, token_hash, created_by, created_at, expires_at, max_uses, used_by, used_at
		   FROM `+s.table("invites")+`
		  WHERE token_hash = $1`,
		tokenHash,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invite{}, NotFoundError{Op: op, Resource: "invite"}
		}
		return Invite{}, Unavailable(op, err)
	}
	return inv, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, in Session) error {
	const op = "identity.CreateSession"

	if s == nil || s.pool == nil {
		return nilStore(op)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validSession(op, in, in.UserID); err != nil {
		return err
	}

	if err := s.insertSession(ctx, s.pool, in); err != nil {
		return s.classify(op, err, "session")
	}
	return nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, digest string) error {
	const op = "identity.DeleteSession"

	if s == nil || s.pool == nil {
		return nilStore(op)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM `+s.table("sessions")+` WHERE id_hash = $1`, digest); err != nil {
		return Unavailable(op, err)
	}
	return nil
}

func (s *PostgresStore) ResolveSession(ctx context.Context, digest string, now time.Time) (User, error) {
	const op = "identity.ResolveSession"

	if s == nil || s.pool == nil {
		return User{}, nilStore(op)
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT u.id, u.email, u.display_name, u.role, u.created_at
		   FROM `+s.table("sessions")+` s
		   JOIN `+s.table("users")+` u ON u.id = s.user_id
		  WHERE s.id_hash = $1
		    AND s.expires_at > $2`,
		digest, now,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, notActive(op, "session missing or expired")
		}
		return User{}, Unavailable(op, err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.GetUserAuthByEmail"

	if s == nil || s.pool == nil {
		return UserAuth{}, nilStore(op)
	}
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}

	var (
		out  UserAuth
		role string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+`, password_hash FROM `+s.table("users")+` WHERE email = $1`,
		NormalizeEmail(email),
	).Scan(&out.User.ID, &out.User.Email, &out.User.DisplayName, &role, &out.User.CreatedAt, &out.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
		}
		return UserAuth{}, Unavailable(op, err)
	}
	out.User.Role = Role(role)
	out.User.CreatedAt = out.User.CreatedAt.UTC()
	return out, nil
}

// ---- helpers ----

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *PostgresStore) insertUser(ctx context.Context, tx execer, ua UserAuth) error {
	u := normalizedUser(ua.User)
	_, err := tx.Exec(ctx,
		`INSERT INTO `+s.table("users")+` (id, email, display_name, role, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.DisplayName, string(u.Role), ua.PasswordHash, u.CreatedAt,
	)
	return err
}

func (s *PostgresStore) insertSession(ctx context.Context, db execer, in Session) error {
	_, err := db.Exec(ctx,
		`INSERT INTO `+s.table("sessions")+` (id_hash, user_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		in.Digest, in.UserID, in.CreatedAt, in.ExpiresAt,
	)
	return err
}

// classify maps unique/FK violations to typed errors. fallback names the conflict field when the
// constraint is not one of ours.
func (s *PostgresStore) classify(op string, err error, fallback string) error {
	if c, ok := pgutil.UniqueViolation(err); ok {
		switch c {
		case "uq_users_email":
			return ConflictError{Op: op, Field: "email"}
		case "uq_users_single_owner", "bootstrap_pkey":
			return ConflictError{Op: op, Field: "owner"}
		case "uq_invites_token_hash":
			return ConflictError{Op: op, Field: "token"}
		case "sessions_pkey":
			return ConflictError{Op: op, Field: "session"}
		case "users_pkey":
			return ConflictError{Op: op, Field: "id"}
		}
		return ConflictError{Op: op, Field: fallback}
	}
	if pgutil.IsForeignKeyViolation(err) {
		return NotFoundError{Op: op, Resource: "user"}
	}
	return Unavailable(op, err)
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u    User
		role string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &role, &u.CreatedAt); err != nil {
		return User{}, err
	}
	u.Role = Role(role)
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func scanInvite(row pgx.Row) (Invite, error) {
	var inv Invite
	if err := row.Scan(
		&inv.ID, &inv.TokenHash, &inv.CreatedBy, &inv.CreatedAt, &inv.ExpiresAt,
		&inv.MaxUses, &inv.UsedBy, &inv.UsedAt,
	); err != nil {
		return Invite{}, err
	}
	inv.CreatedAt = inv.CreatedAt.UTC()
	inv.ExpiresAt = inv.ExpiresAt.UTC()
	if inv.UsedAt != nil {
		t := inv.UsedAt.UTC()
		inv.UsedAt = &t
	}
	return inv, nil
}

func normalizedUser(u User) User {
	u = copyUser(u)
	if u.Email != nil {
		n := NormalizeEmail(*u.Email)
		u.Email = &n
	}
	u.DisplayName = NormalizeDisplayName(u.DisplayName)
	u.CreatedAt = u.CreatedAt.UTC()
	return u
}
