package repo

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"tripline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// ErrEmptyChangeset reports an update whose changeset had no allowlisted
// columns left after filtering. Callers can tell it apart from a missing
// row, which reports zero rows affected instead.
var ErrEmptyChangeset = errors.New("no permitted fields in changes")

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// buildSet filters changes down to allowed columns and returns a
// deterministic SET clause with its arguments. Unknown columns are dropped,
// never an error: changesets originate from untrusted model output.
func buildSet(changes map[string]any, allowed map[string]bool) (string, []any) {
	keys := make([]string, 0, len(changes))
	for k := range changes {
		if allowed[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"=?")
		args = append(args, changes[k])
	}
	return strings.Join(parts, ","), args
}

// Users

func (r Repo) InsertUser(ctx context.Context, email, name string) (domain.User, error) {
	u := domain.User{Email: email, Name: name, CreatedAt: now()}
	res, err := r.DB.ExecContext(ctx, `INSERT INTO users(email,name,created_at) VALUES (?,?,?)`,
		u.Email, nullable(u.Name), u.CreatedAt)
	if err != nil {
		return domain.User{}, err
	}
	u.ID, err = res.LastInsertId()
	return u, err
}

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	var name sql.NullString
	err := row.Scan(&u.ID, &u.Email, &name, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if name.Valid {
		u.Name = name.String
	}
	return u, err
}

func (r Repo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT id,email,name,created_at FROM users WHERE id=?`, id))
}

// GetUserByEmail matches case-insensitively; the users.email column is
// declared COLLATE NOCASE.
func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT id,email,name,created_at FROM users WHERE email=?`, strings.TrimSpace(email)))
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,email,COALESCE(name,''),created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}
