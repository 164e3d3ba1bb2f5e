package repo

import (
	"context"
	"database/sql"

	"tripline/internal/domain"
)

// MemoColumns is the allowlist of memo columns an untrusted changeset may
// touch.
var MemoColumns = map[string]bool{
	"category": true,
	"title":    true,
	"content":  true,
}

const memoFields = `id,plan_id,category,title,COALESCE(content,''),created_at`

func (r Repo) InsertMemo(ctx context.Context, m domain.Memo) (domain.Memo, error) {
	m.CreatedAt = now()
	if m.Category == "" {
		m.Category = "general"
	}
	res, err := r.DB.ExecContext(ctx, `INSERT INTO memos(plan_id,category,title,content,created_at) VALUES (?,?,?,?,?)`,
		m.PlanID, m.Category, m.Title, nullable(m.Content), m.CreatedAt)
	if err != nil {
		return domain.Memo{}, err
	}
	m.ID, err = res.LastInsertId()
	return m, err
}

func (r Repo) GetMemo(ctx context.Context, planID, id int64) (domain.Memo, error) {
	var m domain.Memo
	err := r.DB.QueryRowContext(ctx, `SELECT `+memoFields+` FROM memos WHERE id=? AND plan_id=?`, id, planID).
		Scan(&m.ID, &m.PlanID, &m.Category, &m.Title, &m.Content, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}

func (r Repo) ListMemos(ctx context.Context, planID int64) ([]domain.Memo, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+memoFields+` FROM memos WHERE plan_id=? ORDER BY category, id`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Memo
	for rows.Next() {
		var m domain.Memo
		if err := rows.Scan(&m.ID, &m.PlanID, &m.Category, &m.Title, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) UpdateMemoFields(ctx context.Context, planID, id int64, changes map[string]any) (int64, error) {
	set, args := buildSet(changes, MemoColumns)
	if set == "" {
		return 0, ErrEmptyChangeset
	}
	args = append(args, id, planID)
	res, err := r.DB.ExecContext(ctx, `UPDATE memos SET `+set+` WHERE id=? AND plan_id=?`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r Repo) DeleteMemo(ctx context.Context, planID, id int64) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM memos WHERE id=? AND plan_id=?`, id, planID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
