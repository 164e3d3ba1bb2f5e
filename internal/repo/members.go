package repo

import (
	"context"
	"database/sql"

	"tripline/internal/domain"
)

func (r Repo) GetMember(ctx context.Context, planID, userID int64) (domain.Member, error) {
	var m domain.Member
	err := r.DB.QueryRowContext(ctx, `SELECT plan_id,user_id,role,created_at FROM plan_members WHERE plan_id=? AND user_id=?`, planID, userID).
		Scan(&m.PlanID, &m.UserID, &m.Role, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}

func (r Repo) ListMembers(ctx context.Context, planID int64) ([]domain.Member, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT pm.plan_id, pm.user_id, u.email, COALESCE(u.name,''), pm.role, pm.created_at
FROM plan_members pm JOIN users u ON u.id = pm.user_id
WHERE pm.plan_id=? ORDER BY pm.created_at, pm.user_id`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.PlanID, &m.UserID, &m.Email, &m.Name, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// AddMember is a no-op when the membership row already exists.
func (r Repo) AddMember(ctx context.Context, planID, userID int64) error {
	_, err := r.DB.ExecContext(ctx, `INSERT OR IGNORE INTO plan_members(plan_id,user_id,role,created_at) VALUES (?,?,?,?)`,
		planID, userID, "member", now())
	return err
}

func (r Repo) RemoveMember(ctx context.Context, planID, userID int64) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM plan_members WHERE plan_id=? AND user_id=?`, planID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
