package repo

import (
	"context"
	"database/sql"
	"fmt"

	"tripline/internal/domain"
)

// PlanColumns is the allowlist of plan columns an untrusted changeset may
// touch. Visibility moves through SetPlanVisibility only.
var PlanColumns = map[string]bool{
	"title":      true,
	"region":     true,
	"start_date": true,
	"end_date":   true,
}

const planFields = `id,owner_id,title,COALESCE(region,''),start_date,end_date,visibility,COALESCE(share_token,''),created_at,updated_at`

func scanPlan(row *sql.Row) (domain.Plan, error) {
	var p domain.Plan
	err := row.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Region, &p.StartDate, &p.EndDate, &p.Visibility, &p.ShareToken, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) InsertPlan(ctx context.Context, p domain.Plan) (domain.Plan, error) {
	ts := now()
	p.CreatedAt, p.UpdatedAt = ts, ts
	if p.Visibility == "" {
		p.Visibility = domain.VisibilityPrivate
	}
	res, err := r.DB.ExecContext(ctx, `INSERT INTO plans(owner_id,title,region,start_date,end_date,visibility,share_token,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		p.OwnerID, p.Title, nullable(p.Region), p.StartDate, p.EndDate, string(p.Visibility), nullable(p.ShareToken), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return domain.Plan{}, err
	}
	p.ID, err = res.LastInsertId()
	return p, err
}

func (r Repo) GetPlan(ctx context.Context, id int64) (domain.Plan, error) {
	return scanPlan(r.DB.QueryRowContext(ctx, `SELECT `+planFields+` FROM plans WHERE id=?`, id))
}

func (r Repo) GetPlanByShareToken(ctx context.Context, token string) (domain.Plan, error) {
	return scanPlan(r.DB.QueryRowContext(ctx, `SELECT `+planFields+` FROM plans WHERE share_token=?`, token))
}

// ListPlansForUser returns plans the user owns plus plans shared with them.
func (r Repo) ListPlansForUser(ctx context.Context, userID int64) ([]domain.Plan, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT `+planFields+` FROM plans
WHERE owner_id=? OR id IN (SELECT plan_id FROM plan_members WHERE user_id=?)
ORDER BY start_date DESC, id DESC`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Plan
	for rows.Next() {
		var p domain.Plan
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Region, &p.StartDate, &p.EndDate, &p.Visibility, &p.ShareToken, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// UpdatePlanFields applies an allowlisted changeset. A changeset with no
// allowlisted columns left is ErrEmptyChangeset, not a zero-row update.
func (r Repo) UpdatePlanFields(ctx context.Context, planID int64, changes map[string]any) (int64, error) {
	set, args := buildSet(changes, PlanColumns)
	if set == "" {
		return 0, ErrEmptyChangeset
	}
	args = append(args, now(), planID)
	res, err := r.DB.ExecContext(ctx, `UPDATE plans SET `+set+`, updated_at=? WHERE id=?`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r Repo) SetPlanVisibility(ctx context.Context, planID int64, v domain.Visibility, shareToken string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE plans SET visibility=?, share_token=?, updated_at=? WHERE id=?`,
		string(v), nullable(shareToken), now(), planID)
	return err
}

func (r Repo) DeletePlan(ctx context.Context, planID int64) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM plans WHERE id=?`, planID)
	return err
}

// ShiftPlan moves every schedule date and the plan's own range by the same
// number of days, in one transaction. The displayed range must stay
// consistent with the plan's contents.
func (r Repo) ShiftPlan(ctx context.Context, planID int64, days int) (int64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	mod := fmt.Sprintf("%+d days", days)
	res, err := tx.ExecContext(ctx, `UPDATE schedules SET date=date(date, ?) WHERE plan_id=?`, mod, planID)
	if err != nil {
		return 0, err
	}
	shifted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE plans SET start_date=date(start_date, ?), end_date=date(end_date, ?), updated_at=? WHERE id=?`,
		mod, mod, now(), planID); err != nil {
		return 0, err
	}
	return shifted, tx.Commit()
}
