package repo

import (
	"context"
	"database/sql"

	"tripline/internal/domain"
)

// MomentColumns is the allowlist of moment columns an untrusted changeset
// may touch.
var MomentColumns = map[string]bool{
	"photo": true,
	"note":  true,
}

const momentFields = `id,schedule_id,plan_id,user_id,COALESCE(photo,''),COALESCE(note,''),created_at`

func (r Repo) InsertMoment(ctx context.Context, m domain.Moment) (domain.Moment, error) {
	m.CreatedAt = now()
	res, err := r.DB.ExecContext(ctx, `INSERT INTO moments(schedule_id,plan_id,user_id,photo,note,created_at) VALUES (?,?,?,?,?,?)`,
		m.ScheduleID, m.PlanID, m.UserID, nullable(m.Photo), nullable(m.Note), m.CreatedAt)
	if err != nil {
		return domain.Moment{}, err
	}
	m.ID, err = res.LastInsertId()
	return m, err
}

func (r Repo) GetMoment(ctx context.Context, planID, id int64) (domain.Moment, error) {
	var m domain.Moment
	err := r.DB.QueryRowContext(ctx, `SELECT `+momentFields+` FROM moments WHERE id=? AND plan_id=?`, id, planID).
		Scan(&m.ID, &m.ScheduleID, &m.PlanID, &m.UserID, &m.Photo, &m.Note, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}

func (r Repo) ListMoments(ctx context.Context, planID int64) ([]domain.Moment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+momentFields+` FROM moments WHERE plan_id=? ORDER BY id`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Moment
	for rows.Next() {
		var m domain.Moment
		if err := rows.Scan(&m.ID, &m.ScheduleID, &m.PlanID, &m.UserID, &m.Photo, &m.Note, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// UpdateMomentFields applies an allowlisted changeset. When ownerOnly is
// non-zero the mutation is additionally scoped to that user's own moments.
func (r Repo) UpdateMomentFields(ctx context.Context, planID, id int64, ownerOnly int64, changes map[string]any) (int64, error) {
	set, args := buildSet(changes, MomentColumns)
	if set == "" {
		return 0, ErrEmptyChangeset
	}
	query := `UPDATE moments SET ` + set + ` WHERE id=? AND plan_id=?`
	args = append(args, id, planID)
	if ownerOnly != 0 {
		query += ` AND user_id=?`
		args = append(args, ownerOnly)
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r Repo) DeleteMoment(ctx context.Context, planID, id int64, ownerOnly int64) (int64, error) {
	query := `DELETE FROM moments WHERE id=? AND plan_id=?`
	args := []any{id, planID}
	if ownerOnly != 0 {
		query += ` AND user_id=?`
		args = append(args, ownerOnly)
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
