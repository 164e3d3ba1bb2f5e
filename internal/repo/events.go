package repo

import (
	"context"
	"database/sql"

	"tripline/internal/domain"
)

// ListEvents returns the most recent events, newest first. planID zero
// means all plans.
func (r Repo) ListEvents(ctx context.Context, planID int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id,ts,type,COALESCE(plan_id,0),entity_kind,COALESCE(entity_id,''),COALESCE(user_id,0),payload_json FROM events`
	args := []any{}
	if planID != 0 {
		query += ` WHERE plan_id=?`
		args = append(args, planID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.PlanID, &e.EntityKind, &e.EntityID, &e.UserID, &payload); err != nil {
			return nil, err
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
