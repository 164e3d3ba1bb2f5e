package repo

import (
	"context"
	"database/sql"
	"strings"

	"tripline/internal/domain"
)

// ScheduleColumns is the allowlist of schedule columns an untrusted
// changeset may touch.
var ScheduleColumns = map[string]bool{
	"title":    true,
	"place":    true,
	"place_en": true,
	"memo":     true,
	"time":     true,
	"date":     true,
	"plan_b":   true,
	"plan_c":   true,
}

const scheduleFields = `id,plan_id,date,COALESCE(time,''),title,COALESCE(place,''),COALESCE(place_en,''),COALESCE(memo,''),COALESCE(plan_b,''),COALESCE(plan_c,''),lat,lon,created_at`

func scanSchedule(scan func(dest ...any) error) (domain.Schedule, error) {
	var s domain.Schedule
	var lat, lon sql.NullFloat64
	err := scan(&s.ID, &s.PlanID, &s.Date, &s.Time, &s.Title, &s.Place, &s.PlaceEn, &s.Memo, &s.PlanB, &s.PlanC, &lat, &lon, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if lat.Valid {
		s.Lat = &lat.Float64
	}
	if lon.Valid {
		s.Lon = &lon.Float64
	}
	return s, err
}

func (r Repo) InsertSchedule(ctx context.Context, s domain.Schedule) (domain.Schedule, error) {
	s.CreatedAt = now()
	res, err := r.DB.ExecContext(ctx, `INSERT INTO schedules(plan_id,date,time,title,place,place_en,memo,plan_b,plan_c,lat,lon,created_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.PlanID, s.Date, nullable(s.Time), s.Title, nullable(s.Place), nullable(s.PlaceEn), nullable(s.Memo), nullable(s.PlanB), nullable(s.PlanC), s.Lat, s.Lon, s.CreatedAt)
	if err != nil {
		return domain.Schedule{}, err
	}
	s.ID, err = res.LastInsertId()
	return s, err
}

// GetSchedule is scoped by plan id: an id leaked from another plan finds
// nothing.
func (r Repo) GetSchedule(ctx context.Context, planID, id int64) (domain.Schedule, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+scheduleFields+` FROM schedules WHERE id=? AND plan_id=?`, id, planID)
	return scanSchedule(row.Scan)
}

func (r Repo) ListSchedules(ctx context.Context, planID int64) ([]domain.Schedule, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+scheduleFields+` FROM schedules WHERE plan_id=? ORDER BY date, time, id`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) UpdateScheduleFields(ctx context.Context, planID, id int64, changes map[string]any) (int64, error) {
	set, args := buildSet(changes, ScheduleColumns)
	if set == "" {
		return 0, ErrEmptyChangeset
	}
	args = append(args, id, planID)
	res, err := r.DB.ExecContext(ctx, `UPDATE schedules SET `+set+` WHERE id=? AND plan_id=?`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r Repo) DeleteSchedule(ctx context.Context, planID, id int64) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM schedules WHERE id=? AND plan_id=?`, id, planID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteMatchingSchedules removes every schedule whose concatenated
// title+place+memo contains any of the keywords, case-insensitive substring
// match. Best-effort cleanup: rows are deleted one at a time and the count
// returned.
func (r Repo) DeleteMatchingSchedules(ctx context.Context, planID int64, keywords []string) (int64, error) {
	items, err := r.ListSchedules(ctx, planID)
	if err != nil {
		return 0, err
	}
	var deleted int64
	for _, s := range items {
		haystack := strings.ToLower(s.Title + " " + s.Place + " " + s.Memo)
		for _, kw := range keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" || !strings.Contains(haystack, kw) {
				continue
			}
			n, err := r.DeleteSchedule(ctx, planID, s.ID)
			if err != nil {
				return deleted, err
			}
			deleted += n
			break
		}
	}
	return deleted, nil
}
