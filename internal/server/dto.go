package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"tripline/internal/app"
	"tripline/internal/domain"
)

type PlanRequest struct {
	Title     string `json:"title" minLength:"1"`
	Region    string `json:"region,omitempty"`
	StartDate string `json:"start_date" format:"date"`
	EndDate   string `json:"end_date" format:"date"`
}

type PlanUpdateRequest struct {
	Title     *string `json:"title,omitempty"`
	Region    *string `json:"region,omitempty"`
	StartDate *string `json:"start_date,omitempty" format:"date"`
	EndDate   *string `json:"end_date,omitempty" format:"date"`
}

type VisibilityRequest struct {
	Visibility string `json:"visibility" enum:"private,shared,public"`
}

type ShiftRequest struct {
	Days int `json:"days"`
}

type ScheduleRequest struct {
	Date    string   `json:"date" format:"date"`
	Time    string   `json:"time,omitempty"`
	Title   string   `json:"title" minLength:"1"`
	Place   string   `json:"place,omitempty"`
	PlaceEn string   `json:"place_en,omitempty"`
	Memo    string   `json:"memo,omitempty"`
	PlanB   string   `json:"plan_b,omitempty"`
	PlanC   string   `json:"plan_c,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}

type ScheduleUpdateRequest struct {
	Date    *string `json:"date,omitempty" format:"date"`
	Time    *string `json:"time,omitempty"`
	Title   *string `json:"title,omitempty"`
	Place   *string `json:"place,omitempty"`
	PlaceEn *string `json:"place_en,omitempty"`
	Memo    *string `json:"memo,omitempty"`
	PlanB   *string `json:"plan_b,omitempty"`
	PlanC   *string `json:"plan_c,omitempty"`
}

type MemoRequest struct {
	Category string `json:"category,omitempty"`
	Title    string `json:"title" minLength:"1"`
	Content  string `json:"content,omitempty"`
}

type MemoUpdateRequest struct {
	Category *string `json:"category,omitempty"`
	Title    *string `json:"title,omitempty"`
	Content  *string `json:"content,omitempty"`
}

type MomentRequest struct {
	ScheduleID int64  `json:"schedule_id"`
	Photo      string `json:"photo,omitempty"`
	Note       string `json:"note,omitempty"`
}

type MomentUpdateRequest struct {
	Photo *string `json:"photo,omitempty"`
	Note  *string `json:"note,omitempty"`
}

type MemberRequest struct {
	Email string `json:"email" format:"email"`
}

// SharedPlanResponse is the read-only snapshot behind a share token.
type SharedPlanResponse struct {
	Plan      domain.Plan       `json:"plan"`
	Schedules []domain.Schedule `json:"schedules"`
	Memos     []domain.Memo     `json:"memos"`
}

const dateLayout = "2006-01-02"

func validDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// setChange records a PATCH field into an allowlist-keyed changeset.
func setChange(changes map[string]any, key string, v *string) {
	if v != nil {
		changes[key] = *v
	}
}

// planAccess resolves the caller (zero user for anonymous) and their access
// level against the plan.
func planAccess(ctx context.Context, a app.App, planID int64) (domain.User, domain.AccessLevel, error) {
	p := principalFromContext(ctx)
	var uid int64
	if !p.Anonymous {
		uid = p.User.ID
	}
	level, err := a.Access.Evaluate(ctx, planID, uid)
	return p.User, level, err
}

// requireViewer admits anyone whose access level is above none. Anonymous
// callers with no access get 401, authenticated ones 403.
func requireViewer(ctx context.Context, a app.App, planID int64) (domain.User, domain.AccessLevel, huma.StatusError) {
	user, level, err := planAccess(ctx, a, planID)
	if err != nil {
		return user, level, handleError(err)
	}
	if level == domain.AccessNone {
		if user.ID == 0 {
			return user, level, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		return user, level, newAPIError(http.StatusForbidden, "forbidden", "access denied", nil)
	}
	return user, level, nil
}

// requireParticipant admits owners and members, the two levels allowed to
// mutate plan content.
func requireParticipant(ctx context.Context, a app.App, planID int64) (domain.User, domain.AccessLevel, huma.StatusError) {
	user, authErr := userFromContext(ctx)
	if authErr != nil {
		return user, domain.AccessNone, authErr
	}
	level, err := a.Access.Evaluate(ctx, planID, user.ID)
	if err != nil {
		return user, level, handleError(err)
	}
	if level != domain.AccessOwner && level != domain.AccessMember {
		return user, level, newAPIError(http.StatusForbidden, "forbidden", "You don't have permission to modify this plan", nil)
	}
	return user, level, nil
}

// requireOwner admits the plan owner only.
func requireOwner(ctx context.Context, a app.App, planID int64) (domain.User, huma.StatusError) {
	user, authErr := userFromContext(ctx)
	if authErr != nil {
		return user, authErr
	}
	level, err := a.Access.Evaluate(ctx, planID, user.ID)
	if err != nil {
		return user, handleError(err)
	}
	if level != domain.AccessOwner {
		return user, newAPIError(http.StatusForbidden, "forbidden", "owner access required", nil)
	}
	return user, nil
}
