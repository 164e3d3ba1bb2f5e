package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"tripline/internal/domain"
	"tripline/internal/repo"
)

// Result records the outcome of one action, in input order. Denied and
// failed actions produce results too; only the whole-endpoint gate aborts a
// batch before it starts.
type Result struct {
	Kind    Kind   `json:"type"`
	Success bool   `json:"success"`
	ID      int64  `json:"id,omitempty"`
	Count   int64  `json:"count,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Executor applies a parsed action batch against one plan. Actions run
// strictly in emitted order; one action's mutation completes before the
// next begins, so partial failures are predictable.
type Executor struct {
	Repo   repo.Repo
	Logger *slog.Logger
}

func (ex Executor) logger() *slog.Logger {
	if ex.Logger != nil {
		return ex.Logger
	}
	return slog.Default()
}

// Apply runs the batch for the acting user at the given access level and
// returns one result per action. No error escapes: repo failures are
// stringified into the owning action's result and the loop continues.
func (ex Executor) Apply(ctx context.Context, planID int64, actor domain.User, level domain.AccessLevel, actions []Action) []Result {
	results := make([]Result, 0, len(actions))
	for _, action := range actions {
		kind := action.ActionKind()
		if !CanExecute(kind, level) {
			results = append(results, Result{Kind: kind, Error: "Permission denied"})
			continue
		}
		res := ex.apply(ctx, planID, actor, level, action)
		if !res.Success && res.Error != "" {
			ex.logger().Warn("assistant action failed", "kind", kind, "plan_id", planID, "error", res.Error)
		}
		results = append(results, res)
	}
	return results
}

func (ex Executor) apply(ctx context.Context, planID int64, actor domain.User, level domain.AccessLevel, action Action) Result {
	kind := action.ActionKind()
	switch a := action.(type) {
	case Invalid:
		return Result{Kind: kind, Error: "invalid payload: " + a.Reason}
	case Chat:
		return Result{Kind: kind, Success: true}
	case AddSchedule:
		s, err := ex.Repo.InsertSchedule(ctx, domain.Schedule{
			PlanID:  planID,
			Date:    a.Draft.Date,
			Time:    a.Draft.Time,
			Title:   a.Draft.Title,
			Place:   a.Draft.Place,
			PlaceEn: a.Draft.PlaceEn,
			Memo:    a.Draft.Memo,
			PlanB:   a.Draft.PlanB,
			PlanC:   a.Draft.PlanC,
		})
		if err != nil {
			return Result{Kind: kind, Error: err.Error()}
		}
		return Result{Kind: kind, Success: true, ID: s.ID}
	case UpdateSchedule:
		n, err := ex.Repo.UpdateScheduleFields(ctx, planID, a.ID, a.Changes)
		if err != nil {
			return Result{Kind: kind, ID: a.ID, Error: err.Error()}
		}
		if n == 0 {
			return Result{Kind: kind, ID: a.ID, Error: "schedule not found in plan"}
		}
		return Result{Kind: kind, Success: true, ID: a.ID}
	case DeleteSchedule:
		// Deleting an already-deleted row is a harmless no-op.
		if _, err := ex.Repo.DeleteSchedule(ctx, planID, a.ID); err != nil {
			return Result{Kind: kind, ID: a.ID, Error: err.Error()}
		}
		return Result{Kind: kind, Success: true, ID: a.ID}
	case ShiftAll:
		n, err := ex.Repo.ShiftPlan(ctx, planID, a.Days)
		if err != nil {
			return Result{Kind: kind, Error: err.Error()}
		}
		return Result{Kind: kind, Success: true, Count: n}
	case DeleteMatching:
		n, err := ex.Repo.DeleteMatchingSchedules(ctx, planID, strings.Split(a.Pattern, "|"))
		if err != nil {
			return Result{Kind: kind, Error: err.Error()}
		}
		return Result{Kind: kind, Success: true, Count: n}
	case UpdatePlan:
		if _, err := ex.Repo.UpdatePlanFields(ctx, planID, a.Changes); err != nil {
			return Result{Kind: kind, Error: err.Error()}
		}
		return Result{Kind: kind, Success: true}
	case AddMemo:
		m, err := ex.Repo.InsertMemo(ctx, domain.Memo{
			PlanID:   planID,
			Category: a.Draft.Category,
			Title:    a.Draft.Title,
			Content:  a.Draft.Content,
		})
		if err != nil {
			return Result{Kind: kind, Error: err.Error()}
		}
		return Result{Kind: kind, Success: true, ID: m.ID}
	case UpdateMemo:
		n, err := ex.Repo.UpdateMemoFields(ctx, planID, a.ID, a.Changes)
		if err != nil {
			return Result{Kind: kind, ID: a.ID, Error: err.Error()}
		}
		if n == 0 {
			return Result{Kind: kind, ID: a.ID, Error: "memo not found in plan"}
		}
		return Result{Kind: kind, Success: true, ID: a.ID}
	case DeleteMemo:
		if _, err := ex.Repo.DeleteMemo(ctx, planID, a.ID); err != nil {
			return Result{Kind: kind, ID: a.ID, Error: err.Error()}
		}
		return Result{Kind: kind, Success: true, ID: a.ID}
	case GenerateMemos:
		n, err := ex.generateMemos(ctx, planID)
		if err != nil {
			return Result{Kind: kind, Error: err.Error()}
		}
		return Result{Kind: kind, Success: true, Count: n}
	case AddMoment:
		// The schedule lookup is plan-scoped, so a cross-plan schedule id
		// resolves to not-found here.
		if _, err := ex.Repo.GetSchedule(ctx, planID, a.ScheduleID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return Result{Kind: kind, Error: "schedule not found in plan"}
			}
			return Result{Kind: kind, Error: err.Error()}
		}
		m, err := ex.Repo.InsertMoment(ctx, domain.Moment{
			ScheduleID: a.ScheduleID,
			PlanID:     planID,
			UserID:     actor.ID,
			Photo:      a.Draft.Photo,
			Note:       a.Draft.Note,
		})
		if err != nil {
			return Result{Kind: kind, Error: err.Error()}
		}
		return Result{Kind: kind, Success: true, ID: m.ID}
	case UpdateMoment:
		n, err := ex.Repo.UpdateMomentFields(ctx, planID, a.ID, momentScope(actor, level), a.Changes)
		if err != nil {
			return Result{Kind: kind, ID: a.ID, Error: err.Error()}
		}
		if n == 0 {
			return Result{Kind: kind, ID: a.ID, Error: "moment not found or not yours"}
		}
		return Result{Kind: kind, Success: true, ID: a.ID}
	case DeleteMoment:
		n, err := ex.Repo.DeleteMoment(ctx, planID, a.ID, momentScope(actor, level))
		if err != nil {
			return Result{Kind: kind, ID: a.ID, Error: err.Error()}
		}
		if n == 0 {
			return Result{Kind: kind, ID: a.ID, Error: "moment not found or not yours"}
		}
		return Result{Kind: kind, Success: true, ID: a.ID}
	case AddMember:
		if strings.EqualFold(a.Email, actor.Email) {
			return Result{Kind: kind, Error: "Cannot invite yourself"}
		}
		target, err := ex.Repo.GetUserByEmail(ctx, a.Email)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return Result{Kind: kind, Error: fmt.Sprintf("no user with email %s", a.Email)}
			}
			return Result{Kind: kind, Error: err.Error()}
		}
		// No-op when already a member.
		if err := ex.Repo.AddMember(ctx, planID, target.ID); err != nil {
			return Result{Kind: kind, Error: err.Error()}
		}
		return Result{Kind: kind, Success: true, ID: target.ID}
	case RemoveMember:
		// Only owners reach this case: the access gate in Apply rejects a
		// member's remove_member first, so a member asking to remove
		// themselves sees the permission denial, not this message.
		if a.UserID == actor.ID {
			return Result{Kind: kind, Error: "Cannot remove yourself"}
		}
		n, err := ex.Repo.RemoveMember(ctx, planID, a.UserID)
		if err != nil {
			return Result{Kind: kind, ID: a.UserID, Error: err.Error()}
		}
		if n == 0 {
			return Result{Kind: kind, ID: a.UserID, Error: "not a member"}
		}
		return Result{Kind: kind, Success: true, ID: a.UserID}
	case SetVisibility:
		v, ok := domain.ParseVisibility(a.Visibility)
		if !ok {
			return Result{Kind: kind, Error: fmt.Sprintf("invalid visibility %q", a.Visibility)}
		}
		plan, err := ex.Repo.GetPlan(ctx, planID)
		if err != nil {
			return Result{Kind: kind, Error: err.Error()}
		}
		token := plan.ShareToken
		if v == domain.VisibilityPublic && token == "" {
			token = uuid.NewString()
		}
		if err := ex.Repo.SetPlanVisibility(ctx, planID, v, token); err != nil {
			return Result{Kind: kind, Error: err.Error()}
		}
		return Result{Kind: kind, Success: true}
	default:
		return Result{Kind: kind, Error: "unsupported action"}
	}
}

// momentScope returns the user id a moment mutation must match: members may
// only touch their own moments, the plan owner may touch any.
func momentScope(actor domain.User, level domain.AccessLevel) int64 {
	if level == domain.AccessOwner {
		return 0
	}
	return actor.ID
}

var defaultMemos = []MemoDraft{
	{Category: "documents", Title: "Passport & visa", Content: "Check passport validity (6+ months) and visa requirements."},
	{Category: "money", Title: "Currency & cards", Content: "Local currency, exchange options, card acceptance."},
	{Category: "health", Title: "Insurance & medication", Content: "Travel insurance, vaccinations, personal medication."},
	{Category: "transport", Title: "Getting around", Content: "Airport transfer, local transit passes, taxi apps."},
	{Category: "emergency", Title: "Emergency contacts", Content: "Local emergency numbers and the nearest embassy."},
}

func (ex Executor) generateMemos(ctx context.Context, planID int64) (int64, error) {
	plan, err := ex.Repo.GetPlan(ctx, planID)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, d := range defaultMemos {
		content := d.Content
		if plan.Region != "" {
			content = content + " (" + plan.Region + ")"
		}
		if _, err := ex.Repo.InsertMemo(ctx, domain.Memo{
			PlanID:   planID,
			Category: d.Category,
			Title:    d.Title,
			Content:  content,
		}); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
