package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"tripline/internal/app"
	"tripline/internal/domain"
	"tripline/internal/events"
	"tripline/internal/ics"
)

func registerPlans(api huma.API, a app.App) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-plan",
		Method:        http.MethodPost,
		Path:          "/plans",
		Summary:       "Create plan",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body PlanRequest `json:"body"`
	}) (*struct {
		Body domain.Plan `json:"body"`
	}, error) {
		user, authErr := userFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		if !validDate(input.Body.StartDate) || !validDate(input.Body.EndDate) {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "start_date and end_date must be YYYY-MM-DD", nil)
		}
		if input.Body.EndDate < input.Body.StartDate {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "end_date must not precede start_date", nil)
		}
		p, err := a.Repo.InsertPlan(ctx, domain.Plan{
			OwnerID:   user.ID,
			Title:     input.Body.Title,
			Region:    input.Body.Region,
			StartDate: input.Body.StartDate,
			EndDate:   input.Body.EndDate,
		})
		if err != nil {
			return nil, handleError(err)
		}
		logEvent(ctx, a, "plan.create", p.ID, "plan", p.ID, user.ID, events.EventPayload{"title": p.Title})
		return &struct {
			Body domain.Plan `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-plans",
		Method:      http.MethodGet,
		Path:        "/plans",
		Summary:     "List plans owned by or shared with the caller",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Plan `json:"body"`
	}, error) {
		user, authErr := userFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := a.Repo.ListPlansForUser(ctx, user.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Plan{}
		}
		return &struct {
			Body []domain.Plan `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-plan",
		Method:      http.MethodGet,
		Path:        "/plans/{plan_id}",
		Summary:     "Get plan",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID int64 `path:"plan_id"`
	}) (*struct {
		Body domain.Plan `json:"body"`
	}, error) {
		if _, _, authErr := requireViewer(ctx, a, input.PlanID); authErr != nil {
			return nil, authErr
		}
		p, err := a.Repo.GetPlan(ctx, input.PlanID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Plan `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-plan",
		Method:      http.MethodPatch,
		Path:        "/plans/{plan_id}",
		Summary:     "Update plan fields",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID int64             `path:"plan_id"`
		Body   PlanUpdateRequest `json:"body"`
	}) (*struct {
		Body domain.Plan `json:"body"`
	}, error) {
		user, authErr := requireOwner(ctx, a, input.PlanID)
		if authErr != nil {
			return nil, authErr
		}
		changes := map[string]any{}
		setChange(changes, "title", input.Body.Title)
		setChange(changes, "region", input.Body.Region)
		setChange(changes, "start_date", input.Body.StartDate)
		setChange(changes, "end_date", input.Body.EndDate)
		if len(changes) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "no updatable fields provided", nil)
		}
		for _, key := range []string{"start_date", "end_date"} {
			if v, ok := changes[key].(string); ok && !validDate(v) {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", key+" must be YYYY-MM-DD", nil)
			}
		}
		if _, err := a.Repo.UpdatePlanFields(ctx, input.PlanID, changes); err != nil {
			return nil, handleError(err)
		}
		p, err := a.Repo.GetPlan(ctx, input.PlanID)
		if err != nil {
			return nil, handleError(err)
		}
		logEvent(ctx, a, "plan.update", p.ID, "plan", p.ID, user.ID, events.EventPayload{"fields": keysOf(changes)})
		return &struct {
			Body domain.Plan `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-plan",
		Method:        http.MethodDelete,
		Path:          "/plans/{plan_id}",
		Summary:       "Delete plan",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID int64 `path:"plan_id"`
	}) (*struct{}, error) {
		user, authErr := requireOwner(ctx, a, input.PlanID)
		if authErr != nil {
			return nil, authErr
		}
		if err := a.Repo.DeletePlan(ctx, input.PlanID); err != nil {
			return nil, handleError(err)
		}
		logEvent(ctx, a, "plan.delete", input.PlanID, "plan", input.PlanID, user.ID, nil)
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-plan-visibility",
		Method:      http.MethodPut,
		Path:        "/plans/{plan_id}/visibility",
		Summary:     "Set plan visibility",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID int64             `path:"plan_id"`
		Body   VisibilityRequest `json:"body"`
	}) (*struct {
		Body domain.Plan `json:"body"`
	}, error) {
		user, authErr := requireOwner(ctx, a, input.PlanID)
		if authErr != nil {
			return nil, authErr
		}
		v, ok := domain.ParseVisibility(input.Body.Visibility)
		if !ok {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid visibility %q", input.Body.Visibility), nil)
		}
		p, err := a.Repo.GetPlan(ctx, input.PlanID)
		if err != nil {
			return nil, handleError(err)
		}
		token := p.ShareToken
		if v == domain.VisibilityPublic && token == "" {
			token = uuid.NewString()
		}
		if err := a.Repo.SetPlanVisibility(ctx, input.PlanID, v, token); err != nil {
			return nil, handleError(err)
		}
		p, err = a.Repo.GetPlan(ctx, input.PlanID)
		if err != nil {
			return nil, handleError(err)
		}
		logEvent(ctx, a, "plan.visibility", p.ID, "plan", p.ID, user.ID, events.EventPayload{"visibility": string(v)})
		return &struct {
			Body domain.Plan `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "shift-plan",
		Method:      http.MethodPost,
		Path:        "/plans/{plan_id}/shift",
		Summary:     "Shift every schedule and the plan range by N days",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID int64        `path:"plan_id"`
		Body   ShiftRequest `json:"body"`
	}) (*struct {
		Body struct {
			Shifted int64 `json:"shifted"`
		} `json:"body"`
	}, error) {
		user, authErr := requireOwner(ctx, a, input.PlanID)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Days == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "days must be non-zero", nil)
		}
		n, err := a.Repo.ShiftPlan(ctx, input.PlanID, input.Body.Days)
		if err != nil {
			return nil, handleError(err)
		}
		logEvent(ctx, a, "plan.shift", input.PlanID, "plan", input.PlanID, user.ID, events.EventPayload{"days": input.Body.Days, "shifted": n})
		out := &struct {
			Body struct {
				Shifted int64 `json:"shifted"`
			} `json:"body"`
		}{}
		out.Body.Shifted = n
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-shared-plan",
		Method:      http.MethodGet,
		Path:        "/plans/share/{token}",
		Summary:     "Read a public plan by share token",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Token string `path:"token"`
	}) (*struct {
		Body SharedPlanResponse `json:"body"`
	}, error) {
		p, err := a.Repo.GetPlanByShareToken(ctx, input.Token)
		if err != nil {
			return nil, handleError(err)
		}
		// A revoked-to-private plan keeps its token but stops resolving.
		if p.Visibility != domain.VisibilityPublic {
			return nil, newAPIError(http.StatusNotFound, "not_found", "not found", nil)
		}
		schedules, err := a.Repo.ListSchedules(ctx, p.ID)
		if err != nil {
			return nil, handleError(err)
		}
		memos, err := a.Repo.ListMemos(ctx, p.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if schedules == nil {
			schedules = []domain.Schedule{}
		}
		if memos == nil {
			memos = []domain.Memo{}
		}
		return &struct {
			Body SharedPlanResponse `json:"body"`
		}{Body: SharedPlanResponse{Plan: p, Schedules: schedules, Memos: memos}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-plan-ics",
		Method:      http.MethodGet,
		Path:        "/plans/{plan_id}/export.ics",
		Summary:     "Export plan schedules as an iCalendar file",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID int64 `path:"plan_id"`
	}) (*struct {
		ContentType        string `header:"Content-Type"`
		ContentDisposition string `header:"Content-Disposition"`
		Body               []byte `json:"body"`
	}, error) {
		if _, _, authErr := requireViewer(ctx, a, input.PlanID); authErr != nil {
			return nil, authErr
		}
		p, err := a.Repo.GetPlan(ctx, input.PlanID)
		if err != nil {
			return nil, handleError(err)
		}
		schedules, err := a.Repo.ListSchedules(ctx, p.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			ContentType        string `header:"Content-Type"`
			ContentDisposition string `header:"Content-Disposition"`
			Body               []byte `json:"body"`
		}{
			ContentType:        "text/calendar; charset=utf-8",
			ContentDisposition: fmt.Sprintf("attachment; filename=%q", "plan-"+strconv.FormatInt(p.ID, 10)+".ics"),
			Body:               []byte(ics.Render(p, schedules)),
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-plan-events",
		Method:      http.MethodGet,
		Path:        "/plans/{plan_id}/events",
		Summary:     "List recent plan activity, newest first",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID int64 `path:"plan_id"`
		Limit  int   `query:"limit" default:"50" minimum:"1" maximum:"500"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		if _, authErr := requireOwner(ctx, a, input.PlanID); authErr != nil {
			return nil, authErr
		}
		items, err := a.Repo.ListEvents(ctx, input.PlanID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Event{}
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: items}, nil
	})
}

// logEvent appends to the activity log best-effort; a failed append never
// fails the request that caused it.
func logEvent(ctx context.Context, a app.App, evtType string, planID int64, entityKind string, entityID int64, userID int64, payload events.EventPayload) {
	id := ""
	if entityID != 0 {
		id = strconv.FormatInt(entityID, 10)
	}
	if err := a.Log(ctx, evtType, planID, entityKind, id, userID, payload); err != nil {
		a.Logger.Warn("event append failed", "type", evtType, "plan_id", planID, "error", err)
	}
}

func keysOf(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
