package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"tripline/internal/app"
	"tripline/internal/domain"
	"tripline/internal/events"
)

func registerSchedules(api huma.API, a app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "list-schedules",
		Method:      http.MethodGet,
		Path:        "/plans/{plan_id}/schedules",
		Summary:     "List schedules in date order",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID int64 `path:"plan_id"`
	}) (*struct {
		Body []domain.Schedule `json:"body"`
	}, error) {
		if _, _, authErr := requireViewer(ctx, a, input.PlanID); authErr != nil {
			return nil, authErr
		}
		items, err := a.Repo.ListSchedules(ctx, input.PlanID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Schedule{}
		}
		return &struct {
			Body []domain.Schedule `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-schedule",
		Method:        http.MethodPost,
		Path:          "/plans/{plan_id}/schedules",
		Summary:       "Create schedule",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID int64           `path:"plan_id"`
		Body   ScheduleRequest `json:"body"`
	}) (*struct {
		Body domain.Schedule `json:"body"`
	}, error) {
		user, authErr := requireOwner(ctx, a, input.PlanID)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		if !validDate(input.Body.Date) {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "date must be YYYY-MM-DD", nil)
		}
		s, err := a.Repo.InsertSchedule(ctx, domain.Schedule{
			PlanID:  input.PlanID,
			Date:    input.Body.Date,
			Time:    input.Body.Time,
			Title:   input.Body.Title,
			Place:   input.Body.Place,
			PlaceEn: input.Body.PlaceEn,
			Memo:    input.Body.Memo,
			PlanB:   input.Body.PlanB,
			PlanC:   input.Body.PlanC,
			Lat:     input.Body.Lat,
			Lon:     input.Body.Lon,
		})
		if err != nil {
			return nil, handleError(err)
		}
		logEvent(ctx, a, "schedule.create", input.PlanID, "schedule", s.ID, user.ID, events.EventPayload{"title": s.Title, "date": s.Date})
		return &struct {
			Body domain.Schedule `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-schedule",
		Method:      http.MethodGet,
		Path:        "/plans/{plan_id}/schedules/{schedule_id}",
		Summary:     "Get schedule",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID     int64 `path:"plan_id"`
		ScheduleID int64 `path:"schedule_id"`
	}) (*struct {
		Body domain.Schedule `json:"body"`
	}, error) {
		if _, _, authErr := requireViewer(ctx, a, input.PlanID); authErr != nil {
			return nil, authErr
		}
		s, err := a.Repo.GetSchedule(ctx, input.PlanID, input.ScheduleID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Schedule `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-schedule",
		Method:      http.MethodPatch,
		Path:        "/plans/{plan_id}/schedules/{schedule_id}",
		Summary:     "Update schedule fields",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID     int64                 `path:"plan_id"`
		ScheduleID int64                 `path:"schedule_id"`
		Body       ScheduleUpdateRequest `json:"body"`
	}) (*struct {
		Body domain.Schedule `json:"body"`
	}, error) {
		user, authErr := requireOwner(ctx, a, input.PlanID)
		if authErr != nil {
			return nil, authErr
		}
		changes := map[string]any{}
		setChange(changes, "date", input.Body.Date)
		setChange(changes, "time", input.Body.Time)
		setChange(changes, "title", input.Body.Title)
		setChange(changes, "place", input.Body.Place)
		setChange(changes, "place_en", input.Body.PlaceEn)
		setChange(changes, "memo", input.Body.Memo)
		setChange(changes, "plan_b", input.Body.PlanB)
		setChange(changes, "plan_c", input.Body.PlanC)
		if len(changes) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "no updatable fields provided", nil)
		}
		if v, ok := changes["date"].(string); ok && !validDate(v) {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "date must be YYYY-MM-DD", nil)
		}
		n, err := a.Repo.UpdateScheduleFields(ctx, input.PlanID, input.ScheduleID, changes)
		if err != nil {
			return nil, handleError(err)
		}
		if n == 0 {
			return nil, newAPIError(http.StatusNotFound, "not_found", "schedule not found in plan", nil)
		}
		s, err := a.Repo.GetSchedule(ctx, input.PlanID, input.ScheduleID)
		if err != nil {
			return nil, handleError(err)
		}
		logEvent(ctx, a, "schedule.update", input.PlanID, "schedule", s.ID, user.ID, events.EventPayload{"fields": keysOf(changes)})
		return &struct {
			Body domain.Schedule `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-schedule",
		Method:        http.MethodDelete,
		Path:          "/plans/{plan_id}/schedules/{schedule_id}",
		Summary:       "Delete schedule",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID     int64 `path:"plan_id"`
		ScheduleID int64 `path:"schedule_id"`
	}) (*struct{}, error) {
		user, authErr := requireOwner(ctx, a, input.PlanID)
		if authErr != nil {
			return nil, authErr
		}
		n, err := a.Repo.DeleteSchedule(ctx, input.PlanID, input.ScheduleID)
		if err != nil {
			return nil, handleError(err)
		}
		if n == 0 {
			return nil, newAPIError(http.StatusNotFound, "not_found", "schedule not found in plan", nil)
		}
		logEvent(ctx, a, "schedule.delete", input.PlanID, "schedule", input.ScheduleID, user.ID, nil)
		return nil, nil
	})
}

func registerMemos(api huma.API, a app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "list-memos",
		Method:      http.MethodGet,
		Path:        "/plans/{plan_id}/memos",
		Summary:     "List memos grouped by category",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID int64 `path:"plan_id"`
	}) (*struct {
		Body []domain.Memo `json:"body"`
	}, error) {
		if _, _, authErr := requireViewer(ctx, a, input.PlanID); authErr != nil {
			return nil, authErr
		}
		items, err := a.Repo.ListMemos(ctx, input.PlanID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Memo{}
		}
		return &struct {
			Body []domain.Memo `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-memo",
		Method:        http.MethodPost,
		Path:          "/plans/{plan_id}/memos",
		Summary:       "Create memo",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID int64       `path:"plan_id"`
		Body   MemoRequest `json:"body"`
	}) (*struct {
		Body domain.Memo `json:"body"`
	}, error) {
		user, authErr := requireOwner(ctx, a, input.PlanID)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		m, err := a.Repo.InsertMemo(ctx, domain.Memo{
			PlanID:   input.PlanID,
			Category: input.Body.Category,
			Title:    input.Body.Title,
			Content:  input.Body.Content,
		})
		if err != nil {
			return nil, handleError(err)
		}
		logEvent(ctx, a, "memo.create", input.PlanID, "memo", m.ID, user.ID, events.EventPayload{"title": m.Title})
		return &struct {
			Body domain.Memo `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-memo",
		Method:      http.MethodPatch,
		Path:        "/plans/{plan_id}/memos/{memo_id}",
		Summary:     "Update memo fields",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID int64             `path:"plan_id"`
		MemoID int64             `path:"memo_id"`
		Body   MemoUpdateRequest `json:"body"`
	}) (*struct {
		Body domain.Memo `json:"body"`
	}, error) {
		user, authErr := requireOwner(ctx, a, input.PlanID)
		if authErr != nil {
			return nil, authErr
		}
		changes := map[string]any{}
		setChange(changes, "category", input.Body.Category)
		setChange(changes, "title", input.Body.Title)
		setChange(changes, "content", input.Body.Content)
		if len(changes) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "no updatable fields provided", nil)
		}
		n, err := a.Repo.UpdateMemoFields(ctx, input.PlanID, input.MemoID, changes)
		if err != nil {
			return nil, handleError(err)
		}
		if n == 0 {
			return nil, newAPIError(http.StatusNotFound, "not_found", "memo not found in plan", nil)
		}
		m, err := a.Repo.GetMemo(ctx, input.PlanID, input.MemoID)
		if err != nil {
			return nil, handleError(err)
		}
		logEvent(ctx, a, "memo.update", input.PlanID, "memo", m.ID, user.ID, events.EventPayload{"fields": keysOf(changes)})
		return &struct {
			Body domain.Memo `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-memo",
		Method:        http.MethodDelete,
		Path:          "/plans/{plan_id}/memos/{memo_id}",
		Summary:       "Delete memo",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID int64 `path:"plan_id"`
		MemoID int64 `path:"memo_id"`
	}) (*struct{}, error) {
		user, authErr := requireOwner(ctx, a, input.PlanID)
		if authErr != nil {
			return nil, authErr
		}
		n, err := a.Repo.DeleteMemo(ctx, input.PlanID, input.MemoID)
		if err != nil {
			return nil, handleError(err)
		}
		if n == 0 {
			return nil, newAPIError(http.StatusNotFound, "not_found", "memo not found in plan", nil)
		}
		logEvent(ctx, a, "memo.delete", input.PlanID, "memo", input.MemoID, user.ID, nil)
		return nil, nil
	})
}

func registerMoments(api huma.API, a app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "list-moments",
		Method:      http.MethodGet,
		Path:        "/plans/{plan_id}/moments",
		Summary:     "List moments",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID int64 `path:"plan_id"`
	}) (*struct {
		Body []domain.Moment `json:"body"`
	}, error) {
		if _, _, authErr := requireViewer(ctx, a, input.PlanID); authErr != nil {
			return nil, authErr
		}
		items, err := a.Repo.ListMoments(ctx, input.PlanID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Moment{}
		}
		return &struct {
			Body []domain.Moment `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-moment",
		Method:        http.MethodPost,
		Path:          "/plans/{plan_id}/moments",
		Summary:       "Attach a moment to a schedule",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID int64         `path:"plan_id"`
		Body   MomentRequest `json:"body"`
	}) (*struct {
		Body domain.Moment `json:"body"`
	}, error) {
		user, _, authErr := requireParticipant(ctx, a, input.PlanID)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.ScheduleID <= 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "schedule_id is required", nil)
		}
		if _, err := a.Repo.GetSchedule(ctx, input.PlanID, input.Body.ScheduleID); err != nil {
			return nil, handleError(err)
		}
		m, err := a.Repo.InsertMoment(ctx, domain.Moment{
			ScheduleID: input.Body.ScheduleID,
			PlanID:     input.PlanID,
			UserID:     user.ID,
			Photo:      input.Body.Photo,
			Note:       input.Body.Note,
		})
		if err != nil {
			return nil, handleError(err)
		}
		logEvent(ctx, a, "moment.create", input.PlanID, "moment", m.ID, user.ID, nil)
		return &struct {
			Body domain.Moment `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-moment",
		Method:      http.MethodPatch,
		Path:        "/plans/{plan_id}/moments/{moment_id}",
		Summary:     "Update moment fields",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID   int64               `path:"plan_id"`
		MomentID int64               `path:"moment_id"`
		Body     MomentUpdateRequest `json:"body"`
	}) (*struct {
		Body domain.Moment `json:"body"`
	}, error) {
		user, level, authErr := requireParticipant(ctx, a, input.PlanID)
		if authErr != nil {
			return nil, authErr
		}
		changes := map[string]any{}
		setChange(changes, "photo", input.Body.Photo)
		setChange(changes, "note", input.Body.Note)
		if len(changes) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "no updatable fields provided", nil)
		}
		n, err := a.Repo.UpdateMomentFields(ctx, input.PlanID, input.MomentID, momentOwnerScope(user, level), changes)
		if err != nil {
			return nil, handleError(err)
		}
		if n == 0 {
			return nil, newAPIError(http.StatusNotFound, "not_found", "moment not found or not yours", nil)
		}
		m, err := a.Repo.GetMoment(ctx, input.PlanID, input.MomentID)
		if err != nil {
			return nil, handleError(err)
		}
		logEvent(ctx, a, "moment.update", input.PlanID, "moment", m.ID, user.ID, events.EventPayload{"fields": keysOf(changes)})
		return &struct {
			Body domain.Moment `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-moment",
		Method:        http.MethodDelete,
		Path:          "/plans/{plan_id}/moments/{moment_id}",
		Summary:       "Delete moment",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID   int64 `path:"plan_id"`
		MomentID int64 `path:"moment_id"`
	}) (*struct{}, error) {
		user, level, authErr := requireParticipant(ctx, a, input.PlanID)
		if authErr != nil {
			return nil, authErr
		}
		n, err := a.Repo.DeleteMoment(ctx, input.PlanID, input.MomentID, momentOwnerScope(user, level))
		if err != nil {
			return nil, handleError(err)
		}
		if n == 0 {
			return nil, newAPIError(http.StatusNotFound, "not_found", "moment not found or not yours", nil)
		}
		logEvent(ctx, a, "moment.delete", input.PlanID, "moment", input.MomentID, user.ID, nil)
		return nil, nil
	})
}

// momentOwnerScope mirrors the assistant rule: members touch only their own
// moments, the plan owner touches any.
func momentOwnerScope(user domain.User, level domain.AccessLevel) int64 {
	if level == domain.AccessOwner {
		return 0
	}
	return user.ID
}
