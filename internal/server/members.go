package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"tripline/internal/app"
	"tripline/internal/domain"
	"tripline/internal/events"
	"tripline/internal/repo"
)

func registerMembers(api huma.API, a app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "list-members",
		Method:      http.MethodGet,
		Path:        "/plans/{plan_id}/members",
		Summary:     "List plan members",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID int64 `path:"plan_id"`
	}) (*struct {
		Body []domain.Member `json:"body"`
	}, error) {
		if _, _, authErr := requireViewer(ctx, a, input.PlanID); authErr != nil {
			return nil, authErr
		}
		items, err := a.Repo.ListMembers(ctx, input.PlanID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Member{}
		}
		return &struct {
			Body []domain.Member `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-member",
		Method:        http.MethodPost,
		Path:          "/plans/{plan_id}/members",
		Summary:       "Invite a user to the plan by email",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID int64         `path:"plan_id"`
		Body   MemberRequest `json:"body"`
	}) (*struct {
		Body domain.Member `json:"body"`
	}, error) {
		user, authErr := requireOwner(ctx, a, input.PlanID)
		if authErr != nil {
			return nil, authErr
		}
		email := strings.TrimSpace(input.Body.Email)
		if email == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "email is required", nil)
		}
		if strings.EqualFold(email, user.Email) {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "Cannot invite yourself", nil)
		}
		target, err := a.Repo.GetUserByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, newAPIError(http.StatusNotFound, "not_found", "no user with that email", nil)
			}
			return nil, handleError(err)
		}
		if err := a.Repo.AddMember(ctx, input.PlanID, target.ID); err != nil {
			return nil, handleError(err)
		}
		m, err := a.Repo.GetMember(ctx, input.PlanID, target.ID)
		if err != nil {
			return nil, handleError(err)
		}
		m.Email = target.Email
		m.Name = target.Name
		logEvent(ctx, a, "member.add", input.PlanID, "member", target.ID, user.ID, events.EventPayload{"email": target.Email})
		return &struct {
			Body domain.Member `json:"body"`
		}{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "remove-member",
		Method:        http.MethodDelete,
		Path:          "/plans/{plan_id}/members/{user_id}",
		Summary:       "Remove a member from the plan",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID int64 `path:"plan_id"`
		UserID int64 `path:"user_id"`
	}) (*struct{}, error) {
		user, authErr := requireOwner(ctx, a, input.PlanID)
		if authErr != nil {
			return nil, authErr
		}
		if input.UserID == user.ID {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "Cannot remove yourself", nil)
		}
		n, err := a.Repo.RemoveMember(ctx, input.PlanID, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		if n == 0 {
			return nil, newAPIError(http.StatusNotFound, "not_found", "not a member", nil)
		}
		logEvent(ctx, a, "member.remove", input.PlanID, "member", input.UserID, user.ID, nil)
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "leave-plan",
		Method:        http.MethodDelete,
		Path:          "/plans/{plan_id}/members/me",
		Summary:       "Leave a plan you were invited to",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PlanID int64 `path:"plan_id"`
	}) (*struct{}, error) {
		user, authErr := userFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		plan, err := a.Repo.GetPlan(ctx, input.PlanID)
		if err != nil {
			return nil, handleError(err)
		}
		if plan.OwnerID == user.ID {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "owner cannot leave their own plan", nil)
		}
		n, err := a.Repo.RemoveMember(ctx, input.PlanID, user.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if n == 0 {
			return nil, newAPIError(http.StatusNotFound, "not_found", "not a member", nil)
		}
		logEvent(ctx, a, "member.leave", input.PlanID, "member", user.ID, user.ID, nil)
		return nil, nil
	})
}
